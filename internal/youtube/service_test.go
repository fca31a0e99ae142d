package youtube_test

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/youtube"
	"github.com/finmate/finmate/pkg/models"
	"github.com/finmate/finmate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSearcher struct {
	videos []youtube.VideoData
	err    error
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]youtube.VideoData, error) {
	return s.videos, s.err
}

func (s *stubSearcher) Related(ctx context.Context, videoID string) ([]youtube.VideoData, error) {
	return s.videos, s.err
}

func sampleVideos() []youtube.VideoData {
	return []youtube.VideoData{
		{YouTubeID: "v1", Title: "배당주 투자", Description: "월배당 ETF", ChannelTitle: "머니채널", PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{YouTubeID: "v2", Title: "금리 전망", Description: "채권", ChannelTitle: "경제TV", PublishedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestSearchStoresVideos(t *testing.T) {
	db := testutil.NewTestDB(t)
	stub := &stubSearcher{videos: sampleVideos()}
	svc := youtube.NewService(zap.NewNop(), db, stub)
	ctx := context.Background()

	videos, err := svc.Search(ctx, "배당")
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.NotZero(t, videos[0].ID)
	require.NotNil(t, videos[0].SearchQuery)
	assert.Equal(t, "배당", *videos[0].SearchQuery)

	// searching again updates in place
	stub.videos[0].Title = "배당주 투자 2편"
	videos, err = svc.Related(ctx, "v9")
	require.NoError(t, err)
	assert.Equal(t, "배당주 투자 2편", videos[0].Title)
	assert.Equal(t, "related_to_v9", *videos[0].SearchQuery)

	var count int64
	require.NoError(t, db.Model(&models.YouTubeVideo{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	found, err := svc.GetByYouTubeID(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, "금리 전망", found.Title)

	_, err = svc.GetByYouTubeID(ctx, "nope")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = svc.GetByYouTubeID(ctx, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestSearchErrors(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := youtube.NewService(zap.NewNop(), db, &stubSearcher{}).Search(ctx, "  ")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

	_, err = youtube.NewService(zap.NewNop(), db, nil).Search(ctx, "ETF")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnavailable))

	_, err = youtube.NewService(zap.NewNop(), db, &stubSearcher{err: errors.New("boom")}).Search(ctx, "ETF")
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstream))

	videos, err := youtube.NewService(zap.NewNop(), db, &stubSearcher{}).Search(ctx, "ETF")
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestListVideos(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := youtube.NewService(zap.NewNop(), db, &stubSearcher{videos: sampleVideos()})
	ctx := context.Background()
	_, err := svc.Search(ctx, "투자")
	require.NoError(t, err)

	videos, err := svc.ListVideos(ctx, "", "-published_at")
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "v2", videos[0].YouTubeID)

	videos, err = svc.ListVideos(ctx, "머니", "")
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "v1", videos[0].YouTubeID)

	got, err := svc.GetVideo(ctx, videos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.YouTubeID)
	_, err = svc.GetVideo(ctx, 999)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestSavedVideos(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := youtube.NewService(zap.NewNop(), db, &stubSearcher{videos: sampleVideos()})
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	videos, err := svc.Search(ctx, "투자")
	require.NoError(t, err)

	saved, created, err := svc.SaveVideo(ctx, alice.ID, &models.SavedVideoRequest{Video: videos[0].ID})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", saved.User.Username)
	assert.Equal(t, "v1", saved.Video.YouTubeID)
	assert.Nil(t, saved.Notes)

	again, created, err := svc.SaveVideo(ctx, alice.ID, &models.SavedVideoRequest{Video: videos[0].ID, Notes: testutil.Ptr("다시 보기")})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, saved.ID, again.ID)
	require.NotNil(t, again.Notes)
	assert.Equal(t, "다시 보기", *again.Notes)

	_, _, err = svc.SaveVideo(ctx, alice.ID, &models.SavedVideoRequest{Video: 999})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

	list, err := svc.ListSaved(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = svc.ListSaved(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.GetSaved(ctx, bob.ID, saved.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.True(t, apperrors.Is(svc.DeleteSaved(ctx, bob.ID, saved.ID), apperrors.ErrNotFound))

	updated, err := svc.UpdateSaved(ctx, alice.ID, saved.ID, testutil.Ptr("메모"))
	require.NoError(t, err)
	assert.Equal(t, "메모", *updated.Notes)

	require.NoError(t, svc.DeleteSaved(ctx, alice.ID, saved.ID))
	_, err = svc.GetSaved(ctx, alice.ID, saved.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
