package board_test

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/board"
	"github.com/finmate/finmate/internal/media"
	"github.com/finmate/finmate/pkg/models"
	"github.com/finmate/finmate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBoard(t *testing.T) (*board.Service, *models.User, *models.User) {
	t.Helper()
	db := testutil.NewTestDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	store := media.NewLocalStore(zap.NewNop(), t.TempDir(), "/media", 1024)
	return board.NewService(zap.NewNop(), db, store), alice, bob
}

func TestArticleLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := newBoard(t)

	created, err := svc.CreateArticle(ctx, alice.ID, &models.ArticleRequest{
		Title:   "<b>First</b> post",
		Content: `<p>Hello</p><script>alert("x")</script>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "First post", created.Title)
	assert.Equal(t, "<p>Hello</p>", created.Content)
	assert.Equal(t, alice.ID, created.Writer.ID)
	assert.Empty(t, created.Comments)

	_, err = svc.UpdateArticle(ctx, bob.ID, created.ID, testutil.Ptr("hijack"), nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	updated, err := svc.UpdateArticle(ctx, alice.ID, created.ID, nil, testutil.Ptr("<p>Edited</p>"))
	require.NoError(t, err)
	assert.Equal(t, "First post", updated.Title)
	assert.Equal(t, "<p>Edited</p>", updated.Content)

	err = svc.DeleteArticle(ctx, bob.ID, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	require.NoError(t, svc.DeleteArticle(ctx, alice.ID, created.ID))
	_, err = svc.GetArticle(ctx, alice.ID, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestBlankAfterSanitizing(t *testing.T) {
	svc, alice, _ := newBoard(t)
	_, err := svc.CreateArticle(context.Background(), alice.ID, &models.ArticleRequest{
		Title:   "<script>x</script>",
		Content: "body",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestTitlesKeepSpecialCharacters(t *testing.T) {
	ctx := context.Background()
	svc, alice, _ := newBoard(t)

	created, err := svc.CreateArticle(ctx, alice.ID, &models.ArticleRequest{Title: "Q&A: 예금 < 적금?", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, "Q&A: 예금 < 적금?", created.Title)

	updated, err := svc.UpdateArticle(ctx, alice.ID, created.ID, testutil.Ptr("A & B"), nil)
	require.NoError(t, err)
	assert.Equal(t, "A & B", updated.Title)

	fetched, err := svc.GetArticle(ctx, alice.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "A & B", fetched.Title)
}

func TestTitleLengthCheckedAfterSanitizing(t *testing.T) {
	ctx := context.Background()
	svc, alice, _ := newBoard(t)

	full := strings.Repeat("&", 100)
	created, err := svc.CreateArticle(ctx, alice.ID, &models.ArticleRequest{Title: full, Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, full, created.Title)

	_, err = svc.CreateArticle(ctx, alice.ID, &models.ArticleRequest{Title: full + "&", Content: "c"})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

	_, err = svc.UpdateArticle(ctx, alice.ID, created.ID, testutil.Ptr(strings.Repeat("가", 101)), nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestLikesAndSorting(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := newBoard(t)

	older, err := svc.CreateArticle(ctx, alice.ID, &models.ArticleRequest{Title: "older", Content: "a"})
	require.NoError(t, err)
	newer, err := svc.CreateArticle(ctx, bob.ID, &models.ArticleRequest{Title: "newer", Content: "b"})
	require.NoError(t, err)

	liked, err := svc.ToggleLike(ctx, alice.ID, older.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	liked, err = svc.ToggleLike(ctx, bob.ID, older.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	detail, err := svc.GetArticle(ctx, bob.ID, older.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), detail.LikeCount)
	assert.True(t, detail.Liked)

	byLikes, err := svc.ListArticles(ctx, board.SortLikes)
	require.NoError(t, err)
	require.Len(t, byLikes, 2)
	assert.Equal(t, older.ID, byLikes[0].ID)
	assert.Equal(t, int64(2), byLikes[0].LikeCount)

	newest, err := svc.ListArticles(ctx, "")
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, newer.ID, newest[0].ID)

	liked, err = svc.ToggleLike(ctx, bob.ID, older.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	detail, err = svc.GetArticle(ctx, bob.ID, older.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.LikeCount)
	assert.False(t, detail.Liked)

	_, err = svc.ToggleLike(ctx, bob.ID, 9999)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := newBoard(t)

	article, err := svc.CreateArticle(ctx, alice.ID, &models.ArticleRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	comment, err := svc.CreateComment(ctx, bob.ID, article.ID, &models.CommentRequest{Content: "nice"})
	require.NoError(t, err)
	assert.Equal(t, "bob", comment.Writer.Nickname)

	_, err = svc.CreateComment(ctx, bob.ID, 9999, &models.CommentRequest{Content: "lost"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = svc.UpdateComment(ctx, alice.ID, comment.ID, &models.CommentRequest{Content: "mine now"})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	edited, err := svc.UpdateComment(ctx, bob.ID, comment.ID, &models.CommentRequest{Content: "very nice"})
	require.NoError(t, err)
	assert.Equal(t, "very nice", edited.Content)

	list, err := svc.ListArticles(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].CommentCount)

	require.NoError(t, svc.DeleteComment(ctx, bob.ID, comment.ID))
	detail, err := svc.GetArticle(ctx, alice.ID, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), detail.CommentCount)
}
