package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VideoService defines video search and bookmark operations
type VideoService interface {
	Start() error
	Stop() error
	Search(ctx context.Context, query string) ([]models.YouTubeVideo, error)
	Related(ctx context.Context, youtubeID string) ([]models.YouTubeVideo, error)
	GetByYouTubeID(ctx context.Context, youtubeID string) (*models.YouTubeVideo, error)
	ListVideos(ctx context.Context, search, ordering string) ([]models.YouTubeVideo, error)
	GetVideo(ctx context.Context, id uint) (*models.YouTubeVideo, error)
	ListSaved(ctx context.Context, userID uint) ([]SavedVideoView, error)
	GetSaved(ctx context.Context, userID, id uint) (*SavedVideoView, error)
	SaveVideo(ctx context.Context, userID uint, req *models.SavedVideoRequest) (*SavedVideoView, bool, error)
	UpdateSaved(ctx context.Context, userID, id uint, notes *string) (*SavedVideoView, error)
	DeleteSaved(ctx context.Context, userID, id uint) error
}

// SavedVideoView is a bookmark with its owner and video
type SavedVideoView struct {
	ID      uint                `json:"id"`
	User    SavedVideoUser      `json:"user"`
	Video   models.YouTubeVideo `json:"video"`
	SavedAt time.Time           `json:"saved_at"`
	Notes   *string             `json:"notes"`
}

// SavedVideoUser is the owner of a bookmark
type SavedVideoUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

var orderings = map[string]string{
	"published_at":  "published_at ASC",
	"-published_at": "published_at DESC",
	"created_at":    "created_at ASC",
	"-created_at":   "created_at DESC",
}

// Service implements VideoService
type Service struct {
	logger   *zap.Logger
	db       *gorm.DB
	searcher Searcher
}

// NewService creates a VideoService. searcher may be nil when YouTube is not
// configured; searches then fail as unavailable.
func NewService(logger *zap.Logger, db *gorm.DB, searcher Searcher) *Service {
	return &Service{
		logger:   logger,
		db:       db,
		searcher: searcher,
	}
}

// Start starts the video service
func (s *Service) Start() error {
	s.logger.Info("YouTube service started", zap.Bool("api_configured", s.searcher != nil))
	return nil
}

// Stop stops the video service
func (s *Service) Stop() error {
	s.logger.Info("YouTube service stopped")
	return nil
}

// Search queries YouTube and stores the results under query. An empty
// result is not an error.
func (s *Service) Search(ctx context.Context, query string) ([]models.YouTubeVideo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "Search query is required")
	}
	if s.searcher == nil {
		return nil, apperrors.New(apperrors.ErrUnavailable, "YouTube API key is not configured")
	}

	found, err := s.searcher.Search(ctx, query)
	if err != nil {
		s.logger.Error("YouTube search failed", zap.String("query", query), zap.Error(err))
		return nil, apperrors.New(apperrors.ErrUpstream, "An error occurred while searching YouTube videos")
	}
	return s.store(ctx, found, query)
}

// Related fetches videos related to youtubeID and stores them
func (s *Service) Related(ctx context.Context, youtubeID string) ([]models.YouTubeVideo, error) {
	if youtubeID == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "YouTube ID is required")
	}
	if s.searcher == nil {
		return nil, apperrors.New(apperrors.ErrUnavailable, "YouTube API key is not configured")
	}

	found, err := s.searcher.Related(ctx, youtubeID)
	if err != nil {
		s.logger.Error("YouTube related search failed", zap.String("youtube_id", youtubeID), zap.Error(err))
		return nil, apperrors.New(apperrors.ErrUpstream, "Failed to retrieve related videos")
	}
	return s.store(ctx, found, "related_to_"+youtubeID)
}

// store upserts found by youtube_id, tagging each row with query
func (s *Service) store(ctx context.Context, found []VideoData, query string) ([]models.YouTubeVideo, error) {
	videos := make([]models.YouTubeVideo, 0, len(found))
	if len(found) == 0 {
		return videos, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, v := range found {
			description := v.Description
			tag := query
			video := models.YouTubeVideo{
				YouTubeID:    v.YouTubeID,
				Title:        v.Title,
				Description:  &description,
				ThumbnailURL: v.ThumbnailURL,
				PublishedAt:  v.PublishedAt,
				ChannelTitle: v.ChannelTitle,
				SearchQuery:  &tag,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "youtube_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "description", "thumbnail_url", "published_at", "channel_title", "search_query"}),
			}).Create(&video).Error
			if err != nil {
				return err
			}
			// the upsert does not report the id of an updated row
			var stored models.YouTubeVideo
			if err := tx.Where("youtube_id = ?", v.YouTubeID).First(&stored).Error; err != nil {
				return err
			}
			videos = append(videos, stored)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store videos: %w", err)
	}

	s.logger.Info("Stored YouTube videos", zap.String("query", query), zap.Int("count", len(videos)))
	return videos, nil
}

// GetByYouTubeID returns a stored video by its YouTube id
func (s *Service) GetByYouTubeID(ctx context.Context, youtubeID string) (*models.YouTubeVideo, error) {
	if youtubeID == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "YouTube ID is required")
	}
	var video models.YouTubeVideo
	if err := s.db.WithContext(ctx).Where("youtube_id = ?", youtubeID).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "Video not found")
		}
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return &video, nil
}

// ListVideos lists stored videos, optionally filtered by search over
// title, description and channel, in the given ordering
func (s *Service) ListVideos(ctx context.Context, search, ordering string) ([]models.YouTubeVideo, error) {
	query := s.db.WithContext(ctx).Model(&models.YouTubeVideo{})
	for _, term := range strings.Fields(search) {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(channel_title) LIKE ?", like, like, like)
	}
	for _, field := range strings.Split(ordering, ",") {
		if order, ok := orderings[strings.TrimSpace(field)]; ok {
			query = query.Order(order)
		}
	}

	videos := make([]models.YouTubeVideo, 0)
	if err := query.Order("id ASC").Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return videos, nil
}

// GetVideo returns a stored video by primary key
func (s *Service) GetVideo(ctx context.Context, id uint) (*models.YouTubeVideo, error) {
	var video models.YouTubeVideo
	if err := s.db.WithContext(ctx).First(&video, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "Video not found")
		}
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return &video, nil
}

// ListSaved lists the user's bookmarks, newest first
func (s *Service) ListSaved(ctx context.Context, userID uint) ([]SavedVideoView, error) {
	var saved []models.SavedVideo
	err := s.db.WithContext(ctx).
		Preload("User").Preload("Video").
		Where("user_id = ?", userID).
		Order("saved_at DESC").Order("id DESC").
		Find(&saved).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list saved videos: %w", err)
	}

	views := make([]SavedVideoView, 0, len(saved))
	for i := range saved {
		views = append(views, savedView(&saved[i]))
	}
	return views, nil
}

// GetSaved returns one of the user's bookmarks
func (s *Service) GetSaved(ctx context.Context, userID, id uint) (*SavedVideoView, error) {
	saved, err := s.findSaved(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	view := savedView(saved)
	return &view, nil
}

// SaveVideo bookmarks a video. When the user already saved it the notes are
// replaced if given and created is false.
func (s *Service) SaveVideo(ctx context.Context, userID uint, req *models.SavedVideoRequest) (*SavedVideoView, bool, error) {
	var video models.YouTubeVideo
	if err := s.db.WithContext(ctx).First(&video, req.Video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.NewField(apperrors.ErrInvalid, "video",
				"Invalid pk \"%d\" - object does not exist.", req.Video)
		}
		return nil, false, fmt.Errorf("failed to get video: %w", err)
	}

	var existing models.SavedVideo
	err := s.db.WithContext(ctx).Where("user_id = ? AND video_id = ?", userID, video.ID).First(&existing).Error
	switch {
	case err == nil:
		if req.Notes != nil && *req.Notes != "" {
			if err := s.db.WithContext(ctx).Model(&existing).Update("notes", *req.Notes).Error; err != nil {
				return nil, false, fmt.Errorf("failed to update notes: %w", err)
			}
		}
		s.logger.Info("Video already saved, notes updated", zap.Uint("user_id", userID), zap.Uint("video_id", video.ID))
		view, err := s.GetSaved(ctx, userID, existing.ID)
		return view, false, err
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, fmt.Errorf("failed to check saved video: %w", err)
	}

	saved := models.SavedVideo{UserID: userID, VideoID: video.ID, Notes: req.Notes}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&saved).Error; err != nil {
		return nil, false, fmt.Errorf("failed to save video: %w", err)
	}
	s.logger.Info("Video saved", zap.Uint("user_id", userID), zap.Uint("video_id", video.ID))

	view, err := s.GetSaved(ctx, userID, saved.ID)
	return view, true, err
}

// UpdateSaved replaces the notes of a bookmark
func (s *Service) UpdateSaved(ctx context.Context, userID, id uint, notes *string) (*SavedVideoView, error) {
	saved, err := s.findSaved(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.SavedVideo{}).Where("id = ?", saved.ID).Update("notes", notes).Error; err != nil {
		return nil, fmt.Errorf("failed to update saved video: %w", err)
	}
	return s.GetSaved(ctx, userID, id)
}

// DeleteSaved removes a bookmark
func (s *Service) DeleteSaved(ctx context.Context, userID, id uint) error {
	saved, err := s.findSaved(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.SavedVideo{}, saved.ID).Error; err != nil {
		return fmt.Errorf("failed to delete saved video: %w", err)
	}
	return nil
}

// findSaved loads a bookmark; other users' rows are reported as missing
func (s *Service) findSaved(ctx context.Context, userID, id uint) (*models.SavedVideo, error) {
	var saved models.SavedVideo
	err := s.db.WithContext(ctx).
		Preload("User").Preload("Video").
		Where("id = ? AND user_id = ?", id, userID).
		First(&saved).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "No SavedVideo matches the given query.")
		}
		return nil, fmt.Errorf("failed to get saved video: %w", err)
	}
	return &saved, nil
}

func savedView(saved *models.SavedVideo) SavedVideoView {
	return SavedVideoView{
		ID:      saved.ID,
		User:    SavedVideoUser{ID: saved.User.ID, Username: saved.User.Username},
		Video:   saved.Video,
		SavedAt: saved.SavedAt,
		Notes:   saved.Notes,
	}
}
