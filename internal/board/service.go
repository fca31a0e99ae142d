// Package board implements the community article board.
package board

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/media"
	"github.com/finmate/finmate/pkg/models"
	"github.com/finmate/finmate/pkg/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sort orders for ListArticles
const (
	SortNewest = "newest"
	SortLikes  = "likes"
)

// maxTitleLength matches the title column size
const maxTitleLength = 100

// BoardService defines article and comment operations
type BoardService interface {
	Start() error
	Stop() error
	ListArticles(ctx context.Context, sort string) ([]ArticleSummary, error)
	CreateArticle(ctx context.Context, userID uint, req *models.ArticleRequest) (*ArticleDetail, error)
	GetArticle(ctx context.Context, userID, articleID uint) (*ArticleDetail, error)
	UpdateArticle(ctx context.Context, userID, articleID uint, title, content *string) (*ArticleDetail, error)
	DeleteArticle(ctx context.Context, userID, articleID uint) error
	ToggleLike(ctx context.Context, userID, articleID uint) (bool, error)
	CreateComment(ctx context.Context, userID, articleID uint, req *models.CommentRequest) (*CommentView, error)
	UpdateComment(ctx context.Context, userID, commentID uint, req *models.CommentRequest) (*CommentView, error)
	DeleteComment(ctx context.Context, userID, commentID uint) error
}

// WriterView is the public face of an author
type WriterView struct {
	ID           uint    `json:"id"`
	Nickname     string  `json:"nickname"`
	ProfileImg   *string `json:"profile_img"`
	SocialAvatar *string `json:"social_avatar"`
}

// CommentView is a rendered comment
type CommentView struct {
	ID        uint       `json:"id"`
	Writer    WriterView `json:"writer"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ArticleSummary is a list entry
type ArticleSummary struct {
	ID           uint       `json:"id"`
	Writer       WriterView `json:"writer"`
	Title        string     `json:"title"`
	CreatedAt    time.Time  `json:"created_at"`
	CommentCount int64      `json:"comment_count"`
	LikeCount    int64      `json:"like_count"`
}

// ArticleDetail is a single article with its comments
type ArticleDetail struct {
	ID           uint          `json:"id"`
	Writer       WriterView    `json:"writer"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Comments     []CommentView `json:"comments"`
	CommentCount int64         `json:"comment_count"`
	LikeCount    int64         `json:"like_count"`
	Liked        bool          `json:"liked"`
}

// Service implements BoardService
type Service struct {
	logger    *zap.Logger
	db        *gorm.DB
	media     media.Store
	sanitizer *validation.Sanitizer
}

// NewService creates a new BoardService
func NewService(logger *zap.Logger, db *gorm.DB, store media.Store) *Service {
	return &Service{
		logger:    logger,
		db:        db,
		media:     store,
		sanitizer: validation.NewSanitizer(),
	}
}

// Start starts the board service
func (s *Service) Start() error {
	s.logger.Info("Board service started")
	return nil
}

// Stop stops the board service
func (s *Service) Stop() error {
	s.logger.Info("Board service stopped")
	return nil
}

const likeCountExpr = "(SELECT COUNT(*) FROM article_likes WHERE article_likes.article_id = articles.id)"

// ListArticles returns every article, newest first or by like count
func (s *Service) ListArticles(ctx context.Context, sort string) ([]ArticleSummary, error) {
	query := s.db.WithContext(ctx).Preload("Writer")
	if sort == SortLikes {
		query = query.Order(likeCountExpr + " DESC").Order("articles.created_at DESC")
	} else {
		query = query.Order("articles.created_at DESC").Order("articles.id DESC")
	}

	var articles []models.Article
	if err := query.Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	ids := make([]uint, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	comments, err := s.countBy(ctx, s.db.WithContext(ctx).Model(&models.Comment{}), ids)
	if err != nil {
		return nil, err
	}
	likes, err := s.countBy(ctx, s.db.WithContext(ctx).Table("article_likes"), ids)
	if err != nil {
		return nil, err
	}

	out := make([]ArticleSummary, 0, len(articles))
	for _, a := range articles {
		out = append(out, ArticleSummary{
			ID:           a.ID,
			Writer:       s.writerView(&a.Writer),
			Title:        a.Title,
			CreatedAt:    a.CreatedAt,
			CommentCount: comments[a.ID],
			LikeCount:    likes[a.ID],
		})
	}
	return out, nil
}

func (s *Service) countBy(_ context.Context, query *gorm.DB, ids []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		ArticleID uint
		N         int64
	}
	if err := query.Select("article_id, COUNT(*) AS n").Where("article_id IN ?", ids).Group("article_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count article relations: %w", err)
	}
	for _, r := range rows {
		counts[r.ArticleID] = r.N
	}
	return counts, nil
}

// CreateArticle stores a new article written by userID
func (s *Service) CreateArticle(ctx context.Context, userID uint, req *models.ArticleRequest) (*ArticleDetail, error) {
	title, content, err := s.clean(req.Title, req.Content)
	if err != nil {
		return nil, err
	}
	article := &models.Article{WriterID: userID, Title: title, Content: content}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(article).Error; err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}
	s.logger.Info("Article created", zap.Uint("article_id", article.ID), zap.Uint("user_id", userID))
	return s.GetArticle(ctx, userID, article.ID)
}

// GetArticle returns an article with comments; Liked is relative to userID
func (s *Service) GetArticle(ctx context.Context, userID, articleID uint) (*ArticleDetail, error) {
	var article models.Article
	err := s.db.WithContext(ctx).
		Preload("Writer").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("comments.created_at ASC").Order("comments.id ASC") }).
		Preload("Comments.Writer").
		First(&article, articleID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "Article not found")
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	var likeCount, liked int64
	likes := s.db.WithContext(ctx).Table("article_likes").Where("article_id = ?", article.ID)
	if err := likes.Count(&likeCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}
	if err := s.db.WithContext(ctx).Table("article_likes").Where("article_id = ? AND user_id = ?", article.ID, userID).Count(&liked).Error; err != nil {
		return nil, fmt.Errorf("failed to check like: %w", err)
	}

	detail := &ArticleDetail{
		ID:           article.ID,
		Writer:       s.writerView(&article.Writer),
		Title:        article.Title,
		Content:      article.Content,
		CreatedAt:    article.CreatedAt,
		UpdatedAt:    article.UpdatedAt,
		Comments:     make([]CommentView, 0, len(article.Comments)),
		CommentCount: int64(len(article.Comments)),
		LikeCount:    likeCount,
		Liked:        liked > 0,
	}
	for i := range article.Comments {
		detail.Comments = append(detail.Comments, s.commentView(&article.Comments[i]))
	}
	return detail, nil
}

// UpdateArticle changes the given fields; only the writer may do so
func (s *Service) UpdateArticle(ctx context.Context, userID, articleID uint, title, content *string) (*ArticleDetail, error) {
	article, err := s.ownedArticle(ctx, userID, articleID, "You don't have permission to edit this article")
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if title != nil {
		clean, err := s.cleanTitle(*title)
		if err != nil {
			return nil, err
		}
		updates["title"] = clean
	}
	if content != nil {
		clean := s.sanitizer.HTML(*content)
		if clean == "" {
			return nil, apperrors.NewField(apperrors.ErrInvalid, "content", "This field may not be blank.")
		}
		updates["content"] = clean
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(article).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update article: %w", err)
		}
	}
	return s.GetArticle(ctx, userID, articleID)
}

// DeleteArticle removes an article with its comments and likes
func (s *Service) DeleteArticle(ctx context.Context, userID, articleID uint) error {
	article, err := s.ownedArticle(ctx, userID, articleID, "You don't have permission to delete this article")
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM article_likes WHERE article_id = ?", article.ID).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", article.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(article).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	s.logger.Info("Article deleted", zap.Uint("article_id", articleID), zap.Uint("user_id", userID))
	return nil
}

// ToggleLike likes the article, or unlikes it when already liked.
// It returns true when the article is liked afterwards.
func (s *Service) ToggleLike(ctx context.Context, userID, articleID uint) (bool, error) {
	var article models.Article
	if err := s.db.WithContext(ctx).First(&article, articleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.New(apperrors.ErrNotFound, "Article not found")
		}
		return false, fmt.Errorf("failed to get article: %w", err)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Table("article_likes").Where("article_id = ? AND user_id = ?", articleID, userID).Count(&existing).Error; err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}

	if existing > 0 {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM article_likes WHERE article_id = ? AND user_id = ?", articleID, userID).Error; err != nil {
			return false, fmt.Errorf("failed to unlike article: %w", err)
		}
		return false, nil
	}
	like := map[string]interface{}{"article_id": articleID, "user_id": userID}
	if err := s.db.WithContext(ctx).Table("article_likes").Create(like).Error; err != nil {
		return false, fmt.Errorf("failed to like article: %w", err)
	}
	return true, nil
}

// CreateComment adds a comment to an article
func (s *Service) CreateComment(ctx context.Context, userID, articleID uint, req *models.CommentRequest) (*CommentView, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", articleID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to find article: %w", err)
	}
	if count == 0 {
		return nil, apperrors.New(apperrors.ErrNotFound, "Article not found")
	}

	content := s.sanitizer.HTML(req.Content)
	if content == "" {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "content", "This field may not be blank.")
	}
	comment := &models.Comment{ArticleID: articleID, WriterID: userID, Content: content}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return s.loadComment(ctx, comment.ID)
}

// UpdateComment replaces a comment's content; only the writer may do so
func (s *Service) UpdateComment(ctx context.Context, userID, commentID uint, req *models.CommentRequest) (*CommentView, error) {
	comment, err := s.ownedComment(ctx, userID, commentID)
	if err != nil {
		return nil, err
	}
	content := s.sanitizer.HTML(req.Content)
	if content == "" {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "content", "This field may not be blank.")
	}
	if err := s.db.WithContext(ctx).Model(comment).Update("content", content).Error; err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return s.loadComment(ctx, commentID)
}

// DeleteComment removes a comment; only the writer may do so
func (s *Service) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.ownedComment(ctx, userID, commentID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(comment).Error; err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

func (s *Service) ownedArticle(ctx context.Context, userID, articleID uint, denied string) (*models.Article, error) {
	var article models.Article
	if err := s.db.WithContext(ctx).First(&article, articleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "Article not found")
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	if article.WriterID != userID {
		return nil, apperrors.New(apperrors.ErrForbidden, denied)
	}
	return &article, nil
}

func (s *Service) ownedComment(ctx context.Context, userID, commentID uint) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "Comment not found")
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	if comment.WriterID != userID {
		return nil, apperrors.New(apperrors.ErrForbidden, "You don't have permission to modify this comment")
	}
	return &comment, nil
}

func (s *Service) loadComment(ctx context.Context, id uint) (*CommentView, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Writer").First(&comment, id).Error; err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	view := s.commentView(&comment)
	return &view, nil
}

func (s *Service) clean(title, content string) (string, string, error) {
	title, err := s.cleanTitle(title)
	if err != nil {
		return "", "", err
	}
	content = s.sanitizer.HTML(content)
	if content == "" {
		return "", "", apperrors.NewField(apperrors.ErrInvalid, "content", "This field may not be blank.")
	}
	return title, content, nil
}

// cleanTitle sanitises a title and checks it still fits the column
func (s *Service) cleanTitle(title string) (string, error) {
	title = s.sanitizer.Text(title)
	if title == "" {
		return "", apperrors.NewField(apperrors.ErrInvalid, "title", "This field may not be blank.")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", apperrors.NewField(apperrors.ErrInvalid, "title", "Ensure this field has no more than %d characters.", maxTitleLength)
	}
	return title, nil
}

func (s *Service) commentView(c *models.Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		Writer:    s.writerView(&c.Writer),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (s *Service) writerView(u *models.User) WriterView {
	view := WriterView{ID: u.ID, Nickname: u.Nickname, SocialAvatar: u.SocialAvatar}
	if u.ProfileImg != nil && *u.ProfileImg != "" && s.media != nil {
		img := s.media.URL(*u.ProfileImg)
		view.ProfileImg = &img
	} else {
		view.ProfileImg = u.SocialAvatar
	}
	return view
}
