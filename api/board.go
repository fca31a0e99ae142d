package api

import (
	"net/http"

	"github.com/finmate/finmate/internal/board"
	"github.com/finmate/finmate/pkg/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerBoardRoutes(articles *gin.RouterGroup) {
	articles.GET("", s.listArticles)
	articles.POST("", s.createArticle)
	articles.GET("/sort-by-likes", s.listArticlesByLikes)
	articles.GET("/:id", s.getArticle)
	articles.PUT("/:id", s.updateArticle)
	articles.PATCH("/:id", s.patchArticle)
	articles.DELETE("/:id", s.deleteArticle)
	articles.POST("/:id/like", s.likeArticle)
	articles.POST("/:id/comments", s.createComment)
	articles.PUT("/comments/:comment_id", s.updateComment)
	articles.PATCH("/comments/:comment_id", s.updateComment)
	articles.DELETE("/comments/:comment_id", s.deleteComment)
}

func (s *Server) listArticles(c *gin.Context) {
	sort := board.SortNewest
	if c.Query("sort") == board.SortLikes {
		sort = board.SortLikes
	}
	s.writeArticles(c, sort)
}

func (s *Server) listArticlesByLikes(c *gin.Context) {
	s.writeArticles(c, board.SortLikes)
}

func (s *Server) writeArticles(c *gin.Context, sort string) {
	articles, err := s.board.ListArticles(c.Request.Context(), sort)
	if err != nil {
		s.writeError(c, err)
		return
	}
	for i := range articles {
		articles[i].Writer.ProfileImg = absoluteURL(c, articles[i].Writer.ProfileImg)
	}
	c.JSON(http.StatusOK, articles)
}

func (s *Server) createArticle(c *gin.Context) {
	userID, _ := currentUserID(c)
	var req models.ArticleRequest
	if !s.bind(c, &req) {
		return
	}
	article, err := s.board.CreateArticle(c.Request.Context(), userID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.articleDetail(c, article))
}

func (s *Server) getArticle(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	article, err := s.board.GetArticle(c.Request.Context(), userID, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.articleDetail(c, article))
}

func (s *Server) updateArticle(c *gin.Context) {
	var req models.ArticleRequest
	id, ok := idParam(c, "id")
	if !ok || !s.bind(c, &req) {
		return
	}
	s.saveArticle(c, id, &req.Title, &req.Content)
}

func (s *Server) patchArticle(c *gin.Context) {
	var req models.ArticlePatchRequest
	id, ok := idParam(c, "id")
	if !ok || !s.bind(c, &req) {
		return
	}
	s.saveArticle(c, id, req.Title, req.Content)
}

func (s *Server) saveArticle(c *gin.Context, id uint, title, content *string) {
	userID, _ := currentUserID(c)
	article, err := s.board.UpdateArticle(c.Request.Context(), userID, id, title, content)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.articleDetail(c, article))
}

func (s *Server) deleteArticle(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.board.DeleteArticle(c.Request.Context(), userID, id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) likeArticle(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	liked, err := s.board.ToggleLike(c.Request.Context(), userID, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := "unliked"
	if liked {
		status = "liked"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) createComment(c *gin.Context) {
	userID, _ := currentUserID(c)
	var req models.CommentRequest
	id, ok := idParam(c, "id")
	if !ok || !s.bind(c, &req) {
		return
	}
	comment, err := s.board.CreateComment(c.Request.Context(), userID, id, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	comment.Writer.ProfileImg = absoluteURL(c, comment.Writer.ProfileImg)
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) updateComment(c *gin.Context) {
	userID, _ := currentUserID(c)
	var req models.CommentRequest
	id, ok := idParam(c, "comment_id")
	if !ok || !s.bind(c, &req) {
		return
	}
	comment, err := s.board.UpdateComment(c.Request.Context(), userID, id, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	comment.Writer.ProfileImg = absoluteURL(c, comment.Writer.ProfileImg)
	c.JSON(http.StatusOK, comment)
}

func (s *Server) deleteComment(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, ok := idParam(c, "comment_id")
	if !ok {
		return
	}
	if err := s.board.DeleteComment(c.Request.Context(), userID, id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) articleDetail(c *gin.Context, article *board.ArticleDetail) *board.ArticleDetail {
	article.Writer.ProfileImg = absoluteURL(c, article.Writer.ProfileImg)
	for i := range article.Comments {
		article.Comments[i].Writer.ProfileImg = absoluteURL(c, article.Comments[i].Writer.ProfileImg)
	}
	return article
}
