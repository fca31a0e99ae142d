package api

import (
	"net/http"

	"github.com/finmate/finmate/pkg/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerVideoRoutes(group *gin.RouterGroup) {
	group.GET("/videos/search", s.rateLimitMiddleware(), s.searchVideos)

	videos := group.Group("/videos", s.authMiddleware())
	videos.GET("", s.listVideos)
	videos.GET("/get-by-youtube-id", s.videoByYouTubeID)
	videos.GET("/related-videos", s.rateLimitMiddleware(), s.relatedVideos)
	videos.GET("/:id", s.getVideo)

	saved := group.Group("/saved", s.authMiddleware())
	saved.GET("", s.listSavedVideos)
	saved.GET("/my-saved-videos", s.listSavedVideos)
	saved.POST("", s.saveVideo)
	saved.GET("/:id", s.getSavedVideo)
	saved.PUT("/:id", s.updateSavedVideo)
	saved.PATCH("/:id", s.updateSavedVideo)
	saved.DELETE("/:id", s.deleteSavedVideo)
}

func (s *Server) searchVideos(c *gin.Context) {
	videos, err := s.videos.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if len(videos) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (s *Server) relatedVideos(c *gin.Context) {
	videos, err := s.videos.Related(c.Request.Context(), c.Query("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if len(videos) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (s *Server) videoByYouTubeID(c *gin.Context) {
	video, err := s.videos.GetByYouTubeID(c.Request.Context(), c.Query("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (s *Server) listVideos(c *gin.Context) {
	videos, err := s.videos.ListVideos(c.Request.Context(), c.Query("search"), c.Query("ordering"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (s *Server) getVideo(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	video, err := s.videos.GetVideo(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (s *Server) listSavedVideos(c *gin.Context) {
	userID, _ := currentUserID(c)
	saved, err := s.videos.ListSaved(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) getSavedVideo(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	saved, err := s.videos.GetSaved(c.Request.Context(), userID, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) saveVideo(c *gin.Context) {
	userID, _ := currentUserID(c)
	var req models.SavedVideoRequest
	if !s.bind(c, &req) {
		return
	}
	saved, created, err := s.videos.SaveVideo(c.Request.Context(), userID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, saved)
}

func (s *Server) updateSavedVideo(c *gin.Context) {
	userID, _ := currentUserID(c)
	var req models.SavedVideoUpdateRequest
	id, ok := idParam(c, "id")
	if !ok || !s.bind(c, &req) {
		return
	}
	saved, err := s.videos.UpdateSaved(c.Request.Context(), userID, id, req.Notes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) deleteSavedVideo(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.videos.DeleteSaved(c.Request.Context(), userID, id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
