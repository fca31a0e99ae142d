package api

import (
	"github.com/finmate/finmate/internal/marketfeeds"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerMarketRoutes(market *gin.RouterGroup) {
	market.GET("/stocks/rankings", s.marketFeed(marketfeeds.FeedRankings))
	market.GET("/stocks/:code", s.marketFeed(marketfeeds.FeedQuote))
	market.GET("/stocks/:code/chart", s.marketFeed(marketfeeds.FeedChart))
	market.GET("/indices", s.marketFeed(marketfeeds.FeedIndices))
}

// marketFeed relays an upstream market feed unmodified
func (s *Server) marketFeed(feed string) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := s.market.Fetch(c.Request.Context(), feed, c.Param("code"), c.Request.URL.Query())
		if err != nil {
			s.writeError(c, err)
			return
		}
		contentType := resp.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(resp.Status, contentType, resp.Body)
	}
}
