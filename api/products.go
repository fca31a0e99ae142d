package api

import (
	"net/http"
	"strconv"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/products"
	"github.com/finmate/finmate/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultTopRatesLimit   = 5
	defaultLowestLoanLimit = 10
)

func (s *Server) registerProductRoutes(group *gin.RouterGroup) {
	group.GET("/financial-products", s.listFinancialProducts)
	group.GET("/financial-products/:code", s.getFinancialProduct)
	group.GET("/deposits", s.listDeposits)
	group.GET("/deposits/:code", s.getDeposit)
	group.GET("/savings", s.listSavings)
	group.GET("/savings/:code", s.getSaving)
	group.GET("/loans", s.listLoans)
	group.GET("/loans/:code", s.getLoan)

	group.GET("/top-rates/:type", s.topRates)
	group.GET("/lowest-rate-loans", s.lowestRateLoans)
	group.GET("/search", s.searchProducts)
	group.GET("/filter", s.filterProducts)
	group.GET("/statistics", s.statistics)
	group.POST("/simulate", s.simulate)

	user := group.Group("", s.authMiddleware())
	user.GET("/user/favorites", s.listFavorites)
	user.POST("/user/favorites/:code/add", s.addFavorite)
	user.DELETE("/user/favorites/:code/remove", s.removeFavorite)
	user.GET("/recommendations", s.recommendations)
	user.POST("/ai-recommendations", s.rateLimitMiddleware(), s.aiRecommendations)
}

// queryFloat returns nil for absent or unparsable values
func queryFloat(c *gin.Context, name string) *float64 {
	v, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryInt(c *gin.Context, name string) *int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return nil
	}
	return &v
}

func (s *Server) listFinancialProducts(c *gin.Context) {
	list, err := s.products.ListFinancialProducts(c.Request.Context(), products.CatalogQuery{
		Category:  c.Query("category"),
		KorCoNm:   c.Query("kor_co_nm"),
		FinPrdtNm: c.Query("fin_prdt_nm"),
		LoanType:  c.Query("loan_type"),
		JoinWay:   c.Query("join_way"),
		Search:    c.Query("search"),
		Ordering:  c.Query("ordering"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getFinancialProduct(c *gin.Context) {
	product, err := s.products.GetFinancialProduct(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func rateQuery(c *gin.Context) products.RateQuery {
	return products.RateQuery{
		MinRate:      queryFloat(c, "min_rate"),
		MaxRate:      queryFloat(c, "max_rate"),
		Bank:         c.Query("bank"),
		IntrRateType: c.Query("intr_rate_type"),
		SaveTrm:      queryInt(c, "save_trm"),
		Search:       c.Query("search"),
		Ordering:     c.Query("ordering"),
	}
}

func (s *Server) listDeposits(c *gin.Context) {
	list, err := s.products.ListDeposits(c.Request.Context(), rateQuery(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getDeposit(c *gin.Context) {
	detail, err := s.products.GetDeposit(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) listSavings(c *gin.Context) {
	q := rateQuery(c)
	q.RsrvType = c.Query("rsrv_type")
	if term := queryInt(c, "term"); term != nil {
		q.SaveTrm = term
	}
	list, err := s.products.ListSavings(c.Request.Context(), q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getSaving(c *gin.Context) {
	detail, err := s.products.GetSaving(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) listLoans(c *gin.Context) {
	list, err := s.products.ListLoans(c.Request.Context(), products.LoanQuery{
		Bank:        c.Query("bank"),
		LoanType:    c.Query("loan_type"),
		DclsMonth:   c.Query("dcls_month"),
		HasMortgage: c.Query("has_mortgage") == "true",
		HasCredit:   c.Query("has_credit") == "true",
		Search:      c.Query("search"),
		Ordering:    c.Query("ordering"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getLoan(c *gin.Context) {
	detail, err := s.products.GetLoan(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// limitParam reads ?limit, writing a 400 when it is not an integer
func limitParam(c *gin.Context, fallback int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		apperrors.BadRequest(c, "limit must be an integer")
		return 0, false
	}
	return limit, true
}

func (s *Server) topRates(c *gin.Context) {
	limit, ok := limitParam(c, defaultTopRatesLimit)
	if !ok {
		return
	}
	list, err := s.products.TopRates(c.Request.Context(), c.Param("type"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) lowestRateLoans(c *gin.Context) {
	limit, ok := limitParam(c, defaultLowestLoanLimit)
	if !ok {
		return
	}
	list, err := s.products.LowestRateLoans(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) searchProducts(c *gin.Context) {
	result, err := s.products.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) filterProducts(c *gin.Context) {
	q := products.FilterQuery{
		Type:        c.Query("type"),
		Institution: c.Query("institution"),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
	}

	var fieldErrors []apperrors.ValidationError
	float := func(name string) *float64 {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fieldErrors = append(fieldErrors, apperrors.ValidationError{Field: name, Message: name + " must be a number", Code: "invalid"})
			return nil
		}
		return &v
	}
	integer := func(name string) *int {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrors = append(fieldErrors, apperrors.ValidationError{Field: name, Message: name + " must be an integer", Code: "invalid"})
			return nil
		}
		return &v
	}

	q.MinRate = float("min_rate")
	q.MaxRate = float("max_rate")
	q.Term = integer("term")
	if page := integer("page"); page != nil {
		q.Page = *page
		if q.Page == 0 {
			q.Page = -1
		}
	}
	if size := integer("page_size"); size != nil {
		q.PageSize = *size
		if q.PageSize == 0 {
			q.PageSize = -1
		}
	}
	if len(fieldErrors) > 0 {
		apperrors.BadRequest(c, "Invalid filter parameters", fieldErrors...)
		return
	}

	result, err := s.products.Filter(c.Request.Context(), q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) statistics(c *gin.Context) {
	stats, err := s.products.Statistics(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) simulate(c *gin.Context) {
	var req models.SimulationRequest
	if !s.bind(c, &req) {
		return
	}
	result, err := s.products.Simulate(&req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listFavorites(c *gin.Context) {
	userID, _ := currentUserID(c)
	list, err := s.products.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) addFavorite(c *gin.Context) {
	userID, _ := currentUserID(c)
	favorite, err := s.products.AddFavorite(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, favorite)
}

func (s *Server) removeFavorite(c *gin.Context) {
	userID, _ := currentUserID(c)
	if err := s.products.RemoveFavorite(c.Request.Context(), userID, c.Param("code")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) recommendations(c *gin.Context) {
	userID, _ := currentUserID(c)
	user, err := s.identities.GetUser(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	result, err := s.products.Recommendations(c.Request.Context(), user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) aiRecommendations(c *gin.Context) {
	userID, _ := currentUserID(c)
	user, err := s.identities.GetUser(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req models.AIRecommendationRequest
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}

	text, err := s.products.AIRecommendations(c.Request.Context(), user, &req)
	if err != nil {
		pd := apperrors.ToProblemDetails(err, c.Request.URL.Path)
		if pd.Status >= http.StatusInternalServerError {
			s.logger.Warn("AI recommendation unavailable", zap.Uint("user_id", userID), zap.Error(err))
		}
		c.JSON(pd.Status, gin.H{"status": "error", "message": pd.Detail})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "recommendations": text})
}
