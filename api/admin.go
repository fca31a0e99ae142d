package api

import (
	"net/http"

	"github.com/finmate/finmate/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// syncLabels names each product kind in trigger replies
var syncLabels = map[string]string{
	models.KindDeposit:  "예금 상품",
	models.KindSaving:   "적금 상품",
	models.KindMortgage: "주택담보대출 상품",
	models.KindCredit:   "신용대출 상품",
	models.KindRent:     "전세자금대출 상품",
}

func (s *Server) registerAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/financial-products", s.adminListFinancialProducts)
	admin.GET("/financial-products/search", s.adminListFinancialProducts)
	admin.POST("/financial-products", s.adminCreateFinancialProduct)
	admin.GET("/financial-products/:code", s.getFinancialProduct)
	admin.PUT("/financial-products/:code", s.adminUpdateFinancialProduct)
	admin.DELETE("/financial-products/:code", s.adminDeleteFinancialProduct)

	admin.GET("/deposits", s.adminListDeposits)
	admin.POST("/deposits", s.adminCreateDeposit)
	admin.GET("/deposits/:code", s.getDeposit)
	admin.PUT("/deposits/:code", s.adminUpdateDeposit)
	admin.DELETE("/deposits/:code", s.adminDeleteDeposit)

	admin.GET("/savings", s.adminListSavings)
	admin.POST("/savings", s.adminCreateSaving)
	admin.GET("/savings/:code", s.getSaving)
	admin.PUT("/savings/:code", s.adminUpdateSaving)
	admin.DELETE("/savings/:code", s.adminDeleteSaving)

	admin.GET("/loans", s.adminListLoans)
	admin.POST("/loans", s.adminCreateLoan)
	admin.GET("/loans/:code", s.getLoan)
	admin.PUT("/loans/:code", s.adminUpdateLoan)
	admin.DELETE("/loans/:code", s.adminDeleteLoan)

	admin.POST("/update-all", s.syncAll)
	admin.POST("/batch-update", s.batchSync)
	admin.POST("/update-deposits", s.syncKind(models.KindDeposit))
	admin.POST("/update-savings", s.syncKind(models.KindSaving))
	admin.POST("/update-mortgage-loans", s.syncKind(models.KindMortgage))
	admin.POST("/update-credit-loans", s.syncKind(models.KindCredit))
	admin.POST("/update-rent-loans", s.syncKind(models.KindRent))
}

func (s *Server) adminListFinancialProducts(c *gin.Context) {
	list, err := s.products.AdminSearchFinancialProducts(c.Request.Context(), c.Query("q"), c.Query("category"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) adminCreateFinancialProduct(c *gin.Context) {
	var req models.FinancialProductRequest
	if !s.bind(c, &req) {
		return
	}
	product, err := s.products.CreateFinancialProduct(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (s *Server) adminUpdateFinancialProduct(c *gin.Context) {
	var req models.FinancialProductRequest
	if !s.bind(c, &req) {
		return
	}
	product, err := s.products.UpdateFinancialProduct(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) adminDeleteFinancialProduct(c *gin.Context) {
	if err := s.products.DeleteFinancialProduct(c.Request.Context(), c.Param("code")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adminListDeposits(c *gin.Context) {
	list, err := s.products.AdminListDeposits(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) adminCreateDeposit(c *gin.Context) {
	var req models.DepositProductRequest
	if !s.bind(c, &req) {
		return
	}
	deposit, err := s.products.CreateDeposit(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deposit)
}

func (s *Server) adminUpdateDeposit(c *gin.Context) {
	var req models.DepositProductRequest
	if !s.bind(c, &req) {
		return
	}
	deposit, err := s.products.UpdateDeposit(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deposit)
}

func (s *Server) adminDeleteDeposit(c *gin.Context) {
	if err := s.products.DeleteDeposit(c.Request.Context(), c.Param("code")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adminListSavings(c *gin.Context) {
	list, err := s.products.AdminListSavings(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) adminCreateSaving(c *gin.Context) {
	var req models.SavingProductRequest
	if !s.bind(c, &req) {
		return
	}
	saving, err := s.products.CreateSaving(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saving)
}

func (s *Server) adminUpdateSaving(c *gin.Context) {
	var req models.SavingProductRequest
	if !s.bind(c, &req) {
		return
	}
	saving, err := s.products.UpdateSaving(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saving)
}

func (s *Server) adminDeleteSaving(c *gin.Context) {
	if err := s.products.DeleteSaving(c.Request.Context(), c.Param("code")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adminListLoans(c *gin.Context) {
	list, err := s.products.AdminListLoans(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) adminCreateLoan(c *gin.Context) {
	var req models.LoanProductRequest
	if !s.bind(c, &req) {
		return
	}
	loan, err := s.products.CreateLoan(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

func (s *Server) adminUpdateLoan(c *gin.Context) {
	var req models.LoanProductRequest
	if !s.bind(c, &req) {
		return
	}
	loan, err := s.products.UpdateLoan(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (s *Server) adminDeleteLoan(c *gin.Context) {
	if err := s.products.DeleteLoan(c.Request.Context(), c.Param("code")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) syncAll(c *gin.Context) {
	result := s.sync.SyncAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "모든 상품 데이터 업데이트가 완료되었습니다.",
		"results": result,
	})
}

func (s *Server) batchSync(c *gin.Context) {
	var req models.BatchUpdateRequest
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}
	results, err := s.sync.SyncTypes(c.Request.Context(), req.Types)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "선택한 상품 데이터 업데이트가 완료되었습니다.",
		"results": results,
	})
}

func (s *Server) syncKind(kind string) gin.HandlerFunc {
	label := syncLabels[kind]
	return func(c *gin.Context) {
		report, err := s.sync.Sync(c.Request.Context(), kind)
		if err != nil {
			s.logger.Error("Product sync trigger failed", zap.String("kind", kind), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": label + " 데이터 업데이트에 실패했습니다.",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": label + " 데이터가 성공적으로 업데이트되었습니다.",
			"report":  report,
		})
	}
}
