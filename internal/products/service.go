// Package products serves the financial product catalog, favorites and
// recommendations.
package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/cache"
	"github.com/finmate/finmate/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	statisticsKey = "products:statistics"
	statisticsTTL = 10 * time.Minute
)

// Recommender produces advice text for a prompt
type Recommender interface {
	Recommend(ctx context.Context, prompt string) (string, error)
}

// ProductService defines catalog operations
type ProductService interface {
	Start() error
	Stop() error

	ListFinancialProducts(ctx context.Context, q CatalogQuery) ([]ProductView, error)
	GetFinancialProduct(ctx context.Context, code string) (*ProductView, error)
	ListDeposits(ctx context.Context, q RateQuery) ([]DepositView, error)
	GetDeposit(ctx context.Context, code string) (*RateDetailView, error)
	ListSavings(ctx context.Context, q RateQuery) ([]SavingView, error)
	GetSaving(ctx context.Context, code string) (*RateDetailView, error)
	ListLoans(ctx context.Context, q LoanQuery) ([]LoanDetailView, error)
	GetLoan(ctx context.Context, code string) (*LoanDetailView, error)

	TopRates(ctx context.Context, kind string, limit int) (interface{}, error)
	LowestRateLoans(ctx context.Context, limit int) ([]LoanDetailView, error)
	Search(ctx context.Context, q string) (*SearchResult, error)
	Filter(ctx context.Context, q FilterQuery) (*FilterResult, error)
	Statistics(ctx context.Context) (*Statistics, error)
	InvalidateStatistics(ctx context.Context) error
	Simulate(req *models.SimulationRequest) (*Simulation, error)

	ListFavorites(ctx context.Context, userID uint) ([]FavoriteView, error)
	AddFavorite(ctx context.Context, userID uint, code string) (*FavoriteView, error)
	RemoveFavorite(ctx context.Context, userID uint, code string) error
	Recommendations(ctx context.Context, user *models.User) (*RecommendationResult, error)
	AIRecommendations(ctx context.Context, user *models.User, req *models.AIRecommendationRequest) (string, error)

	AdminStore
}

// Service implements ProductService
type Service struct {
	logger  *zap.Logger
	db      *gorm.DB
	cache   cache.Cache
	advisor Recommender
}

// NewService creates a new ProductService. advisor may be nil.
func NewService(logger *zap.Logger, db *gorm.DB, c cache.Cache, advisor Recommender) *Service {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &Service{
		logger:  logger,
		db:      db,
		cache:   c,
		advisor: advisor,
	}
}

// Start starts the products service
func (s *Service) Start() error {
	s.logger.Info("Products service started", zap.Bool("advisor", s.advisor != nil))
	return nil
}

// Stop stops the products service
func (s *Service) Stop() error {
	s.logger.Info("Products service stopped")
	return nil
}

// CatalogQuery filters the financial product list
type CatalogQuery struct {
	Category  string
	KorCoNm   string
	FinPrdtNm string
	LoanType  string
	JoinWay   string
	Search    string
	Ordering  string
}

// RateQuery filters deposit and saving lists. Nil pointers are not applied.
type RateQuery struct {
	MinRate      *float64
	MaxRate      *float64
	Bank         string
	IntrRateType string
	SaveTrm      *int
	RsrvType     string
	Search       string
	Ordering     string
}

// LoanQuery filters the loan list
type LoanQuery struct {
	Bank        string
	LoanType    string
	DclsMonth   string
	HasMortgage bool
	HasCredit   bool
	Search      string
	Ordering    string
}

// ListFinancialProducts lists products ordered by company then name
func (s *Service) ListFinancialProducts(ctx context.Context, q CatalogQuery) ([]ProductView, error) {
	query := s.db.WithContext(ctx).Model(&models.FinancialProduct{})

	switch strings.ToLower(q.Category) {
	case models.KindDeposit:
		query = query.Where("fin_prdt_cd IN (?)", s.db.Model(&models.DepositProduct{}).Select("product_id"))
	case models.KindSaving:
		query = query.Where("fin_prdt_cd IN (?)", s.db.Model(&models.SavingProduct{}).Select("product_id"))
	case "loan":
		query = query.Where("fin_prdt_cd IN (?)", s.db.Model(&models.LoanProduct{}).Select("product_id"))
	}
	if q.KorCoNm != "" {
		query = query.Where("kor_co_nm = ?", q.KorCoNm)
	}
	if q.FinPrdtNm != "" {
		query = query.Where("fin_prdt_nm = ?", q.FinPrdtNm)
	}
	if q.LoanType != "" {
		query = query.Where("loan_type = ?", q.LoanType)
	}
	if q.JoinWay != "" {
		query = query.Where("join_way = ?", q.JoinWay)
	}
	if q.Search != "" {
		like := containsPattern(q.Search)
		query = query.Where("LOWER(kor_co_nm) LIKE ? OR LOWER(fin_prdt_nm) LIKE ? OR LOWER(join_member) LIKE ?", like, like, like)
	}
	query = applyOrdering(query, q.Ordering, map[string]string{
		"kor_co_nm":   "kor_co_nm",
		"fin_prdt_nm": "fin_prdt_nm",
	}, "kor_co_nm ASC", "fin_prdt_nm ASC")

	var list []models.FinancialProduct
	if err := query.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list financial products: %w", err)
	}
	return productViews(list), nil
}

// GetFinancialProduct returns a product by code
func (s *Service) GetFinancialProduct(ctx context.Context, code string) (*ProductView, error) {
	p, err := s.findProduct(ctx, code)
	if err != nil {
		return nil, err
	}
	view := productView(p)
	return &view, nil
}

var rateOrdering = map[string]string{
	"intr_rate":          "deposit_products.intr_rate",
	"intr_rate2":         "deposit_products.intr_rate2",
	"save_trm":           "deposit_products.save_trm",
	"product__kor_co_nm": "fp.kor_co_nm",
	"kor_co_nm":          "fp.kor_co_nm",
}

// ListDeposits lists deposits, highest maximum rate first
func (s *Service) ListDeposits(ctx context.Context, q RateQuery) ([]DepositView, error) {
	query := s.rateQuery(ctx, "deposit_products", q)
	query = applyOrdering(query, q.Ordering, tableOrdering(rateOrdering, "deposit_products"), "deposit_products.intr_rate2 DESC", "deposit_products.product_id ASC")

	var list []models.DepositProduct
	if err := query.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	return depositViews(list), nil
}

// GetDeposit returns the detail view of a deposit
func (s *Service) GetDeposit(ctx context.Context, code string) (*RateDetailView, error) {
	var d models.DepositProduct
	if err := s.db.WithContext(ctx).Preload("Product").Where("product_id = ?", code).First(&d).Error; err != nil {
		return nil, notFound(err, "Deposit product not found")
	}
	return s.depositDetail(ctx, &d)
}

// ListSavings lists savings, highest maximum rate first
func (s *Service) ListSavings(ctx context.Context, q RateQuery) ([]SavingView, error) {
	query := s.rateQuery(ctx, "saving_products", q)
	if q.RsrvType != "" {
		query = query.Where("saving_products.rsrv_type = ?", q.RsrvType)
	}
	ordering := tableOrdering(rateOrdering, "saving_products")
	ordering["rsrv_type"] = "saving_products.rsrv_type"
	query = applyOrdering(query, q.Ordering, ordering, "saving_products.intr_rate2 DESC", "saving_products.product_id ASC")

	var list []models.SavingProduct
	if err := query.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list savings: %w", err)
	}
	return savingViews(list), nil
}

// GetSaving returns the detail view of a saving
func (s *Service) GetSaving(ctx context.Context, code string) (*RateDetailView, error) {
	var sp models.SavingProduct
	if err := s.db.WithContext(ctx).Preload("Product").Where("product_id = ?", code).First(&sp).Error; err != nil {
		return nil, notFound(err, "Saving product not found")
	}
	return s.savingDetail(ctx, &sp)
}

func (s *Service) rateQuery(ctx context.Context, table string, q RateQuery) *gorm.DB {
	query := s.db.WithContext(ctx).
		Model(rateModel(table)).
		Select(table + ".*").
		Joins("JOIN financial_products fp ON fp.fin_prdt_cd = " + table + ".product_id").
		Preload("Product")

	if q.MinRate != nil {
		query = query.Where(table+".intr_rate >= ?", *q.MinRate)
	}
	if q.MaxRate != nil {
		query = query.Where(table+".intr_rate2 <= ?", *q.MaxRate)
	}
	if q.Bank != "" {
		query = query.Where("LOWER(fp.kor_co_nm) LIKE ?", containsPattern(q.Bank))
	}
	if q.IntrRateType != "" {
		query = query.Where(table+".intr_rate_type = ?", q.IntrRateType)
	}
	if q.SaveTrm != nil {
		query = query.Where(table+".save_trm = ?", *q.SaveTrm)
	}
	if q.Search != "" {
		like := containsPattern(q.Search)
		query = query.Where("LOWER(fp.fin_prdt_nm) LIKE ? OR LOWER(fp.kor_co_nm) LIKE ?", like, like)
	}
	return query
}

// ListLoans lists loans in the detail shape
func (s *Service) ListLoans(ctx context.Context, q LoanQuery) ([]LoanDetailView, error) {
	query := s.db.WithContext(ctx).
		Model(&models.LoanProduct{}).
		Select("loan_products.*").
		Joins("JOIN financial_products fp ON fp.fin_prdt_cd = loan_products.product_id").
		Preload("Product")

	if q.Bank != "" {
		query = query.Where("LOWER(fp.kor_co_nm) LIKE ?", containsPattern(q.Bank))
	}
	if q.LoanType != "" {
		query = query.Where("LOWER(fp.loan_type) LIKE ?", containsPattern(q.LoanType))
	}
	if q.DclsMonth != "" {
		query = query.Where("loan_products.dcls_month = ?", q.DclsMonth)
	}
	if q.HasMortgage {
		query = query.Where("loan_products.product_id IN (?)", s.db.Model(&models.MortgageLoanOption{}).Select("product_id"))
	}
	if q.HasCredit {
		query = query.Where("loan_products.product_id IN (?)", s.db.Model(&models.CreditLoanOption{}).Select("product_id"))
	}
	if q.Search != "" {
		like := containsPattern(q.Search)
		query = query.Where("LOWER(fp.fin_prdt_nm) LIKE ? OR LOWER(fp.kor_co_nm) LIKE ? OR LOWER(fp.loan_type) LIKE ?", like, like, like)
	}
	query = applyOrdering(query, q.Ordering, map[string]string{
		"product__kor_co_nm":   "fp.kor_co_nm",
		"product__fin_prdt_nm": "fp.fin_prdt_nm",
		"kor_co_nm":            "fp.kor_co_nm",
		"fin_prdt_nm":          "fp.fin_prdt_nm",
	}, "fp.kor_co_nm ASC", "loan_products.product_id ASC")

	var list []models.LoanProduct
	if err := query.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return s.loanDetails(ctx, list)
}

// GetLoan returns the detail view of a loan
func (s *Service) GetLoan(ctx context.Context, code string) (*LoanDetailView, error) {
	var l models.LoanProduct
	if err := s.db.WithContext(ctx).Preload("Product").Where("product_id = ?", code).First(&l).Error; err != nil {
		return nil, notFound(err, "Loan product not found")
	}
	views, err := s.loanDetails(ctx, []models.LoanProduct{l})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) findProduct(ctx context.Context, code string) (*models.FinancialProduct, error) {
	var p models.FinancialProduct
	if err := s.db.WithContext(ctx).Where("fin_prdt_cd = ?", code).First(&p).Error; err != nil {
		return nil, notFound(err, "Financial product not found")
	}
	return &p, nil
}

func notFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.ErrNotFound, message)
	}
	return fmt.Errorf("failed to load product: %w", err)
}

func containsPattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// applyOrdering orders by the ?ordering parameter ("field" or "-field") when
// it names an allowed field, otherwise by defaults.
func applyOrdering(query *gorm.DB, ordering string, allowed map[string]string, defaults ...string) *gorm.DB {
	applied := false
	for _, field := range strings.Split(ordering, ",") {
		field = strings.TrimSpace(field)
		desc := strings.HasPrefix(field, "-")
		column, ok := allowed[strings.TrimPrefix(field, "-")]
		if !ok {
			continue
		}
		if desc {
			query = query.Order(column + " DESC")
		} else {
			query = query.Order(column + " ASC")
		}
		applied = true
	}
	if applied {
		return query
	}
	for _, d := range defaults {
		query = query.Order(d)
	}
	return query
}

func tableOrdering(base map[string]string, table string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = strings.Replace(v, "deposit_products.", table+".", 1)
	}
	return out
}

func rateModel(table string) interface{} {
	if table == "saving_products" {
		return &models.SavingProduct{}
	}
	return &models.DepositProduct{}
}
