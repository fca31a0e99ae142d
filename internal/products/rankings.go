package products

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/pkg/models"
	"gorm.io/gorm"
)

const maxPageSize = 100

// SearchResult groups matches by product kind
type SearchResult struct {
	Deposits []DepositView    `json:"deposits"`
	Savings  []SavingView     `json:"savings"`
	Loans    []LoanDetailView `json:"loans"`
}

// FilterQuery is the input of Filter
type FilterQuery struct {
	Type        string
	MinRate     *float64
	MaxRate     *float64
	Institution string
	Term        *int
	SortBy      string
	SortOrder   string
	Page        int
	PageSize    int
}

// KindCounts holds one number per product kind
type KindCounts struct {
	Deposits int64 `json:"deposits"`
	Savings  int64 `json:"savings"`
	Loans    int64 `json:"loans"`
}

// Pagination describes the page returned by Filter
type Pagination struct {
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalCount KindCounts `json:"total_count"`
	TotalPages KindCounts `json:"total_pages"`
}

// FilterResult is the output of Filter
type FilterResult struct {
	Results    SearchResult `json:"results"`
	Pagination Pagination   `json:"pagination"`
}

type minRateRow struct {
	ProductCode string  `gorm:"column:product_id"`
	MinRate     float64 `gorm:"column:min_rate"`
}

// TopRates returns the best products of a kind: deposits and savings by
// maximum rate, loans by lowest mortgage rate, falling back to credit grade 1.
func (s *Service) TopRates(ctx context.Context, kind string, limit int) (interface{}, error) {
	if limit <= 0 || limit > maxPageSize {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "limit", "limit must be between 1 and %d", maxPageSize)
	}
	db := s.db.WithContext(ctx)

	switch kind {
	case models.KindDeposit:
		var list []models.DepositProduct
		if err := db.Preload("Product").Order("intr_rate2 DESC").Order("product_id ASC").Limit(limit).Find(&list).Error; err != nil {
			return nil, fmt.Errorf("failed to rank deposits: %w", err)
		}
		return depositViews(list), nil
	case models.KindSaving:
		var list []models.SavingProduct
		if err := db.Preload("Product").Order("intr_rate2 DESC").Order("product_id ASC").Limit(limit).Find(&list).Error; err != nil {
			return nil, fmt.Errorf("failed to rank savings: %w", err)
		}
		return savingViews(list), nil
	case "loan":
		loans, err := s.loansByMinRate(ctx, &models.MortgageLoanOption{}, "lend_rate_min", limit)
		if err != nil {
			return nil, err
		}
		if len(loans) == 0 {
			loans, err = s.loansByMinRate(ctx, &models.CreditLoanOption{}, "crdt_grad_1", limit)
			if err != nil {
				return nil, err
			}
		}
		return s.loanDetails(ctx, loans)
	default:
		return nil, apperrors.New(apperrors.ErrInvalid, "Invalid product type")
	}
}

// LowestRateLoans returns loans ranked by their lowest mortgage rate
func (s *Service) LowestRateLoans(ctx context.Context, limit int) ([]LoanDetailView, error) {
	if limit <= 0 || limit > maxPageSize {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "limit", "limit must be between 1 and %d", maxPageSize)
	}
	loans, err := s.loansByMinRate(ctx, &models.MortgageLoanOption{}, "lend_rate_min", limit)
	if err != nil {
		return nil, err
	}
	return s.loanDetails(ctx, loans)
}

// loansByMinRate ranks loan products by MIN(column) over an option table
func (s *Service) loansByMinRate(ctx context.Context, option interface{}, column string, limit int) ([]models.LoanProduct, error) {
	var rows []minRateRow
	err := s.db.WithContext(ctx).
		Model(option).
		Select("product_id, MIN("+column+") AS min_rate").
		Where(column+" IS NOT NULL").
		Where("product_id IN (?)", s.db.Model(&models.LoanProduct{}).Select("product_id")).
		Group("product_id").
		Order("min_rate ASC").
		Order("product_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank loans: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	codes := make([]string, len(rows))
	for i, r := range rows {
		codes[i] = r.ProductCode
	}
	var loans []models.LoanProduct
	if err := s.db.WithContext(ctx).Preload("Product").Where("product_id IN ?", codes).Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}

	rank := make(map[string]int, len(codes))
	for i, c := range codes {
		rank[c] = i
	}
	sort.SliceStable(loans, func(i, j int) bool { return rank[loans[i].ProductCode] < rank[loans[j].ProductCode] })
	return loans, nil
}

// Search matches product or company names and orders each group by how close
// the product name is to q.
func (s *Service) Search(ctx context.Context, q string) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "q", "검색어를 입력해주세요.")
	}
	like := containsPattern(q)
	matches := s.db.Model(&models.FinancialProduct{}).
		Select("fin_prdt_cd").
		Where("LOWER(fin_prdt_nm) LIKE ? OR LOWER(kor_co_nm) LIKE ?", like, like)

	db := s.db.WithContext(ctx)
	var deposits []models.DepositProduct
	if err := db.Preload("Product").Where("product_id IN (?)", matches).Find(&deposits).Error; err != nil {
		return nil, fmt.Errorf("failed to search deposits: %w", err)
	}
	var savings []models.SavingProduct
	if err := db.Preload("Product").Where("product_id IN (?)", matches).Find(&savings).Error; err != nil {
		return nil, fmt.Errorf("failed to search savings: %w", err)
	}
	var loans []models.LoanProduct
	if err := db.Preload("Product").Where("product_id IN (?)", matches).Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to search loans: %w", err)
	}

	query := strings.ToLower(q)
	distance := func(name string) int {
		return levenshtein.ComputeDistance(query, strings.ToLower(name))
	}
	sort.SliceStable(deposits, func(i, j int) bool {
		return distance(deposits[i].Product.FinPrdtNm) < distance(deposits[j].Product.FinPrdtNm)
	})
	sort.SliceStable(savings, func(i, j int) bool {
		return distance(savings[i].Product.FinPrdtNm) < distance(savings[j].Product.FinPrdtNm)
	})
	sort.SliceStable(loans, func(i, j int) bool {
		return distance(loans[i].Product.FinPrdtNm) < distance(loans[j].Product.FinPrdtNm)
	})

	loanList, err := s.loanDetails(ctx, loans)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Deposits: depositViews(deposits),
		Savings:  savingViews(savings),
		Loans:    loanList,
	}, nil
}

// Filter pages through deposits, savings and loans with shared criteria
func (s *Service) Filter(ctx context.Context, q FilterQuery) (*FilterResult, error) {
	if q.Type == "" {
		q.Type = "all"
	}
	if q.SortBy == "" {
		q.SortBy = "rate"
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 10
	}

	switch {
	case q.Type != "all" && q.Type != models.KindDeposit && q.Type != models.KindSaving && q.Type != "loan":
		return nil, apperrors.NewField(apperrors.ErrInvalid, "type", "type must be one of all, deposit, saving, loan")
	case q.SortBy != "rate" && q.SortBy != "term" && q.SortBy != "institution":
		return nil, apperrors.NewField(apperrors.ErrInvalid, "sort_by", "sort_by must be one of rate, term, institution")
	case q.SortOrder != "asc" && q.SortOrder != "desc":
		return nil, apperrors.NewField(apperrors.ErrInvalid, "sort_order", "sort_order must be asc or desc")
	case q.Page < 1:
		return nil, apperrors.NewField(apperrors.ErrInvalid, "page", "page must be positive")
	case q.PageSize < 1 || q.PageSize > maxPageSize:
		return nil, apperrors.NewField(apperrors.ErrInvalid, "page_size", "page_size must be between 1 and %d", maxPageSize)
	}

	result := &FilterResult{
		Results: SearchResult{
			Deposits: make([]DepositView, 0),
			Savings:  make([]SavingView, 0),
			Loans:    make([]LoanDetailView, 0),
		},
		Pagination: Pagination{Page: q.Page, PageSize: q.PageSize},
	}
	offset := (q.Page - 1) * q.PageSize

	if q.Type == "all" || q.Type == models.KindDeposit {
		query := s.filterRates(ctx, "deposit_products", q)
		if err := query.Session(&gorm.Session{}).Count(&result.Pagination.TotalCount.Deposits).Error; err != nil {
			return nil, fmt.Errorf("failed to count deposits: %w", err)
		}
		var list []models.DepositProduct
		if err := s.sortRates(query, "deposit_products", q).Offset(offset).Limit(q.PageSize).Find(&list).Error; err != nil {
			return nil, fmt.Errorf("failed to filter deposits: %w", err)
		}
		result.Results.Deposits = depositViews(list)
	}

	if q.Type == "all" || q.Type == models.KindSaving {
		query := s.filterRates(ctx, "saving_products", q)
		if err := query.Session(&gorm.Session{}).Count(&result.Pagination.TotalCount.Savings).Error; err != nil {
			return nil, fmt.Errorf("failed to count savings: %w", err)
		}
		var list []models.SavingProduct
		if err := s.sortRates(query, "saving_products", q).Offset(offset).Limit(q.PageSize).Find(&list).Error; err != nil {
			return nil, fmt.Errorf("failed to filter savings: %w", err)
		}
		result.Results.Savings = savingViews(list)
	}

	if q.Type == "all" || q.Type == "loan" {
		query := s.db.WithContext(ctx).
			Model(&models.LoanProduct{}).
			Joins("JOIN financial_products fp ON fp.fin_prdt_cd = loan_products.product_id")
		if q.Institution != "" {
			query = query.Where("LOWER(fp.kor_co_nm) LIKE ?", containsPattern(q.Institution))
		}
		if err := query.Session(&gorm.Session{}).Count(&result.Pagination.TotalCount.Loans).Error; err != nil {
			return nil, fmt.Errorf("failed to count loans: %w", err)
		}
		if q.SortBy == "institution" {
			query = query.Order("fp.kor_co_nm " + strings.ToUpper(q.SortOrder))
		}
		var list []models.LoanProduct
		err := query.Select("loan_products.*").Preload("Product").
			Order("loan_products.product_id ASC").
			Offset(offset).Limit(q.PageSize).
			Find(&list).Error
		if err != nil {
			return nil, fmt.Errorf("failed to filter loans: %w", err)
		}
		loans, err := s.loanDetails(ctx, list)
		if err != nil {
			return nil, err
		}
		result.Results.Loans = loans
	}

	pages := func(n int64) int64 { return (n + int64(q.PageSize) - 1) / int64(q.PageSize) }
	result.Pagination.TotalPages = KindCounts{
		Deposits: pages(result.Pagination.TotalCount.Deposits),
		Savings:  pages(result.Pagination.TotalCount.Savings),
		Loans:    pages(result.Pagination.TotalCount.Loans),
	}
	return result, nil
}

func (s *Service) filterRates(ctx context.Context, table string, q FilterQuery) *gorm.DB {
	query := s.db.WithContext(ctx).
		Model(rateModel(table)).
		Joins("JOIN financial_products fp ON fp.fin_prdt_cd = " + table + ".product_id")
	if q.MinRate != nil {
		query = query.Where(table+".intr_rate2 >= ?", *q.MinRate)
	}
	if q.MaxRate != nil {
		query = query.Where(table+".intr_rate2 <= ?", *q.MaxRate)
	}
	if q.Institution != "" {
		query = query.Where("LOWER(fp.kor_co_nm) LIKE ?", containsPattern(q.Institution))
	}
	if q.Term != nil {
		query = query.Where(table+".save_trm = ?", *q.Term)
	}
	return query
}

func (s *Service) sortRates(query *gorm.DB, table string, q FilterQuery) *gorm.DB {
	dir := strings.ToUpper(q.SortOrder)
	switch q.SortBy {
	case "term":
		query = query.Order(table + ".save_trm " + dir)
	case "institution":
		query = query.Order("fp.kor_co_nm " + dir)
	default:
		query = query.Order(table + ".intr_rate2 " + dir)
	}
	return query.Select(table + ".*").Preload("Product").Order(table + ".product_id ASC")
}
