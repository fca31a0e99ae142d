package products

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finmate/finmate/internal/cache"
	"github.com/finmate/finmate/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RateStats aggregates deposit or saving rates
type RateStats struct {
	AvgRate    *float64 `json:"avg_rate"`
	AvgMaxRate *float64 `json:"avg_max_rate"`
	MinRate    *float64 `json:"min_rate"`
	MaxRate    *float64 `json:"max_rate"`
}

// LoanRateStats aggregates loan option rates
type LoanRateStats struct {
	AvgMinRate *float64 `json:"avg_min_rate"`
	AvgMaxRate *float64 `json:"avg_max_rate"`
	MinRate    *float64 `json:"min_rate"`
	MaxRate    *float64 `json:"max_rate"`
}

// InstitutionCount is a company with its number of products
type InstitutionCount struct {
	KorCoNm      string `json:"kor_co_nm"`
	ProductCount int64  `json:"product_count"`
}

// TypeCounts counts catalog rows per kind
type TypeCounts struct {
	Deposits        int64 `json:"deposits"`
	Savings         int64 `json:"savings"`
	Loans           int64 `json:"loans"`
	MortgageOptions int64 `json:"mortgage_options"`
	CreditOptions   int64 `json:"credit_options"`
}

// Statistics summarises the catalog
type Statistics struct {
	TotalProducts   int64              `json:"total_products"`
	ProductsByType  TypeCounts         `json:"products_by_type"`
	DepositRates    RateStats          `json:"deposit_rates"`
	SavingRates     RateStats          `json:"saving_rates"`
	MortgageRates   LoanRateStats      `json:"mortgage_rates"`
	CreditRates     LoanRateStats      `json:"credit_rates"`
	TopInstitutions []InstitutionCount `json:"top_institutions"`
	LastUpdated     *string            `json:"last_updated"`
}

// Statistics returns catalog statistics, served from cache between syncs
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	found, err := cache.GetJSON(ctx, s.cache, statisticsKey, &stats)
	if err != nil {
		s.logger.Warn("Failed to read cached statistics", zap.Error(err))
	} else if found {
		return &stats, nil
	}

	computed, err := s.computeStatistics(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.cache, statisticsKey, computed, statisticsTTL); err != nil {
		s.logger.Warn("Failed to cache statistics", zap.Error(err))
	}
	return computed, nil
}

// InvalidateStatistics drops the cached statistics; called after every sync
func (s *Service) InvalidateStatistics(ctx context.Context) error {
	return s.cache.Delete(ctx, statisticsKey)
}

func (s *Service) computeStatistics(ctx context.Context) (*Statistics, error) {
	db := s.db.WithContext(ctx)
	stats := &Statistics{TopInstitutions: make([]InstitutionCount, 0)}

	counts := []struct {
		model interface{}
		dst   *int64
	}{
		{&models.FinancialProduct{}, &stats.TotalProducts},
		{&models.DepositProduct{}, &stats.ProductsByType.Deposits},
		{&models.SavingProduct{}, &stats.ProductsByType.Savings},
		{&models.LoanProduct{}, &stats.ProductsByType.Loans},
		{&models.MortgageLoanOption{}, &stats.ProductsByType.MortgageOptions},
		{&models.CreditLoanOption{}, &stats.ProductsByType.CreditOptions},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("failed to count products: %w", err)
		}
	}

	rateSQL := "AVG(intr_rate) AS avg_rate, AVG(intr_rate2) AS avg_max_rate, MIN(intr_rate) AS min_rate, MAX(intr_rate2) AS max_rate"
	if err := db.Model(&models.DepositProduct{}).Select(rateSQL).Scan(&stats.DepositRates).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate deposit rates: %w", err)
	}
	if err := db.Model(&models.SavingProduct{}).Select(rateSQL).Scan(&stats.SavingRates).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate saving rates: %w", err)
	}
	err := db.Model(&models.MortgageLoanOption{}).
		Select("AVG(lend_rate_min) AS avg_min_rate, AVG(lend_rate_max) AS avg_max_rate, MIN(lend_rate_min) AS min_rate, MAX(lend_rate_max) AS max_rate").
		Scan(&stats.MortgageRates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate mortgage rates: %w", err)
	}
	err = db.Model(&models.CreditLoanOption{}).
		Select("AVG(crdt_grad_1) AS avg_min_rate, AVG(crdt_grad_10) AS avg_max_rate, MIN(crdt_grad_1) AS min_rate, MAX(crdt_grad_10) AS max_rate").
		Scan(&stats.CreditRates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate credit rates: %w", err)
	}
	for _, p := range []**float64{
		&stats.DepositRates.AvgRate, &stats.DepositRates.AvgMaxRate,
		&stats.SavingRates.AvgRate, &stats.SavingRates.AvgMaxRate,
		&stats.MortgageRates.AvgMinRate, &stats.MortgageRates.AvgMaxRate,
		&stats.CreditRates.AvgMinRate, &stats.CreditRates.AvgMaxRate,
	} {
		*p = round2(*p)
	}

	err = db.Model(&models.FinancialProduct{}).
		Select("kor_co_nm, COUNT(fin_prdt_cd) AS product_count").
		Group("kor_co_nm").
		Order("product_count DESC").
		Order("kor_co_nm ASC").
		Limit(5).
		Scan(&stats.TopInstitutions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank institutions: %w", err)
	}

	for _, model := range []interface{}{&models.DepositProduct{}, &models.SavingProduct{}, &models.LoanProduct{}} {
		var month sql.NullString
		if err := db.Model(model).Select("MAX(dcls_month)").Row().Scan(&month); err != nil {
			return nil, fmt.Errorf("failed to find latest disclosure month: %w", err)
		}
		if month.Valid && month.String != "" && (stats.LastUpdated == nil || month.String > *stats.LastUpdated) {
			latest := month.String
			stats.LastUpdated = &latest
		}
	}

	return stats, nil
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := decimal.NewFromFloat(*v).Round(2).InexactFloat64()
	return &r
}
