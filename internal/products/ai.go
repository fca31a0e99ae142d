package products

import (
	"context"
	"fmt"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/advisor"
	"github.com/finmate/finmate/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultAIPeriod = 12
	digestSize      = 5
)

// digestEntry is one product line handed to the model
type digestEntry struct {
	Type        string   `json:"type"`
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Company     string   `json:"company"`
	Term        *int     `json:"term,omitempty"`
	RateType    string   `json:"rate_type,omitempty"`
	BaseRate    *float64 `json:"base_rate,omitempty"`
	MaxRate     *float64 `json:"max_rate,omitempty"`
	MinLendRate *float64 `json:"min_lend_rate,omitempty"`
	Projected   *int64   `json:"projected_after_tax,omitempty"`
}

type optionRow struct {
	ProductCode  string  `gorm:"column:product_id"`
	SaveTrm      int     `gorm:"column:save_trm"`
	IntrRateType string  `gorm:"column:intr_rate_type"`
	IntrRate     float64 `gorm:"column:intr_rate"`
	IntrRate2    float64 `gorm:"column:intr_rate2"`
	FinPrdtNm    string  `gorm:"column:fin_prdt_nm"`
	KorCoNm      string  `gorm:"column:kor_co_nm"`
}

// AIRecommendations asks the advisor for recommendations. Values missing
// from req are taken from the user's profile.
func (s *Service) AIRecommendations(ctx context.Context, user *models.User, req *models.AIRecommendationRequest) (string, error) {
	if s.advisor == nil {
		return "", apperrors.New(apperrors.ErrUnavailable, "OpenAI API key is not configured. Please set the OPENAI_API_KEY.")
	}

	situation := advisor.Situation{Salary: user.Salary, Period: defaultAIPeriod}
	if user.Money > 0 {
		money := user.Money
		situation.Money = &money
	}
	if req != nil {
		if req.Salary != nil {
			situation.Salary = req.Salary
		}
		if req.Money != nil {
			situation.Money = req.Money
		}
		if req.Period != nil {
			situation.Period = *req.Period
		}
	}

	digest, err := s.productDigest(ctx, situation)
	if err != nil {
		return "", err
	}
	prompt, err := advisor.BuildPrompt(situation, digest)
	if err != nil {
		return "", err
	}

	text, err := s.advisor.Recommend(ctx, prompt)
	if err != nil {
		s.logger.Error("AI recommendation failed", zap.Uint("user_id", user.ID), zap.Error(err))
		return "", apperrors.New(apperrors.ErrUpstream, "Error calling OpenAI API: %v", err)
	}
	return text, nil
}

// productDigest picks the best deposit and saving options near the wanted
// period and the cheapest loans, projecting deposit outcomes for the user's
// money.
func (s *Service) productDigest(ctx context.Context, situation advisor.Situation) ([]digestEntry, error) {
	digest := make([]digestEntry, 0, 3*digestSize)

	for _, kind := range []struct {
		table   string
		label   string
		monthly bool
	}{
		{"deposit_products", models.CategoryDeposit, false},
		{"saving_products", models.CategorySaving, true},
	} {
		rows, err := s.nearestOptions(ctx, kind.table, situation.Period)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			term, base, top := r.SaveTrm, r.IntrRate, r.IntrRate2
			entry := digestEntry{
				Type:     kind.label,
				Code:     r.ProductCode,
				Name:     r.FinPrdtNm,
				Company:  r.KorCoNm,
				Term:     &term,
				RateType: r.IntrRateType,
				BaseRate: &base,
				MaxRate:  &top,
			}
			if amount := projectedAmount(situation, kind.monthly, r); amount != nil {
				entry.Projected = amount
			}
			digest = append(digest, entry)
		}
	}

	loans, err := s.loansByMinRate(ctx, &models.MortgageLoanOption{}, "lend_rate_min", digestSize)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		if loans, err = s.loansByMinRate(ctx, &models.CreditLoanOption{}, "crdt_grad_1", digestSize); err != nil {
			return nil, err
		}
	}
	minRates, err := s.loanMinRates(ctx, loans)
	if err != nil {
		return nil, err
	}
	for _, l := range loans {
		entry := digestEntry{
			Type:    "대출",
			Code:    l.ProductCode,
			Name:    l.Product.FinPrdtNm,
			Company: l.Product.KorCoNm,
		}
		if rate, ok := minRates[l.ProductCode]; ok {
			r := rate
			entry.MinLendRate = &r
		}
		digest = append(digest, entry)
	}
	return digest, nil
}

// nearestOptions returns the highest rate options whose term is closest to
// period.
func (s *Service) nearestOptions(ctx context.Context, table string, period int) ([]optionRow, error) {
	var rows []optionRow
	err := s.db.WithContext(ctx).
		Table("requirement_options ro").
		Select("ro.product_id, ro.save_trm, ro.intr_rate_type, ro.intr_rate, ro.intr_rate2, fp.fin_prdt_nm, fp.kor_co_nm").
		Joins("JOIN financial_products fp ON fp.fin_prdt_cd = ro.product_id").
		Where("ro.product_id IN (?)", s.db.Table(table).Select("product_id")).
		Order(fmt.Sprintf("ABS(ro.save_trm - %d) ASC", period)).
		Order("ro.intr_rate2 DESC").
		Order("ro.product_id ASC").
		Limit(digestSize).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load %s options: %w", table, err)
	}
	return rows, nil
}

func (s *Service) loanMinRates(ctx context.Context, loans []models.LoanProduct) (map[string]float64, error) {
	out := make(map[string]float64, len(loans))
	if len(loans) == 0 {
		return out, nil
	}
	codes := make([]string, len(loans))
	for i, l := range loans {
		codes[i] = l.ProductCode
	}
	var rows []minRateRow
	err := s.db.WithContext(ctx).
		Model(&models.MortgageLoanOption{}).
		Select("product_id, MIN(lend_rate_min) AS min_rate").
		Where("product_id IN ?", codes).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load loan rates: %w", err)
	}
	for _, r := range rows {
		out[r.ProductCode] = r.MinRate
	}
	return out, nil
}

// projectedAmount is the after-tax maturity amount when the user's money is
// put in as a lump sum (deposits) or their salary share is paid monthly
// (savings, a tenth of the monthly salary).
func projectedAmount(situation advisor.Situation, monthly bool, r optionRow) *int64 {
	if r.SaveTrm <= 0 {
		return nil
	}
	rateType := RateSimple
	if r.IntrRateType == RateCompound {
		rateType = RateCompound
	}
	rate := decimal.NewFromFloat(r.IntrRate2)

	var principal decimal.Decimal
	switch {
	case !monthly && situation.Money != nil && *situation.Money > 0:
		principal = decimal.NewFromInt(*situation.Money)
	case monthly && situation.Salary != nil && *situation.Salary > 0:
		principal = decimal.NewFromInt(*situation.Salary).Div(decimal.NewFromInt(10)).Floor()
	default:
		return nil
	}
	if !principal.IsPositive() {
		return nil
	}
	amount := project(principal, rate, r.SaveTrm, rateType, monthly).MaturityAmount.IntPart()
	return &amount
}
