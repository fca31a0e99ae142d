package products

import (
	"context"
	"fmt"
	"time"

	"github.com/finmate/finmate/pkg/models"
)

// ProductView renders a FinancialProduct with join_way split into a list
type ProductView struct {
	FinPrdtCd  string   `json:"fin_prdt_cd"`
	KorCoNm    string   `json:"kor_co_nm"`
	FinPrdtNm  string   `json:"fin_prdt_nm"`
	JoinWay    []string `json:"join_way"`
	LoanType   *string  `json:"loan_type"`
	JoinMember *string  `json:"join_member"`
}

// DepositView is a deposit list entry
type DepositView struct {
	models.DepositProduct
	FinancialProduct ProductView `json:"financial_product"`
}

// SavingView is a saving list entry
type SavingView struct {
	models.SavingProduct
	FinancialProduct ProductView `json:"financial_product"`
}

// LoanView is a loan list entry, used by the admin endpoints
type LoanView struct {
	models.LoanProduct
	FinancialProduct ProductView `json:"financial_product"`
}

// RateDetailView is the detail shape of deposits and savings
type RateDetailView struct {
	FinCoNo      string                     `json:"fin_co_no"`
	DclsMonth    string                     `json:"dcls_month"`
	Category     string                     `json:"category"`
	IntrRateType string                     `json:"intr_rate_type"`
	RsrvType     *string                    `json:"rsrv_type,omitempty"`
	SaveTrm      int                        `json:"save_trm"`
	IntrRate     float64                    `json:"intr_rate"`
	IntrRate2    float64                    `json:"intr_rate2"`
	ProductInfo  ProductView                `json:"product_info"`
	Requirements []models.RequirementOption `json:"requirements"`
	JoinWays     []models.DepositJoinWay    `json:"join_ways"`
}

// LoanDetailView is the detail shape of loans, also used by loan lists
type LoanDetailView struct {
	FinCoNo         string                      `json:"fin_co_no"`
	DclsMonth       string                      `json:"dcls_month"`
	LoanInciExpn    *string                     `json:"loan_inci_expn"`
	ErlyRpayFee     *string                     `json:"erly_rpay_fee"`
	DlyRate         *string                     `json:"dly_rate"`
	LoanLmt         *string                     `json:"loan_lmt"`
	ProductInfo     ProductView                 `json:"product_info"`
	MortgageOptions []models.MortgageLoanOption `json:"mortgage_options"`
	CreditOptions   []models.CreditLoanOption   `json:"credit_options"`
	LendingOptions  []models.LendingRateOption  `json:"lending_options"`
	JoinWays        []models.LoanJoinWay        `json:"join_ways"`
}

// FavoriteView is a favorite with whichever detail rows the product has
type FavoriteView struct {
	ID               uint            `json:"id"`
	User             uint            `json:"user"`
	Product          string          `json:"product"`
	CreatedAt        time.Time       `json:"created_at"`
	FinancialProduct ProductView     `json:"financial_product"`
	DepositInfo      *DepositView    `json:"deposit_info"`
	SavingInfo       *SavingView     `json:"saving_info"`
	LoanInfo         *LoanDetailView `json:"loan_info"`
}

func productView(p *models.FinancialProduct) ProductView {
	return ProductView{
		FinPrdtCd:  p.FinPrdtCd,
		KorCoNm:    p.KorCoNm,
		FinPrdtNm:  p.FinPrdtNm,
		JoinWay:    p.JoinWays(),
		LoanType:   p.LoanType,
		JoinMember: p.JoinMember,
	}
}

func productViews(list []models.FinancialProduct) []ProductView {
	out := make([]ProductView, 0, len(list))
	for i := range list {
		out = append(out, productView(&list[i]))
	}
	return out
}

func depositViews(list []models.DepositProduct) []DepositView {
	out := make([]DepositView, 0, len(list))
	for _, d := range list {
		out = append(out, DepositView{DepositProduct: d, FinancialProduct: productView(&d.Product)})
	}
	return out
}

func savingViews(list []models.SavingProduct) []SavingView {
	out := make([]SavingView, 0, len(list))
	for _, sp := range list {
		out = append(out, SavingView{SavingProduct: sp, FinancialProduct: productView(&sp.Product)})
	}
	return out
}

func loanViews(list []models.LoanProduct) []LoanView {
	out := make([]LoanView, 0, len(list))
	for _, l := range list {
		out = append(out, LoanView{LoanProduct: l, FinancialProduct: productView(&l.Product)})
	}
	return out
}

// rateDetail builds the detail shape for a deposit (rsrvType nil) or saving
func (s *Service) rateDetail(ctx context.Context, p *models.FinancialProduct, finCoNo, dclsMonth, category, intrRateType string, rsrvType *string, saveTrm int, rate, rate2 float64) (*RateDetailView, error) {
	db := s.db.WithContext(ctx)

	requirements := make([]models.RequirementOption, 0)
	if err := db.Where("product_id = ?", p.FinPrdtCd).Order("save_trm ASC").Order("id ASC").Find(&requirements).Error; err != nil {
		return nil, fmt.Errorf("failed to load requirement options: %w", err)
	}
	joinWays := make([]models.DepositJoinWay, 0)
	if err := db.Where("product_id = ?", p.FinPrdtCd).Order("id ASC").Find(&joinWays).Error; err != nil {
		return nil, fmt.Errorf("failed to load join ways: %w", err)
	}

	return &RateDetailView{
		FinCoNo:      finCoNo,
		DclsMonth:    dclsMonth,
		Category:     category,
		IntrRateType: intrRateType,
		RsrvType:     rsrvType,
		SaveTrm:      saveTrm,
		IntrRate:     rate,
		IntrRate2:    rate2,
		ProductInfo:  productView(p),
		Requirements: requirements,
		JoinWays:     joinWays,
	}, nil
}

func (s *Service) depositDetail(ctx context.Context, d *models.DepositProduct) (*RateDetailView, error) {
	return s.rateDetail(ctx, &d.Product, d.FinCoNo, d.DclsMonth, d.Category, d.IntrRateType, nil, d.SaveTrm, d.IntrRate, d.IntrRate2)
}

func (s *Service) savingDetail(ctx context.Context, sp *models.SavingProduct) (*RateDetailView, error) {
	rsrv := sp.RsrvType
	return s.rateDetail(ctx, &sp.Product, sp.FinCoNo, sp.DclsMonth, sp.Category, sp.IntrRateType, &rsrv, sp.SaveTrm, sp.IntrRate, sp.IntrRate2)
}

// loanDetails renders loans in order, loading their options in bulk
func (s *Service) loanDetails(ctx context.Context, loans []models.LoanProduct) ([]LoanDetailView, error) {
	out := make([]LoanDetailView, 0, len(loans))
	if len(loans) == 0 {
		return out, nil
	}
	codes := make([]string, len(loans))
	for i, l := range loans {
		codes[i] = l.ProductCode
	}

	db := s.db.WithContext(ctx)
	var mortgages []models.MortgageLoanOption
	if err := db.Where("product_id IN ?", codes).Order("id ASC").Find(&mortgages).Error; err != nil {
		return nil, fmt.Errorf("failed to load mortgage options: %w", err)
	}
	var credits []models.CreditLoanOption
	if err := db.Where("product_id IN ?", codes).Order("id ASC").Find(&credits).Error; err != nil {
		return nil, fmt.Errorf("failed to load credit options: %w", err)
	}
	var lendings []models.LendingRateOption
	if err := db.Where("product_id IN ?", codes).Order("id ASC").Find(&lendings).Error; err != nil {
		return nil, fmt.Errorf("failed to load lending options: %w", err)
	}
	var joinWays []models.LoanJoinWay
	if err := db.Where("product_id IN ?", codes).Order("id ASC").Find(&joinWays).Error; err != nil {
		return nil, fmt.Errorf("failed to load join ways: %w", err)
	}

	byCode := make(map[string]*LoanDetailView, len(loans))
	for _, l := range loans {
		view := LoanDetailView{
			FinCoNo:         l.FinCoNo,
			DclsMonth:       l.DclsMonth,
			LoanInciExpn:    l.LoanInciExpn,
			ErlyRpayFee:     l.ErlyRpayFee,
			DlyRate:         l.DlyRate,
			LoanLmt:         l.LoanLmt,
			ProductInfo:     productView(&l.Product),
			MortgageOptions: make([]models.MortgageLoanOption, 0),
			CreditOptions:   make([]models.CreditLoanOption, 0),
			LendingOptions:  make([]models.LendingRateOption, 0),
			JoinWays:        make([]models.LoanJoinWay, 0),
		}
		out = append(out, view)
	}
	for i := range out {
		byCode[loans[i].ProductCode] = &out[i]
	}
	for _, o := range mortgages {
		byCode[o.ProductCode].MortgageOptions = append(byCode[o.ProductCode].MortgageOptions, o)
	}
	for _, o := range credits {
		byCode[o.ProductCode].CreditOptions = append(byCode[o.ProductCode].CreditOptions, o)
	}
	for _, o := range lendings {
		byCode[o.ProductCode].LendingOptions = append(byCode[o.ProductCode].LendingOptions, o)
	}
	for _, j := range joinWays {
		byCode[j.ProductCode].JoinWays = append(byCode[j.ProductCode].JoinWays, j)
	}
	return out, nil
}
