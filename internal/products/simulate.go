package products

import (
	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/pkg/models"
	"github.com/shopspring/decimal"
)

// Interest rate types as published by finlife
const (
	RateSimple   = "S" // 단리
	RateCompound = "M" // 복리
)

// interest income tax (income tax 14% + local tax 1.4%)
var interestTaxRate = decimal.RequireFromString("0.154")

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// Simulation is an interest projection in won
type Simulation struct {
	Principal      decimal.Decimal `json:"principal"`
	Rate           decimal.Decimal `json:"rate"`
	Months         int             `json:"months"`
	RateType       string          `json:"rate_type"`
	Monthly        bool            `json:"monthly"`
	TotalPaidIn    decimal.Decimal `json:"total_paid_in"`
	Interest       decimal.Decimal `json:"interest"`
	Tax            decimal.Decimal `json:"tax"`
	NetInterest    decimal.Decimal `json:"net_interest"`
	MaturityAmount decimal.Decimal `json:"maturity_amount"`
}

// Simulate projects the after-tax amount of a deposit (lump sum) or an
// installment saving (Monthly, Principal paid every month).
func (s *Service) Simulate(req *models.SimulationRequest) (*Simulation, error) {
	principal, err := decimal.NewFromString(req.Principal)
	if err != nil || !principal.IsPositive() {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "principal", "principal must be a positive number")
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil || rate.IsNegative() {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "rate", "rate must be a non-negative number")
	}
	if req.Months < 1 {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "months", "months must be positive")
	}
	rateType := req.RateType
	if rateType == "" {
		rateType = RateSimple
	}
	if rateType != RateSimple && rateType != RateCompound {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "rate_type", "rate_type must be S or M")
	}

	return project(principal, rate, req.Months, rateType, req.Monthly), nil
}

func project(principal, rate decimal.Decimal, months int, rateType string, monthly bool) *Simulation {
	monthlyRate := rate.Div(hundred).Div(twelve)
	n := decimal.NewFromInt(int64(months))

	var paidIn, interest decimal.Decimal
	switch {
	case !monthly && rateType == RateSimple:
		paidIn = principal
		interest = principal.Mul(monthlyRate).Mul(n)
	case !monthly:
		paidIn = principal
		interest = principal.Mul(growth(monthlyRate, months)).Sub(principal)
	case rateType == RateSimple:
		// the k-th installment earns interest for months-k+1 months
		paidIn = principal.Mul(n)
		interest = principal.Mul(monthlyRate).Mul(n.Mul(n.Add(decimal.NewFromInt(1)))).Div(decimal.NewFromInt(2))
	default:
		paidIn = principal.Mul(n)
		interest = decimal.Zero
		for k := 1; k <= months; k++ {
			interest = interest.Add(principal.Mul(growth(monthlyRate, months-k+1)).Sub(principal))
		}
	}

	interest = interest.Floor()
	tax := interest.Mul(interestTaxRate).Floor()
	net := interest.Sub(tax)
	return &Simulation{
		Principal:      principal,
		Rate:           rate,
		Months:         months,
		RateType:       rateType,
		Monthly:        monthly,
		TotalPaidIn:    paidIn,
		Interest:       interest,
		Tax:            tax,
		NetInterest:    net,
		MaturityAmount: paidIn.Add(net),
	}
}

// growth returns (1 + r)^n
func growth(r decimal.Decimal, n int) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(r)
	out := decimal.NewFromInt(1)
	for i := 0; i < n; i++ {
		out = out.Mul(factor)
	}
	return out
}
