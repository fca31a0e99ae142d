package models

import (
	"strings"
	"time"
)

// Product kinds understood by the catalog and the sync jobs
const (
	KindDeposit  = "deposit"
	KindSaving   = "saving"
	KindMortgage = "mortgage"
	KindCredit   = "credit"
	KindRent     = "rent"
)

// Category and loan type labels stored with the product rows
const (
	CategoryDeposit  = "예금"
	CategorySaving   = "적금"
	LoanTypeMortgage = "주택담보대출"
	LoanTypeCredit   = "신용대출"
	LoanTypeRent     = "전세자금대출"
)

// FinancialProduct is the common header of every catalog entry
type FinancialProduct struct {
	FinPrdtCd  string    `json:"fin_prdt_cd" gorm:"column:fin_prdt_cd;primaryKey;size:255"`
	KorCoNm    string    `json:"kor_co_nm" gorm:"column:kor_co_nm;size:255;index;not null"`
	FinPrdtNm  string    `json:"fin_prdt_nm" gorm:"column:fin_prdt_nm;size:255;not null"`
	JoinWay    string    `json:"join_way" gorm:"column:join_way;size:255"`
	LoanType   *string   `json:"loan_type" gorm:"column:loan_type;size:255"`
	JoinMember *string   `json:"join_member" gorm:"column:join_member;type:text"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// JoinWays splits the comma separated join_way column
func (p *FinancialProduct) JoinWays() []string {
	return SplitJoinWay(p.JoinWay)
}

// SplitJoinWay returns the trimmed, non-empty channels of a join_way value
func SplitJoinWay(joinWay string) []string {
	ways := make([]string, 0)
	for _, w := range strings.Split(joinWay, ",") {
		if w = strings.TrimSpace(w); w != "" {
			ways = append(ways, w)
		}
	}
	return ways
}

// DepositProduct holds deposit specific fields
type DepositProduct struct {
	ProductCode  string           `json:"product" gorm:"column:product_id;primaryKey;size:255"`
	Product      FinancialProduct `json:"-" gorm:"foreignKey:ProductCode;references:FinPrdtCd;constraint:OnDelete:CASCADE"`
	FinCoNo      string           `json:"fin_co_no" gorm:"column:fin_co_no;size:255"`
	DclsMonth    string           `json:"dcls_month" gorm:"column:dcls_month;size:10"`
	Category     string           `json:"category" gorm:"column:category;size:50"`
	IntrRateType string           `json:"intr_rate_type" gorm:"column:intr_rate_type;size:255"`
	SaveTrm      int              `json:"save_trm" gorm:"column:save_trm"`
	IntrRate     float64          `json:"intr_rate" gorm:"column:intr_rate"`
	IntrRate2    float64          `json:"intr_rate2" gorm:"column:intr_rate2;index"`
}

// SavingProduct holds installment saving specific fields
type SavingProduct struct {
	ProductCode  string           `json:"product" gorm:"column:product_id;primaryKey;size:255"`
	Product      FinancialProduct `json:"-" gorm:"foreignKey:ProductCode;references:FinPrdtCd;constraint:OnDelete:CASCADE"`
	FinCoNo      string           `json:"fin_co_no" gorm:"column:fin_co_no;size:255"`
	DclsMonth    string           `json:"dcls_month" gorm:"column:dcls_month;size:10"`
	Category     string           `json:"category" gorm:"column:category;size:50"`
	IntrRateType string           `json:"intr_rate_type" gorm:"column:intr_rate_type;size:255"`
	RsrvType     string           `json:"rsrv_type" gorm:"column:rsrv_type;size:100"`
	SaveTrm      int              `json:"save_trm" gorm:"column:save_trm"`
	IntrRate     float64          `json:"intr_rate" gorm:"column:intr_rate"`
	IntrRate2    float64          `json:"intr_rate2" gorm:"column:intr_rate2;index"`
}

// LoanProduct holds loan specific fields
type LoanProduct struct {
	ProductCode  string           `json:"product" gorm:"column:product_id;primaryKey;size:255"`
	Product      FinancialProduct `json:"-" gorm:"foreignKey:ProductCode;references:FinPrdtCd;constraint:OnDelete:CASCADE"`
	FinCoNo      string           `json:"fin_co_no" gorm:"column:fin_co_no;size:255"`
	DclsMonth    string           `json:"dcls_month" gorm:"column:dcls_month;size:10"`
	LoanInciExpn *string          `json:"loan_inci_expn" gorm:"column:loan_inci_expn;type:text"`
	ErlyRpayFee  *string          `json:"erly_rpay_fee" gorm:"column:erly_rpay_fee;type:text"`
	DlyRate      *string          `json:"dly_rate" gorm:"column:dly_rate;type:text"`
	LoanLmt      *string          `json:"loan_lmt" gorm:"column:loan_lmt;type:text"`
}

// MortgageLoanOption is one rate row of a mortgage loan
type MortgageLoanOption struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	ProductCode  string   `json:"product" gorm:"column:product_id;index;size:255;not null"`
	MrtgType     string   `json:"mrtg_type" gorm:"column:mrtg_type;size:255"`
	RpayType     string   `json:"rpay_type" gorm:"column:rpay_type;size:255"`
	LendRateType string   `json:"lend_rate_type" gorm:"column:lend_rate_type;size:255"`
	LendRateMin  float64  `json:"lend_rate_min" gorm:"column:lend_rate_min"`
	LendRateMax  float64  `json:"lend_rate_max" gorm:"column:lend_rate_max"`
	LendRateAvg  *float64 `json:"lend_rate_avg" gorm:"column:lend_rate_avg"`
}

// CreditLoanOption is one rate row of a credit loan, per credit grade
type CreditLoanOption struct {
	ID               uint     `json:"id" gorm:"primaryKey"`
	ProductCode      string   `json:"product" gorm:"column:product_id;index;size:255;not null"`
	CrdtPrdtType     string   `json:"crdt_prdt_type" gorm:"column:crdt_prdt_type;size:255"`
	CrdtLendRateType string   `json:"crdt_lend_rate_type" gorm:"column:crdt_lend_rate_type;size:255"`
	CrdtGrad1        *float64 `json:"crdt_grad_1" gorm:"column:crdt_grad_1"`
	CrdtGrad4        *float64 `json:"crdt_grad_4" gorm:"column:crdt_grad_4"`
	CrdtGrad5        *float64 `json:"crdt_grad_5" gorm:"column:crdt_grad_5"`
	CrdtGrad6        *float64 `json:"crdt_grad_6" gorm:"column:crdt_grad_6"`
	CrdtGrad10       *float64 `json:"crdt_grad_10" gorm:"column:crdt_grad_10"`
	CrdtGrad11       *float64 `json:"crdt_grad_11" gorm:"column:crdt_grad_11"`
	CrdtGrad12       *float64 `json:"crdt_grad_12" gorm:"column:crdt_grad_12"`
	CrdtGrad13       *float64 `json:"crdt_grad_13" gorm:"column:crdt_grad_13"`
	CrdtGradAvg      *float64 `json:"crdt_grad_avg" gorm:"column:crdt_grad_avg"`
}

// LendingRateOption is one rate row of a rent-house loan
type LendingRateOption struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	ProductCode  string   `json:"product" gorm:"column:product_id;index;size:255;not null"`
	RpayType     string   `json:"rpay_type" gorm:"column:rpay_type;size:255"`
	LendRateType string   `json:"lend_rate_type" gorm:"column:lend_rate_type;size:255"`
	LendRateMin  float64  `json:"lend_rate_min" gorm:"column:lend_rate_min"`
	LendRateMax  float64  `json:"lend_rate_max" gorm:"column:lend_rate_max"`
	LendRateAvg  *float64 `json:"lend_rate_avg" gorm:"column:lend_rate_avg"`
}

// RequirementOption is one term/rate row of a deposit or saving product
type RequirementOption struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	ProductCode  string  `json:"product" gorm:"column:product_id;index;size:255;not null"`
	SaveTrm      int     `json:"save_trm" gorm:"column:save_trm"`
	IntrRateType string  `json:"intr_rate_type" gorm:"column:intr_rate_type;size:255"`
	RsrvType     *string `json:"rsrv_type" gorm:"column:rsrv_type;size:100"`
	IntrRate     float64 `json:"intr_rate" gorm:"column:intr_rate"`
	IntrRate2    float64 `json:"intr_rate2" gorm:"column:intr_rate2"`
}

// DepositJoinWay is a single join channel of a deposit or saving product
type DepositJoinWay struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	ProductCode string `json:"product" gorm:"column:product_id;index;size:255;not null"`
	JoinWay     string `json:"join_way" gorm:"column:join_way;size:255"`
}

// LoanJoinWay is a single join channel of a loan product
type LoanJoinWay struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	ProductCode string `json:"product" gorm:"column:product_id;index;size:255;not null"`
	JoinWay     string `json:"join_way" gorm:"column:join_way;size:255"`
}

// UserProduct marks a product as a favorite of a user
type UserProduct struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	UserID      uint             `json:"user" gorm:"uniqueIndex:idx_user_product;not null"`
	ProductCode string           `json:"product" gorm:"column:product_id;uniqueIndex:idx_user_product;size:255;not null"`
	Product     FinancialProduct `json:"-" gorm:"foreignKey:ProductCode;references:FinPrdtCd;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `json:"created_at"`
}
