package models

import "mime/multipart"

// RegisterRequest is the body of POST /accounts/register
type RegisterRequest struct {
	Username string  `json:"username" form:"username" binding:"required,max=150"`
	Email    string  `json:"email" form:"email" binding:"required,email,max=254"`
	Password string  `json:"password" form:"password" binding:"required,min=4,max=128"`
	Nickname string  `json:"nickname" form:"nickname" binding:"required,max=15"`
	Age      *int    `json:"age" form:"age" binding:"omitempty,min=0,max=150"`
	Gender   *string `json:"gender" form:"gender" binding:"omitempty,oneof=M F"`
}

// LoginRequest accepts a username or an email in Username
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// LogoutRequest optionally carries the refresh token to revoke alongside the access token
type LogoutRequest struct {
	Refresh string `json:"refresh"`
}

// TokenPair is returned on register, login and social login
type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// RefreshRequest is the body of POST /accounts/token/refresh
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// VerifyRequest is the body of POST /accounts/token/verify
type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// SocialLoginRequest carries the provider authorization code
type SocialLoginRequest struct {
	Code string `json:"code"`
}

// UpdateProfileRequest holds raw form values; empty strings mean "leave unchanged"
type UpdateProfileRequest struct {
	Nickname   *string               `json:"nickname" form:"nickname"`
	Age        *string               `json:"age" form:"age"`
	Gender     *string               `json:"gender" form:"gender"`
	Salary     *string               `json:"salary" form:"salary"`
	Money      *string               `json:"money" form:"money"`
	ProfileImg *multipart.FileHeader `json:"-" form:"profile_img"`
}

// ArticleRequest is used for article create and update
type ArticleRequest struct {
	Title   string `json:"title" binding:"required,notblank,max=100"`
	Content string `json:"content" binding:"required,notblank"`
}

// ArticlePatchRequest is used for partial article updates
type ArticlePatchRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=100"`
	Content *string `json:"content"`
}

// CommentRequest is used for comment create and update
type CommentRequest struct {
	Content string `json:"content" binding:"required,notblank"`
}

// SavedVideoRequest is used to bookmark a video
type SavedVideoRequest struct {
	Video uint    `json:"video" binding:"required"`
	Notes *string `json:"notes"`
}

// SavedVideoUpdateRequest edits the notes of a bookmark
type SavedVideoUpdateRequest struct {
	Notes *string `json:"notes"`
}

// BatchUpdateRequest selects which product kinds to sync
type BatchUpdateRequest struct {
	Types []string `json:"types"`
}

// AIRecommendationRequest overrides the profile values used for the prompt
type AIRecommendationRequest struct {
	Salary *int64 `json:"salary" binding:"omitempty,min=0"`
	Money  *int64 `json:"money" binding:"omitempty,min=0"`
	Period *int   `json:"period" binding:"omitempty,min=1,max=120"`
}

// SimulationRequest describes an interest projection
type SimulationRequest struct {
	Principal string `json:"principal" binding:"required"`
	Rate      string `json:"rate" binding:"required"`
	Months    int    `json:"months" binding:"required,min=1,max=600"`
	RateType  string `json:"rate_type" binding:"omitempty,oneof=S M"`
	Monthly   bool   `json:"monthly"`
}

// FinancialProductRequest is the admin payload for financial products
type FinancialProductRequest struct {
	FinPrdtCd  string  `json:"fin_prdt_cd" binding:"required,product_code"`
	KorCoNm    string  `json:"kor_co_nm" binding:"required,max=255"`
	FinPrdtNm  string  `json:"fin_prdt_nm" binding:"required,max=255"`
	JoinWay    string  `json:"join_way" binding:"max=255"`
	LoanType   *string `json:"loan_type" binding:"omitempty,max=255"`
	JoinMember *string `json:"join_member"`
}

// DepositProductRequest is the admin payload for deposits
type DepositProductRequest struct {
	Product      string  `json:"product" binding:"required"`
	FinCoNo      string  `json:"fin_co_no" binding:"required"`
	DclsMonth    string  `json:"dcls_month" binding:"required,yyyymm"`
	Category     string  `json:"category" binding:"max=50"`
	IntrRateType string  `json:"intr_rate_type"`
	SaveTrm      int     `json:"save_trm" binding:"min=0"`
	IntrRate     float64 `json:"intr_rate"`
	IntrRate2    float64 `json:"intr_rate2"`
}

// SavingProductRequest is the admin payload for savings
type SavingProductRequest struct {
	DepositProductRequest
	RsrvType string `json:"rsrv_type" binding:"max=100"`
}

// LoanProductRequest is the admin payload for loans
type LoanProductRequest struct {
	Product      string  `json:"product" binding:"required"`
	FinCoNo      string  `json:"fin_co_no" binding:"required"`
	DclsMonth    string  `json:"dcls_month" binding:"required,yyyymm"`
	LoanInciExpn *string `json:"loan_inci_expn"`
	ErlyRpayFee  *string `json:"erly_rpay_fee"`
	DlyRate      *string `json:"dly_rate"`
	LoanLmt      *string `json:"loan_lmt"`
}
