package models

import (
	"time"
)

// User represents a registered member of the service
type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Username     string     `json:"username" gorm:"uniqueIndex;size:150;not null"`
	Email        string     `json:"email" gorm:"index;size:254"`
	PasswordHash string     `json:"-" gorm:"column:password_hash;not null"`
	Nickname     string     `json:"nickname" gorm:"uniqueIndex;size:15;not null"`
	ProfileImg   *string    `json:"profile_img" gorm:"size:255"`
	Age          *int       `json:"age"`
	Gender       *string    `json:"gender" gorm:"size:1"` // M or F
	Money        int64      `json:"money" gorm:"default:0;not null"`
	Salary       *int64     `json:"salary"`
	JoinDate     time.Time  `json:"join_date"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login"`
	IsAdmin      bool       `json:"is_admin" gorm:"default:false"`
	IsStaff      bool       `json:"is_staff" gorm:"default:false"`
	IsSuperuser  bool       `json:"is_superuser" gorm:"default:false"`
	GoogleID     *string    `json:"google_id" gorm:"uniqueIndex;size:100"`
	KakaoID      *string    `json:"kakao_id" gorm:"uniqueIndex;size:100"`
	SocialAvatar *string    `json:"social_avatar" gorm:"size:500"`
	CreatedAt    time.Time  `json:"-"`
	UpdatedAt    time.Time  `json:"-"`
}

// IsSocialAccount reports whether the user signed up through an OAuth provider
func (u *User) IsSocialAccount() bool {
	return u.GoogleID != nil || u.KakaoID != nil
}

// HasAdminRights reports whether the user may use admin endpoints
func (u *User) HasAdminRights() bool {
	return u.IsAdmin || u.IsStaff || u.IsSuperuser
}

// AllModels lists every persisted type in migration order
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Article{},
		&Comment{},
		&FinancialProduct{},
		&DepositProduct{},
		&SavingProduct{},
		&LoanProduct{},
		&MortgageLoanOption{},
		&CreditLoanOption{},
		&LendingRateOption{},
		&RequirementOption{},
		&DepositJoinWay{},
		&LoanJoinWay{},
		&UserProduct{},
		&YouTubeVideo{},
		&SavedVideo{},
	}
}
