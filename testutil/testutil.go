package testutil

import (
	"strings"
	"testing"

	"github.com/finmate/finmate/internal/database"
	"github.com/finmate/finmate/pkg/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NewTestDB returns a migrated in-memory SQLite database private to t
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewSQLiteDB("file:"+name+"?mode=memory&cache=shared", false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user whose password is "password123"
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Nickname:     username,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// SeedCatalog inserts a small catalog: two deposits, one saving, one mortgage
// loan and one credit loan across three banks
func SeedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	products := []models.FinancialProduct{
		{FinPrdtCd: "D1", KorCoNm: "우리은행", FinPrdtNm: "WON플러스예금", JoinWay: "인터넷,스마트폰"},
		{FinPrdtCd: "D2", KorCoNm: "국민은행", FinPrdtNm: "KB Star 정기예금", JoinWay: "영업점, 인터넷"},
		{FinPrdtCd: "S1", KorCoNm: "우리은행", FinPrdtNm: "우리SUPER주거래적금", JoinWay: "스마트폰"},
		{FinPrdtCd: "M1", KorCoNm: "신한은행", FinPrdtNm: "신한주택대출", JoinWay: "영업점", LoanType: Ptr(models.LoanTypeMortgage)},
		{FinPrdtCd: "C1", KorCoNm: "국민은행", FinPrdtNm: "KB직장인든든신용대출", JoinWay: "인터넷", LoanType: Ptr(models.LoanTypeCredit)},
	}
	require.NoError(t, db.Create(&products).Error)

	require.NoError(t, db.Create(&[]models.DepositProduct{
		{ProductCode: "D1", FinCoNo: "0010001", DclsMonth: "202405", Category: models.CategoryDeposit, IntrRateType: "S", SaveTrm: 12, IntrRate: 3.5, IntrRate2: 3.8},
		{ProductCode: "D2", FinCoNo: "0010002", DclsMonth: "202406", Category: models.CategoryDeposit, IntrRateType: "M", SaveTrm: 6, IntrRate: 3.0, IntrRate2: 3.2},
	}).Error)
	require.NoError(t, db.Create(&models.SavingProduct{
		ProductCode: "S1", FinCoNo: "0010001", DclsMonth: "202405", Category: models.CategorySaving,
		IntrRateType: "S", RsrvType: "F", SaveTrm: 12, IntrRate: 4.0, IntrRate2: 5.5,
	}).Error)
	require.NoError(t, db.Create(&[]models.LoanProduct{
		{ProductCode: "M1", FinCoNo: "0010003", DclsMonth: "202406"},
		{ProductCode: "C1", FinCoNo: "0010002", DclsMonth: "202404"},
	}).Error)
	require.NoError(t, db.Create(&models.MortgageLoanOption{
		ProductCode: "M1", MrtgType: "아파트", RpayType: "분할상환", LendRateType: "고정금리", LendRateMin: 3.9, LendRateMax: 5.1,
	}).Error)
	require.NoError(t, db.Create(&models.CreditLoanOption{
		ProductCode: "C1", CrdtPrdtType: "1", CrdtLendRateType: "A", CrdtGrad1: Ptr(5.2), CrdtGradAvg: Ptr(6.1),
	}).Error)
	require.NoError(t, db.Create(&[]models.RequirementOption{
		{ProductCode: "D1", SaveTrm: 12, IntrRateType: "S", IntrRate: 3.5, IntrRate2: 3.8},
		{ProductCode: "S1", SaveTrm: 12, IntrRateType: "S", RsrvType: Ptr("F"), IntrRate: 4.0, IntrRate2: 5.5},
	}).Error)
}
