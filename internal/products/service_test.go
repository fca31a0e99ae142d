package products_test

import (
	"context"
	"testing"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/products"
	"github.com/finmate/finmate/pkg/models"
	"github.com/finmate/finmate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newCatalog(t *testing.T, advisor products.Recommender) (*products.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	testutil.SeedCatalog(t, db)
	return products.NewService(zap.NewNop(), db, nil, advisor), db
}

func codes(list []products.ProductView) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.FinPrdtCd)
	}
	return out
}

func TestListFinancialProducts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t, nil)

	all, err := svc.ListFinancialProducts(ctx, products.CatalogQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"D2", "C1", "M1", "D1", "S1"}, codes(all))
	assert.Equal(t, []string{"영업점", "인터넷"}, all[0].JoinWay)

	deposits, err := svc.ListFinancialProducts(ctx, products.CatalogQuery{Category: "deposit"})
	require.NoError(t, err)
	assert.Equal(t, []string{"D2", "D1"}, codes(deposits))

	loans, err := svc.ListFinancialProducts(ctx, products.CatalogQuery{Category: "loan", Ordering: "-fin_prdt_nm"})
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "C1"}, codes(loans))

	found, err := svc.ListFinancialProducts(ctx, products.CatalogQuery{Search: "kb"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"D2", "C1"}, codes(found))

	_, err = svc.GetFinancialProduct(ctx, "nope")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestListDeposits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t, nil)

	list, err := svc.ListDeposits(ctx, products.RateQuery{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "D1", list[0].ProductCode)
	assert.Equal(t, "우리은행", list[0].FinancialProduct.KorCoNm)

	list, err = svc.ListDeposits(ctx, products.RateQuery{MinRate: testutil.Ptr(3.4)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "D1", list[0].ProductCode)

	list, err = svc.ListDeposits(ctx, products.RateQuery{Bank: "국민"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "D2", list[0].ProductCode)

	list, err = svc.ListDeposits(ctx, products.RateQuery{Ordering: "intr_rate"})
	require.NoError(t, err)
	assert.Equal(t, "D2", list[0].ProductCode)

	detail, err := svc.GetDeposit(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, "WON플러스예금", detail.ProductInfo.FinPrdtNm)
	require.Len(t, detail.Requirements, 1)
	assert.Nil(t, detail.RsrvType)

	saving, err := svc.GetSaving(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, saving.RsrvType)
	assert.Equal(t, "F", *saving.RsrvType)

	_, err = svc.GetDeposit(ctx, "S1")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestListLoans(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t, nil)

	all, err := svc.ListLoans(ctx, products.LoanQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	mortgage, err := svc.ListLoans(ctx, products.LoanQuery{HasMortgage: true})
	require.NoError(t, err)
	require.Len(t, mortgage, 1)
	assert.Equal(t, "M1", mortgage[0].ProductInfo.FinPrdtCd)
	assert.Len(t, mortgage[0].MortgageOptions, 1)
	assert.Empty(t, mortgage[0].CreditOptions)

	credit, err := svc.GetLoan(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, credit.CreditOptions, 1)
	assert.Equal(t, 5.2, *credit.CreditOptions[0].CrdtGrad1)
}

func TestTopRates(t *testing.T) {
	ctx := context.Background()
	svc, db := newCatalog(t, nil)

	out, err := svc.TopRates(ctx, "saving", 5)
	require.NoError(t, err)
	savings := out.([]products.SavingView)
	require.Len(t, savings, 1)
	assert.Equal(t, "S1", savings[0].ProductCode)

	out, err = svc.TopRates(ctx, "loan", 5)
	require.NoError(t, err)
	loans := out.([]products.LoanDetailView)
	require.Len(t, loans, 1)
	assert.Equal(t, "M1", loans[0].ProductInfo.FinPrdtCd)

	// without mortgage options loans rank by credit grade 1
	require.NoError(t, db.Where("1 = 1").Delete(&models.MortgageLoanOption{}).Error)
	out, err = svc.TopRates(ctx, "loan", 5)
	require.NoError(t, err)
	loans = out.([]products.LoanDetailView)
	require.Len(t, loans, 1)
	assert.Equal(t, "C1", loans[0].ProductInfo.FinPrdtCd)

	_, err = svc.TopRates(ctx, "bond", 5)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
	_, err = svc.TopRates(ctx, "deposit", 0)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t, nil)

	res, err := svc.Search(ctx, "KB")
	require.NoError(t, err)
	require.Len(t, res.Deposits, 1)
	assert.Equal(t, "D2", res.Deposits[0].ProductCode)
	assert.Empty(t, res.Savings)
	require.Len(t, res.Loans, 1)
	assert.Equal(t, "C1", res.Loans[0].ProductInfo.FinPrdtCd)

	res, err = svc.Search(ctx, "우리")
	require.NoError(t, err)
	assert.Len(t, res.Deposits, 1)
	assert.Len(t, res.Savings, 1)

	_, err = svc.Search(ctx, "  ")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t, nil)

	res, err := svc.Filter(ctx, products.FilterQuery{PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Pagination.TotalCount.Deposits)
	assert.Equal(t, int64(2), res.Pagination.TotalPages.Deposits)
	assert.Equal(t, int64(2), res.Pagination.TotalCount.Loans)
	require.Len(t, res.Results.Deposits, 1)
	assert.Equal(t, "D1", res.Results.Deposits[0].ProductCode)

	res, err = svc.Filter(ctx, products.FilterQuery{Type: "deposit", SortOrder: "asc", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "D2", res.Results.Deposits[0].ProductCode)
	assert.Empty(t, res.Results.Savings)
	assert.Equal(t, int64(0), res.Pagination.TotalCount.Loans)

	res, err = svc.Filter(ctx, products.FilterQuery{MinRate: testutil.Ptr(5.0)})
	require.NoError(t, err)
	assert.Empty(t, res.Results.Deposits)
	assert.Len(t, res.Results.Savings, 1)

	_, err = svc.Filter(ctx, products.FilterQuery{SortBy: "popularity"})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	svc, db := newCatalog(t, nil)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalProducts)
	assert.Equal(t, int64(2), stats.ProductsByType.Deposits)
	assert.Equal(t, int64(1), stats.ProductsByType.MortgageOptions)
	require.NotNil(t, stats.DepositRates.AvgRate)
	assert.Equal(t, 3.25, *stats.DepositRates.AvgRate)
	assert.Equal(t, 3.8, *stats.DepositRates.MaxRate)
	require.NotNil(t, stats.LastUpdated)
	assert.Equal(t, "202406", *stats.LastUpdated)
	require.Len(t, stats.TopInstitutions, 3)
	assert.Equal(t, "국민은행", stats.TopInstitutions[0].KorCoNm)
	assert.Equal(t, int64(2), stats.TopInstitutions[0].ProductCount)

	// cached until invalidated
	require.NoError(t, db.Where("product_id = ?", "D2").Delete(&models.DepositProduct{}).Error)
	stats, err = svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ProductsByType.Deposits)

	require.NoError(t, svc.InvalidateStatistics(ctx))
	stats, err = svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ProductsByType.Deposits)
}

func TestSimulate(t *testing.T) {
	svc, _ := newCatalog(t, nil)

	lump, err := svc.Simulate(&models.SimulationRequest{Principal: "1000000", Rate: "3.6", Months: 12})
	require.NoError(t, err)
	assert.Equal(t, "36000", lump.Interest.String())
	assert.Equal(t, "5544", lump.Tax.String())
	assert.Equal(t, "1030456", lump.MaturityAmount.String())

	monthly, err := svc.Simulate(&models.SimulationRequest{Principal: "100000", Rate: "2.4", Months: 12, Monthly: true})
	require.NoError(t, err)
	assert.Equal(t, "1200000", monthly.TotalPaidIn.String())
	assert.Equal(t, "15600", monthly.Interest.String())
	assert.Equal(t, "2402", monthly.Tax.String())
	assert.Equal(t, "1213198", monthly.MaturityAmount.String())

	compound, err := svc.Simulate(&models.SimulationRequest{Principal: "1000000", Rate: "3.6", Months: 12, RateType: "M"})
	require.NoError(t, err)
	assert.True(t, compound.Interest.GreaterThan(lump.Interest))

	_, err = svc.Simulate(&models.SimulationRequest{Principal: "abc", Rate: "3", Months: 12})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
	_, err = svc.Simulate(&models.SimulationRequest{Principal: "1000", Rate: "3", Months: 12, RateType: "X"})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}
