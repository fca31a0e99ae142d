package products_test

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/products"
	"github.com/finmate/finmate/pkg/models"
	"github.com/finmate/finmate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdvisor struct {
	prompt string
	err    error
}

func (a *stubAdvisor) Recommend(ctx context.Context, prompt string) (string, error) {
	a.prompt = prompt
	if a.err != nil {
		return "", a.err
	}
	return "WON플러스예금을 추천합니다.", nil
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	svc, db := newCatalog(t, nil)
	user := testutil.CreateUser(t, db, "saver")

	fav, err := svc.AddFavorite(ctx, user.ID, "D1")
	require.NoError(t, err)
	assert.Equal(t, "D1", fav.Product)
	require.NotNil(t, fav.DepositInfo)
	assert.Equal(t, 3.8, fav.DepositInfo.IntrRate2)
	assert.Nil(t, fav.SavingInfo)
	assert.Nil(t, fav.LoanInfo)

	_, err = svc.AddFavorite(ctx, user.ID, "D1")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	_, err = svc.AddFavorite(ctx, user.ID, "XX")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	loanFav, err := svc.AddFavorite(ctx, user.ID, "M1")
	require.NoError(t, err)
	require.NotNil(t, loanFav.LoanInfo)
	assert.Len(t, loanFav.LoanInfo.MortgageOptions, 1)

	list, err := svc.ListFavorites(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "D1", list[0].Product)

	err = svc.RemoveFavorite(ctx, user.ID, "D2")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	require.NoError(t, svc.RemoveFavorite(ctx, user.ID, "D1"))

	list, err = svc.ListFavorites(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecommendations(t *testing.T) {
	ctx := context.Background()
	svc, db := newCatalog(t, nil)
	user := testutil.CreateUser(t, db, "saver")

	generic, err := svc.Recommendations(ctx, user)
	require.NoError(t, err)
	assert.Contains(t, generic.Message, "관심 상품을 추가하면")
	assert.Empty(t, generic.FavoriteInstitutions)
	assert.Len(t, generic.Recommendations["deposits"], 2)
	assert.Len(t, generic.Recommendations["savings"], 1)
	assert.Len(t, generic.Recommendations["loans"], 2)

	_, err = svc.AddFavorite(ctx, user.ID, "D1")
	require.NoError(t, err)

	personal, err := svc.Recommendations(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "saver님의 관심 금융 상품 기반 맞춤 추천입니다.", personal.Message)
	assert.Equal(t, []string{"우리은행"}, personal.FavoriteInstitutions)

	deposits, ok := personal.Recommendations["deposits"].([]products.DepositView)
	require.True(t, ok)
	require.Len(t, deposits, 2)
	assert.Equal(t, "D1", deposits[0].ProductCode)
	assert.Equal(t, "D2", deposits[1].ProductCode)

	_, hasSavings := personal.Recommendations["savings"]
	assert.False(t, hasSavings)
	_, hasLoans := personal.Recommendations["loans"]
	assert.False(t, hasLoans)
}

func TestAIRecommendations(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		svc, db := newCatalog(t, nil)
		user := testutil.CreateUser(t, db, "saver")
		_, err := svc.AIRecommendations(ctx, user, nil)
		assert.True(t, apperrors.Is(err, apperrors.ErrUnavailable))
	})

	t.Run("profile defaults", func(t *testing.T) {
		advisor := &stubAdvisor{}
		svc, db := newCatalog(t, advisor)
		user := testutil.CreateUser(t, db, "saver")
		user.Money = 10000000
		user.Salary = testutil.Ptr(int64(3000000))

		text, err := svc.AIRecommendations(ctx, user, &models.AIRecommendationRequest{Period: testutil.Ptr(6)})
		require.NoError(t, err)
		assert.Equal(t, "WON플러스예금을 추천합니다.", text)
		assert.Contains(t, advisor.prompt, "- 월 소득: 3000000원")
		assert.Contains(t, advisor.prompt, "- 현재 자산: 10000000원")
		assert.Contains(t, advisor.prompt, "- 원하는 기간(개월 수): 6개월")
		assert.Contains(t, advisor.prompt, "WON플러스예금")
		assert.Contains(t, advisor.prompt, "신한주택대출")
		assert.Contains(t, advisor.prompt, "projected_after_tax")
	})

	t.Run("upstream failure", func(t *testing.T) {
		svc, db := newCatalog(t, &stubAdvisor{err: errors.New("boom")})
		user := testutil.CreateUser(t, db, "saver")
		_, err := svc.AIRecommendations(ctx, user, nil)
		assert.True(t, apperrors.Is(err, apperrors.ErrUpstream))
	})
}

func TestAdminCatalog(t *testing.T) {
	ctx := context.Background()
	svc, db := newCatalog(t, nil)

	created, err := svc.CreateFinancialProduct(ctx, &models.FinancialProductRequest{
		FinPrdtCd: "N1", KorCoNm: "하나은행", FinPrdtNm: "하나의정기예금", JoinWay: "인터넷, 스마트폰",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"인터넷", "스마트폰"}, created.JoinWay)

	_, err = svc.CreateFinancialProduct(ctx, &models.FinancialProductRequest{FinPrdtCd: "N1", KorCoNm: "x", FinPrdtNm: "y"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	found, err := svc.AdminSearchFinancialProducts(ctx, "하나", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"N1"}, codes(found))

	deposit, err := svc.CreateDeposit(ctx, &models.DepositProductRequest{
		Product: "N1", FinCoNo: "0013909", DclsMonth: "202407", SaveTrm: 12, IntrRate: 3.1, IntrRate2: 3.9,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDeposit, deposit.Category)
	assert.Equal(t, "하나은행", deposit.FinancialProduct.KorCoNm)

	_, err = svc.CreateDeposit(ctx, &models.DepositProductRequest{Product: "N1", FinCoNo: "1", DclsMonth: "202407"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	_, err = svc.CreateDeposit(ctx, &models.DepositProductRequest{Product: "ZZ", FinCoNo: "1", DclsMonth: "202407"})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

	updated, err := svc.UpdateDeposit(ctx, "N1", &models.DepositProductRequest{Product: "N1", FinCoNo: "0013909", DclsMonth: "202408", IntrRate2: 4.1})
	require.NoError(t, err)
	assert.Equal(t, "202408", updated.DclsMonth)

	top, err := svc.TopRates(ctx, "deposit", 1)
	require.NoError(t, err)
	assert.Equal(t, "N1", top.([]products.DepositView)[0].ProductCode)

	user := testutil.CreateUser(t, db, "admin")
	_, err = svc.AddFavorite(ctx, user.ID, "N1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFinancialProduct(ctx, "N1"))
	var count int64
	require.NoError(t, db.Model(&models.UserProduct{}).Count(&count).Error)
	assert.Zero(t, count)
	_, err = svc.GetDeposit(ctx, "N1")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, svc.DeleteLoan(ctx, "M1"))
	require.NoError(t, db.Model(&models.MortgageLoanOption{}).Count(&count).Error)
	assert.Zero(t, count)
	err = svc.DeleteLoan(ctx, "M1")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
