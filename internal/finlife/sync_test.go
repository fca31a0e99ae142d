package finlife_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/finlife"
	"github.com/finmate/finmate/internal/messaging"
	"github.com/finmate/finmate/pkg/models"
	"github.com/finmate/finmate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const fixturesPath = "testdata/products.yaml"

type recordingPublisher struct {
	mu       sync.Mutex
	messages []messaging.ProductSyncMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message.(messaging.ProductSyncMessage))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateStatistics(ctx context.Context) error {
	c.calls++
	return nil
}

type failingFetcher struct{}

func (failingFetcher) FetchAll(ctx context.Context, kind string) (*finlife.Batch, error) {
	return nil, errors.New("connection refused")
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func newFixtureSyncer(t *testing.T, db *gorm.DB) (*finlife.Syncer, *recordingPublisher, *countingInvalidator) {
	t.Helper()
	fetcher, err := finlife.NewFixtureFetcher(fixturesPath)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	return finlife.NewSyncer(zap.NewNop(), db, fetcher, pub, inv, "test"), pub, inv
}

func TestSyncDeposits(t *testing.T) {
	db := testutil.NewTestDB(t)
	syncer, pub, inv := newFixtureSyncer(t, db)
	ctx := context.Background()

	report, err := syncer.Sync(ctx, models.KindDeposit)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Products)
	assert.Equal(t, 2, report.Options)
	assert.Equal(t, 1, report.Skipped)

	var product models.FinancialProduct
	require.NoError(t, db.First(&product, "fin_prdt_cd = ?", "WR0001B").Error)
	assert.Equal(t, "우리은행", product.KorCoNm)
	assert.Nil(t, product.LoanType)

	var detail models.DepositProduct
	require.NoError(t, db.First(&detail, "product_id = ?", "WR0001B").Error)
	assert.Equal(t, models.CategoryDeposit, detail.Category)
	assert.Equal(t, 12, detail.SaveTrm)
	assert.Equal(t, 3.8, detail.IntrRate2)

	assert.Equal(t, int64(3), count(t, db, &models.DepositJoinWay{}))
	assert.Equal(t, int64(2), count(t, db, &models.RequirementOption{}))

	require.Len(t, pub.messages, 1)
	assert.True(t, pub.messages[0].Success)
	assert.Equal(t, models.KindDeposit, pub.messages[0].Kind)
	assert.Equal(t, 1, inv.calls)
}

func TestSyncIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	syncer, _, _ := newFixtureSyncer(t, db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		results, err := syncer.SyncTypes(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, results, 5)
		for kind, ok := range results {
			assert.True(t, ok, kind)
		}
	}

	assert.Equal(t, int64(5), count(t, db, &models.FinancialProduct{}))
	assert.Equal(t, int64(4), count(t, db, &models.RequirementOption{}))
	assert.Equal(t, int64(1), count(t, db, &models.MortgageLoanOption{}))
	assert.Equal(t, int64(1), count(t, db, &models.CreditLoanOption{}))
	assert.Equal(t, int64(1), count(t, db, &models.LendingRateOption{}))
	assert.Equal(t, int64(3), count(t, db, &models.LoanProduct{}))
	assert.Equal(t, int64(5), count(t, db, &models.LoanJoinWay{}))
	assert.Equal(t, int64(4), count(t, db, &models.DepositJoinWay{}))

	var saving models.SavingProduct
	require.NoError(t, db.First(&saving, "product_id = ?", "KB0001S").Error)
	assert.Equal(t, "F", saving.RsrvType)
	assert.Equal(t, 4.5, saving.IntrRate2)

	var rent models.FinancialProduct
	require.NoError(t, db.First(&rent, "fin_prdt_cd = ?", "SH0001R").Error)
	require.NotNil(t, rent.LoanType)
	assert.Equal(t, models.LoanTypeRent, *rent.LoanType)

	var mortgage models.MortgageLoanOption
	require.NoError(t, db.First(&mortgage).Error)
	assert.Equal(t, 3.91, mortgage.LendRateMin)
	assert.Nil(t, mortgage.LendRateAvg)
}

func TestSyncUpdatesExistingRates(t *testing.T) {
	db := testutil.NewTestDB(t)
	syncer := finlife.NewSyncer(zap.NewNop(), db, failingFetcher{}, nil, nil, "test")
	ctx := context.Background()

	batch := &finlife.Batch{
		Base: []finlife.BaseItem{{FinPrdtCd: "X1", KorCoNm: "하나은행", FinPrdtNm: "하나예금", JoinWay: "인터넷"}},
		Options: []finlife.OptionItem{
			{FinPrdtCd: "X1", IntrRateType: "S", SaveTrm: num(12), IntrRate: num(3.0), IntrRate2: num(3.1)},
		},
	}
	_, err := syncer.Apply(ctx, models.KindDeposit, batch)
	require.NoError(t, err)

	batch.Base[0].FinPrdtNm = "하나예금 플러스"
	batch.Options[0].IntrRate2 = num(3.6)
	_, err = syncer.Apply(ctx, models.KindDeposit, batch)
	require.NoError(t, err)

	var product models.FinancialProduct
	require.NoError(t, db.First(&product, "fin_prdt_cd = ?", "X1").Error)
	assert.Equal(t, "하나예금 플러스", product.FinPrdtNm)

	var options []models.RequirementOption
	require.NoError(t, db.Find(&options).Error)
	require.Len(t, options, 1)
	assert.Equal(t, 3.6, options[0].IntrRate2)
}

func TestSyncFailure(t *testing.T) {
	db := testutil.NewTestDB(t)
	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	syncer := finlife.NewSyncer(zap.NewNop(), db, failingFetcher{}, pub, inv, "test")
	ctx := context.Background()

	_, err := syncer.Sync(ctx, models.KindCredit)
	require.Error(t, err)
	require.Len(t, pub.messages, 1)
	assert.False(t, pub.messages[0].Success)
	require.NotNil(t, pub.messages[0].Error)
	assert.Equal(t, 0, inv.calls)

	all := syncer.SyncAll(ctx)
	assert.False(t, all.DepositProducts)
	assert.False(t, all.RentHouseLoans)
}

func TestSyncTypesRejectsUnknown(t *testing.T) {
	db := testutil.NewTestDB(t)
	syncer, _, _ := newFixtureSyncer(t, db)

	_, err := syncer.SyncTypes(context.Background(), []string{"deposit", "bond", "stock"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
	assert.Equal(t, "Invalid product type(s): bond, stock. Valid types are: deposit, saving, mortgage, credit, rent", err.Error())
	assert.Equal(t, int64(0), count(t, db, &models.FinancialProduct{}))
}

func TestLoadFixtures(t *testing.T) {
	db := testutil.NewTestDB(t)
	syncer := finlife.NewSyncer(zap.NewNop(), db, failingFetcher{}, nil, nil, "test")

	reports, err := syncer.LoadFixtures(context.Background(), fixturesPath)
	require.NoError(t, err)
	assert.Len(t, reports, 5)
	assert.Equal(t, 1, reports[models.KindSaving].Products)
	assert.Equal(t, 2, reports[models.KindSaving].Options)

	_, err = syncer.LoadFixtures(context.Background(), "testdata/missing.yaml")
	assert.Error(t, err)
}

func num(v float64) finlife.Number {
	return finlife.Number{Value: &v}
}

func TestSyncRecordsMeterInstruments(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	db := testutil.NewTestDB(t)
	syncer, _, _ := newFixtureSyncer(t, db)
	_, err := syncer.Sync(ctx, models.KindDeposit)
	require.NoError(t, err)

	broken := finlife.NewSyncer(zap.NewNop(), db, failingFetcher{}, nil, nil, "test")
	_, err = broken.Sync(ctx, models.KindSaving)
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m
		}
	}
	require.Contains(t, found, "finmate.product_sync.runs")
	assert.Contains(t, found, "finmate.product_sync.items")
	assert.Contains(t, found, "finmate.product_sync.duration")

	runs, ok := found["finmate.product_sync.runs"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	results := map[string]string{}
	for _, dp := range runs.DataPoints {
		kind, _ := dp.Attributes.Value("kind")
		result, _ := dp.Attributes.Value("result")
		results[kind.AsString()] = result.AsString()
	}
	assert.Equal(t, "success", results[models.KindDeposit])
	assert.Equal(t, "failure", results[models.KindSaving])
}
