package finlife

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/messaging"
	"github.com/finmate/finmate/pkg/metrics"
	"github.com/finmate/finmate/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ValidKinds lists the kinds accepted by SyncTypes, in sync order
var ValidKinds = []string{models.KindDeposit, models.KindSaving, models.KindMortgage, models.KindCredit, models.KindRent}

var loanTypes = map[string]string{
	models.KindMortgage: models.LoanTypeMortgage,
	models.KindCredit:   models.LoanTypeCredit,
	models.KindRent:     models.LoanTypeRent,
}

// Invalidator drops derived data after the catalog changes
type Invalidator interface {
	InvalidateStatistics(ctx context.Context) error
}

// Report summarises one sync run
type Report struct {
	Kind     string        `json:"kind"`
	Products int           `json:"products"`
	Options  int           `json:"options"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// AllResult is returned by SyncAll
type AllResult struct {
	DepositProducts bool `json:"deposit_products"`
	SavingProducts  bool `json:"saving_products"`
	MortgageLoans   bool `json:"mortgage_loans"`
	CreditLoans     bool `json:"credit_loans"`
	RentHouseLoans  bool `json:"rent_house_loans"`
}

// SyncService defines product sync operations
type SyncService interface {
	Sync(ctx context.Context, kind string) (*Report, error)
	SyncAll(ctx context.Context) *AllResult
	SyncTypes(ctx context.Context, types []string) (map[string]bool, error)
	LoadFixtures(ctx context.Context, path string) (map[string]*Report, error)
}

// Syncer fetches disclosures and upserts them into the catalog
type Syncer struct {
	logger      *zap.Logger
	db          *gorm.DB
	fetcher     Fetcher
	publisher   messaging.Publisher
	invalidator Invalidator
	source      string
	telemetry   *syncInstruments
}

// NewSyncer creates a Syncer. invalidator may be nil.
func NewSyncer(logger *zap.Logger, db *gorm.DB, fetcher Fetcher, publisher messaging.Publisher, invalidator Invalidator, source string) *Syncer {
	if publisher == nil {
		publisher = messaging.NewNopPublisher(logger)
	}
	return &Syncer{
		logger:      logger,
		db:          db,
		fetcher:     fetcher,
		publisher:   publisher,
		invalidator: invalidator,
		source:      source,
		telemetry:   newSyncInstruments(logger),
	}
}

// Sync fetches and stores one product kind
func (s *Syncer) Sync(ctx context.Context, kind string) (*Report, error) {
	if _, ok := endpoints[kind]; !ok {
		return nil, apperrors.New(apperrors.ErrInvalid, "unknown product kind %q", kind)
	}
	start := time.Now()

	batch, err := s.fetcher.FetchAll(ctx, kind)
	if err != nil {
		s.finish(ctx, &Report{Kind: kind, Duration: time.Since(start)}, err)
		return nil, fmt.Errorf("failed to fetch %s products: %w", kind, err)
	}

	report, err := s.Apply(ctx, kind, batch)
	if report == nil {
		report = &Report{Kind: kind}
	}
	report.Duration = time.Since(start)
	s.finish(ctx, report, err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// SyncAll syncs every kind; a failing kind does not stop the others
func (s *Syncer) SyncAll(ctx context.Context) *AllResult {
	ok := func(kind string) bool {
		_, err := s.Sync(ctx, kind)
		return err == nil
	}
	return &AllResult{
		DepositProducts: ok(models.KindDeposit),
		SavingProducts:  ok(models.KindSaving),
		MortgageLoans:   ok(models.KindMortgage),
		CreditLoans:     ok(models.KindCredit),
		RentHouseLoans:  ok(models.KindRent),
	}
}

// SyncTypes syncs the given kinds, all of them when types is empty
func (s *Syncer) SyncTypes(ctx context.Context, types []string) (map[string]bool, error) {
	if len(types) == 0 {
		types = ValidKinds
	}
	valid := make(map[string]bool, len(ValidKinds))
	for _, k := range ValidKinds {
		valid[k] = true
	}
	invalid := make([]string, 0)
	for _, t := range types {
		if !valid[t] {
			invalid = append(invalid, t)
		}
	}
	if len(invalid) > 0 {
		return nil, apperrors.New(apperrors.ErrInvalid, "Invalid product type(s): %s. Valid types are: %s",
			strings.Join(invalid, ", "), strings.Join(ValidKinds, ", "))
	}

	results := make(map[string]bool, len(types))
	for _, t := range types {
		if _, done := results[t]; done {
			continue
		}
		_, err := s.Sync(ctx, t)
		results[t] = err == nil
	}
	return results, nil
}

func (s *Syncer) finish(ctx context.Context, report *Report, err error) {
	result := "success"
	msg := messaging.ProductSyncMessage{
		BaseMessage: messaging.NewBaseMessage(messaging.MsgProductSync, s.source),
		Kind:        report.Kind,
		Success:     err == nil,
		Products:    report.Products,
		Options:     report.Options,
		Skipped:     report.Skipped,
		DurationMs:  report.Duration.Milliseconds(),
	}
	if err != nil {
		result = "failure"
		text := err.Error()
		msg.Error = &text
		s.logger.Error("Product sync failed", zap.String("kind", report.Kind), zap.Error(err))
	} else {
		metrics.ProductSyncItems.WithLabelValues(report.Kind, "product").Add(float64(report.Products))
		metrics.ProductSyncItems.WithLabelValues(report.Kind, "option").Add(float64(report.Options))
		s.logger.Info("Product sync completed",
			zap.String("kind", report.Kind),
			zap.Int("products", report.Products),
			zap.Int("options", report.Options),
			zap.Int("skipped", report.Skipped),
			zap.Duration("duration", report.Duration))
	}
	metrics.ProductSyncRuns.WithLabelValues(report.Kind, result).Inc()
	s.telemetry.record(ctx, report, result)

	if perr := s.publisher.Publish(ctx, report.Kind, msg); perr != nil {
		s.logger.Warn("Failed to publish sync event", zap.String("kind", report.Kind), zap.Error(perr))
	}
	if err == nil && s.invalidator != nil {
		if ierr := s.invalidator.InvalidateStatistics(ctx); ierr != nil {
			s.logger.Warn("Failed to invalidate statistics", zap.Error(ierr))
		}
	}
}

// Apply upserts a batch in one transaction
func (s *Syncer) Apply(ctx context.Context, kind string, batch *Batch) (*Report, error) {
	report := &Report{Kind: kind}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range batch.Base {
			if err := s.upsertBase(tx, kind, &batch.Base[i]); err != nil {
				return err
			}
			report.Products++
		}

		known := make(map[string]bool)
		for _, item := range batch.Options {
			if _, checked := known[item.FinPrdtCd]; !checked {
				var count int64
				if err := tx.Model(&models.FinancialProduct{}).Where("fin_prdt_cd = ?", item.FinPrdtCd).Count(&count).Error; err != nil {
					return err
				}
				known[item.FinPrdtCd] = count > 0
			}
			if !known[item.FinPrdtCd] {
				s.logger.Warn("Product not found for option", zap.String("kind", kind), zap.String("product", item.FinPrdtCd))
				report.Skipped++
				continue
			}
			if err := upsertOption(tx, kind, &item); err != nil {
				return err
			}
			report.Options++
		}

		if kind == models.KindDeposit || kind == models.KindSaving {
			return applyBestOptions(tx, kind, batch)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to store %s products: %w", kind, err)
	}
	return report, nil
}

func (s *Syncer) upsertBase(tx *gorm.DB, kind string, item *BaseItem) error {
	if strings.TrimSpace(item.FinPrdtCd) == "" {
		return errors.New("product without fin_prdt_cd")
	}

	product := models.FinancialProduct{
		FinPrdtCd:  item.FinPrdtCd,
		KorCoNm:    item.KorCoNm,
		FinPrdtNm:  item.FinPrdtNm,
		JoinWay:    item.JoinWay,
		JoinMember: item.JoinMember,
	}
	updates := []string{"kor_co_nm", "fin_prdt_nm", "join_way", "join_member", "updated_at"}
	if loanType, ok := loanTypes[kind]; ok {
		product.LoanType = &loanType
		updates = append(updates, "loan_type")
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fin_prdt_cd"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&product).Error
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", item.FinPrdtCd, err)
	}

	switch kind {
	case models.KindDeposit:
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fin_co_no", "dcls_month", "category"}),
		}).Omit(clause.Associations).Create(&models.DepositProduct{
			ProductCode: item.FinPrdtCd,
			FinCoNo:     item.FinCoNo,
			DclsMonth:   item.DclsMonth,
			Category:    models.CategoryDeposit,
		}).Error
	case models.KindSaving:
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fin_co_no", "dcls_month", "category"}),
		}).Omit(clause.Associations).Create(&models.SavingProduct{
			ProductCode: item.FinPrdtCd,
			FinCoNo:     item.FinCoNo,
			DclsMonth:   item.DclsMonth,
			Category:    models.CategorySaving,
		}).Error
	default:
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fin_co_no", "dcls_month", "loan_inci_expn", "erly_rpay_fee", "dly_rate", "loan_lmt"}),
		}).Omit(clause.Associations).Create(&models.LoanProduct{
			ProductCode:  item.FinPrdtCd,
			FinCoNo:      item.FinCoNo,
			DclsMonth:    item.DclsMonth,
			LoanInciExpn: item.LoanInciExpn,
			ErlyRpayFee:  item.ErlyRpayFee,
			DlyRate:      item.DlyRate,
			LoanLmt:      item.LoanLmt,
		}).Error
	}
	if err != nil {
		return fmt.Errorf("failed to upsert %s details for %s: %w", kind, item.FinPrdtCd, err)
	}

	for _, way := range models.SplitJoinWay(item.JoinWay) {
		if kind == models.KindDeposit || kind == models.KindSaving {
			row := models.DepositJoinWay{ProductCode: item.FinPrdtCd, JoinWay: way}
			err = tx.Where(&row).FirstOrCreate(&row).Error
		} else {
			row := models.LoanJoinWay{ProductCode: item.FinPrdtCd, JoinWay: way}
			err = tx.Where(&row).FirstOrCreate(&row).Error
		}
		if err != nil {
			return fmt.Errorf("failed to store join way for %s: %w", item.FinPrdtCd, err)
		}
	}
	return nil
}

// upsertOption finds the option row by its natural key and overwrites its
// rates, creating it when missing.
func upsertOption(tx *gorm.DB, kind string, item *OptionItem) error {
	var err error
	switch kind {
	case models.KindDeposit, models.KindSaving:
		var row models.RequirementOption
		q := tx.Where("product_id = ? AND save_trm = ? AND intr_rate_type = ?", item.FinPrdtCd, item.SaveTrm.Int(), item.IntrRateType)
		var rsrv *string
		if kind == models.KindSaving {
			r := item.RsrvType
			rsrv = &r
			q = q.Where("rsrv_type = ?", r)
		}
		err = firstOrNew(q, &row)
		if err == nil {
			row.ProductCode = item.FinPrdtCd
			row.SaveTrm = item.SaveTrm.Int()
			row.IntrRateType = item.IntrRateType
			row.RsrvType = rsrv
			row.IntrRate = item.IntrRate.Float()
			row.IntrRate2 = item.IntrRate2.Float()
			err = tx.Save(&row).Error
		}
	case models.KindMortgage:
		var row models.MortgageLoanOption
		err = firstOrNew(tx.Where("product_id = ? AND mrtg_type = ? AND rpay_type = ? AND lend_rate_type = ?",
			item.FinPrdtCd, item.MrtgType, item.RpayType, item.LendRateType), &row)
		if err == nil {
			row.ProductCode = item.FinPrdtCd
			row.MrtgType = item.MrtgType
			row.RpayType = item.RpayType
			row.LendRateType = item.LendRateType
			row.LendRateMin = item.LendRateMin.Float()
			row.LendRateMax = item.LendRateMax.Float()
			row.LendRateAvg = item.LendRateAvg.Ptr()
			err = tx.Save(&row).Error
		}
	case models.KindCredit:
		var row models.CreditLoanOption
		err = firstOrNew(tx.Where("product_id = ? AND crdt_prdt_type = ? AND crdt_lend_rate_type = ?",
			item.FinPrdtCd, item.CrdtPrdtType, item.CrdtLendRateType), &row)
		if err == nil {
			row.ProductCode = item.FinPrdtCd
			row.CrdtPrdtType = item.CrdtPrdtType
			row.CrdtLendRateType = item.CrdtLendRateType
			row.CrdtGrad1 = item.CrdtGrad1.Ptr()
			row.CrdtGrad4 = item.CrdtGrad4.Ptr()
			row.CrdtGrad5 = item.CrdtGrad5.Ptr()
			row.CrdtGrad6 = item.CrdtGrad6.Ptr()
			row.CrdtGrad10 = item.CrdtGrad10.Ptr()
			row.CrdtGrad11 = item.CrdtGrad11.Ptr()
			row.CrdtGrad12 = item.CrdtGrad12.Ptr()
			row.CrdtGrad13 = item.CrdtGrad13.Ptr()
			row.CrdtGradAvg = item.CrdtGradAvg.Ptr()
			err = tx.Save(&row).Error
		}
	case models.KindRent:
		var row models.LendingRateOption
		err = firstOrNew(tx.Where("product_id = ? AND rpay_type = ? AND lend_rate_type = ?",
			item.FinPrdtCd, item.RpayType, item.LendRateType), &row)
		if err == nil {
			row.ProductCode = item.FinPrdtCd
			row.RpayType = item.RpayType
			row.LendRateType = item.LendRateType
			row.LendRateMin = item.LendRateMin.Float()
			row.LendRateMax = item.LendRateMax.Float()
			row.LendRateAvg = item.LendRateAvg.Ptr()
			err = tx.Save(&row).Error
		}
	}
	if err != nil {
		return fmt.Errorf("failed to upsert %s option for %s: %w", kind, item.FinPrdtCd, err)
	}
	return nil
}

func firstOrNew(q *gorm.DB, dst interface{}) error {
	err := q.First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// applyBestOptions copies term and rates of each product's best option
// (highest intr_rate2, then shortest term) onto its detail row.
func applyBestOptions(tx *gorm.DB, kind string, batch *Batch) error {
	best := make(map[string]OptionItem)
	for _, item := range batch.Options {
		current, ok := best[item.FinPrdtCd]
		if !ok || item.IntrRate2.Float() > current.IntrRate2.Float() ||
			(item.IntrRate2.Float() == current.IntrRate2.Float() && item.SaveTrm.Int() < current.SaveTrm.Int()) {
			best[item.FinPrdtCd] = item
		}
	}

	codes := make([]string, 0, len(best))
	for code := range best {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var model interface{} = &models.DepositProduct{}
	if kind == models.KindSaving {
		model = &models.SavingProduct{}
	}
	for _, code := range codes {
		item := best[code]
		updates := map[string]interface{}{
			"intr_rate_type": item.IntrRateType,
			"save_trm":       item.SaveTrm.Int(),
			"intr_rate":      item.IntrRate.Float(),
			"intr_rate2":     item.IntrRate2.Float(),
		}
		if kind == models.KindSaving {
			updates["rsrv_type"] = item.RsrvType
		}
		if err := tx.Model(model).Where("product_id = ?", code).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to apply rates for %s: %w", code, err)
		}
	}
	return nil
}
