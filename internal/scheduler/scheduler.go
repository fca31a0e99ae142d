// Package scheduler runs the periodic product sync.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/finmate/finmate/internal/finlife"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Syncer is the part of the finlife syncer the scheduler drives
type Syncer interface {
	SyncAll(ctx context.Context) *finlife.AllResult
}

// Scheduler triggers a full sync on a cron schedule
type Scheduler struct {
	logger  *zap.Logger
	cron    *cron.Cron
	syncer  Syncer
	timeout time.Duration
	entry   cron.EntryID
}

// New parses spec (standard five-field cron syntax or a descriptor such as
// "@daily") and returns a stopped scheduler
func New(logger *zap.Logger, spec string, syncer Syncer, timeout time.Duration) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	cl := cronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		logger:  logger,
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		syncer:  syncer,
		timeout: timeout,
	}

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start starts the cron loop
func (s *Scheduler) Start() error {
	s.cron.Start()
	s.logger.Info("Sync scheduler started", zap.Time("next_run", s.Next()))
	return nil
}

// Stop stops the loop and waits for a running sync to finish
func (s *Scheduler) Stop() error {
	<-s.cron.Stop().Done()
	s.logger.Info("Sync scheduler stopped")
	return nil
}

// Next returns the next scheduled run
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	result := s.syncer.SyncAll(ctx)
	s.logger.Info("Scheduled sync finished",
		zap.Bool("deposit_products", result.DepositProducts),
		zap.Bool("saving_products", result.SavingProducts),
		zap.Bool("mortgage_loans", result.MortgageLoans),
		zap.Bool("credit_loans", result.CreditLoans),
		zap.Bool("rent_house_loans", result.RentHouseLoans),
		zap.Duration("elapsed", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
