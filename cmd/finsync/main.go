// Command finsync runs a one-off product catalog sync against the finlife API
// or a YAML fixture file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/internal/database"
	"github.com/finmate/finmate/internal/finlife"
	"github.com/finmate/finmate/internal/messaging"
	"github.com/finmate/finmate/pkg/logger"
	"github.com/finmate/finmate/pkg/models"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var kinds = []string{models.KindDeposit, models.KindSaving, models.KindMortgage, models.KindCredit, models.KindRent}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	flags := pflag.NewFlagSet("finsync", pflag.ContinueOnError)
	opts, err := parseOptions(flags, os.Args[1:])
	if err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
			flags.Usage()
		}
		os.Exit(2)
	}
	if err := viper.BindPFlags(flags); err != nil {
		log.Fatalf("Failed to bind flags: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel, "console")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	db, err := database.Open(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	var fetcher finlife.Fetcher
	source := "finlife"
	if opts.fixtures != "" {
		fetcher, err = finlife.NewFixtureFetcher(opts.fixtures)
		if err != nil {
			zapLogger.Fatal("Failed to read fixtures", zap.Error(err))
		}
		source = "fixtures"
	} else {
		if cfg.Finlife.APIKey == "" {
			zapLogger.Fatal("FINLIFE_API_KEY is required without --fixtures")
		}
		fetcher = finlife.NewClient(zapLogger, cfg.Finlife)
	}

	publisher := messaging.NewPublisher(cfg.Kafka, zapLogger)
	defer publisher.Close()

	syncer := finlife.NewSyncer(zapLogger, db, fetcher, publisher, nil, source)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	start := time.Now()
	failed := 0
	for _, kind := range opts.kinds {
		report, err := syncer.Sync(ctx, kind)
		if err != nil {
			failed++
			fmt.Printf("%-9s FAILED  %v\n", kind, err)
			continue
		}
		fmt.Printf("%-9s SUCCESS %d products, %d options\n", kind, report.Products, report.Options)
	}
	fmt.Printf("elapsed: %s\n", time.Since(start).Round(time.Millisecond))

	if failed > 0 {
		os.Exit(1)
	}
}

type options struct {
	kinds    []string
	fixtures string
	timeout  time.Duration
}

func parseOptions(flags *pflag.FlagSet, args []string) (*options, error) {
	syncType := flags.String("type", "all", "product type to sync: deposit|saving|mortgage|credit|rent|all")
	fixtures := flags.String("fixtures", "", "load products from a YAML fixture file instead of the API")
	timeout := flags.Duration("timeout", 10*time.Minute, "overall sync timeout")
	flags.String("config", "", "path to a config file")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if *timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", *timeout)
	}
	selected, err := selectKinds(*syncType)
	if err != nil {
		return nil, err
	}
	return &options{kinds: selected, fixtures: *fixtures, timeout: *timeout}, nil
}

func selectKinds(value string) ([]string, error) {
	if value == "all" {
		return kinds, nil
	}
	for _, kind := range kinds {
		if kind == value {
			return []string{kind}, nil
		}
	}
	return nil, fmt.Errorf("unknown product type %q", value)
}
