package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/practice-code/checkout-reconciler/internal/orders"
	"github.com/practice-code/checkout-reconciler/internal/retention"
	"github.com/practice-code/checkout-reconciler/internal/transactions"
	"github.com/practice-code/checkout-reconciler/internal/webhooks"
	"github.com/practice-code/checkout-reconciler/pkg/config"
	"github.com/practice-code/checkout-reconciler/pkg/db"
	"github.com/practice-code/checkout-reconciler/pkg/logger"
)

const dateLayout = "2006-01-02"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "webhooks-clean"})

	_ = godotenv.Load()

	date := flag.String("date", "", "delete processed records received on this day (YYYY-MM-DD)")
	startDate := flag.String("start-date", "", "start of the deletion range, inclusive (YYYY-MM-DD)")
	endDate := flag.String("end-date", "", "end of the deletion range, inclusive (YYYY-MM-DD)")
	verbose := flag.Bool("v", false, "info logging")
	debug := flag.Bool("vv", false, "debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	level := logger.ParseLevel(cfg.App.LogLevel)
	if *verbose {
		level = logger.ParseLevel("info")
	}
	if *debug {
		level = logger.ParseLevel("debug")
	}
	logg = logger.New(logger.Options{
		ServiceName: "webhooks-clean",
		Level:       level,
		WarnStack:   cfg.App.LogWarnStack,
	})

	opts, err := parseRange(*date, *startDate, *endDate)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sweeper, err := retention.NewSweeper(retention.SweeperParams{
		Webhooks:  webhooks.NewRepository(dbClient.DB()),
		Txns:      transactions.NewRepository(dbClient.DB()),
		Orders:    orders.NewRepository(dbClient.DB()),
		Gateway:   cfg.Gateway,
		Retention: cfg.Retention,
		Logg:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create retention sweeper", err)
		os.Exit(1)
	}

	deleted, err := sweeper.CleanRange(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clean failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("deleted %d webhook record(s)\n", deleted)
}

func parseRange(date, startDate, endDate string) (retention.RangeOptions, error) {
	var opts retention.RangeOptions

	parse := func(flagName, value string) (*time.Time, error) {
		if value == "" {
			return nil, nil
		}
		t, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid -%s value %q, expected YYYY-MM-DD", flagName, value)
		}
		return &t, nil
	}

	var err error
	if opts.Date, err = parse("date", date); err != nil {
		return opts, err
	}
	if opts.StartDate, err = parse("start-date", startDate); err != nil {
		return opts, err
	}
	if opts.EndDate, err = parse("end-date", endDate); err != nil {
		return opts, err
	}
	return opts, nil
}
