package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"rent_search/internal/adapters/observability"
	"rent_search/internal/adapters/rakumachi"
	smtpad "rent_search/internal/adapters/smtp"
	"rent_search/internal/app"
	"rent_search/internal/domain"
	"rent_search/internal/shared"
	mysqlrepo "rent_search/internal/storage/mysql"
)

// One invocation is one scrape run. The external scheduler (cron) owns
// run-level retry: exit 0 means the run completed, even with isolated
// errors; exit 1 means it could not start at all.
func main() {
	os.Exit(run())
}

func run() int {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Error().Err(err).Msg("sql.Open failed")
		return 1
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("db.Ping failed")
		return 1
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	fetcher := rakumachi.NewClient(rakumachi.RetryPolicy{
		MaxRetries: cfg.FetchMaxRetries,
		Backoff:    cfg.FetchBackoff,
	}, cfg.FetchRPS)

	var notifier domain.Notifier
	if n := smtpad.NewNotifier(cfg.SMTPAddr, cfg.NotifyFrom, cfg.NotifyPass, cfg.NotifyTo); n.Configured() {
		notifier = n
	} else {
		log.Warn().Msg("NOTIFY_* not configured, failure summaries go to the log")
		notifier = smtpad.LogNotifier{Log: log.Logger}
	}

	svc := app.NewRunService(
		fetcher,
		rakumachi.Extract,
		repo,
		notifier,
		cfg.PageURLs(),
		cfg.FetchWorkers,
		cfg.NotifyErrMax,
		log.Logger,
	)

	res, err := svc.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("run aborted")
		return 1
	}
	if res.Failed() {
		log.Warn().Int("errors", len(res.Errors)).Msg("run completed with errors")
	}
	return 0
}
