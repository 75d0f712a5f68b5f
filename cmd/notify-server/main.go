// Package main provides the notify server executable: HTTP API, delivery
// worker, digest scheduler and one-shot commands.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"github.com/urfave/cli/v2"

	"github.com/coregx/notify"
	"github.com/coregx/notify/adapters/relica"
	"github.com/coregx/notify/cmd/notify-server/internal/api"
	"github.com/coregx/notify/cmd/notify-server/internal/config"
	"github.com/coregx/notify/mail"
	"github.com/coregx/notify/search"
)

func main() {
	app := cli.App{
		Name:    "notify-server",
		Usage:   "civic data digest notifications",
		Version: "0.1.0",
	}

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "enable debug logging",
			EnvVars: []string{"NOTIFY_DEBUG"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (text or json)",
			EnvVars: []string{"NOTIFY_LOG_FORMAT"},
			Value:   "text",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:  "serve",
			Usage: "run the HTTP API, the delivery worker and the digest scheduler",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:    "schedule",
					Usage:   "interval between digest runs (0 disables the scheduler)",
					EnvVars: []string{"DIGEST_SCHEDULE"},
					Value:   15 * time.Minute,
				},
			},
			Action: Serve,
		},
		{
			Name:  "send",
			Usage: "build and queue digests once",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  "users",
					Usage: "usernames to notify (default: every subscribed user)",
				},
				&cli.IntFlag{
					Name:  "minutes",
					Usage: "look-back window in minutes for subscriptions without a watermark",
					Value: 15,
				},
				&cli.BoolFlag{
					Name:  "deliver",
					Usage: "process the delivery queue once after queueing",
				},
			},
			Action: Send,
		},
		{
			Name:   "migrate",
			Usage:  "create or update the notify tables",
			Action: Migrate,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger(cctx *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if cctx.Bool("debug") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cctx.String("log-format") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// services is the wired object graph shared by the commands.
type services struct {
	db            *sql.DB
	repos         *relica.Repositories
	subscriptions *notify.SubscriptionManager
	accounts      *notify.AccountService
	runner        *notify.Runner
	worker        *notify.DeliveryWorker
}

func (s *services) Close(logger *slog.Logger) {
	if err := s.db.Close(); err != nil {
		logger.Error("failed to close database", "err", err)
	}
}

func newMailProvider(cfg config.MailConfig, logger *slog.Logger) (mail.Provider, error) {
	switch cfg.Provider {
	case "brevo":
		return mail.NewBrevoProvider(cfg.BrevoAPIKey, cfg.FromAddr, cfg.FromName, logger), nil
	case "mock":
		return mail.NewMockProvider(logger), nil
	default:
		return mail.NewSMTPProvider(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			FromAddr: cfg.FromAddr,
			FromName: cfg.FromName,
		}, logger)
	}
}

func buildServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established", "driver", cfg.Database.Driver, "host", cfg.Database.Host)

	repos := relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)
	nlog := notify.NewSlogLogger(logger)
	s := &services{db: db, repos: repos}

	fail := func(what string, err error) (*services, error) {
		s.Close(logger)
		return nil, fmt.Errorf("failed to create %s: %w", what, err)
	}

	provider, err := newMailProvider(cfg.Mail, logger)
	if err != nil {
		return fail("mail provider", err)
	}
	renderer, err := mail.NewRenderer(mail.Site{Name: cfg.Site.Name, BaseURL: cfg.Site.BaseURL})
	if err != nil {
		return fail("email renderer", err)
	}
	mailer := mail.NewMailer(provider, renderer, logger)

	searcher := search.New(search.Config{
		BaseURL:           cfg.Search.URL,
		Rows:              cfg.Search.Rows,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
	}, logger)
	if cfg.Search.URL == "" {
		logger.Warn("SEARCH_URL is not set, bill search subscriptions will not produce updates")
	}

	notifications := notify.NewLoggingNotificationService(nlog)

	s.subscriptions, err = notify.NewSubscriptionManager(
		notify.WithSubscriptionManagerRepositories(repos.Subscription, repos.Legislation, repos.Subscription),
		notify.WithSubscriptionManagerLogger(nlog),
		notify.WithSubscriptionManagerNotifications(notifications),
	)
	if err != nil {
		return fail("subscription manager", err)
	}

	s.accounts, err = notify.NewAccountService(
		notify.WithAccountRepositories(repos.User, repos.Profile),
		notify.WithActivationMailer(mailer),
		notify.WithAccountLogger(nlog),
	)
	if err != nil {
		return fail("account service", err)
	}

	dispatcher, err := notify.NewQueueDispatcher(
		notify.WithDispatcherRepositories(repos.Job, repos.Queue),
		notify.WithDispatcherLogger(nlog),
	)
	if err != nil {
		return fail("dispatcher", err)
	}

	assembler, err := notify.NewAssembler(
		notify.WithFinders(notify.DefaultFinders(repos.Legislation, repos.Subscription, searcher, nlog)...),
		notify.WithDispatcher(dispatcher),
		notify.WithAssemblerLogger(nlog),
	)
	if err != nil {
		return fail("assembler", err)
	}

	s.runner, err = notify.NewRunner(
		notify.WithRunnerRepositories(repos.Subscription, repos.User),
		notify.WithAssembler(assembler),
		notify.WithRunnerLogger(nlog),
		notify.WithConcurrency(cfg.Digest.Concurrency),
		notify.WithRunnerNotificationLog(repos.NotificationLog),
	)
	if err != nil {
		return fail("runner", err)
	}

	s.worker, err = notify.NewDeliveryWorker(
		notify.WithRepositories(repos.Queue, repos.Job, repos.DLQ),
		notify.WithMailer(mailer),
		notify.WithLogger(nlog),
		notify.WithBatchSize(cfg.Digest.BatchSize),
		notify.WithNotifications(notifications),
		notify.WithNotificationLog(repos.NotificationLog),
		notify.WithJobRetention(cfg.Digest.JobRetention),
	)
	if err != nil {
		return fail("delivery worker", err)
	}

	return s, nil
}

// Serve runs the HTTP API together with the delivery worker and the digest
// scheduler until SIGINT or SIGTERM.
func Serve(cctx *cli.Context) error {
	logger := newLogger(cctx)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "err", err)
		return err
	}

	ctx, cancel := context.WithCancel(cctx.Context)
	defer cancel()

	s, err := buildServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "err", err)
		return err
	}
	defer s.Close(logger)

	logger.Info("starting delivery worker", "interval", cfg.Digest.WorkerInterval, "batch_size", cfg.Digest.BatchSize)
	go s.worker.Run(ctx, cfg.Digest.WorkerInterval)

	if schedule := cctx.Duration("schedule"); schedule > 0 {
		logger.Info("starting digest scheduler", "interval", schedule, "window", cfg.Digest.Window)
		go s.runner.Schedule(ctx, schedule, notify.RunRequest{Window: cfg.Digest.Window})
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())

	echoProm := echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace: "notify",
		HistogramOptsFunc: func(opts prometheus.HistogramOpts) prometheus.HistogramOpts {
			opts.Buckets = prometheus.ExponentialBuckets(0.0005, 2, 16)
			return opts
		},
	})
	e.Use(echoProm)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api.NewAPI(s.subscriptions, s.accounts, s.runner, s.worker, cfg.Digest.Window, logger).Register(e)

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.Addr())
		if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start http server", "err", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown http server", "err", err)
	}

	logger.Info("server stopped")
	return nil
}

// Send runs one digest pass. With --deliver the queue is processed once
// afterwards instead of leaving delivery to a running server.
func Send(cctx *cli.Context) error {
	logger := newLogger(cctx)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	minutes := cctx.Int("minutes")
	if minutes <= 0 {
		return fmt.Errorf("--minutes must be positive, got %d", minutes)
	}

	s, err := buildServices(cctx.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close(logger)

	report, err := s.runner.Run(cctx.Context, notify.RunRequest{
		Usernames: cctx.StringSlice("users"),
		Window:    time.Duration(minutes) * time.Minute,
	})
	if err != nil {
		return err
	}
	logger.Info("digest run complete",
		"users", report.UsersScanned,
		"dispatched", report.Dispatched,
		"failures", report.Failures,
		"conflicts", report.Conflicts,
		"duration", report.Duration)

	if cctx.Bool("deliver") {
		s.worker.ProcessBatch(cctx.Context)
	}
	return nil
}

// Migrate applies the embedded migrations to the configured database.
func Migrate(cctx *cli.Context) error {
	logger := newLogger(cctx)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := openDB(cctx.Context, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := notify.ApplyMigrations(cctx.Context, db, cfg.Database.Driver); err != nil {
		return err
	}
	logger.Info("migrations applied", "driver", cfg.Database.Driver)
	return nil
}
