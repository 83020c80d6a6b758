package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	emailPkg "horario/internal/adapters/email"
	web "horario/internal/adapters/http"
	"horario/internal/adapters/http/perf"
	"horario/internal/adapters/storage"
	accountStore "horario/internal/adapters/storage/account"
	auditStore "horario/internal/adapters/storage/audit"
	outboxStore "horario/internal/adapters/storage/outbox"
	scheduleStore "horario/internal/adapters/storage/schedule"
	"horario/internal/application/draft"
	"horario/internal/application/orchestrators"
	"horario/internal/config"
	"horario/internal/domain/schedule"
	"horario/internal/logging"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "horario.yaml", "path to the YAML config file; written with defaults if missing")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server_exit", "error", err.Error())
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// WAL, busy timeout and foreign keys on every pooled connection
	dsn := cfg.DatabasePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.MigrateDB(db, cfg.DatabasePath); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery)

	accounts := accountStore.NewSQLiteStore(timedDB)
	audits := auditStore.NewSQLiteStore(timedDB)

	machine := draft.New(scheduleStore.NewSQLiteStore(timedDB), draft.Options{Cooldown: cfg.PublishCooldown})
	if err := machine.Load(context.Background()); err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	if err := orchestrators.ExecuteSeedAdmin(context.Background(),
		orchestrators.AccountDeps{Store: accounts, Audit: audits},
		cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	var sender emailPkg.Sender
	if cfg.Notify.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.Notify.ResendKey, cfg.Notify.From)
		slog.Info("email_sender", "provider", "resend", "recipients", len(cfg.Notify.Recipients))
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() && len(cfg.Notify.Recipients) > 0 {
			slog.Warn("email_sender", "provider", "noop", "reason", "notify.resend_key is not set; publish notifications are disabled")
		}
	}

	outbox := outboxStore.NewSQLiteStore(timedDB)

	if cfg.WeekRolloverCron != "" {
		scheduler, err := orchestrators.NewRolloverScheduler(cfg.WeekRolloverCron, orchestrators.RolloverDeps{
			Draft:    machine,
			Audit:    audits,
			Location: cfg.Location(),
		})
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	csrfKey, err := cfg.CSRFKeyBytes()
	if err != nil {
		return err
	}
	if csrfKey == nil {
		// Sessions are in memory, so a per-process key loses nothing on restart.
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			return fmt.Errorf("generate csrf key: %w", err)
		}
		slog.Warn("csrf_key_generated", "reason", "csrf_key is not configured")
	}

	mux := web.NewMux(web.Deps{
		Draft:            machine,
		Accounts:         accounts,
		Audit:            audits,
		Collector:        collector,
		Pinger:           timedDB,
		Sender:           sender,
		NotifyRecipients: cfg.Notify.Recipients,
		NotifyFrom:       cfg.Notify.From,
		Outbox:           outbox,
		Location:         cfg.Location(),
		Palette:          schedule.NewPalette(nil),
	}, web.Options{
		CSRFKey:            csrfKey,
		SecureCookies:      cfg.IsProduction(),
		RateLimitPerSecond: 10,
		SlowRequest:        cfg.SlowRequest,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerDone := orchestrators.StartOutboxWorker(ctx,
		orchestrators.NewOutboxProcessor(outbox, sender, orchestrators.OutboxOptions{}), time.Minute)
	defer func() {
		stop()
		<-workerDone
	}()

	// Request contexts derive from ctx so open status streams end on shutdown.
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_start", "version", version, "addr", cfg.Listen, "env", cfg.Env, "schema", storage.LatestSchemaVersion())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
