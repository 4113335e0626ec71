package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"complaintmail/delivery"
	"complaintmail/directory"
	"complaintmail/events"
	"complaintmail/health"
	"complaintmail/internal/config"
	"complaintmail/internal/dkim"
	"complaintmail/internal/logging"
	"complaintmail/notify"
	"complaintmail/queue"
	"complaintmail/storage"
	"complaintmail/tlsconfig"
)

const (
	shutdownTimeout = 5 * time.Second
	drainTimeout    = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "complaintmail: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	closeLog, err := logging.Init(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, closeDir, err := buildDirectory(ctx, cfg.Directory)
	if err != nil {
		return err
	}
	defer closeDir()

	signer, err := dkim.New(cfg.DKIM)
	if err != nil {
		return err
	}
	tlsConf, err := tlsconfig.LoadClientConfig(cfg.SMTP.Host, cfg.SMTP.CAFile)
	if err != nil {
		return err
	}

	mailer := delivery.NewMailer(cfg.SMTP,
		delivery.WithTLS(tlsConf),
		delivery.WithSigner(signer),
		delivery.WithSpool(storage.NewSpool(cfg.SpoolDir)),
		delivery.WithLogger(logging.Component("delivery")),
	)
	dispatcher := queue.NewDispatcher(mailer,
		queue.WithInterDelay(cfg.InterDelay),
		queue.WithLogger(logging.Component("queue")),
	)
	notifier := notify.New(dispatcher, dir, logging.Component("notify"))

	mux := http.NewServeMux()
	health.Register(mux, dispatcher)
	events.Register(mux, notifier, logging.Component("events"))

	srv, ln, err := health.StartHealthServer(cfg.HTTPAddr, mux)
	if err != nil {
		return err
	}
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("mode", cfg.SMTP.Mode).
		Dur("inter_delay", cfg.InterDelay).
		Str("dkim_selector", signer.Selector()).
		Str("dkim_domain", signer.Domain()).
		Msg("notification mailer started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn().Err(err).Msg("http shutdown")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := dispatcher.Wait(drainCtx); err != nil {
		log.Warn().Int("pending", dispatcher.Status().Pending).Msg("exiting with undelivered notifications")
	}
	return nil
}

// buildDirectory picks the SQL directory when a driver is configured and the
// static ADMIN_EMAILS list otherwise.
func buildDirectory(ctx context.Context, cfg config.Directory) (directory.Directory, func(), error) {
	log := logging.Component("directory")
	if cfg.Driver == "" {
		if len(cfg.Static) == 0 {
			log.Warn().Msg("no admin recipients configured; admin notifications are disabled")
		}
		return directory.NewStatic(cfg.Static, log), func() {}, nil
	}

	db, err := directory.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	dir := directory.NewSQL(db, log)
	if err := dir.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return dir, func() { _ = db.Close() }, nil
}
