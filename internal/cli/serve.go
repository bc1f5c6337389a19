package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/walletnet/walletd/internal/api"
	"github.com/walletnet/walletd/internal/app/ledger"
	"github.com/walletnet/walletd/internal/daemon"
	"github.com/walletnet/walletd/internal/domain"
	"github.com/walletnet/walletd/internal/infra/notify"
	"github.com/walletnet/walletd/internal/infra/sqlite"
	"github.com/walletnet/walletd/internal/infra/token"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("json-log", false, "Emit logs as JSON instead of text")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wallet HTTP server",
	Long: `Start the wallet service: open the database, mount the HTTP API, and run
the session expiry sweeper until interrupted.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath(cmd))
	if err != nil {
		return err
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if jsonLog, _ := cmd.Flags().GetBool("json-log"); jsonLog {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	log := slog.New(handler)

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("store opened", "path", cfg.Store.Path)

	var notifier domain.Notifier
	if cfg.Mail.Enabled {
		notifier = notify.NewMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.From)
		log.Info("mail delivery enabled", "host", cfg.Mail.Host, "from", cfg.Mail.From)
	} else {
		notifier = notify.NewLogNotifier(log)
		log.Warn("mail delivery disabled; confirmation codes go to the log")
	}

	svc := ledger.New(store, token.NewIssuer(), notifier, ledger.SystemClock{}, cfg.Session.TTL.Duration, log)

	server := api.NewServer(svc, cfg.API.APIKey, log)
	if cfg.API.Metrics {
		server.EnableMetrics()
	}
	if cfg.API.APIKey == "" {
		log.Warn("no api_key configured; the access gate is open")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go svc.RunSweeper(ctx, cfg.Session.SweepInterval.Duration)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("wallet API listening", "addr", cfg.Addr())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
