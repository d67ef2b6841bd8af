// Command rpcd serves the demo JSON-RPC methods over raw HTTP/1.x and,
// when RPCD_ADMIN_ADDR is set, a health and stats API.
//
// Settings come from RPCD_* environment variables and an optional .env file:
//
//	rpcd -env /etc/rpcd.env
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mnehpets/onerpc/admin"
	"github.com/mnehpets/onerpc/config"
	"github.com/mnehpets/onerpc/jsonrpc"
	"github.com/mnehpets/onerpc/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env", ".env", "`path` of a .env file; skipped if missing")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *envFile); err != nil {
		logrus.WithError(err).Fatal("rpcd failed")
	}
}

func newRegistry(log logrus.FieldLogger) *jsonrpc.Registry {
	reg := jsonrpc.NewRegistry()
	reg.Logger = log
	reg.Register("", &demoService{})
	return reg
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log := cfg.Logger()

	opts := append(cfg.ServerOptions(), server.WithLogger(log))
	srv := server.New(newRegistry(log), opts...)
	task, err := srv.Start(cfg.Addr)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"workers":        cfg.Workers,
		"read_timeout":   cfg.ReadTimeout,
		"framing":        cfg.Framing.String(),
		"max_body_bytes": cfg.MaxBodyBytes,
	}).Info("rpcd started")

	var adminSrv *http.Server
	if cfg.AdminAddr != "" {
		adminSrv = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           admin.NewRouter(srv, admin.WithLogger(log)),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.WithField("addr", cfg.AdminAddr).Info("admin api listening")
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("admin api stopped")
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("signal received, shutting down")
	case <-task.Done():
		return task.Wait()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("admin api shutdown failed")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := task.Wait(); err != nil {
		return err
	}
	log.Info("rpcd stopped")
	return nil
}
