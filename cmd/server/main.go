// Command server runs a live shuttle simulation behind an HTTP API.
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

	"github.com/cxd309/rgv-engine/internal/api"
	"github.com/cxd309/rgv-engine/internal/config"
	"github.com/cxd309/rgv-engine/internal/engine"
)

func main() {
	configPath := flag.String("config", "", "layout file (yaml or json); built-in layout when empty")
	level := flag.String("log-level", "info", "log level")
	jsonLogs := flag.Bool("log-json", false, "log as JSON")
	autostart := flag.Duration("autostart", 0, "start ticking at this interval on launch (0 = paused)")
	flag.Parse()

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(*level); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithError(err).Warn("unknown log level, using info")
	}
	if *jsonLogs {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load config")
		}
		cfg = loaded
	}

	session, err := engine.NewSession(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *autostart > 0 {
		if err := session.Start(ctx, *autostart); err != nil {
			log.WithError(err).Fatal("failed to start session")
		}
	}

	srv := &http.Server{
		Addr:              ":" + getPort(),
		Handler:           api.New(ctx, session, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", srv.Addr).Info("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server stopped")
	}
}

func getPort() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "4000"
}
