// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/playnine/internal/cache"
	"github.com/jason-s-yu/playnine/internal/config"
	"github.com/jason-s-yu/playnine/internal/handlers"
	"github.com/jason-s-yu/playnine/internal/middleware"
	"github.com/jason-s-yu/playnine/internal/session"
	"github.com/jason-s-yu/playnine/internal/store"
)

func main() {
	cfg := config.FromEnv()

	logger := logrus.New()
	if config.GetEnvBool("PLAY9_DEBUG", false) {
		logger.SetLevel(logrus.DebugLevel)
	}

	snapshots, err := store.NewSnapshotStore(cfg.DataDir, logger)
	if err != nil {
		log.Fatalf("snapshot store: %v", err)
	}

	opts := session.Options{
		IdleTurnTimeout:    cfg.TurnTimeout,
		RestartVoteTimeout: cfg.RestartVoteTimeout,
	}
	if cfg.HistorianEnabled {
		if err := cache.ConnectRedis(); err != nil {
			logger.Warnf("historian disabled: %v", err)
		} else {
			opts.PublishFn = cache.PublishTableAction
			logger.Info("historian action feed enabled")
		}
	}

	registry := session.NewRegistry(snapshots, logger, opts)
	registry.SweepInterval = cfg.TableIdleSweep
	if err := registry.RestoreAll(); err != nil {
		logger.Warnf("restore tables: %v", err)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go registry.RunSweeper(sweepCtx)

	srv := handlers.NewServer(registry, logger, cfg.StaticDir)
	mux := http.NewServeMux()
	srv.Register(mux)

	server := &http.Server{
		Handler:     middleware.LogMiddleware(logger)(mux),
		ReadTimeout: time.Second * 10,
		// No write timeout: websocket connections are long-lived.
	}

	l, err := net.Listen("tcp", fmt.Sprintf("%s:%s", cfg.Host, cfg.Port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
