package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudsync.org/internal/config"
	"cloudsync.org/internal/health"
	"cloudsync.org/internal/httpapi"
	"cloudsync.org/internal/obs"
	"cloudsync.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// A missing or unreachable database never aborts startup; the monitor
	// reports Degraded until the store comes up.
	var (
		store  *pg.Store
		pinger health.Pinger
	)
	if cfg.DatabaseURL != "" {
		store, err = pg.Open(cfg.DatabaseURL,
			pg.WithGroupDeletePolicy(pg.GroupDeletePolicy(cfg.GroupDeletePolicy)))
		if err != nil {
			log.Printf("open store: %v", health.MaskSecrets(err.Error()))
		}
	}
	if store != nil {
		pinger = store
	} else {
		pinger = health.PingerFunc(func(ctx context.Context) error {
			return errors.New("store not configured")
		})
	}

	monitor := health.NewMonitor(pinger, cfg.ConnectTimeout, health.WithCheckHook(func(s health.Snapshot) {
		obs.SetDirectoryUp(s.Status == health.StatusHealthy)
	}))

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go monitor.Run(monitorCtx, cfg.HealthInterval)

	probe := httpapi.ReadyProbe{}
	if store != nil {
		probe.DB = store.DB()
	}
	api := httpapi.New(monitor, probe, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting cloudsync-directory %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	stopMonitor()
	// The store closes only after in-flight requests have drained.
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}
