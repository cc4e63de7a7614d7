package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/sdnlb/vip-switch/internal/config"
	"github.com/sdnlb/vip-switch/internal/handler"
	"github.com/sdnlb/vip-switch/internal/middleware"
	"github.com/sdnlb/vip-switch/internal/openflow"
	"github.com/sdnlb/vip-switch/internal/service"
	"github.com/sdnlb/vip-switch/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to config file (or set VS_CONFIG_FILE)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	backends, err := cfg.ToBackends()
	if err != nil {
		log.WithError(err).Fatal("Failed to build backend pool")
	}

	log.WithFields(map[string]interface{}{
		"virtual_ip": cfg.VirtualIP,
		"backends":   len(backends),
		"listen":     cfg.Controller.Listen,
	}).Info("Starting vip-switch controller")

	pool, err := service.NewServerPool(backends)
	if err != nil {
		log.WithError(err).Fatal("Failed to create server pool")
	}
	registry := service.NewClientRegistry(pool)
	controller := service.NewController(
		cfg.VirtualAddress(), pool, registry, cfg.PortMap, cfg.RateLimit, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var adminSrv *http.Server
	if cfg.Admin.Enabled {
		router := mux.NewRouter()
		admin := handler.NewAdminHandler(controller, log)
		admin.RegisterRoutes(router)

		var h http.Handler = router
		if auth := middleware.NewJWTAuth(cfg.Admin.JWTSecret, log); auth != nil {
			h = auth.Middleware(router)
		}

		adminSrv = &http.Server{
			Addr:         cfg.Admin.Listen,
			Handler:      h,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.WithField("listen", cfg.Admin.Listen).Info("Admin API listening")
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Admin API failed")
			}
		}()
	}

	listener := openflow.NewListener(cfg.Controller.Listen, cfg.Controller.EchoInterval(), controller, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- listener.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("Switch listener failed")
		}
	}

	cancel()

	if adminSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Admin API shutdown failed")
		}
	}

	log.Info("Controller stopped")
}
