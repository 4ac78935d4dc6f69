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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-checkin/internal/api"
	"github.com/celerix-dev/celerix-checkin/internal/config"
	"github.com/celerix-dev/celerix-checkin/internal/logger"
	"github.com/celerix-dev/celerix-checkin/internal/server"
	"github.com/celerix-dev/celerix-checkin/internal/service"
	"github.com/celerix-dev/celerix-checkin/internal/vault"
)

func main() {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting check-in daemon",
		zap.String("app", cfg.AppName),
		zap.String("storage", cfg.StorageDriver),
		zap.String("timezone", cfg.Timezone),
	)

	// 2. Storage and stores
	svc, err := service.Open(cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	if _, err := svc.ListUsers(); err != nil {
		log.Fatal("failed to read users", zap.Error(err))
	}

	// 3. HTTP API
	gin.SetMode(gin.ReleaseMode)
	h := &api.Handler{
		Records:  svc.Records,
		Sessions: svc.Sessions,
		AppName:  cfg.AppName,
	}
	httpServer := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(h, api.RouterOptions{
			AllowedOrigins:    cfg.AllowedOrigins,
			ScanRatePerMinute: cfg.ScanRatePerMinute,
			Logger:            log.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http api listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 4. Scanner terminals
	var router *server.Router
	if cfg.ScannerPort != "" {
		router = server.NewRouter(svc.Records, svc.Sessions, log.Named("scanner"))
		if cfg.ScannerTLS {
			cert, err := vault.GenerateSelfSignedCert()
			if err != nil {
				log.Fatal("failed to generate TLS certificate", zap.Error(err))
			}
			router.SetCertificate(cert)
		}
		go func() {
			if err := router.Listen(cfg.ScannerPort); err != nil {
				log.Fatal("scanner server failed", zap.Error(err))
			}
		}()
	}

	// 5. Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("shutdown signal received, finalizing writes")

	if router != nil {
		router.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := svc.Close(); err != nil {
		log.Warn("storage close", zap.Error(err))
	}
	log.Info("shutdown complete")
}
