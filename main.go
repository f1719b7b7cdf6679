package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tabancura/frontdesk/catalog"
	"github.com/tabancura/frontdesk/config"
	"github.com/tabancura/frontdesk/data"
	"github.com/tabancura/frontdesk/handlers"
	"github.com/tabancura/frontdesk/health"
	"github.com/tabancura/frontdesk/logging"
	"github.com/tabancura/frontdesk/ordersapi"
	"github.com/tabancura/frontdesk/render"
	"github.com/tabancura/frontdesk/scheduler"
	"github.com/tabancura/frontdesk/server"
	"github.com/tabancura/frontdesk/session"
	"github.com/tabancura/frontdesk/validation"
)

// loadEnv reads .env from the working directory, falling back to the
// executable's directory so the service can be started from anywhere.
func loadEnv() error {
	if err := godotenv.Load(); err == nil {
		return nil
	}

	ex, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	exPath := filepath.Dir(ex)
	if err := os.Chdir(exPath); err != nil {
		return fmt.Errorf("failed to change directory: %w", err)
	}
	// A missing .env is fine; defaults and the process environment apply.
	_ = godotenv.Load()
	return nil
}

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.InitLogger(logging.Options{
		Dir:            "logs",
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer logging.Close()

	logging.Info("Starting front desk",
		"env", cfg.Env.String(),
		"orders_api", cfg.OrdersAPIURL,
		"catalog_file", cfg.CatalogFile)

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	sessions := session.NewStore(cfg.SessionTTL)

	sched := scheduler.NewScheduler(dataContainer, catalog.NewFileLoader(cfg.CatalogFile), sessions, cfg.CatalogRefresh)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	orders := ordersapi.NewClient(cfg.OrdersAPIURL, cfg.LookupTimeout, cfg.PushTimeout)
	renderer := render.NewRenderer(render.Clinic{
		Name:    cfg.Clinic.Name,
		Address: cfg.Clinic.Address,
		Phone:   cfg.Clinic.Phone,
		Web:     cfg.Clinic.Web,
	})
	desk := session.NewDesk(dataContainer, orders, renderer, cfg.PushTimeout)

	healthChecker := health.NewHealthChecker(dataContainer, sessions, cfg.CatalogRefresh)
	handler := handlers.NewHTTPHandler(dataContainer, validation.NewDataValidator(), healthChecker, sched, sessions, desk)
	srv := server.NewServer(cfg, handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown failed", "error", err)
	}
	sched.Stop()
	// Let queued ledger and audit pushes reach the order service.
	desk.Close()

	logging.Info("Front desk stopped")
}
