package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/ezelectronics/backend/internal/cart"
	"github.com/ezelectronics/backend/internal/catalog"
	"github.com/ezelectronics/backend/internal/config"
	"github.com/ezelectronics/backend/internal/events"
	"github.com/ezelectronics/backend/internal/keylock"
	"github.com/ezelectronics/backend/internal/logging"
	"github.com/ezelectronics/backend/internal/review"
	"github.com/ezelectronics/backend/internal/search"
	"github.com/ezelectronics/backend/pkg/db"
)

// App wires the stores and workflows together. The REST API layer that
// authenticates callers and validates payloads lives outside this module
// and consumes these services directly.
type App struct {
	DB      *gorm.DB
	Catalog *catalog.CatalogService
	Cart    *cart.CartService
	Review  *review.ReviewService
}

func (a *App) health(c echo.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down"})
	}
	if err := sqlDB.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "up"})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)
	ctx := logging.IntoContext(context.Background(), logger)

	database, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		log.Fatalf("database migrate error: %v", err)
	}

	producer := events.NewProducer(cfg.KafkaBrokers)

	var index *search.Index
	if cfg.ES_URL != "" {
		esClient, err := search.NewClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		index = search.NewIndex(esClient, cfg.ESIndex)
	}

	cartLocks := keylock.New()
	stockLocks := keylock.New()

	app := &App{
		DB:      database,
		Catalog: catalog.NewCatalogService(&catalog.GormRepo{DB: database}, stockLocks, producer, index),
		Cart:    cart.NewCartService(&cart.GormRepo{DB: database}, cartLocks, stockLocks, producer),
		Review:  review.NewReviewService(&review.GormRepo{DB: database}, producer),
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	e.GET("/healthz", app.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	logger.Info("server_started", "port", cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	logger.Info("shutdown_complete")
}
