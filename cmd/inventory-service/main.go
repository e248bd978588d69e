package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stockflow/stockflow-backend/internal/inventory/consumers"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/handler"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/internal/inventory/unitid"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Dead-lettered messages from any of our queues land in dlq.inventory-service
	if err := rmq.DeclareDeadLetterQueue("inventory-service"); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	// Initialize event publisher
	publisher, err := events.NewInventoryEventPublisher(rmq, log.WithComponent("events"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)
	userCacheRepo := repository.NewUserCacheRepository(db)

	// Initialize service
	inventoryService := service.NewInventoryService(
		productRepo, unitRepo, categoryRepo, warehouseRepo,
		unitid.NewGenerator(), publisher, log.WithComponent("inventory"), cfg.Inventory.QRCodeSize,
	)

	// Initialize handlers
	productHandler := handler.NewProductHandler(inventoryService, log, cfg.Inventory.UnitSampleLimit)
	unitHandler := handler.NewUnitHandler(inventoryService, log, cfg.Inventory.UnitSampleLimit)
	scanHandler := handler.NewScanHandler(inventoryService, log)

	// Start user event consumer
	userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log.WithComponent("user-consumer"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rmq.MonitorConnection(ctx)

	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Email", "X-User-Name"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.ActorMiddleware) // Extract acting user from gateway headers

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Product routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.Put("/{id}", productHandler.Update)
			r.Delete("/{id}", productHandler.Delete)
			r.Get("/{id}/units", unitHandler.ListByProduct)
			r.Post("/{id}/units", unitHandler.CreateBatch)
		})

		// Unit routes (addressed by human-readable unit id)
		r.Route("/units", func(r chi.Router) {
			r.Get("/{unitId}", unitHandler.Get)
			r.Get("/{unitId}/qrcode", unitHandler.QRCode)
			r.Patch("/{unitId}/status", unitHandler.UpdateStatus)
			r.Put("/{unitId}/notes", unitHandler.UpdateNotes)
			r.Delete("/{unitId}", unitHandler.Delete)
		})

		// Scan resolution
		r.Get("/scan", scanHandler.Resolve)

		// Lookups
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", productHandler.ListCategories)
			r.Post("/", productHandler.CreateCategory)
		})
		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", productHandler.ListWarehouses)
			r.Post("/", productHandler.CreateWarehouse)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
