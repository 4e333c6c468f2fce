// Command projector-demo запускает тонкий REST-сервер поверх Repository:
// создание/переименование виджетов и чтение их текущей проекции.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/akriventsev/projector/observability"
	"github.com/akriventsev/projector/projection"
	"github.com/akriventsev/projector/projectionstore"
)

const defaultTenant = "demo"

type config struct {
	Port             string
	DatabaseURL      string
	SnapshotPageSize int64
	TracingEnabled   bool
	TracingExporter  string
}

func loadConfig() *config {
	return &config{
		Port:             getEnv("SERVER_PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SnapshotPageSize: 50,
		TracingEnabled:   getEnv("TRACING_ENABLED", "false") == "true",
		TracingExporter:  getEnv("TRACING_EXPORTER", "stdout"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	codec := projectionstore.NewJSONEventCodec(map[string]projectionstore.EventFactory{
		"widget.created":       func() projection.Event { return &widgetCreated{} },
		"widget.renamed":       func() projection.Event { return &widgetRenamed{} },
		"version.transitioned": func() projection.Event { return &versionTransitioned{} },
	})

	store, snapshots := buildStores(cfg, codec)

	tracingManager, err := observability.NewTracingManager(observability.TracingConfig{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  "projector-demo",
		Exporter:     cfg.TracingExporter,
		SamplingRate: 1.0,
	})
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	if err := tracingManager.Start(ctx); err != nil {
		log.Fatalf("failed to start tracing: %v", err)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		log.Fatalf("failed to init metrics: %v", err)
	}

	registry := projection.NewFolderRegistry()
	if err := registry.Register(widgetsDefinition()); err != nil {
		log.Fatalf("failed to register widgets projection: %v", err)
	}

	strategy := projection.NewPageSnapshotStrategy(cfg.SnapshotPageSize)
	loader := projection.NewLoader(store, snapshots, strategy, projection.NewSlogLogger(nil))
	cache := projection.NewVersionCache(projection.DefaultCacheRefreshInterval)
	resolver := projection.NewVersionResolver(cache, loader, versionManagerDefinition(), versionManagerSelfVersion(), nil)
	contractID := projection.NewContractIDResolver(func(t reflect.Type) string {
		return "widgets"
	})

	if err := seedLiveVersion(ctx, store, defaultTenant, "widgets", 1); err != nil {
		log.Fatalf("failed to seed widgets live version: %v", err)
	}

	repo := projection.NewRepository(store, snapshots, resolver, loader, registry, contractID,
		projection.WithLogger(projection.NewSlogLogger(nil)),
		projection.WithTracer(observability.RepositoryTracer{}))

	router := gin.Default()
	router.Use(observability.HTTPTracingMiddleware("projector-demo"))
	router.Use(observability.CorrelationIDMiddleware())

	registerRoutes(router, repo, metrics)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	if err := tracingManager.Stop(shutdownCtx); err != nil {
		log.Printf("tracing shutdown error: %v", err)
	}
}

func buildStores(cfg *config, codec *projectionstore.JSONEventCodec) (projection.Store, projection.SnapshotStore) {
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set, using in-memory stores")
		return projectionstore.NewInMemoryStore(), projectionstore.NewInMemorySnapshotStore()
	}

	ctx := context.Background()
	pgConfig := projectionstore.PostgresConfig{DSN: cfg.DatabaseURL}
	store, err := projectionstore.NewPostgresStore(ctx, pgConfig, codec)
	if err != nil {
		log.Fatalf("failed to connect postgres store: %v", err)
	}
	snapshots, err := projectionstore.NewPostgresSnapshotStore(ctx, pgConfig)
	if err != nil {
		log.Fatalf("failed to connect postgres snapshot store: %v", err)
	}
	return store, snapshots
}

func registerRoutes(router *gin.Engine, repo *projection.Repository, metrics *observability.Metrics) {
	router.POST("/widgets", func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		widgetID := uuid.New().String()
		event := &widgetCreated{WidgetID: widgetID, Name: req.Name}

		start := time.Now()
		metrics.IncrementActiveSaves(c.Request.Context())
		results, err := repo.Save(c.Request.Context(), defaultTenant, widgetProjection{}, event, projection.Origin{Timestamp: start})
		metrics.DecrementActiveSaves(c.Request.Context())
		metrics.RecordSave(c.Request.Context(), "widgets", time.Since(start), err == nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": widgetID, "name": req.Name, "results": resultsToJSON(results)})
	})

	router.PUT("/widgets/:id/rename", func(c *gin.Context) {
		widgetID := c.Param("id")
		var req struct {
			NewName string `json:"newName"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		event := &widgetRenamed{WidgetID: widgetID, NewName: req.NewName}

		start := time.Now()
		results, err := repo.Save(c.Request.Context(), defaultTenant, widgetProjection{}, event, projection.Origin{Timestamp: start})
		metrics.RecordSave(c.Request.Context(), "widgets", time.Since(start), err == nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": widgetID, "newName": req.NewName, "results": resultsToJSON(results)})
	})

	router.GET("/widgets/:id", func(c *gin.Context) {
		widgetID := c.Param("id")

		state, err := repo.Get(c.Request.Context(), defaultTenant, widgetProjection{}, widgetID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, state)
	})
}

func resultsToJSON(results []projection.Result) []gin.H {
	out := make([]gin.H, 0, len(results))
	for _, r := range results {
		entry := gin.H{"version": r.Version.Revision, "status": string(r.Version.Status)}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		}
		out = append(out, entry)
	}
	return out
}
