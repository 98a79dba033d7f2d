package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/internal/pipeline"
	"github.com/litmaphq/litmap/internal/retrieval"
	"github.com/litmaphq/litmap/internal/runtime"
	"github.com/litmaphq/litmap/internal/store"
	"github.com/litmaphq/litmap/internal/telemetry"
	"github.com/litmaphq/litmap/provider"
)

// Run assembles the HTTP API and blocks serving it.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	tele := telemetry.New(cfg.Telemetry)
	prov, err := provider.NewProvider(cfg.LLM, tele.LLMUsage(cfg.LLM))
	if err != nil {
		return err
	}

	// Redis backs the retrieval query cache and scheduler locks. Without it
	// both degrade gracefully.
	var rdb *redis.Client
	var cache *retrieval.Cache
	if addr := cfg.Storage.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Storage.Redis.Password, DB: cfg.Storage.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", addr, err)
		}
		cache = retrieval.NewCache(rdb, cfg.Retrieval.CacheTTL)
	}

	registry := retrieval.NewRegistry(cfg.Retrieval, cache)
	orch := pipeline.NewOrchestrator(cfg, prov, registry, tele)

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	api := e.Group("/api")

	auth := &AuthHandler{Store: st, Secret: secret}
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(runtime.EchoAuthMiddleware(secret))
	me.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"user_id": c.Get("user_id").(string)})
	})

	rh := &ResearchHandler{Orch: orch, Store: st, Logger: baseLogger}
	rh.Register(api.Group("/research"))

	reports := &ReportsHandler{Store: st}
	reports.Register(api.Group("/reports"))

	api.GET("/stats", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"metrics": tele.GetMetrics(),
			"cost":    tele.GetCostSummary(),
		})
	})

	topics := &TopicsHandler{Store: st, Orch: orch, Logger: baseLogger}
	topics.Register(api.Group("/topics"), secret)

	sched := &Scheduler{Store: st, Orch: orch, Rdb: rdb, Stop: make(chan struct{})}
	sched.Start()

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10010"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
