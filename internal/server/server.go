package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/index"
	"github.com/mohammad-safakhou/deepresearch/internal/research"
	"github.com/mohammad-safakhou/deepresearch/internal/runtime"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
	"github.com/mohammad-safakhou/deepresearch/internal/telemetry"
	"github.com/mohammad-safakhou/deepresearch/provider"
	"github.com/mohammad-safakhou/deepresearch/tools/webfetch"
	"github.com/mohammad-safakhou/deepresearch/tools/websearch"
)

// recorderAdapter narrows store.Store to the orchestrator's Recorder.
type recorderAdapter struct {
	st *store.Store
}

func (r recorderAdapter) CreateSession(ctx context.Context, slug, query, model string) error {
	_, err := r.st.CreateSession(ctx, slug, query, model)
	return err
}

func (r recorderAdapter) Finalize(ctx context.Context, slug, status string, duration float64, answer string, resources []string, metadata map[string]interface{}) error {
	return r.st.Finalize(ctx, slug, status, duration, answer, resources, metadata)
}

func Run(addr string, cfg *appconfig.Config) error {
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
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}

	llm, err := provider.NewProvider(provider.Client(cfg.LLM.Provider), cfg.LLM.APIKey, cfg.LLM.Timeout)
	if err != nil {
		return err
	}
	searcher, err := websearch.NewSearcher(websearch.Provider(cfg.Search.Provider), cfg.Search.APIKey)
	if err != nil {
		return err
	}
	fetcher, err := webfetch.NewFetcher(webfetch.ChromedpFetcherType, time.Duration(cfg.Fetch.TimeoutMS), cfg.Fetch.MaxChars)
	if err != nil {
		return err
	}

	var tele *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tele = telemetry.New(nil)
	}
	retriever, err := index.New(llm, log.New(log.Writer(), "[INDEX] ", log.LstdFlags))
	if err != nil {
		return err
	}

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch, err := research.NewOrchestrator(
		research.Config{DefaultModel: cfg.LLM.DefaultModel, RAGTopK: cfg.Research.RAGTopK},
		orchLogger, tele, llm, searcher, fetcher, retriever, recorderAdapter{st}, nil,
	)
	if err != nil {
		return err
	}

	secret := []byte(cfg.Server.JWTSecret)
	auth := &AuthHandler{Store: st, Secret: secret}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	withAuth := runtime.EchoAuthMiddleware(secret)

	rh := &ResearchHandler{Orch: orch, Rdb: rdb, ProgressTTL: cfg.Research.ProgressTTL, Logger: baseLogger}
	rg := api.Group("/research")
	rg.Use(withAuth)
	rh.Register(rg)

	sh := &SessionsHandler{Store: st}
	sg := api.Group("/sessions")
	sg.Use(withAuth)
	sh.Register(sg)

	cleaner := &Cleaner{
		Store:  st,
		Rdb:    rdb,
		Cron:   cfg.Research.CleanerCron,
		MaxAge: cfg.Research.StaleMaxAge,
		Stop:   make(chan struct{}),
	}
	cleaner.Start()

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":10001"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
