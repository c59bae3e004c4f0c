package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jakifasty/orbiteye/internal/api"
	"github.com/jakifasty/orbiteye/internal/auth"
	"github.com/jakifasty/orbiteye/internal/cache"
	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/filter"
	"github.com/jakifasty/orbiteye/internal/httputil"
	"github.com/jakifasty/orbiteye/internal/metrics"
	"github.com/jakifasty/orbiteye/internal/observability"
	"github.com/jakifasty/orbiteye/internal/orbit"
	"github.com/jakifasty/orbiteye/internal/propagation"
	"github.com/jakifasty/orbiteye/internal/stream"
	"github.com/jakifasty/orbiteye/internal/tle"
	"github.com/jakifasty/orbiteye/internal/trace"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: loadLogLevel(),
	}))

	addr := os.Getenv("ORBITEYE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}
	trustProxy := loadBool(logger, "ORBITEYE_TRUST_PROXY", false)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(logger), logger)
	if err != nil {
		logger.Error("tracing initialisation failed", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	store := catalog.NewStore()
	if path := os.Getenv("ORBITEYE_CATALOG_PATH"); path != "" {
		if err := loadCatalog(store, path, logger); err != nil {
			logger.Error("failed to load catalog", "path", path, "error", err)
			os.Exit(1)
		}
	}

	propagators := propagation.NewRegistry(logger)
	tleCfg := loadTLEConfig(logger)
	tleSync := api.NewTLESync(tleCfg, store, propagators, logger)

	// Attempt to attach cached element sets on startup.
	if _, err := tleSync.LoadCached(); err != nil {
		logger.Info("no usable TLE cache, starting without cached element sets", "error", err)
	}

	sampler := orbit.NewSampler(func(el *tle.Elements) (orbit.Propagator, error) {
		p, err := propagators.Propagator(el)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, logger)

	traceCfg := loadTraceConfig(logger)
	cacheCfg := loadCacheConfig(logger)
	traceCache := cache.NewTraceCache(cacheCfg, sampler, store, logger)
	service := trace.NewService(store, traceCache, traceCfg, logger)
	latest := trace.NewLatest()

	registry := filter.DefaultRegistry()
	counter := filter.NewCounter(filter.NewValueIndex(registry), nil)

	streamCfg := loadStreamConfig(logger)
	streamCfg.TrustProxy = trustProxy
	streamHandler := stream.NewHandler(service, store, registry, latest, streamCfg, logger)

	srv := api.NewServer(addr, logger, api.Deps{
		Auth:       authCfg,
		TrustProxy: trustProxy,
		Catalog:    store,
		Registry:   registry,
		Counter:    counter,
		Traces:     service,
		Latest:     latest,
		Stream:     streamHandler,
		Cache:      traceCache,
		TLE:        tleSync,
	})

	// Start cache background worker.
	go traceCache.Start(ctx)

	// Refresh element sets once they are older than MaxAge.
	go tleSync.Run(ctx, time.Hour)

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "tle_fetch_enabled", tleCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadCatalog(store *catalog.Store, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ds, err := catalog.Load(f, path, time.Now())
	if err != nil {
		return err
	}
	store.Set(ds)
	traceable := len(ds.Traceable())
	metrics.SetCatalogSize(ds.Len(), traceable)
	logger.Info("loaded catalog", "path", path, "satellites", ds.Len(), "traceable", traceable)
	return nil
}

func loadLogLevel() slog.Level {
	level := slog.LevelInfo
	if v := os.Getenv("ORBITEYE_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return slog.LevelInfo
		}
	}
	return level
}

func loadBool(logger *slog.Logger, name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid boolean value, using default", "name", name, "value", v, "default", def)
		return def
	}
	return b
}

// loadPositive reads a positive integer variable, warning and returning def
// on invalid input.
func loadPositive(logger *slog.Logger, name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("ORBITEYE_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("ORBITEYE_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("ORBITEYE_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("ORBITEYE_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadTraceConfig(logger *slog.Logger) trace.Config {
	cfg := trace.Config{
		Workers: loadPositive(logger, "ORBITEYE_TRACE_WORKERS", runtime.NumCPU()),
		Step:    orbit.DefaultStep,
		Limit:   loadPositive(logger, "ORBITEYE_TRACE_LIMIT", trace.DefaultLimit),
	}
	if cfg.Limit > httputil.MaxLimit {
		logger.Warn("ORBITEYE_TRACE_LIMIT above maximum, clamping", "value", cfg.Limit, "max", httputil.MaxLimit)
		cfg.Limit = httputil.MaxLimit
	}

	if v := os.Getenv("ORBITEYE_TRACE_STEP_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < httputil.MinStepMS || n > httputil.MaxStepMS {
			logger.Warn("invalid ORBITEYE_TRACE_STEP_MS value, using default", "value", v, "default", orbit.DefaultStep.Milliseconds())
		} else {
			cfg.Step = time.Duration(n) * time.Millisecond
		}
	}

	logger.Info("trace config",
		"workers", cfg.Workers,
		"step_ms", cfg.Step.Milliseconds(),
		"limit", cfg.Limit,
	)
	return cfg
}

func loadCacheConfig(logger *slog.Logger) cache.Config {
	cfg := cache.Config{
		TTL:        time.Duration(loadPositive(logger, "ORBITEYE_CACHE_TTL", 60)) * time.Second,
		Buffer:     time.Minute,
		Interval:   time.Duration(loadPositive(logger, "ORBITEYE_CACHE_REFRESH", 15)) * time.Second,
		MaxEntries: loadPositive(logger, "ORBITEYE_CACHE_MAX_ENTRIES", 4096),
	}
	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: loadPositive(logger, "ORBITEYE_STREAM_MAX_CONCURRENT", 10),
		MaxConcurrent:      loadPositive(logger, "ORBITEYE_STREAM_MAX_TOTAL", 1000),
		KeepaliveInterval:  time.Duration(loadPositive(logger, "ORBITEYE_STREAM_KEEPALIVE_INTERVAL", 15)) * time.Second,
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_concurrent", cfg.MaxConcurrent,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)
	return cfg
}

func loadTLEConfig(logger *slog.Logger) api.TLEConfig {
	cfg := api.TLEConfig{
		EnableFetch: false,
		CacheDir:    "/tmp/orbiteye/tle",
		MaxFiles:    5,
		MaxAge:      24 * time.Hour,
	}

	cfg.EnableFetch = loadBool(logger, "ORBITEYE_ENABLE_TLE_FETCH", cfg.EnableFetch)
	cfg.AddUnknown = loadBool(logger, "ORBITEYE_TLE_ADD_UNKNOWN", cfg.AddUnknown)

	if v := os.Getenv("ORBITEYE_TLE_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("ORBITEYE_TLE_EXTRA_URLS"); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				urls = append(urls, u)
			}
		}
		cfg.ExtraSourceURLs = urls
	}

	if v := os.Getenv("ORBITEYE_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("ORBITEYE_TLE_MAX_AGE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 1 {
			logger.Warn("invalid ORBITEYE_TLE_MAX_AGE value, defaulting to 86400", "value", v)
		} else {
			cfg.MaxAge = time.Duration(seconds) * time.Second
		}
	}

	logger.Info("TLE config",
		"fetch_enabled", cfg.EnableFetch,
		"source_url", cfg.SourceURL,
		"extra_urls", cfg.ExtraSourceURLs,
		"cache_dir", cfg.CacheDir,
		"max_age_seconds", cfg.MaxAge.Seconds(),
	)
	return cfg
}
