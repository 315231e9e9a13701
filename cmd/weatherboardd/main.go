package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/i-Rony/WeatherBoard/internal/client"
	"github.com/i-Rony/WeatherBoard/internal/config"
	"github.com/i-Rony/WeatherBoard/internal/connectivity"
	"github.com/i-Rony/WeatherBoard/internal/favorites"
	"github.com/i-Rony/WeatherBoard/internal/geosearch"
	httphandler "github.com/i-Rony/WeatherBoard/internal/http"
	"github.com/i-Rony/WeatherBoard/internal/kvstore"
	"github.com/i-Rony/WeatherBoard/internal/lifecycle"
	"github.com/i-Rony/WeatherBoard/internal/observability"
	"github.com/i-Rony/WeatherBoard/internal/remote"
	"github.com/i-Rony/WeatherBoard/internal/weathercache"
)

// tokenSession treats a configured bearer token as a logged-in session.
type tokenSession struct {
	token string
}

func (s tokenSession) Authenticated() bool { return s.token != "" }

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClient(
		cfg.WeatherAPIKey,
		cfg.WeatherCurrentURL,
		cfg.WeatherForecastURL,
		cfg.WeatherGeocodeURL,
		cfg.WeatherAPITimeout,
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	oracle := connectivity.NewProbe(cfg.ProbeURL, cfg.ProbeTimeout)

	var kv kvstore.Store
	var memcacheCloser *kvstore.Memcached
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := kvstore.NewMemcached(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached store", zap.Error(err))
		}
		memcacheCloser = mc
		kv = mc
		logger.Info("store backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case "filesystem":
		kv = kvstore.NewFilesystem(cfg.CacheDir)
		logger.Info("store backend: filesystem", zap.String("dir", cfg.CacheDir))
	default:
		kv = kvstore.NewMemory()
		logger.Info("store backend: in_memory")
	}

	cache := weathercache.New(kv, weatherClient, oracle, logger, weathercache.Options{
		TTL:        cfg.CacheTTL,
		BatchSize:  cfg.BatchSize,
		BatchPause: cfg.BatchPause,
	})
	searcher := geosearch.New(weatherClient, kv, oracle, logger)

	remoteStore, err := remote.NewHTTPStore(cfg.RemoteStoreURL, remote.StaticToken(cfg.RemoteStoreToken), cfg.RemoteStoreTimeout)
	if err != nil {
		logger.Fatal("remote store", zap.Error(err))
	}
	favs := favorites.New(remoteStore, cache, searcher, logger, favorites.Options{
		BatchSize:  cfg.BatchSize,
		BatchPause: cfg.BatchPause,
	})

	session := tokenSession{token: cfg.RemoteStoreToken}
	trigger := lifecycle.NewTrigger(favs, cache, oracle, session, logger, cfg.FocusDebounce)

	var pingFn func() error
	if memcacheCloser != nil {
		pingFn = memcacheCloser.Ping
	}
	handler := httphandler.NewHandler(searcher, cache, favs, trigger, oracle, logger, pingFn)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	apiRouter := router.PathPrefix("/").Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/weather/{city}", handler.GetWeather).Methods("GET")
	apiRouter.HandleFunc("/search", handler.SearchCities).Methods("GET")
	apiRouter.HandleFunc("/favorites", handler.GetFavorites).Methods("GET")
	apiRouter.HandleFunc("/favorites/toggle", handler.ToggleFavorite).Methods("POST")
	apiRouter.HandleFunc("/refresh", handler.PostRefresh).Methods("POST")

	// App-start sync: drain any queued offline fetches, then reconcile
	// favorites. Runs in the background so startup is not blocked.
	go func() {
		startCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		trigger.OnAppStart(startCtx)
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
