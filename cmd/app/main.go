package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/aigateway/internal/ai"
	cfgpkg "github.com/local/aigateway/internal/config"
	"github.com/local/aigateway/internal/dispatcher"
	"github.com/local/aigateway/internal/filesearch"
	"github.com/local/aigateway/internal/limiter"
	logpkg "github.com/local/aigateway/internal/logger"
	"github.com/local/aigateway/internal/metrics"
	"github.com/local/aigateway/internal/orchestrator"
	"github.com/local/aigateway/internal/storage"
	"github.com/local/aigateway/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	// Provider chain, primary first
	chain, err := buildProviders(cfg.Providers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build provider chain")
	}
	fallback := dispatcher.New(chain...)

	// Per-caller admission window
	window := limiter.New(limiter.Options{
		Capacity: cfg.Limits.RateLimitRequests,
		Window:   cfg.Limits.RateLimitWindow,
	})

	// Citation subsystem: mapping store, optional archive, manager
	var mappings filesearch.MappingStore
	if cfg.RedisURL != "" {
		rm, err := store.NewRedisMapping(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rm.Close()
		mappings = rm
	}

	var archiver filesearch.Archiver
	if cfg.Archive.Enabled {
		arc, err := storage.NewS3Archive(context.Background(), cfg.Archive.Bucket, cfg.Archive.Passphrase)
		if err != nil {
			log.Warn().Err(err).Msg("archive disabled")
		} else {
			archiver = arc
		}
	}

	var searchClient filesearch.Client
	if fs := filesearch.NewGeminiFileSearch(cfg.FileSearch.QueryModel); fs.Available() {
		searchClient = fs
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, citation subsystem unavailable")
	}

	citations := filesearch.NewManager(filesearch.Options{
		Client:       searchClient,
		Mappings:     mappings,
		Archiver:     archiver,
		PollInterval: cfg.FileSearch.PollInterval,
		MaxWait:      cfg.FileSearch.MaxWait,
	})

	svc := orchestrator.NewService(orchestrator.ServiceOptions{
		Dispatcher:      fallback,
		Limiter:         window,
		Citations:       citations,
		MaxPayloadBytes: cfg.Limits.MaxPayloadBytes,
	})

	mux := http.NewServeMux()
	orchestrator.NewServer(svc).RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}

func buildProviders(cfg cfgpkg.ProvidersConfig) ([]ai.Client, error) {
	build := func(engine string) (ai.Client, error) {
		switch engine {
		case "gemini":
			return ai.NewGeminiClient(cfg.GeminiTextModel, cfg.GeminiVisionModel, cfg.RequestTimeout), nil
		case "anthropic":
			return ai.NewAnthropicClient(cfg.AnthropicModel, cfg.RequestTimeout), nil
		default:
			return nil, fmt.Errorf("unknown engine %q", engine)
		}
	}

	primary, err := build(cfg.PrimaryEngine)
	if err != nil {
		return nil, err
	}
	secondary, err := build(cfg.SecondaryEngine)
	if err != nil {
		// Run on the primary alone rather than refusing to start.
		log.Warn().Err(err).Str("engine", cfg.SecondaryEngine).Msg("secondary provider unavailable")
		return []ai.Client{primary}, nil
	}
	return []ai.Client{primary, secondary}, nil
}
