package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dataflowhq/advisor/internal/advisor"
	"github.com/dataflowhq/advisor/internal/auth"
	"github.com/dataflowhq/advisor/internal/config"
	"github.com/dataflowhq/advisor/internal/httpapi"
	"github.com/dataflowhq/advisor/internal/market"
	"github.com/dataflowhq/advisor/internal/memory"
	"github.com/dataflowhq/advisor/internal/observability"
	"github.com/dataflowhq/advisor/internal/transcript"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	transcripts, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("transcript store init failed: %v", err)
	}
	defer transcripts.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("transcript store: in-memory (set DATABASE_URL for postgres)")
	} else {
		log.Printf("transcript store: postgres")
	}

	adapter, err := advisor.NewAdapter(advisor.AdapterConfig{
		Mode: cfg.ModelMode,
		URL:  cfg.ModelURL,
	})
	if err != nil {
		log.Fatalf("model adapter init failed: %v", err)
	}

	windows := memory.NewWindows(cfg.WindowCapacity, cfg.WindowTTL)
	windows.SetEvictHook(func(_ string) {
		metrics.ActiveWindows.Set(float64(windows.ActiveCount()))
	})

	var longTerm *memory.LongTerm
	if cfg.LongTermEnabled {
		longTerm = memory.NewLongTerm(memory.NewHashEmbedder(256))
		longTerm.SetFailureHook(metrics.RetrievalFailures.Inc)
	} else {
		log.Printf("long-term recall disabled")
	}

	stocks := market.NewCache(cfg.StocksAPIURL, cfg.StockCacheTTL)

	orchestrator := advisor.NewOrchestrator(adapter, metrics)
	persister := advisor.NewPersister(windows, longTerm, transcripts, cfg.PersistTimeout, metrics)
	verifier := auth.NewVerifier(cfg.AuthSecret)
	if cfg.AuthSecret == "" {
		log.Printf("auth: debug header mode (set APP_AUTH_SECRET for JWT verification)")
	}

	api := httpapi.New(cfg, verifier, windows, longTerm, orchestrator, persister, transcripts, stocks, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	windows.StartJanitor(runCtx, cfg.WindowSweepInterval)
	if cfg.StocksAPIURL != "" {
		stocks.Refresh(runCtx)
		stocks.StartRefresher(runCtx)
	} else {
		log.Printf("no STOCKS_API_URL configured; advice will not be data-backed")
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
