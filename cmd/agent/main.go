// Ticket agent main entry point: wires the knowledge store, learning and
// enhancement agents, and the orchestrator, then serves the operator API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/intelligent-ticket-agent/internal/agent"
	"github.com/intelligent-ticket-agent/internal/config"
	"github.com/intelligent-ticket-agent/internal/drafter"
	"github.com/intelligent-ticket-agent/internal/enhance"
	"github.com/intelligent-ticket-agent/internal/knowledge"
	"github.com/intelligent-ticket-agent/internal/learning"
	"github.com/intelligent-ticket-agent/internal/sla"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("starting intelligent ticket agent")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("configuration invalid", zap.Error(err))
	}

	store, err := knowledge.NewSQLiteStore(cfg.StorePath, logger)
	if err != nil {
		logger.Fatal("failed to open knowledge store", zap.Error(err))
	}
	defer store.Close()

	learner := learning.New(learning.Config{
		Enabled:    cfg.EnableLearning,
		Threshold:  cfg.LearningThreshold,
		MinSamples: cfg.MinSamplesForLearning,
	}, store, logger)

	enhancer := enhance.New(enhance.Config{
		Enabled:    cfg.EnableResponseProcessing,
		Thresholds: sla.DefaultThresholds(),
	}, logger)

	var d drafter.Drafter
	if cfg.DraftServiceURL != "" {
		d = drafter.NewHTTPDrafter(cfg.DraftServiceURL, cfg.DraftTimeout, logger)
		logger.Info("using HTTP drafting service", zap.String("url", cfg.DraftServiceURL))
	} else {
		d = drafter.TemplateDrafter{}
		logger.Info("no drafting service configured, using template fallback")
	}

	var notifier sla.Notifier
	if cfg.NATSURL != "" {
		n, err := sla.NewNATSNotifier(cfg.NATSURL, cfg.BreachSubject, logger)
		if err != nil {
			logger.Fatal("failed to connect SLA notifier", zap.Error(err))
		}
		defer n.Close()
		notifier = n
		logger.Info("publishing SLA alerts to NATS", zap.String("url", cfg.NATSURL))
	} else {
		notifier = &sla.LogNotifier{Logger: logger}
	}

	orch, err := agent.New(agent.Config{
		SLAThresholds: sla.DefaultThresholds(),
		DraftTimeout:  cfg.DraftTimeout,
		HistorySize:   cfg.HistorySize,
	}, learner, enhancer, d, notifier, logger)
	if err != nil {
		logger.Fatal("failed to create orchestrator", zap.Error(err))
	}

	router := mux.NewRouter()
	newAPI(orch, store, cfg, logger).register(router)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      cors(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("operator API listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	logger.Info("shutdown complete")
}
