package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jwebster45206/npc-engine/internal/config"
	"github.com/jwebster45206/npc-engine/internal/handlers"
	"github.com/jwebster45206/npc-engine/internal/logger"
	"github.com/jwebster45206/npc-engine/internal/middleware"
	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/internal/services/events"
	"github.com/jwebster45206/npc-engine/internal/sim"
	"github.com/jwebster45206/npc-engine/pkg/actor"
	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting NPC Engine",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	var llmService services.LLMService
	switch strings.ToLower(cfg.LLMProvider) {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Error("Anthropic API key is required when using anthropic provider")
			os.Exit(1)
		}
		llmService = services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log)
		log.Info("Using Anthropic LLM provider")
	case "ollama":
		llmService = services.NewOllamaService(cfg.OllamaURL, cfg.ModelName, log)
		log.Info("Using Ollama LLM provider", "url", cfg.OllamaURL)
	case "mock":
		llmService = services.NewMockLLM()
		log.Info("Using mock LLM provider")
	default:
		log.Error("Invalid LLM provider specified", "provider", cfg.LLMProvider, "supported", []string{"anthropic", "ollama", "mock"})
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	memoryStore := services.NewRedisMemoryStore(cfg.RedisURL, log)
	storeCtx, storeCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storeCancel()
	if err := memoryStore.WaitForConnection(storeCtx); err != nil {
		log.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = memoryStore.Close() }()
	log.Info("Redis connection established successfully")

	registry := actor.NewRegistry()
	if err := loadActors(registry, cfg, log); err != nil {
		log.Error("Failed to load actors", "error", err)
		os.Exit(1)
	}
	log.Info("Actors loaded", "count", registry.Len())

	topics := conversation.NewTopicManager()
	if cfg.TopicTablePath != "" {
		if err := topics.LoadEventTopics(cfg.TopicTablePath); err != nil {
			log.Warn("Failed to load topic table, using defaults", "error", err, "path", cfg.TopicTablePath)
		}
	}

	controller := conversation.NewController(conversation.ControllerConfig{
		Generator:       llmService,
		Profiles:        registry,
		Directory:       registry,
		Sink:            services.MultiSink{registry, memoryStore},
		Topics:          topics,
		Logger:          log,
		MaxActiveGroups: cfg.MaxActiveGroups,
		MaxParticipants: cfg.MaxParticipants,
		TurnCooldown:    cfg.TurnCooldown,
	})

	broadcaster := events.NewBroadcaster(memoryStore.Client(), log)
	controller.Subscribe(broadcaster.HandleEvent)
	topics.Subscribe(broadcaster.HandleEvent)

	loop := sim.New(sim.Config{
		Registry:   registry,
		Controller: controller,
		Topics:     topics,
		Interval:   cfg.TickInterval,
		Logger:     log,
		Seed:       time.Now().UnixNano(),
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go func() {
		_ = loop.Run(runCtx)
	}()
	go func() {
		_ = broadcaster.SubscribeWorldEvents(runCtx, func(evt events.WorldEvent) {
			loop.ProcessWorldEvent(evt.Type, evt.Data)
		})
	}()

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(memoryStore, log))

	conversationHandler := handlers.NewConversationHandler(controller, log)
	mux.Handle("/v1/conversations", conversationHandler)
	mux.Handle("/v1/conversations/", conversationHandler)

	actorHandler := handlers.NewActorHandler(registry, controller, log)
	mux.Handle("/v1/actors", actorHandler)
	mux.Handle("/v1/actors/", actorHandler)

	eventsHandler := handlers.NewEventsHandler(loop, topics, log)
	mux.Handle("/v1/events", eventsHandler)
	mux.Handle("/v1/events/", eventsHandler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	runCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
	log.Info("Shutdown complete")
}

// loadActors reads every NPC spec from the configured directory. An
// action table, when configured, is shared by all planners.
func loadActors(registry *actor.Registry, cfg *config.Config, log *slog.Logger) error {
	var planner *actor.Planner
	if cfg.ActionTablePath != "" {
		actions, err := actor.LoadActionTable(cfg.ActionTablePath)
		if err != nil {
			log.Warn("Failed to load action table, using defaults", "error", err, "path", cfg.ActionTablePath)
		} else {
			planner = actor.NewPlanner(actions)
		}
	}

	paths, err := filepath.Glob(filepath.Join(cfg.ActorsDir, "*.json"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		npc, err := actor.LoadNPC(path)
		if err != nil {
			log.Warn("Skipping unreadable actor file", "error", err, "path", path)
			continue
		}
		if planner != nil {
			npc.WithPlanner(planner)
		}
		registry.Add(npc)
	}
	return nil
}
