package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/botweaver/engine/internal/bots"
	"github.com/botweaver/engine/internal/config"
	"github.com/botweaver/engine/internal/conversation"
	"github.com/botweaver/engine/internal/events"
	"github.com/botweaver/engine/internal/llm"
	"github.com/botweaver/engine/internal/logger"
	"github.com/botweaver/engine/internal/mqtt"
	"github.com/botweaver/engine/internal/storage/postgres"
	"github.com/botweaver/engine/internal/version"
	"github.com/botweaver/engine/internal/workflow"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := os.Getenv("ENGINE_CONFIG")
	if configPath == "" {
		configPath = "engine.yaml"
	}

	cfg, err := config.LoadEngineConfig(configPath)
	if err != nil {
		// Logger is not up yet.
		os.Stderr.WriteString("failed to load " + configPath + ": " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output); err != nil {
		os.Stderr.WriteString("failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load secrets")
	}

	log.Info().Str("version", version.Version).Msg("engine starting")

	// Postgres is optional: without it the engine runs, it just doesn't
	// keep a message log or persist trace events.
	var pg *postgres.Client
	if pg, err = postgres.New(); err != nil {
		log.Warn().Err(err).Msg("postgres unavailable, message log disabled")
		pg = nil
	} else {
		events.SetPostgresClient(pg)
		defer pg.Close()
	}

	ctx := context.Background()

	// Redis is optional too: without it every execution starts with an
	// empty conversation history.
	var store conversation.Store
	if secrets.RedisURL != "" {
		rs, err := conversation.NewRedisStore(ctx,
			time.Duration(cfg.ConversationTTLSeconds())*time.Second,
			cfg.HistoryTurns())
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, conversation history disabled")
		} else {
			store = rs
		}
	} else {
		log.Warn().Msg("REDIS_URL not set, conversation history disabled")
	}

	var generator workflow.Generator
	if secrets.OpenAIAPIKey != "" {
		gen, err := llm.NewOpenAIGenerator(llm.Config{
			APIKey:    secrets.OpenAIAPIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure generation backend")
		}
		generator = gen
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, generation nodes will answer with a fixed notice")
	}

	registry := bots.NewRegistry()
	if err := registry.LoadDir(cfg.BotsDir(), generator); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.BotsDir()).Msg("failed to load bots")
	}
	for _, bot := range registry.All() {
		for _, verr := range bot.Graph.Validate() {
			log.Warn().Str("bot_id", bot.ID).Msg("workflow warning: " + verr.Error())
		}
		events.Emit("info", "bot.loaded", bot.Name, map[string]interface{}{"bot_id": bot.ID})
	}
	log.Info().Int("bots", len(registry.All())).Msg("bots loaded")

	// Mirror the trace stream into the service log.
	traceSub := events.Subscribe()
	go func() {
		for e := range traceSub {
			log.Debug().Str("event", e.Name).Fields(e.Fields).Msg(e.Message)
		}
	}()

	sub := mqtt.NewChatSubscriber(mqtt.NewClient(cfg.MQTTClientID()), registry, store, pg, cfg.HistoryTurns())
	if !sub.Start() {
		log.Fatal().Msg("failed to start mqtt transport")
	}
	events.Emit("info", "system.startup", "engine started", map[string]interface{}{
		"version": version.Version,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	events.Emit("info", "system.shutdown", "engine stopping", nil)
	sub.Stop()
	events.Unsubscribe(traceSub)
	log.Info().Msg("engine stopped")
}
