// Package main provides the session server binary: websocket acceptor,
// room directory, round scheduler, and the AI translation relay.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/parlorgame/parlor/internal/ai"
	"github.com/parlorgame/parlor/internal/config"
	"github.com/parlorgame/parlor/internal/game"
	"github.com/parlorgame/parlor/internal/gameserver"
	"github.com/parlorgame/parlor/internal/observability"
	"github.com/parlorgame/parlor/internal/server"
	"github.com/parlorgame/parlor/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting session server",
		zap.String("addr", cfg.Server.Addr()),
	)

	var translator game.Translator
	if cfg.AI.Enabled() {
		prompts := ai.DefaultPrompts()
		if cfg.AI.PromptFile != "" {
			prompts, err = ai.LoadPrompts(cfg.AI.PromptFile)
			if err != nil {
				logger.Fatal("loading prompts", zap.Error(err))
			}
		}
		translator = ai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens, prompts, logger.Named("ai"))
		logger.Info("translation relay enabled", zap.String("model", cfg.AI.Model))
	} else {
		logger.Info("translation relay disabled, no API key configured")
	}

	directory := game.NewDirectory(logger.Named("directory"))
	gateway := game.NewGateway(directory, translator, cfg.AI.RequestTimeout, logger.Named("gateway"))
	scheduler := game.NewScheduler(directory, gateway, game.PhaseDurations{
		Question:    cfg.Game.QuestionDuration,
		Answer:      cfg.Game.AnswerDuration,
		Translation: cfg.Game.TranslationDuration,
	}, logger.Named("scheduler"))

	dispatcher := gameserver.NewServer(directory, gateway, scheduler, logger.Named("gameserver"))
	acceptor := ws.NewAcceptor(cfg.Server.Addr(), dispatcher, directory, logger.Named("ws"))

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket-acceptor", acceptor)

	logger.Info("initialization complete",
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
}
