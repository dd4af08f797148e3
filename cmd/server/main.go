// cmd/server/main.go
package main

import (
	"log"
	"net/http"

	"github.com/jonboulle/clockwork"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/schr45-ship-it/shaalkal-socket-server/internal/config"
	"github.com/schr45-ship-it/shaalkal-socket-server/internal/generator"
	"github.com/schr45-ship-it/shaalkal-socket-server/internal/handlers"
	"github.com/schr45-ship-it/shaalkal-socket-server/internal/middleware"
	"github.com/schr45-ship-it/shaalkal-socket-server/internal/room"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	clock := clockwork.NewRealClock()
	registry := room.NewRegistry(clock)
	quizServer := handlers.NewQuizServer(logger, registry, cfg.OriginHosts())

	// Plan sessions live in Redis when configured, in-process otherwise.
	var sessions generator.SessionStore
	if cfg.RedisAddr != "" {
		redisStore, err := generator.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warnf("Redis unavailable, using in-memory plan sessions: %v", err)
		} else {
			sessions = redisStore
		}
	}
	if sessions == nil {
		sessions = generator.NewMemorySessionStore(clock)
	}

	var primary generator.Generator
	var prompter generator.Prompter
	if cfg.OpenAIAPIKey != "" {
		chat := generator.NewChatClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
		primary = chat
		prompter = chat
	}

	ai := &handlers.AIHandlers{
		Planner:  generator.NewPlanner(sessions, prompter, logger),
		Primary:  primary,
		Fallback: generator.Mock{},
		Logger:   logger,
	}

	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/", logged(http.HandlerFunc(handlers.RootHandler)))
	mux.Handle("/health", logged(http.HandlerFunc(handlers.HealthHandler)))
	mux.Handle("/ai/plan", logged(http.HandlerFunc(ai.PlanHandler)))
	mux.Handle("/ai/generate", logged(http.HandlerFunc(ai.GenerateHandler)))

	// The websocket handler logs its own connects/disconnects; the logging
	// middleware's response wrapper would break the upgrade hijack.
	mux.Handle("/ws", quizServer.WSHandler())

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
	})

	addr := ":" + cfg.Port
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, corsWrapper.Handler(mux)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
