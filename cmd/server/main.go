package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/moadiary/moa-backend/internal/config"
	"github.com/moadiary/moa-backend/internal/database"
	"github.com/moadiary/moa-backend/internal/handlers"
	"github.com/moadiary/moa-backend/internal/middleware"
	"github.com/moadiary/moa-backend/internal/routes"
	"github.com/moadiary/moa-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}
	cfg := config.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		log.Error("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
		os.Exit(1)
	}

	ctx := context.Background()

	mongo, err := database.Connect(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		log.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer mongo.Disconnect(context.Background())

	if err := mongo.EnsureIndexes(ctx); err != nil {
		log.Warn("failed to ensure MongoDB indexes", "error", err)
	}

	rdb, err := database.ConnectRedis(cfg.RedisURI)
	if err != nil {
		log.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	storage, err := services.NewS3Storage(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	tokens := services.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
	idp := services.NewGoogleProvider(services.GoogleProviderConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Timeout:      cfg.GoogleTimeout,
	})
	stt := services.NewWhisperClient(cfg.STTAPIKey, cfg.STTModel, cfg.STTTimeout)
	gen := services.NewGenerationClient(cfg.AIServiceURL, cfg.AITimeout)

	users := services.NewUserStore(mongo.DB)
	sessions := services.NewSessionStore(mongo.DB)
	auth := services.NewAuthService(users, sessions, tokens, idp, log)
	records := services.NewRecordService(services.NewRecordStore(mongo.DB), storage, stt, log)
	diaries := services.NewDiaryService(services.NewDiaryStore(mongo.DB), records, gen, storage, log)
	todos := services.NewTodoService(services.NewTodoStore(mongo.DB))

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(rdb))

	routes.SetupRoutes(r, routes.Handlers{
		Auth:    handlers.NewAuthHandler(auth),
		Records: handlers.NewRecordHandler(records),
		Diaries: handlers.NewDiaryHandler(diaries),
		Todos:   handlers.NewTodoHandler(todos),
	}, tokens)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
