package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account_service/internal/auth"
	"account_service/internal/auth/tokens"
	"account_service/internal/config"
	"account_service/internal/http_server/cookies"
	changePassword "account_service/internal/http_server/handlers/change_password"
	"account_service/internal/http_server/handlers/channel"
	currentUser "account_service/internal/http_server/handlers/current_user"
	"account_service/internal/http_server/handlers/login"
	"account_service/internal/http_server/handlers/logout"
	"account_service/internal/http_server/handlers/refresh"
	"account_service/internal/http_server/handlers/register"
	updateImage "account_service/internal/http_server/handlers/update_image"
	updateUser "account_service/internal/http_server/handlers/update_user"
	watchHistory "account_service/internal/http_server/handlers/watch_history"
	"account_service/internal/http_server/middleware/authenticate"
	"account_service/internal/http_server/upload"
	"account_service/internal/janitor"
	"account_service/internal/lib/api/validate"
	sl "account_service/internal/lib/logger"
	"account_service/internal/rabbitmq"
	"account_service/internal/storage/postgres"
	"account_service/internal/storage/s3"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const defaultConfigPath = "./config/config.yaml"

func main() {
	cfg := config.MustLoad(configPath())

	log := setupLogger(cfg.Env, os.Stdout)

	log.Info("starting account service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	if err := storage.Migrate(ctx); err != nil {
		log.Error("failed to apply migrations", sl.Err(err))
		os.Exit(1)
	}

	blobs, err := s3.New(ctx, cfg.S3, log)
	if err != nil {
		log.Error("failed to init blob store", sl.Err(err))
		os.Exit(1)
	}

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ)
	if err != nil {
		log.Error("failed to connect rabbitmq", sl.Err(err))
		os.Exit(1)
	}
	defer msgBroker.Close()

	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)

		j := janitor.New(log, blobs)
		if err := msgBroker.Consume(ctx, j.Handle); err != nil {
			log.Error("blob janitor stopped", sl.Err(err))
		}
	}()

	tokenService := tokens.New(log, storage, cfg.Tokens)
	authService := auth.New(log, storage, storage, tokenService, blobs, msgBroker)

	router := setupRouter(log, cfg, authService)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", sl.Err(err))
	} else {
		log.Info("server stopped gracefully")
	}

	select {
	case <-janitorDone:
	case <-shutdownCtx.Done():
		log.Warn("blob janitor did not stop in time")
	}

	log.Info("account service stopped")
}

func setupRouter(log *slog.Logger, cfg *config.Config, authService *auth.Auth) *chi.Mux {
	validator := validate.New()
	jar := cookies.Jar{Secure: !cfg.HTTPServer.InsecureCookies}
	stager := upload.Stager{
		Dir:       cfg.Uploads.TempDir,
		MaxMemory: cfg.Uploads.MaxMemory,
		MaxBody:   cfg.Uploads.MaxBody,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTPServer.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", register.New(log, validator, stager, authService))
		r.Post("/login", login.New(log, validator, jar, authService))
		r.Post("/refresh-token", refresh.New(log, jar, authService))

		r.With(authenticate.Optional(log, authService)).
			Get("/channel/{username}", channel.New(log, authService))

		r.Group(func(r chi.Router) {
			r.Use(authenticate.New(log, authService))

			r.Post("/logout", logout.New(log, jar, authService))
			r.Post("/change-password", changePassword.New(log, validator, authService))
			r.Get("/get-current-user", currentUser.New(log))
			r.Post("/update-user", updateUser.New(log, validator, authService))
			r.Post("/update-user-avatar", updateImage.NewAvatar(log, stager, authService))
			r.Post("/update-user-coverImage", updateImage.NewCoverImage(log, stager, authService))
			r.Get("/watch-history", watchHistory.New(log, authService))
		})
	})

	return r
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}

	return defaultConfigPath
}

// setupLogger writes text for local runs and JSON elsewhere. Debug output is off in prod.
func setupLogger(env string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if env == envLocal || env == envDev {
		opts.Level = slog.LevelDebug
	}

	if env == envLocal {
		return slog.New(slog.NewTextHandler(w, opts))
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}
