package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/handoff/handoff-server/internal/config"
	"github.com/handoff/handoff-server/internal/database"
	"github.com/handoff/handoff-server/internal/feed"
	"github.com/handoff/handoff-server/internal/handler"
	"github.com/handoff/handoff-server/internal/jobs"
	"github.com/handoff/handoff-server/internal/middleware"
	"github.com/handoff/handoff-server/internal/redis"
	"github.com/handoff/handoff-server/internal/repository"
	"github.com/handoff/handoff-server/internal/service"
	"github.com/handoff/handoff-server/internal/session"
	"github.com/handoff/handoff-server/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	authSessionRepo := repository.NewAuthSessionRepository(db.DB)
	profileRepo := repository.NewProfileRepository(db.DB)
	clientRepo := repository.NewClientRepository(db.DB)
	projectRepo := repository.NewProjectRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	fileRepo := repository.NewFileRepository(db.DB)
	invoiceRepo := repository.NewInvoiceRepository(db.DB)
	portalTokenRepo := repository.NewPortalTokenRepository(db.DB)

	objectStore, err := storage.NewLocalStore(cfg.StorageDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.StorageDir).Msg("failed to open object store")
	}
	signer := storage.NewSigner(cfg.StorageSigningSecret, cfg.PublicBaseURL, cfg.SignedURLTTL())

	authService := service.NewAuthService(userRepo, authSessionRepo, cfg.SessionSecret, cfg.SessionTTL())
	portalTokenService := service.NewPortalTokenService(portalTokenRepo, clientRepo)
	gateway := service.NewGateway(service.GatewayDeps{
		Projects: projectRepo,
		Clients:  clientRepo,
		Messages: messageRepo,
		Files:    fileRepo,
		Invoices: invoiceRepo,
		Profiles: profileRepo,
		Store:    objectStore,
		Signer:   signer,
	})
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	var bus feed.Bus = feed.NewRedisBus(redisClient)
	if cfg.FeedBus == "local" {
		bus = feed.NewLocalBus()
	}
	feeds := feed.NewManager(bus, feed.NewMetrics(prometheus.DefaultRegisterer))
	defer feeds.Close()

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	if cfg.FeedRelayEnabled {
		relay := feed.NewRelay(cfg.DatabaseURL, feeds)
		go func() {
			if err := relay.Run(relayCtx); err != nil {
				log.Error().Err(err).Msg("change relay exited")
			}
		}()
	}

	sessionAuthMiddleware := middleware.NewSessionAuthMiddleware(authService)
	portalAuthMiddleware := middleware.NewPortalAuthMiddleware(portalTokenService)
	userRateLimitMiddleware := middleware.NewUserRateLimitMiddleware(
		rateLimiter, "dashboard", service.PerMinute(config.DefaultRateLimitPerMin),
	)
	portalRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, "portal", service.PerMinute(config.PortalRateLimitPerMin),
	)
	loginRateLimiter := middleware.NewLoginRateLimiter(rateLimiter)
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(cfg.MaxUploadBytes)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	eventsHandler := handler.NewEventsHandler(session.Deps{
		Tokens: portalTokenService,
		Auth:   authService,
		Reader: gateway,
		Feeds:  feeds,
	})
	authHandler := handler.NewAuthHandler(
		authService, loginRateLimiter.Handler, csrfMiddleware.Handler, cfg.SessionTTL(), isProduction,
	)
	dashboardHandler := handler.NewDashboardHandler(gateway, portalTokenService, eventsHandler.Dashboard, cfg.MaxUploadBytes)
	portalHandler := handler.NewPortalHandler(gateway, eventsHandler.Portal)
	objectHandler := handler.NewObjectHandler(objectStore, signer)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.ExceptEventStreams(chimiddleware.Timeout(config.ServerRequestTimeout)))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.CSRFHeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Mount("/", authHandler.Routes())
	})

	r.Route("/api/dashboard", func(r chi.Router) {
		r.Use(sessionAuthMiddleware.Handler)
		r.Use(userRateLimitMiddleware.Handler)
		r.Use(csrfMiddleware.Handler)
		r.Mount("/", dashboardHandler.Routes())
	})

	r.Route("/portal/{token}", func(r chi.Router) {
		r.Use(portalRateLimitMiddleware.Handler)
		r.Use(portalAuthMiddleware.Handler)
		r.Mount("/", portalHandler.Routes())
	})

	r.With(portalRateLimitMiddleware.Handler).Get("/storage/object", objectHandler.ServeHTTP)

	cleanupJob := jobs.NewCleanupJob(authSessionRepo, portalTokenRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	// Event streams never go idle, so shutdown cancels every request context.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelRequests)

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("feedBus", cfg.FeedBus).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	stopRelay()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
