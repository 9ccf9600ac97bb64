package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"group-media-backend/internal/config"
	"group-media-backend/internal/handlers"
	"group-media-backend/internal/middleware"
	"group-media-backend/internal/notify"
	"group-media-backend/internal/repository"
	"group-media-backend/internal/services"
	"group-media-backend/internal/storage"
	"group-media-backend/internal/thumbnail"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// pgStore adapts the repository transaction callback to services.Store
type pgStore struct {
	*repository.Store
}

var _ services.Store = pgStore{}

func (s pgStore) InTx(ctx context.Context, fn func(context.Context, services.Queries) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, q *repository.Queries) error {
		return fn(ctx, q)
	})
}

func Run() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log.Level)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("Database connection established")

	repo := repository.NewStore(pool)
	if cfg.Database.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}
	store := pgStore{repo}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob store")
	}

	notifier := notify.Fanout{}
	wsHub := notify.NewWSHub()
	notifier = append(notifier, wsHub)
	if cfg.APNs.KeyFile != "" {
		apns, err := notify.NewAPNs(cfg.APNs)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		notifier = append(notifier, apns)
	} else {
		log.Warn().Msg("APNs key not configured, push notifications disabled")
	}

	thumbs := thumbnail.NewGenerator(cfg.Media, thumbnail.NewFFmpeg(cfg.Media.FFmpegPath))
	types := services.NewMediaTypes(cfg.Media.ImageExtensions, cfg.Media.VideoExtensions)

	// Initialize services
	ledger := services.NewQuotaLedger(store, cfg.Quota)
	userService := services.NewUserService(store, blobs, thumbs, types, ledger, cfg.JWT.Secret, cfg.Quota.DefaultPlan)
	groupService := services.NewMembershipService(store, blobs, thumbs, types, notifier)
	mediaService := services.NewMediaService(store, blobs, thumbs, ledger, types, notifier, services.MediaOptions{
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		SignedURLTTL:   cfg.Storage.SignedURLTTL,
	})
	moderationService := services.NewModerationService(store, blobs)

	reconciler := services.NewReconciler(store, blobs, cfg.Reconcile)
	go reconciler.Run(ctx)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	groupHandler := handlers.NewGroupHandler(groupService)
	mediaHandler := handlers.NewMediaHandler(mediaService, cfg.Media.MaxUploadBytes)
	moderationHandler := handlers.NewModerationHandler(moderationService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService)

	// Setup router
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Get("/me", userHandler.GetMe)
			r.Patch("/me", userHandler.UpdateMe)
			r.Delete("/me", userHandler.DeleteMe)
			r.Put("/me/push-token", userHandler.UpdatePushToken)

			r.Get("/groups", groupHandler.ListGroups)
			r.Post("/groups", groupHandler.CreateGroup)
			r.Post("/groups/join", groupHandler.JoinGroup)
			r.Route("/groups/{group_id}", func(r chi.Router) {
				r.Get("/", groupHandler.GetGroup)
				r.Patch("/", groupHandler.EditGroup)
				r.Delete("/", groupHandler.DeleteGroup)
				r.Put("/joining", groupHandler.SetJoining)
				r.Post("/leave", groupHandler.Leave)
				r.Post("/notifications", groupHandler.ToggleNotifications)
				r.Get("/members", groupHandler.ListMembers)
				r.Delete("/members/{user_id}", groupHandler.KickMember)
				r.Post("/members/{user_id}/promote", groupHandler.PromoteMember)
				r.Get("/requests", groupHandler.ListJoinRequests)
				r.Post("/requests/{user_id}", groupHandler.ResolveJoinRequest)
				r.Get("/media", mediaHandler.ListMedia)
				r.Post("/media", mediaHandler.UploadMedia)
			})

			r.Post("/media/bulk-delete", mediaHandler.BulkDelete)
			r.Post("/media/hide", moderationHandler.HideMedia)
			r.Delete("/media/{media_id}", mediaHandler.DeleteMedia)
			r.Post("/media/{media_id}/report", moderationHandler.ReportMedia)

			r.Get("/blocks", moderationHandler.ListBlocked)
			r.Post("/blocks/{user_id}", moderationHandler.Block)
			r.Delete("/blocks/{user_id}", moderationHandler.Unblock)

			r.Get("/admin/reports", moderationHandler.ListReports)
			r.Post("/admin/reports/{report_id}", moderationHandler.ResolveReport)
			r.Get("/admin/bans", moderationHandler.ListBans)
			r.Post("/admin/bans", moderationHandler.BanUser)
			r.Delete("/admin/bans/{ban_id}", moderationHandler.Unban)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Uploads can be large
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newBlobStore builds the configured storage driver behind bounded retries
func newBlobStore(ctx context.Context, cfg *config.Config) (*storage.Retrying, error) {
	var backend storage.Backend
	switch cfg.Storage.Driver {
	case "minio":
		m, err := storage.NewMinIOStore(cfg.Storage)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		backend = m
	default:
		s, err := storage.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		backend = s
	}

	log.Info().Str("driver", cfg.Storage.Driver).Str("bucket", cfg.Storage.Bucket).Msg("Blob store ready")
	return storage.NewRetrying(backend, cfg.Retry), nil
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
