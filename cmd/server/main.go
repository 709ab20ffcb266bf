package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/courteous/edge-consult-backend/internal/admin"
	"github.com/courteous/edge-consult-backend/internal/auth"
	"github.com/courteous/edge-consult-backend/internal/comments"
	"github.com/courteous/edge-consult-backend/internal/config"
	"github.com/courteous/edge-consult-backend/internal/logging"
	"github.com/courteous/edge-consult-backend/internal/mailer"
	"github.com/courteous/edge-consult-backend/internal/middleware"
	"github.com/courteous/edge-consult-backend/internal/posts"
	"github.com/courteous/edge-consult-backend/internal/store"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect")
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres migrate")
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect")
	}
	defer mongoClient.Disconnect(ctx)
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("mongo indexes")
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}
	defer rdb.Close()
	cache := store.NewCache(rdb)

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("minio connect")
	}

	// ── Services & handlers ──────────────────────────────────
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set; protected routes will fail closed")
	}
	tokens := auth.NewManager(cfg.JWTSecret)
	mail := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)

	authHandler := auth.NewHandler(pgStore, tokens)
	postHandler := posts.NewHandler(mongoStore, minioStore, pgStore)
	commentHandler := comments.NewHandler(mongoStore, pgStore)
	adminHandler := admin.NewHandler(mongoStore, pgStore, cache)
	mailHandler := mailer.NewHandler(mail, cfg.ContactEmail)

	requireAuth := middleware.RequireAuth(tokens)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "x-auth-token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)

	// Posts
	r.With(requireAuth).Post("/add-posts", postHandler.Create)
	r.Get("/posts", postHandler.List)
	r.Get("/posts/{id}", postHandler.Get)
	r.With(requireAuth).Delete("/posts/{id}", postHandler.Delete)
	r.Get("/scholarships", postHandler.Scholarships)
	r.Get("/jobs", postHandler.Jobs)

	// Comments
	r.Get("/posts/{postId}/comments", commentHandler.ListForPost)
	r.Post("/{postId}", commentHandler.Create)

	// Admin aggregates
	r.With(requireAuth).Get("/admin-dashboard", adminHandler.Dashboard)
	r.Get("/metrics", adminHandler.Metrics)

	// Notifications
	r.Post("/subscribe", mailHandler.Subscribe)
	r.Post("/contact", mailHandler.Contact)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("backend listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
