package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/dphs-ocr/apiserver/config"
	"github.com/dphs-ocr/apiserver/internal/db"
	"github.com/dphs-ocr/apiserver/internal/handlers"
	"github.com/dphs-ocr/apiserver/internal/mq"
	"github.com/dphs-ocr/apiserver/internal/services"
	"github.com/dphs-ocr/apiserver/internal/storage"
	"github.com/dphs-ocr/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     mq.Publisher
}

// New constructs a Server: opens the database, selects the storage and
// message-queue backends, and wires repositories, services, and routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backend, err := newStorageBackend(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	files := storage.NewStorage(backend)
	if err := files.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("prepare storage: %w", err)
	}

	events, err := newPublisher(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	uploadRepo := store.NewUploadRepository(dbConn)
	statsRepo := store.NewStatsRepository(dbConn)

	userService := services.NewUserService(userRepo)
	uploadService := services.NewUploadService(uploadRepo, files, events, cfg.Upload.MaxFileSize)
	statsService := services.NewStatsService(statsRepo)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		middleware.RequestSize(cfg.Upload.MaxBodySize),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.Origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}),
	)
	router.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window))

		handlers.HealthRouter(r)
		handlers.StatsRouter(r, statsService)
		handlers.UploadRouter(r, uploadService, cfg.Server.BaseURL)
		handlers.DownloadRouter(r, uploadService)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, cfg.JWT)
		})
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
	}, nil
}

func newStorageBackend(ctx context.Context, cfg config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Backend {
	case "", "local":
		return storage.NewLocalClient(cfg.Upload.Directory)
	case "minio":
		return storage.NewMinioClient(cfg.Storage.Minio)
	case "gcs":
		return storage.NewGCSClient(ctx, cfg.Storage.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newPublisher(ctx context.Context, cfg config.Config) (mq.Publisher, error) {
	switch cfg.MQ.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		return mq.NewRabbitMQPublisher(cfg.MQ.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubPublisher(ctx, cfg.MQ.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then releases the database and
// message-queue connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
