package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/memories-social/apiserver/config"
	"github.com/memories-social/apiserver/internal/db"
	"github.com/memories-social/apiserver/internal/handlers"
	"github.com/memories-social/apiserver/internal/mail"
	"github.com/memories-social/apiserver/internal/mq"
	"github.com/memories-social/apiserver/internal/services"
	"github.com/memories-social/apiserver/internal/storage"
	"github.com/memories-social/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.MQ
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if st != nil {
		if err := st.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, err
		}
	}

	var mailer mail.Mailer
	if strings.TrimSpace(cfg.Mail.SMTPHost) != "" {
		smtpMailer, err := mail.NewSMTPMailer(cfg.Mail)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		mailer = smtpMailer
	}

	bus, err := NewEventBus(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var events services.EventPublisher
	if bus != nil {
		events = bus
	}

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)
	tokenRepo := store.NewResetTokenRepository(dbConn)

	userService := services.NewUserService(userRepo, tokenRepo, mailer, events, cfg.Mail.FrontendURL, cfg.Mail.From)
	postService := services.NewPostService(postRepo, userRepo, events)

	authMiddleware := handlers.RequireAuth(userService, cfg.JWT.Secret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, st, cfg.JWT.Secret, cfg.JWT.TokenTTL, authMiddleware)
		handlers.PostRouter(r, postService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 5000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
	}, nil
}

// NewEventBus constructs the configured event-bus backend, or nil when
// events are disabled.
func NewEventBus(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
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

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.bus != nil {
		_ = s.bus.Close()
	}
	return s.httpServer.Close()
}
