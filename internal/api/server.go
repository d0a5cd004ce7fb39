package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/taskdesk/internal/audit"
	"github.com/nerrad567/taskdesk/internal/auth"
	"github.com/nerrad567/taskdesk/internal/infrastructure/config"
	"github.com/nerrad567/taskdesk/internal/infrastructure/database"
	"github.com/nerrad567/taskdesk/internal/infrastructure/influxdb"
	"github.com/nerrad567/taskdesk/internal/infrastructure/logging"
	"github.com/nerrad567/taskdesk/internal/infrastructure/mqtt"
	"github.com/nerrad567/taskdesk/internal/task"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	DB       *database.DB // optional, used for health and metrics
	Users    auth.UserRepository
	Tasks    task.Repository
	Auth     *auth.Service
	Resolver *auth.Resolver
	Audit    audit.Repository
	Recorder *audit.Recorder  // optional; nil disables the audit trail
	MQTT     *mqtt.Client     // optional event bus
	Influx   *influxdb.Client // optional telemetry
	Version  string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	db        *database.DB
	users     auth.UserRepository
	tasks     task.Repository
	auth      *auth.Service
	resolver  *auth.Resolver
	auditRepo audit.Repository
	recorder  *audit.Recorder
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	version   string

	// instanceID tags events this process publishes so its own MQTT echoes
	// are not broadcast twice.
	instanceID string

	server    *http.Server
	hub       *Hub
	tickets   *ticketStore
	startTime time.Time
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Users == nil || deps.Tasks == nil {
		return nil, fmt.Errorf("user and task repositories are required")
	}
	if deps.Auth == nil || deps.Resolver == nil {
		return nil, fmt.Errorf("auth service and resolver are required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		db:         deps.DB,
		users:      deps.Users,
		tasks:      deps.Tasks,
		auth:       deps.Auth,
		resolver:   deps.Resolver,
		auditRepo:  deps.Audit,
		recorder:   deps.Recorder,
		mqtt:       deps.MQTT,
		influx:     deps.Influx,
		version:    deps.Version,
		instanceID: uuid.NewString(),
		tickets:    newTicketStore(),
		startTime:  time.Now(),
	}
	s.hub = NewHub(s.wsCfg, s.logger, s.users)

	return s, nil
}

// Handler returns the fully wired router. Start uses it for the listener;
// tests drive it directly.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start launches the background loops (hub, ticket cleanup, MQTT relay) and
// the HTTP listener. Background goroutines stop when ctx is cancelled or
// Close is called.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	if err := s.subscribeTaskEvents(); err != nil {
		s.logger.Warn("failed to subscribe to task events for WebSocket relay", "error", err)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and its store reachable.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api health check: %w", err)
		}
	}
	return nil
}
