// Package web provides the boltd HTTP server and routing.
package web

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/qcjiangqianchen/bolt.diy/internal/analytics"
	"github.com/qcjiangqianchen/bolt.diy/internal/config"
	"github.com/qcjiangqianchen/bolt.diy/internal/llm"
	"github.com/qcjiangqianchen/bolt.diy/internal/log"
	"github.com/qcjiangqianchen/bolt.diy/internal/runner"
	"github.com/qcjiangqianchen/bolt.diy/internal/runtime"
	"github.com/qcjiangqianchen/bolt.diy/internal/session"
	"github.com/qcjiangqianchen/bolt.diy/internal/watch"
	"github.com/qcjiangqianchen/bolt.diy/internal/web/handlers"
)

// ServerConfig contains the dependencies for creating a server.
type ServerConfig struct {
	Logger log.Logger
	Config *config.Config
	// Deployer runs remote deploys. Optional: nil disables build and
	// fly-deploy actions (package still works).
	Deployer handlers.Deployer
	// Store persists analytics events. Required.
	Store analytics.Store
	// Streamer produces model responses. Required (llm.Disabled{} when no
	// provider is configured).
	Streamer llm.Streamer
	// CallbackOrigin is the public origin deployed tracers report to.
	CallbackOrigin string
}

// Server is the boltd HTTP server. It owns the session manager: sessions
// and their dev processes live across requests until ended or the server
// shuts down.
type Server struct {
	mux      *http.ServeMux
	logger   log.Logger
	cfg      *config.Config
	sessions *session.Manager
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("analytics store is required")
	}
	if cfg.Streamer == nil {
		return nil, errors.New("streamer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Config{})
	}

	mux := http.NewServeMux()
	s := &Server{mux: mux, logger: logger, cfg: cfg.Config}

	handlers.NewHealth().RegisterRoutes(mux)

	handlers.NewDeploy(handlers.DeployConfig{
		Logger:         logger,
		Deployer:       cfg.Deployer,
		CallbackOrigin: cfg.CallbackOrigin,
	}).RegisterRoutes(mux)

	handlers.NewAnalytics(handlers.AnalyticsConfig{
		Logger:    logger,
		Store:     cfg.Store,
		RateLimit: rate.Limit(cfg.Config.Analytics.RatePerSecond),
		RateBurst: cfg.Config.Analytics.RateBurst,
	}).RegisterRoutes(mux)

	workspaceDir := cfg.Config.WorkspaceDir
	s.sessions = session.NewManager(func(sessionID string) (*runner.Runner, error) {
		rt, err := runtime.NewLocal(filepath.Join(workspaceDir, sessionID), logger)
		if err != nil {
			return nil, err
		}
		return runner.New(rt, logger), nil
	}, logger)

	handlers.NewChat(handlers.ChatConfig{
		Logger:   logger,
		Streamer: cfg.Streamer,
		Session:  s.sessions.Get,
	}).RegisterRoutes(mux)

	handlers.NewSessions(handlers.SessionsConfig{
		Logger: logger,
		Ender:  s.sessions,
	}).RegisterRoutes(mux)

	handlers.NewFiles(handlers.FilesConfig{
		Logger: logger,
		NewWatcher: func(sessionID string) (watch.Watcher, error) {
			dir := filepath.Join(workspaceDir, sessionID)
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
			return watch.New(dir, logger)
		},
	}).RegisterRoutes(mux)

	return s, nil
}

// Close ends all live sessions, killing their dev processes. Called
// during server shutdown.
func (s *Server) Close() error {
	return s.sessions.Close()
}

// ServeHTTP implements http.Handler with the middleware stack applied:
// recovery, then logging, then CORS.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var handler http.Handler = s.mux
	handler = CORSMiddleware(s.cfg.Server.CORSOrigins)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	handler.ServeHTTP(w, r)
}
