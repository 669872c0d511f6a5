// Package server exposes avatars over WebSocket. Each connection on
// /ws/avatar/:id owns one orchestrator; every frame it produces is also
// broadcast to dashboards on /ws/frames.
package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	contribws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/emotions"
	"github.com/teslashibe/go-avatar/pkg/features"
	"github.com/teslashibe/go-avatar/pkg/hub"
	"github.com/teslashibe/go-avatar/pkg/secondary"
)

// ErrNoEmotions is returned by New without an emotion registry.
var ErrNoEmotions = errors.New("server: emotion registry is required")

// ConfigSource supplies the tuning for new sessions.
type ConfigSource interface {
	Avatar() avatar.Config
	PresetName() string
}

// StaticConfig is a ConfigSource that never changes.
type StaticConfig struct {
	Config avatar.Config
	Preset string
}

func (c StaticConfig) Avatar() avatar.Config { return c.Config }
func (c StaticConfig) PresetName() string    { return c.Preset }

// Options configures a Server.
type Options struct {
	Port string

	// Config supplies the tuning read when a session connects. Nil means
	// the default preset.
	Config ConfigSource

	Emotions   *emotions.Registry        // required
	Animations *secondary.MemoryRegistry // optional

	// AssetsDir, when set, is served under /assets.
	AssetsDir string

	// RequestLog enables the fiber access log.
	RequestLog bool

	Logger *zap.Logger
}

// Server is the avatar WebSocket and HTTP API server.
type Server struct {
	app    *fiber.App
	opts   Options
	logger *zap.Logger

	frames *hub.Hub

	mu       sync.RWMutex
	sessions map[string]*Session

	started time.Time

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesProcessed  atomic.Uint64
	sessionsTotal    atomic.Uint64
}

// New creates a server with all routes registered.
func New(opts Options) (*Server, error) {
	if opts.Emotions == nil {
		return nil, ErrNoEmotions
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Config == nil {
		opts.Config = StaticConfig{Config: avatar.DefaultConfig(), Preset: "default"}
	}
	if opts.Port == "" {
		opts.Port = "8080"
	}

	s := &Server{
		opts:     opts,
		logger:   opts.Logger.Named("server"),
		frames:   hub.New("frames", opts.Logger),
		sessions: make(map[string]*Session),
		started:  time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-avatar",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	if opts.RequestLog {
		app.Use(logger.New())
	}

	if opts.AssetsDir != "" {
		app.Static("/assets", opts.AssetsDir)
	}

	s.registerAPIRoutes(app.Group("/api"))
	s.registerWSRoutes(app)

	s.app = app
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// registerWSRoutes registers WebSocket routes on a Fiber app
func (s *Server) registerWSRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if contribws.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Avatar session endpoint
	app.Get("/ws/avatar", contribws.New(s.handleSession))
	app.Get("/ws/avatar/:id", contribws.New(s.handleSession))

	// Dashboard broadcast, optionally scoped to one session
	app.Get("/ws/frames", websocket.New(s.handleFrames))
	app.Get("/ws/frames/:id", websocket.New(s.handleFrames))
}

// handleFrames attaches a dashboard client to the frame hub.
func (s *Server) handleFrames(c *websocket.Conn) {
	hub.NewClient(s.frames, c, c.Params("id")).Run()
}

// Start runs the frame hub and listens until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.frames.Run(hubCtx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ":"+s.opts.Port))
		errc <- s.app.Listen(":" + s.opts.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// newOrchestrator builds an avatar for a session.
func (s *Server) newOrchestrator(cfg avatar.Config, log *zap.Logger) (*avatar.Orchestrator, error) {
	deps := avatar.Deps{
		Emotions: s.opts.Emotions,
		Logger:   log,
	}
	if s.opts.Animations != nil {
		deps.Animations = s.opts.Animations
	}
	return avatar.New(cfg, deps)
}

func (s *Server) addSession(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.sessionsTotal.Add(1)
	s.logger.Info("session connected", zap.String("session", sess.ID), zap.Int("total", count))
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	if cur, ok := s.sessions[sess.ID]; ok && cur == sess {
		delete(s.sessions, sess.ID)
	}
	count := len(s.sessions)
	s.mu.Unlock()
	s.logger.Info("session disconnected", zap.String("session", sess.ID), zap.Int("total", count))
}

// Session returns a connected session by id.
func (s *Server) Session(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats contains server statistics
type Stats struct {
	Sessions         int       `json:"sessions"`
	SessionsTotal    uint64    `json:"sessions_total"`
	MessagesReceived uint64    `json:"messages_received"`
	MessagesSent     uint64    `json:"messages_sent"`
	FramesProcessed  uint64    `json:"frames_processed"`
	Dashboards       hub.Stats `json:"dashboards"`
	Preset           string    `json:"preset"`
	FrameRate        int       `json:"frame_rate"`
	UptimeSeconds    float64   `json:"uptime_seconds"`
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		Sessions:         s.SessionCount(),
		SessionsTotal:    s.sessionsTotal.Load(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesSent:     s.messagesSent.Load(),
		FramesProcessed:  s.framesProcessed.Load(),
		Dashboards:       s.frames.Stats(),
		Preset:           s.opts.Config.PresetName(),
		FrameRate:        features.DefaultFrameRate,
		UptimeSeconds:    time.Since(s.started).Seconds(),
	}
}
