package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-avatar/pkg/avatar"
)

// registerAPIRoutes registers the HTTP API
func (s *Server) registerAPIRoutes(api fiber.Router) {
	api.Get("/status", s.handleStatus)
	api.Get("/sessions", s.handleListSessions)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Get("/config", s.handleGetConfig)
	api.Get("/config/presets/:name", s.handleGetPreset)
	api.Get("/emotions", s.handleListEmotions)
	api.Get("/animations", s.handleListAnimations)
}

// handleStatus returns server statistics
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.GetStats())
}

// handleListSessions lists connected sessions
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	return c.JSON(fiber.Map{
		"sessions": infos,
		"count":    len(infos),
	})
}

// handleGetSession returns one session
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess := s.Session(c.Params("id"))
	if sess == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not connected"})
	}
	return c.JSON(sess.Info())
}

// handleGetConfig returns the configuration used for new sessions
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"preset":  s.opts.Config.PresetName(),
		"config":  s.opts.Config.Avatar(),
		"presets": avatar.Presets(),
	})
}

// handleGetPreset returns a named preset
func (s *Server) handleGetPreset(c *fiber.Ctx) error {
	cfg, err := avatar.Preset(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(cfg)
}

// handleListEmotions lists registered emotion tags
func (s *Server) handleListEmotions(c *fiber.Ctx) error {
	if q := c.Query("q"); q != "" {
		return c.JSON(fiber.Map{
			"default":  s.opts.Emotions.DefaultTag(),
			"emotions": s.opts.Emotions.Search(q),
		})
	}
	return c.JSON(fiber.Map{
		"default":  s.opts.Emotions.DefaultTag(),
		"emotions": s.opts.Emotions.List(),
	})
}

// handleListAnimations lists registered reaction tables
func (s *Server) handleListAnimations(c *fiber.Ctx) error {
	if s.opts.Animations == nil {
		return c.JSON(fiber.Map{"animations": []string{}})
	}
	return c.JSON(fiber.Map{
		"default":    s.opts.Animations.DefaultTag(),
		"animations": s.opts.Animations.List(),
	})
}
