package server

import (
	"errors"
	"sync"
	"time"

	contribws "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/emotions"
	"github.com/teslashibe/go-avatar/pkg/features"
	"github.com/teslashibe/go-avatar/pkg/hub"
	"github.com/teslashibe/go-avatar/pkg/lifecycle"
	"github.com/teslashibe/go-avatar/pkg/protocol"
)

// maxSessionMessage bounds one inbound message (mic chunks included).
const maxSessionMessage = 1 << 20

// Session is one connected avatar client. All orchestrator calls happen on
// the connection's read loop.
type Session struct {
	ID        string
	Connected time.Time

	conn   *contribws.Conn
	logger *zap.Logger

	mu        sync.Mutex
	orch      *avatar.Orchestrator
	preset    string
	extractor *features.Extractor
	pending   *avatar.PendingMessage
	next      int64
	lastSeen  time.Time
	frames    uint64
}

// SessionInfo contains info about a connected session
type SessionInfo struct {
	ID        string          `json:"id"`
	Preset    string          `json:"preset"`
	Connected time.Time       `json:"connected"`
	LastSeen  time.Time       `json:"last_seen"`
	Frames    uint64          `json:"frames"`
	State     lifecycle.State `json:"state"`
	Emotion   string          `json:"emotion"`
	Default   string          `json:"default_emotion"`
	Pending   string          `json:"pending_message_id,omitempty"`
	Stats     avatar.Stats    `json:"stats"`

	LastFrame *avatar.FrameOutput `json:"last_frame,omitempty"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := SessionInfo{
		ID:        s.ID,
		Preset:    s.preset,
		Connected: s.Connected,
		LastSeen:  s.lastSeen,
		Frames:    s.frames,
		State:     s.orch.State(),
		Emotion:   s.orch.RenderedEmotion(),
		Default:   s.orch.DefaultEmotion(),
		Stats:     s.orch.Stats(),
	}
	if s.pending != nil {
		info.Pending = s.pending.ID
	}
	if s.frames > 0 {
		last := s.orch.Last()
		info.LastFrame = &last
	}
	return info
}

// send writes one message to the client.
func (s *Session) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(contribws.TextMessage, data)
}

// handleSession handles an avatar WebSocket connection
func (srv *Server) handleSession(c *contribws.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}
	log := srv.logger.With(zap.String("session", id))

	orch, err := srv.newOrchestrator(srv.opts.Config.Avatar(), log)
	if err != nil {
		log.Error("failed to create avatar", zap.Error(err))
		if msg, mErr := protocol.NewErrorMessage(protocol.ErrCodeInternal, err.Error()); mErr == nil {
			data, _ := msg.Bytes()
			_ = c.WriteMessage(contribws.TextMessage, data)
		}
		return
	}

	now := time.Now()
	sess := &Session{
		ID:        id,
		Connected: now,
		conn:      c,
		logger:    log,
		orch:      orch,
		preset:    srv.opts.Config.PresetName(),
		extractor: features.NewExtractor(features.DefaultSampleRate, features.DefaultFrameRate),
		lastSeen:  now,
	}

	srv.addSession(sess)
	defer srv.removeSession(sess)

	srv.sendSession(sess)

	c.SetReadLimit(maxSessionMessage)
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("read loop ended", zap.Error(err))
			return
		}

		sess.mu.Lock()
		sess.lastSeen = time.Now()
		sess.mu.Unlock()

		srv.messagesReceived.Add(1)
		srv.handleMessage(sess, data)
	}
}

// handleMessage processes an incoming message from a session
func (srv *Server) handleMessage(sess *Session, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		srv.sendError(sess, protocol.ErrCodeBadMessage, err)
		return
	}

	switch msg.Type {
	case protocol.TypeFeatures:
		fd, err := msg.GetFeaturesData()
		if err != nil {
			srv.sendError(sess, protocol.ErrCodeBadMessage, err)
			return
		}
		srv.processFrames(sess, []features.Frame{fd.Frame}, fd.Number)

	case protocol.TypeMic:
		mic, err := msg.GetMicData()
		if err != nil {
			srv.sendError(sess, protocol.ErrCodeBadMessage, err)
			return
		}
		if mic.Format != "" && mic.Format != "pcm16" {
			srv.sendError(sess, protocol.ErrCodeBadAudio, errors.New("unsupported audio format "+mic.Format))
			return
		}
		samples, err := mic.Samples()
		if err != nil {
			srv.sendError(sess, protocol.ErrCodeBadAudio, err)
			return
		}
		sess.mu.Lock()
		frames := sess.extractor.FeedPCM16(samples, mic.SampleRate)
		sess.mu.Unlock()
		srv.processFrames(sess, frames, 0)

	case protocol.TypePending:
		pm, err := msg.GetPendingData()
		if err != nil {
			srv.sendError(sess, protocol.ErrCodeBadMessage, err)
			return
		}
		sess.mu.Lock()
		sess.pending = pm
		sess.mu.Unlock()

	case protocol.TypeClear:
		sess.mu.Lock()
		sess.pending = nil
		sess.mu.Unlock()

	case protocol.TypeReset:
		sess.mu.Lock()
		sess.orch.Reset()
		sess.extractor.Reset()
		sess.pending = nil
		sess.next = 0
		sess.mu.Unlock()
		srv.sendSession(sess)

	case protocol.TypeConfig:
		cd, err := msg.GetConfigData()
		if err != nil {
			srv.sendError(sess, protocol.ErrCodeBadMessage, err)
			return
		}
		if err := srv.switchPreset(sess, cd.Preset); err != nil {
			srv.sendError(sess, protocol.ErrCodeBadConfig, err)
			return
		}
		srv.sendSession(sess)

	case protocol.TypePing:
		pong, err := protocol.NewPongMessage(pingID(msg), msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			srv.write(sess, pong)
		}

	default:
		srv.sendError(sess, protocol.ErrCodeBadMessage, errors.New("unsupported message type "+string(msg.Type)))
	}
}

// processFrames runs frames through the session's avatar and emits one
// frame message per tick. A non-zero number pins the first frame number.
func (srv *Server) processFrames(sess *Session, frames []features.Frame, number int64) {
	for _, f := range frames {
		sess.mu.Lock()
		if number > 0 {
			sess.next = number
			number = 0
		}
		in := avatar.FrameInput{
			Features:       f,
			PendingMessage: sess.pending,
			FrameNumber:    sess.next,
		}
		sess.next++
		out, err := sess.orch.Process(in)
		if err == nil {
			sess.frames++
		}
		sess.mu.Unlock()

		if err != nil {
			if errors.Is(err, emotions.ErrDefaultMissing) {
				sess.logger.Error("emotion registry is missing its default", zap.Error(err))
			}
			srv.sendError(sess, protocol.ErrCodeInternal, err)
			return
		}

		srv.framesProcessed.Add(1)
		msg, err := protocol.NewFrameMessage(sess.ID, out)
		if err != nil {
			sess.logger.Error("failed to encode frame", zap.Error(err))
			return
		}
		srv.write(sess, msg)
		if data, err := msg.Bytes(); err == nil {
			srv.frames.Broadcast(hub.NewJSONMessage(sess.ID, data))
		}
	}
}

// switchPreset replaces the session's avatar with a fresh one.
func (srv *Server) switchPreset(sess *Session, name string) error {
	cfg, err := avatar.Preset(name)
	if err != nil {
		return err
	}
	orch, err := srv.newOrchestrator(cfg, sess.logger)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.orch = orch
	sess.preset = name
	sess.pending = nil
	sess.next = 0
	sess.extractor.Reset()
	sess.mu.Unlock()

	sess.logger.Info("preset switched", zap.String("preset", name))
	return nil
}

func (srv *Server) sendSession(sess *Session) {
	sess.mu.Lock()
	preset := sess.preset
	sess.mu.Unlock()

	msg, err := protocol.NewSessionMessage(sess.ID, preset, features.DefaultFrameRate)
	if err != nil {
		return
	}
	srv.write(sess, msg)
}

func (srv *Server) sendError(sess *Session, code string, err error) {
	sess.logger.Warn("rejected message", zap.String("code", code), zap.Error(err))
	msg, mErr := protocol.NewErrorMessage(code, err.Error())
	if mErr != nil {
		return
	}
	srv.write(sess, msg)
}

func (srv *Server) write(sess *Session, msg *protocol.Message) {
	if err := sess.send(msg); err != nil {
		sess.logger.Debug("write failed", zap.Error(err))
		return
	}
	srv.messagesSent.Add(1)
}

func pingID(msg *protocol.Message) string {
	ping, err := msg.GetPingData()
	if err != nil {
		return ""
	}
	return ping.ID
}
