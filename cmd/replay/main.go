// replay drives an avatar server session from a recorded JSONL script or a
// synthetic speech-like tone, and prints the frames it gets back.
//
//	go run ./cmd/replay --script testdata/hello.jsonl
//	go run ./cmd/replay --tone 4
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teslashibe/go-avatar/internal/httpc"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/features"
	"github.com/teslashibe/go-avatar/pkg/lifecycle"
	"github.com/teslashibe/go-avatar/pkg/protocol"
)

func main() {
	addr := flag.String("server", "localhost:8080", "Avatar server host:port")
	session := flag.String("session", "", "Session id (random when empty)")
	script := flag.String("script", "", "JSONL script of features and messages")
	tone := flag.Int("tone", 0, "Send N synthetic utterances instead of a script")
	preset := flag.String("preset", "", "Ask the server for a preset before replaying")
	fps := flag.Int("fps", features.DefaultFrameRate, "Frames per second to send")
	fast := flag.Bool("fast", false, "Send as fast as possible instead of in real time")
	verbose := flag.Bool("v", false, "Print every frame")
	flag.Parse()

	if (*script == "") == (*tone == 0) {
		fmt.Fprintln(os.Stderr, "Usage: replay --script FILE | --tone N [--server host:port]")
		os.Exit(2)
	}

	log.Init("info")
	defer log.Sync()
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var status struct {
		Sessions  int    `json:"sessions"`
		Preset    string `json:"preset"`
		FrameRate int    `json:"frame_rate"`
	}
	if err := httpc.GetJSON(ctx, "http://"+*addr+"/api/status", &status); err != nil {
		logger.Fatal("server not reachable", zap.Error(err))
	}
	logger.Info("server up", zap.Int("sessions", status.Sessions), zap.String("preset", status.Preset))

	id := *session
	if id == "" {
		id = "replay-" + uuid.NewString()[:8]
	}
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/avatar/" + id}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		logger.Fatal("dial failed", zap.String("url", u.String()), zap.Error(err))
	}
	defer ws.Close()

	c := &client{ws: ws, logger: logger, verbose: *verbose}
	go c.readLoop()

	if *preset != "" {
		c.send(protocol.NewMessage(protocol.TypeConfig, protocol.ConfigData{Preset: *preset}))
	}

	interval := time.Second / time.Duration(max(1, *fps))
	if *fast {
		interval = 0
	}
	pace := newPacer(interval)
	defer pace.Stop()

	start := time.Now()
	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			logger.Fatal("open script", zap.Error(err))
		}
		steps, err := parseScript(f)
		f.Close()
		if err != nil {
			logger.Fatal("parse script", zap.Error(err))
		}
		logger.Info("replaying script", zap.Int("steps", len(steps)), zap.Int("frames", frameCount(steps)))
		c.runScript(ctx, steps, pace)
	} else {
		c.runTone(ctx, synthesize(*tone, 2.0, 1.5, features.DefaultSampleRate), *fps, pace)
	}

	// Give the server a moment to answer the last frames.
	time.Sleep(200 * time.Millisecond)
	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	logger.Info("replay done",
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("frames_sent", c.sent.Load()),
		zap.Uint64("frames_received", c.received.Load()),
		zap.Uint64("subtitles", c.subtitles.Load()))
}

type client struct {
	ws      *websocket.Conn
	logger  *zap.Logger
	verbose bool

	sent      atomic.Uint64
	received  atomic.Uint64
	subtitles atomic.Uint64
}

func (c *client) send(msg *protocol.Message, err error) {
	if err != nil {
		c.logger.Error("build message", zap.Error(err))
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		c.logger.Error("encode message", zap.Error(err))
		return
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Error("write", zap.Error(err))
	}
}

func (c *client) runScript(ctx context.Context, steps []step, p *pacer) {
	for _, st := range steps {
		if st.Clear {
			c.send(protocol.NewMessage(protocol.TypeClear, nil))
		}
		if st.Message != nil {
			c.send(protocol.NewPendingMessage(*st.Message))
		}
		for i := 0; i < st.Repeat; i++ {
			if !p.Wait(ctx) {
				return
			}
			c.send(protocol.NewFeaturesMessage(*st.Features, 0))
			c.sent.Add(1)
		}
	}
}

func (c *client) runTone(ctx context.Context, utts []utterance, fps int, p *pacer) {
	rate := features.DefaultSampleRate
	for _, u := range utts {
		c.send(protocol.NewPendingMessage(u.Message))
		for _, part := range [][]int16{u.Speech, u.Silence} {
			for _, ch := range chunk(part, rate, fps) {
				if !p.Wait(ctx) {
					return
				}
				c.send(protocol.NewMicMessage(features.SamplesToBytes(ch), rate))
				c.sent.Add(1)
			}
		}
		c.send(protocol.NewMessage(protocol.TypeClear, nil))
	}
}

func (c *client) readLoop() {
	var state lifecycle.State
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		switch msg.Type {
		case protocol.TypeSession:
			if s, err := msg.GetSessionData(); err == nil {
				c.logger.Info("session", zap.String("id", s.ID), zap.String("preset", s.Preset))
			}
		case protocol.TypeError:
			if e, err := msg.GetErrorData(); err == nil {
				c.logger.Warn("server error", zap.String("code", e.Code), zap.String("message", e.Message))
			}
		case protocol.TypeFrame:
			fd, err := msg.GetFrameData()
			if err != nil {
				continue
			}
			c.received.Add(1)
			if fd.ShouldDisplaySubtitle {
				c.subtitles.Add(1)
			}
			if c.verbose || fd.State != state || fd.ShouldDisplaySubtitle {
				fmt.Println(describe(fd.FrameOutput))
			}
			state = fd.State
		}
	}
}

// describe renders one frame as a single line.
func describe(out avatar.FrameOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%-5d %-8s %-9s eyes=%-6s mouth=%-6s vad=%-6s",
		out.FrameNumber, out.State, out.Image.Emotion,
		out.Debug.EyeState, out.Debug.MouthIntensity, out.Debug.VoiceActivity)
	if out.ShouldDisplaySubtitle {
		fmt.Fprintf(&b, " subtitle=%s", out.DisplayedMessageID)
	}
	if out.SecondaryAnimationRef != "" {
		fmt.Fprintf(&b, " anim=%s", out.SecondaryAnimationRef)
	}
	if out.PauseDetected {
		b.WriteString(" pause")
	}
	if out.Debug.FinishReason != "" {
		fmt.Fprintf(&b, " finish=%s", out.Debug.FinishReason)
	}
	return b.String()
}

// pacer paces sends at a fixed interval. A zero interval never waits.
type pacer struct {
	t *time.Ticker
}

func newPacer(interval time.Duration) *pacer {
	if interval <= 0 {
		return &pacer{}
	}
	return &pacer{t: time.NewTicker(interval)}
}

// Wait blocks until the next tick. It returns false once ctx is done.
func (p *pacer) Wait(ctx context.Context) bool {
	if p.t == nil {
		return ctx.Err() == nil
	}
	select {
	case <-p.t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *pacer) Stop() {
	if p.t != nil {
		p.t.Stop()
	}
}
