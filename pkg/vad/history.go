package vad

import "github.com/teslashibe/go-avatar/pkg/ring"

// FinishReason explains why History requested the end of an utterance.
type FinishReason string

const (
	FinishNone           FinishReason = ""
	FinishSustainedQuiet FinishReason = "sustained_quiet"
	FinishZeroEnergy     FinishReason = "zero_energy"
)

// HistoryResult is the per-frame output of History.Update.
type HistoryResult struct {
	ShouldTriggerPauseCheck bool
	ShouldFinishSpeaking    bool
	FinishReason            FinishReason
	ShouldResumeFromIdle    bool

	// FramesSinceLastSubtitle is -1 when no subtitle has been shown since the last reset.
	FramesSinceLastSubtitle int
}

// History tracks recent smoothed activity and energy to detect sustained
// silence, dead audio, and strong-signal recovery from idle.
type History struct {
	cfg Config

	recent *ring.Bytes

	quietFrames      int
	pauseFrames      int
	zeroEnergyFrames int
	inSustainedQuiet bool

	lastActiveFrame   int64
	lastSubtitleFrame int64
	hasSubtitle       bool
	idleStartFrame    int64
	hasIdleStart      bool
}

// NewHistory creates a tracker. The recent-activity window holds
// cfg.PauseThresholdFrames levels.
func NewHistory(cfg Config) (*History, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	recent, err := ring.NewBytes(cfg.PauseThresholdFrames)
	if err != nil {
		return nil, err
	}
	return &History{cfg: cfg, recent: recent, lastActiveFrame: -1}, nil
}

// Update consumes one frame's smoothed level and raw energy.
func (h *History) Update(level Level, energy float64, frame int64) HistoryResult {
	h.recent.Push(byte(level))

	if energy < h.cfg.ZeroEnergyEpsilon {
		h.zeroEnergyFrames++
	} else {
		h.zeroEnergyFrames = 0
	}

	if level == Quiet {
		h.quietFrames++
	} else {
		h.lastActiveFrame = frame
		h.quietFrames = 0
		h.inSustainedQuiet = false
	}

	if energy < h.cfg.PauseEnergyThreshold {
		h.pauseFrames++
	} else {
		h.pauseFrames = 0
	}

	res := HistoryResult{
		// Edge, not level: fires once per pause run.
		ShouldTriggerPauseCheck: h.pauseFrames == h.cfg.PauseThresholdFrames,
		FramesSinceLastSubtitle: h.framesSinceSubtitle(frame),
	}

	subtitleSettled := !h.hasSubtitle || res.FramesSinceLastSubtitle >= h.cfg.MinFramesAfterSubtitle
	if h.quietFrames >= h.cfg.FinishedThresholdFrames && !h.inSustainedQuiet && subtitleSettled {
		h.inSustainedQuiet = true
		res.ShouldFinishSpeaking = true
		res.FinishReason = FinishSustainedQuiet
	}

	// Zero energy is checked last so it takes precedence on the same frame.
	if h.zeroEnergyFrames >= h.cfg.ZeroEnergyFrames {
		h.zeroEnergyFrames = 0
		res.ShouldFinishSpeaking = true
		res.FinishReason = FinishZeroEnergy
	}

	if level != Quiet && h.hasIdleStart &&
		frame-h.idleStartFrame >= int64(h.cfg.MinIdleDuration) &&
		energy > h.cfg.Thresholds.HighEnergy*h.cfg.StrongSignalMultiplier {
		res.ShouldResumeFromIdle = true
	}

	return res
}

func (h *History) framesSinceSubtitle(frame int64) int {
	if !h.hasSubtitle {
		return -1
	}
	return int(frame - h.lastSubtitleFrame)
}

// MarkSubtitle records that a subtitle was displayed at frame.
func (h *History) MarkSubtitle(frame int64) {
	h.lastSubtitleFrame = frame
	h.hasSubtitle = true
}

// MarkIdle records the frame at which the avatar entered idle.
func (h *History) MarkIdle(frame int64) {
	h.idleStartFrame = frame
	h.hasIdleStart = true
}

// LastActiveFrame returns the last frame with a non-quiet level, or -1.
func (h *History) LastActiveFrame() int64 {
	return h.lastActiveFrame
}

// InSustainedQuiet reports whether the current quiet run already finished speech.
func (h *History) InSustainedQuiet() bool {
	return h.inSustainedQuiet
}

// RecentActivity returns the recent smoothed levels, oldest first.
func (h *History) RecentActivity() []Level {
	raw := h.recent.Values()
	out := make([]Level, len(raw))
	for i, b := range raw {
		out[i] = Level(b)
	}
	return out
}

// Reset clears all counters, marks, and flags.
func (h *History) Reset() {
	h.recent.Reset()
	h.quietFrames = 0
	h.pauseFrames = 0
	h.zeroEnergyFrames = 0
	h.inSustainedQuiet = false
	h.lastActiveFrame = -1
	h.lastSubtitleFrame = 0
	h.hasSubtitle = false
	h.idleStartFrame = 0
	h.hasIdleStart = false
}
