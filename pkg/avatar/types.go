package avatar

import (
	"github.com/teslashibe/go-avatar/pkg/blink"
	"github.com/teslashibe/go-avatar/pkg/emotions"
	"github.com/teslashibe/go-avatar/pkg/features"
	"github.com/teslashibe/go-avatar/pkg/lifecycle"
	"github.com/teslashibe/go-avatar/pkg/mouth"
	"github.com/teslashibe/go-avatar/pkg/vad"
)

// PendingMessage is transcript metadata supplied by the caller. The
// orchestrator reads it and never keeps a reference.
type PendingMessage struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	EmotionTag string `json:"emotion_tag,omitempty"` // e.g. "[happy]"
	EmojiRef   string `json:"emoji_ref,omitempty"`
	TurnID     string `json:"turn_id,omitempty"`

	// TurnStatus is carried for clients; it is never read. Turn boundaries
	// come only from a change of TurnID.
	TurnStatus string `json:"turn_status,omitempty"`
}

// FrameInput is the per-tick input.
type FrameInput struct {
	Features       features.Frame  `json:"features"`
	PendingMessage *PendingMessage `json:"pending_message,omitempty"`
	FrameNumber    int64           `json:"frame"`
}

// Snapshot is the per-frame debug view.
type Snapshot struct {
	MouthIntensity    mouth.Intensity  `json:"mouth"`
	EyeState          blink.EyeState   `json:"eyes"`
	VoiceActivity     vad.Level        `json:"activity"`
	RawActivity       vad.Level        `json:"raw_activity"`
	Confidence        float64          `json:"confidence"`
	Energy            float64          `json:"energy"`
	AdaptiveThreshold float64          `json:"adaptive_threshold"`
	BlinkMode         blink.Mode       `json:"blink_mode"`
	BlinkPhase        string           `json:"blink_phase"`
	FinishReason      vad.FinishReason `json:"finish_reason,omitempty"`
}

// FrameOutput is the single per-tick decision.
type FrameOutput struct {
	FrameNumber int64 `json:"frame"`

	// Image selects one of the rendered emotion's four variants; ImageRef is
	// the resolved asset.
	Image    emotions.Selector `json:"image"`
	ImageRef string            `json:"image_ref"`

	SecondaryAnimationRef string          `json:"secondary_animation_ref,omitempty"`
	State                 lifecycle.State `json:"state"`

	// ShouldDisplaySubtitle is true only on the frame a message is first shown.
	ShouldDisplaySubtitle bool   `json:"should_display_subtitle"`
	DisplayedMessageID    string `json:"displayed_message_id,omitempty"`

	// PauseDetected fires once per run of low-energy frames.
	PauseDetected bool `json:"pause_detected,omitempty"`

	Debug Snapshot `json:"debug"`
}

// Stats are cumulative counters since construction or the last reset.
type Stats struct {
	Frames           int64 `json:"frames"`
	Utterances       int64 `json:"utterances"`
	Finishes         int64 `json:"finishes"`
	Subtitles        int64 `json:"subtitles"`
	Triggers         int64 `json:"triggers"`
	DeferredTriggers int64 `json:"deferred_triggers"`
	Fallbacks        int64 `json:"emotion_fallbacks"`
}
