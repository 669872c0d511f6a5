// Package avatar composes the voice activity, mouth, blink, and reaction
// controllers into one per-frame decision.
//
// An Orchestrator owns the conversational state of a single avatar. It must
// be driven by exactly one caller, once per audio tick; it performs no
// locking.
package avatar

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/teslashibe/go-avatar/pkg/blink"
	"github.com/teslashibe/go-avatar/pkg/debug"
	"github.com/teslashibe/go-avatar/pkg/emotions"
	"github.com/teslashibe/go-avatar/pkg/features"
	"github.com/teslashibe/go-avatar/pkg/lifecycle"
	"github.com/teslashibe/go-avatar/pkg/mouth"
	"github.com/teslashibe/go-avatar/pkg/secondary"
	"github.com/teslashibe/go-avatar/pkg/vad"
)

// Deps are the collaborators injected into an Orchestrator.
type Deps struct {
	// Emotions resolves rendered emotion tags to image sets. Required.
	Emotions emotions.Lookup

	// Animations holds the reaction tables. Nil disables reactions.
	Animations secondary.Registry

	// Clock drives blink timing. Nil uses the wall clock.
	Clock blink.Clock

	// Rand is shared by blink mode selection and reaction draws. Nil uses a
	// time-seeded generator.
	Rand blink.Rand

	Logger *zap.Logger
}

// TransitionFunc observes conversational state changes.
type TransitionFunc func(from, to lifecycle.State, frame int64)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOnTransition registers a transition observer. It runs after all
// transition side effects have been applied.
func WithOnTransition(fn TransitionFunc) Option {
	return func(o *Orchestrator) { o.onTransition = fn }
}

// trigger is a reaction request waiting for the next idle→speaking transition.
type trigger struct {
	turnID   string
	tag      string
	emojiRef string
}

type activeAnimation struct {
	ref        string
	startFrame int64
	duration   int
}

// Orchestrator is the per-avatar frame decision function.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger

	machine  *lifecycle.Machine
	smoother *vad.Smoother
	history  *vad.History
	mouth    *mouth.Controller
	blink    *blink.Controller
	selector *secondary.Selector
	emotions emotions.Lookup

	defaultEmotion  string
	renderedEmotion string
	fallbackFrom    string

	displayedID string
	rearmed     bool

	lastTurnID string
	deferred   *trigger
	active     *activeAnimation

	lastFrame int64
	last      FrameOutput
	stats     Stats

	onTransition TransitionFunc
}

// New creates an orchestrator in the idle state.
func New(cfg Config, deps Deps, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Emotions == nil {
		return nil, ErrNoEmotions
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	machine := lifecycle.NewMachine(logger.Named("lifecycle"))

	smoother, err := vad.NewSmoother(cfg.VAD)
	if err != nil {
		return nil, err
	}
	history, err := vad.NewHistory(cfg.VAD)
	if err != nil {
		return nil, err
	}
	mouthCtl, err := mouth.New(cfg.Mouth, machine)
	if err != nil {
		return nil, err
	}

	var selRand secondary.Rand
	if deps.Rand != nil {
		selRand = deps.Rand
	}
	blinkCtl, err := blink.New(cfg.Blink, machine, deps.Clock, deps.Rand,
		blink.WithOnBlink(func(m blink.Mode, s lifecycle.State) {
			debug.Log(logger, "blink", zap.Stringer("mode", m), zap.Stringer("state", s))
		}))
	if err != nil {
		return nil, err
	}

	fallback := defaultEmotion(cfg.DefaultEmotion, deps.Emotions)

	o := &Orchestrator{
		cfg:             cfg,
		logger:          logger,
		machine:         machine,
		smoother:        smoother,
		history:         history,
		mouth:           mouthCtl,
		blink:           blinkCtl,
		selector:        secondary.NewSelector(deps.Animations, selRand, cfg.DefaultEmotion, logger.Named("secondary")),
		emotions:        deps.Emotions,
		defaultEmotion:  fallback,
		renderedEmotion: fallback,
		lastFrame:       -1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// defaultEmotion picks the configured tag, then the registry's own default,
// then emotions.DefaultTag.
func defaultEmotion(configured string, lookup emotions.Lookup) string {
	if tag := emotions.Normalize(configured); tag != "" {
		return tag
	}
	if d, ok := lookup.(interface{ DefaultTag() string }); ok {
		if tag := emotions.Normalize(d.DefaultTag()); tag != "" {
			return tag
		}
	}
	return emotions.DefaultTag
}

// Process computes the decision for one frame. The only error is an
// incomplete emotion registry (wrapping emotions.ErrDefaultMissing).
func (o *Orchestrator) Process(in FrameInput) (FrameOutput, error) {
	f := o.sanitize(in.Features, in.FrameNumber)
	frame := in.FrameNumber
	if frame <= o.lastFrame {
		o.logger.Warn("frame number did not advance",
			zap.Int64("frame", frame),
			zap.Int64("last", o.lastFrame))
	}
	o.lastFrame = frame
	o.stats.Frames++

	raw := vad.Classify(f.Energy, f.ZeroCrossingRate, o.cfg.VAD.Thresholds)
	level := o.smoother.Push(raw)
	hist := o.history.Update(level, f.Energy, frame)

	out := FrameOutput{
		FrameNumber:   frame,
		PauseDetected: hist.ShouldTriggerPauseCheck,
	}

	msg := in.PendingMessage
	switch o.machine.State() {
	case lifecycle.Idle:
		if hist.ShouldResumeFromIdle && o.displayedID != "" && !o.rearmed {
			o.rearmed = true
			debug.Log(o.logger, "strong signal while idle, re-arming last message",
				zap.String("message_id", o.displayedID),
				zap.Int64("frame", frame))
		}
		if o.isNew(msg) && level == vad.Active {
			if err := o.speak(msg, frame); err != nil {
				return FrameOutput{}, err
			}
			out.ShouldDisplaySubtitle = true
		}

	case lifecycle.Speaking:
		if hist.ShouldFinishSpeaking {
			if err := o.finish(frame, hist.FinishReason); err != nil {
				return FrameOutput{}, err
			}
			out.Debug.FinishReason = hist.FinishReason
		} else if o.isNew(msg) {
			o.display(msg, frame)
			out.ShouldDisplaySubtitle = true
		}
	}

	// After transitions, so a turn arriving on a finishing frame is deferred.
	o.observeTurn(msg, frame)
	o.expireAnimation(frame)

	intensity := o.mouth.Update(f)
	eyes := o.blink.Update()

	set, tag, err := o.resolveEmotion()
	if err != nil {
		return FrameOutput{}, err
	}

	eyesClosed := eyes == blink.EyesClosed
	mouthClosed := intensity == mouth.Closed
	out.Image = emotions.Selector{Emotion: tag, EyesClosed: eyesClosed, MouthClosed: mouthClosed}
	out.ImageRef = set.Image(eyesClosed, mouthClosed)
	out.State = o.machine.State()
	out.DisplayedMessageID = o.displayedID
	if o.active != nil {
		out.SecondaryAnimationRef = o.active.ref
	}

	mst := o.mouth.State()
	bst := o.blink.State()
	out.Debug.MouthIntensity = intensity
	out.Debug.EyeState = eyes
	out.Debug.VoiceActivity = level
	out.Debug.RawActivity = raw
	out.Debug.Confidence = o.smoother.Confidence()
	out.Debug.Energy = f.Energy
	out.Debug.AdaptiveThreshold = mst.AdaptiveThreshold
	out.Debug.BlinkMode = bst.Mode
	out.Debug.BlinkPhase = bst.Phase.String()

	debug.FrameLog(o.logger, "frame",
		zap.Int64("frame", frame),
		zap.Stringer("state", out.State),
		zap.Stringer("activity", level),
		zap.Float64("energy", f.Energy),
		zap.Stringer("mouth", intensity),
		zap.Stringer("eyes", eyes),
		zap.String("image", out.ImageRef))

	o.last = out
	return out, nil
}

// sanitize replaces negative or non-finite features with zero.
func (o *Orchestrator) sanitize(f features.Frame, frame int64) features.Frame {
	if f.Validate() == nil {
		return f
	}
	o.logger.Warn("invalid audio features, clamping to zero",
		zap.Int64("frame", frame),
		zap.Float64("energy", f.Energy))
	clean := func(v float64) float64 {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	return features.Frame{
		Energy:           clean(f.Energy),
		ZeroCrossingRate: clean(f.ZeroCrossingRate),
		SpectralCentroid: clean(f.SpectralCentroid),
		HighFreqEnergy:   clean(f.HighFreqEnergy),
	}
}

func (o *Orchestrator) isNew(msg *PendingMessage) bool {
	if msg == nil || msg.ID == "" {
		return false
	}
	return msg.ID != o.displayedID || o.rearmed
}

// observeTurn requests a reaction when the turn id changes. Speaking fires
// immediately; idle defers to the next idle→speaking transition.
func (o *Orchestrator) observeTurn(msg *PendingMessage, frame int64) {
	if msg == nil || msg.TurnID == "" || msg.TurnID == o.lastTurnID {
		return
	}
	o.lastTurnID = msg.TurnID
	if o.selector.Triggered(msg.TurnID) {
		return
	}

	t := &trigger{turnID: msg.TurnID, tag: messageEmotion(msg), emojiRef: msg.EmojiRef}
	if t.tag == "" {
		t.tag = o.renderedEmotion
	}

	if o.machine.State() == lifecycle.Speaking {
		o.fire(t, frame)
		return
	}
	o.deferred = t
	o.stats.DeferredTriggers++
	debug.Log(o.logger, "reaction deferred until speech",
		zap.String("turn_id", t.turnID),
		zap.Int64("frame", frame))
}

func (o *Orchestrator) fire(t *trigger, frame int64) {
	var (
		sel secondary.Selection
		ok  bool
	)
	if t.emojiRef != "" {
		sel, ok = o.selector.TriggerRef(t.turnID, t.emojiRef, o.cfg.EmojiDurationFrames)
	} else {
		sel, ok = o.selector.Trigger(t.turnID, t.tag)
	}
	if !ok {
		return
	}
	o.stats.Triggers++
	if sel.Empty() {
		return
	}
	o.active = &activeAnimation{ref: sel.AssetRef, startFrame: frame, duration: sel.DurationFrames}
	o.logger.Debug("reaction started",
		zap.String("turn_id", t.turnID),
		zap.String("asset", sel.AssetRef),
		zap.Int64("frame", frame))
}

func (o *Orchestrator) expireAnimation(frame int64) {
	if o.active == nil || o.active.duration == 0 {
		return
	}
	if frame-o.active.startFrame >= int64(o.active.duration) {
		o.active = nil
	}
}

// speak applies the idle→speaking transition.
func (o *Orchestrator) speak(msg *PendingMessage, frame int64) error {
	if err := o.machine.Speak(context.Background()); err != nil {
		return fmt.Errorf("avatar: %w", err)
	}
	o.stats.Utterances++
	o.history.Reset()
	o.display(msg, frame)
	if tag := messageEmotion(msg); tag != "" {
		o.renderedEmotion = tag
	} else {
		o.renderedEmotion = o.defaultEmotion
	}
	if o.deferred != nil {
		t := o.deferred
		o.deferred = nil
		o.fire(t, frame)
	}

	o.logger.Info("avatar speaking",
		zap.String("message_id", msg.ID),
		zap.String("emotion", o.renderedEmotion),
		zap.Int64("frame", frame))
	if o.onTransition != nil {
		o.onTransition(lifecycle.Idle, lifecycle.Speaking, frame)
	}
	return nil
}

// finish applies the speaking→idle transition.
func (o *Orchestrator) finish(frame int64, reason vad.FinishReason) error {
	if err := o.machine.Finish(context.Background()); err != nil {
		return fmt.Errorf("avatar: %w", err)
	}
	o.stats.Finishes++
	o.deferred = nil
	o.active = nil
	o.history.MarkIdle(frame)
	o.mouth.Reset()

	o.logger.Info("avatar idle",
		zap.String("reason", string(reason)),
		zap.Int64("frame", frame))
	if o.onTransition != nil {
		o.onTransition(lifecycle.Speaking, lifecycle.Idle, frame)
	}
	return nil
}

func (o *Orchestrator) display(msg *PendingMessage, frame int64) {
	o.displayedID = msg.ID
	o.rearmed = false
	o.history.MarkSubtitle(frame)
	o.stats.Subtitles++
}

// resolveEmotion resolves the rendered emotion, warning once per unknown tag.
func (o *Orchestrator) resolveEmotion() (emotions.ImageSet, string, error) {
	set, tag, err := emotions.Resolve(o.emotions, o.renderedEmotion, o.defaultEmotion)
	if err != nil {
		return emotions.ImageSet{}, "", fmt.Errorf("avatar: %w", err)
	}
	if tag != o.renderedEmotion {
		if o.fallbackFrom != o.renderedEmotion {
			o.fallbackFrom = o.renderedEmotion
			o.stats.Fallbacks++
			o.logger.Warn("emotion not found, using default",
				zap.String("emotion", o.renderedEmotion),
				zap.String("default", tag))
		}
	} else {
		o.fallbackFrom = ""
	}
	return set, tag, nil
}

// messageEmotion returns the message's explicit tag, or the first tag found
// in its content.
func messageEmotion(msg *PendingMessage) string {
	if msg == nil {
		return ""
	}
	if tag := emotions.Normalize(msg.EmotionTag); tag != "" {
		return tag
	}
	if tags, _ := emotions.Extract(msg.Content); len(tags) > 0 {
		return tags[0]
	}
	return ""
}

// State implements lifecycle.Reader.
func (o *Orchestrator) State() lifecycle.State {
	return o.machine.State()
}

// DefaultEmotion returns the tag rendered while idle and used as fallback.
func (o *Orchestrator) DefaultEmotion() string {
	return o.defaultEmotion
}

// RenderedEmotion returns the emotion latched at the last idle→speaking transition.
func (o *Orchestrator) RenderedEmotion() string {
	return o.renderedEmotion
}

// Last returns the most recent frame output.
func (o *Orchestrator) Last() FrameOutput {
	return o.last
}

// Stats returns cumulative counters.
func (o *Orchestrator) Stats() Stats {
	return o.stats
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Reset re-initializes every controller and returns to idle. It is safe to
// call at any time and more than once.
func (o *Orchestrator) Reset() {
	o.machine.Reset()
	o.smoother.Reset()
	o.history.Reset()
	o.mouth.Reset()
	o.blink.Reset()
	o.selector.Reset()

	o.renderedEmotion = o.defaultEmotion
	o.fallbackFrom = ""
	o.displayedID = ""
	o.rearmed = false
	o.lastTurnID = ""
	o.deferred = nil
	o.active = nil
	o.lastFrame = -1
	o.last = FrameOutput{}
	o.stats = Stats{}
}
