package secondary

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/teslashibe/go-avatar/pkg/emotions"
)

// Selector performs weighted draws and de-duplicates triggers per turn.
type Selector struct {
	registry   Registry
	rng        Rand
	defaultTag string
	logger     *zap.Logger

	lastTurnID string
	// seen holds every turn id claimed since the last Reset.
	seen     map[string]struct{}
	triggers int
}

// NewSelector creates a selector. A nil rng uses a time-seeded PCG
// generator. An empty defaultTag uses the registry's own default when it has
// one, otherwise emotions.DefaultTag.
func NewSelector(reg Registry, rng Rand, defaultTag string, logger *zap.Logger) *Selector {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if defaultTag == "" {
		if d, ok := reg.(interface{ DefaultTag() string }); ok {
			defaultTag = d.DefaultTag()
		}
	}
	if emotions.Normalize(defaultTag) == "" {
		defaultTag = emotions.DefaultTag
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		registry:   reg,
		rng:        rng,
		defaultTag: emotions.Normalize(defaultTag),
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// Select draws one animation for tag. Unknown tags fall back to the default
// table; a missing default table selects nothing.
func (s *Selector) Select(tag string) Selection {
	set, ok := s.lookup(tag)
	if !ok {
		return Selection{}
	}
	return draw(set, s.rng.Float64())
}

func (s *Selector) lookup(tag string) (Set, bool) {
	if s.registry == nil {
		s.logger.Warn("no animation registry configured")
		return Set{}, false
	}
	if set, ok := s.registry.Lookup(tag); ok {
		return set, true
	}
	s.logger.Warn("animation tag not found, using default",
		zap.String("tag", tag),
		zap.String("default", s.defaultTag))
	if set, ok := s.registry.Lookup(s.defaultTag); ok {
		return set, true
	}
	s.logger.Warn("default animation tag not found", zap.String("default", s.defaultTag))
	return Set{}, false
}

// draw selects from set by cumulative weight against u in [0, 1).
func draw(set Set, u float64) Selection {
	total := set.TotalWeight()
	if total <= 0 {
		return Selection{Tag: set.Tag}
	}
	x := u * total
	if x < set.EmptyWeight {
		return Selection{Tag: set.Tag}
	}
	acc := set.EmptyWeight
	var last *Entry
	for i := range set.Entries {
		e := &set.Entries[i]
		if e.Weight <= 0 {
			continue
		}
		acc += e.Weight
		last = e
		if x < acc {
			break
		}
	}
	if last == nil {
		return Selection{Tag: set.Tag}
	}
	return Selection{Tag: set.Tag, AssetRef: last.AssetRef, DurationFrames: last.DurationFrames}
}

// Trigger draws for a turn. It returns false without drawing when turnID is
// empty or has already triggered.
func (s *Selector) Trigger(turnID, tag string) (Selection, bool) {
	if !s.claim(turnID) {
		return Selection{}, false
	}
	sel := s.Select(tag)
	s.logger.Debug("secondary animation triggered",
		zap.String("turn_id", turnID),
		zap.String("tag", sel.Tag),
		zap.String("asset", sel.AssetRef))
	return sel, true
}

// TriggerRef claims a turn for an explicit asset reference, bypassing the draw.
func (s *Selector) TriggerRef(turnID, ref string, durationFrames int) (Selection, bool) {
	if !s.claim(turnID) {
		return Selection{}, false
	}
	return Selection{AssetRef: ref, DurationFrames: durationFrames}, true
}

func (s *Selector) claim(turnID string) bool {
	if turnID == "" {
		return false
	}
	if _, dup := s.seen[turnID]; dup {
		return false
	}
	s.seen[turnID] = struct{}{}
	s.lastTurnID = turnID
	s.triggers++
	return true
}

// Triggered reports whether turnID has already triggered.
func (s *Selector) Triggered(turnID string) bool {
	_, ok := s.seen[turnID]
	return ok
}

// LastTurnID returns the most recently triggered turn.
func (s *Selector) LastTurnID() string {
	return s.lastTurnID
}

// Triggers returns the number of turns triggered since reset.
func (s *Selector) Triggers() int {
	return s.triggers
}

// Reset forgets every triggered turn.
func (s *Selector) Reset() {
	s.lastTurnID = ""
	clear(s.seen)
	s.triggers = 0
}
