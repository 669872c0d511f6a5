// Package lifecycle owns the conversational state of an avatar.
//
// The state machine has exactly two transitions: idle→speaking ("speak") and
// speaking→idle ("finish"). Controllers that depend on the state read it
// through the Reader interface and never mutate it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// State is the conversational state of an avatar.
type State int

const (
	// Idle means the avatar is listening or waiting.
	Idle State = iota

	// Speaking means the avatar is voicing a message.
	Speaking
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "speaking":
		*s = Speaking
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// Reader gives read-only access to the current conversational state.
type Reader interface {
	State() State
}

// Fixed is a Reader that always reports the same state. Useful in tests
// and for controllers driven outside an orchestrator.
type Fixed State

// State implements Reader.
func (f Fixed) State() State { return State(f) }

// Event names.
const (
	EventSpeak  = "speak"
	EventFinish = "finish"
)

// ErrInvalidTransition is returned when an event is not allowed from the current state.
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

// Machine is the idle/speaking state machine.
type Machine struct {
	fsm    *fsm.FSM
	logger *zap.Logger
}

// NewMachine creates a machine in the Idle state.
func NewMachine(logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Machine{logger: logger}
	m.fsm = fsm.NewFSM(
		Idle.String(),
		fsm.Events{
			{Name: EventSpeak, Src: []string{Idle.String()}, Dst: Speaking.String()},
			{Name: EventFinish, Src: []string{Speaking.String()}, Dst: Idle.String()},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.logger.Debug("conversational state changed",
					zap.String("event", e.Event),
					zap.String("from", e.Src),
					zap.String("to", e.Dst))
			},
		},
	)
	return m
}

// State implements Reader.
func (m *Machine) State() State {
	if m.fsm.Is(Speaking.String()) {
		return Speaking
	}
	return Idle
}

// Speak transitions idle→speaking.
func (m *Machine) Speak(ctx context.Context) error {
	return m.fire(ctx, EventSpeak)
}

// Finish transitions speaking→idle.
func (m *Machine) Finish(ctx context.Context) error {
	return m.fire(ctx, EventFinish)
}

// Reset forces the machine back to Idle without firing callbacks.
func (m *Machine) Reset() {
	m.fsm.SetState(Idle.String())
}

func (m *Machine) fire(ctx context.Context, event string) error {
	if !m.fsm.Can(event) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, m.fsm.Current())
	}
	if err := m.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("lifecycle: %s: %w", event, err)
	}
	return nil
}
