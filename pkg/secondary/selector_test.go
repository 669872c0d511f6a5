package secondary

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func testRegistry(t *testing.T) *MemoryRegistry {
	t.Helper()
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Register(Set{
		Tag:         "neutral",
		EmptyWeight: 1,
		Entries:     []Entry{{AssetRef: "nod", Weight: 1}},
	}))
	require.NoError(t, reg.Register(Set{
		Tag:         "happy",
		EmptyWeight: 1,
		Entries: []Entry{
			{AssetRef: "smile", Weight: 1, DurationFrames: 10},
			{AssetRef: "hearts", Weight: 2},
		},
	}))
	return reg
}

func TestDraw_Cumulative(t *testing.T) {
	set := Set{
		Tag:         "happy",
		EmptyWeight: 1,
		Entries:     []Entry{{AssetRef: "a", Weight: 1}, {AssetRef: "b", Weight: 2}},
	}
	tests := []struct {
		u    float64
		want string
	}{
		{0, ""},
		{0.1, ""},
		{0.25, "a"},
		{0.3, "a"},
		{0.5, "b"},
		{0.99, "b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, draw(set, tt.u).AssetRef, "u=%v", tt.u)
	}
}

func TestDraw_DegenerateWeights(t *testing.T) {
	assert.True(t, draw(Set{}, 0.5).Empty())
	assert.True(t, draw(Set{Entries: []Entry{{AssetRef: "a"}}}, 0.5).Empty())

	onlyAnim := Set{Entries: []Entry{{AssetRef: "a", Weight: 1}}}
	assert.Equal(t, "a", draw(onlyAnim, 0).AssetRef)
}

func TestSelector_EmptyFrequencyConverges(t *testing.T) {
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Register(Set{
		Tag:         "neutral",
		EmptyWeight: 3,
		Entries: []Entry{
			{AssetRef: "a", Weight: 1},
			{AssetRef: "b", Weight: 2},
			{AssetRef: "c", Weight: 4},
		},
	}))
	s := NewSelector(reg, rand.New(rand.NewPCG(7, 11)), "neutral", nil)

	const n = 50000
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		counts[s.Select("neutral").AssetRef]++
	}

	want := map[string]float64{"": 0.3, "a": 0.1, "b": 0.2, "c": 0.4}
	for ref, p := range want {
		got := float64(counts[ref]) / n
		assert.InDelta(t, p, got, 0.01, "frequency of %q", ref)
	}
}

func TestSelector_FallbackToDefault(t *testing.T) {
	s := NewSelector(testRegistry(t), fixedRand(0.9), "neutral", nil)

	sel := s.Select("[jubilant]")
	assert.Equal(t, "neutral", sel.Tag)
	assert.Equal(t, "nod", sel.AssetRef)

	sel = s.Select("[happy]")
	assert.Equal(t, "happy", sel.Tag)
	assert.Equal(t, "hearts", sel.AssetRef)
}

func TestSelector_MissingDefaultSelectsNothing(t *testing.T) {
	s := NewSelector(NewMemoryRegistry(), fixedRand(0.9), "neutral", nil)
	assert.True(t, s.Select("happy").Empty())

	s = NewSelector(nil, fixedRand(0.9), "", nil)
	assert.True(t, s.Select("happy").Empty())
}

func TestSelector_TriggerOncePerTurn(t *testing.T) {
	s := NewSelector(testRegistry(t), fixedRand(0.4), "neutral", nil)

	sel, ok := s.Trigger("turn-1", "happy")
	require.True(t, ok)
	assert.Equal(t, "smile", sel.AssetRef)
	assert.Equal(t, 10, sel.DurationFrames)

	_, ok = s.Trigger("turn-1", "happy")
	assert.False(t, ok, "same turn must not trigger twice")

	_, ok = s.Trigger("turn-2", "happy")
	assert.True(t, ok)

	_, ok = s.Trigger("turn-1", "happy")
	assert.False(t, ok, "earlier turn must not trigger again")

	_, ok = s.Trigger("", "happy")
	assert.False(t, ok, "empty turn id never triggers")

	assert.Equal(t, "turn-2", s.LastTurnID())
	assert.Equal(t, 2, s.Triggers())
}

func TestSelector_TriggerRefBypassesDraw(t *testing.T) {
	s := NewSelector(testRegistry(t), fixedRand(0), "neutral", nil)

	sel, ok := s.TriggerRef("turn-1", "emoji/wave.webp", 0)
	require.True(t, ok)
	assert.Equal(t, "emoji/wave.webp", sel.AssetRef)

	_, ok = s.Trigger("turn-1", "happy")
	assert.False(t, ok)
}

func TestSelector_Reset(t *testing.T) {
	s := NewSelector(testRegistry(t), fixedRand(0.9), "neutral", nil)
	_, ok := s.Trigger("turn-1", "happy")
	require.True(t, ok)

	s.Reset()
	s.Reset()
	assert.Empty(t, s.LastTurnID())
	assert.False(t, s.Triggered("turn-1"))

	_, ok = s.Trigger("turn-1", "happy")
	assert.True(t, ok)
}

func TestSelector_TurnNeverRetriggers(t *testing.T) {
	s := NewSelector(testRegistry(t), fixedRand(0.9), "neutral", nil)
	_, ok := s.Trigger("t0", "happy")
	require.True(t, ok)

	for i := 1; i <= 1000; i++ {
		_, ok := s.Trigger(fmt.Sprintf("t%d", i), "happy")
		require.True(t, ok, "turn t%d", i)
	}

	_, ok = s.Trigger("t0", "happy")
	assert.False(t, ok, "t0 must not trigger again after later turns")
	assert.Equal(t, 1001, s.Triggers())
}

func TestSelector_EmptyDefaultUsesRegistryDefault(t *testing.T) {
	m, err := ParseManifest([]byte(`{"default_tag":"calm","animations":[{"tag":"calm","entries":[{"asset_ref":"breathe","weight":1}]}]}`))
	require.NoError(t, err)
	reg := NewMemoryRegistry()
	reg.AddManifest(m)
	s := NewSelector(reg, fixedRand(0.5), "", nil)

	sel := s.Select("[jubilant]")
	assert.Equal(t, "calm", sel.Tag)
	assert.Equal(t, "breathe", sel.AssetRef)
}

func TestMemoryRegistry_LoadBuiltIn(t *testing.T) {
	reg := NewMemoryRegistry()
	require.NoError(t, reg.LoadBuiltIn())

	assert.Equal(t, 8, reg.Count())
	assert.Equal(t, "neutral", reg.DefaultTag())

	set, ok := reg.Lookup("[happy]")
	require.True(t, ok)
	assert.Equal(t, "/assets/animations/emoji/smile.webp", set.Entries[0].AssetRef)
	assert.Equal(t, 7.0, set.TotalWeight())
}

func TestMemoryRegistry_RejectsInvalid(t *testing.T) {
	reg := NewMemoryRegistry()
	tests := []Set{
		{Tag: ""},
		{Tag: "x", EmptyWeight: -1},
		{Tag: "x", Entries: []Entry{{Weight: 1}}},
		{Tag: "x", Entries: []Entry{{AssetRef: "a", Weight: -1}}},
	}
	for _, set := range tests {
		assert.ErrorIs(t, reg.Register(set), ErrInvalidSet)
	}
}
