package main

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/blink"
	"github.com/teslashibe/go-avatar/pkg/features"
	"github.com/teslashibe/go-avatar/pkg/lifecycle"
	"github.com/teslashibe/go-avatar/pkg/mouth"
	"github.com/teslashibe/go-avatar/pkg/vad"
)

func TestParseScript(t *testing.T) {
	in := `
# comment
{"features":{"energy":0.2},"repeat":3}
{"message":{"content":"[happy] Hi"}}
{"features":{"energy":0.1}}
{"clear":true}
`
	steps, err := parseScript(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parseScript error: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("len(steps) = %d, want 4", len(steps))
	}
	if steps[0].Repeat != 3 || steps[0].Features.Energy != 0.2 {
		t.Errorf("steps[0] = %+v", steps[0])
	}
	if steps[1].Message == nil || steps[1].Message.ID == "" {
		t.Errorf("message should get a generated id, got %+v", steps[1].Message)
	}
	if steps[2].Repeat != 1 {
		t.Errorf("default repeat = %d, want 1", steps[2].Repeat)
	}
	if !steps[3].Clear {
		t.Error("steps[3] should clear")
	}
	if got := frameCount(steps); got != 4 {
		t.Errorf("frameCount = %d, want 4", got)
	}
}

func TestParseScript_Errors(t *testing.T) {
	tests := []string{
		`{"features":`,
		`{}`,
		`{"features":{"energy":-1}}`,
		`{"features":{"energy":0.1},"repeat":-2}`,
	}
	for _, in := range tests {
		if _, err := parseScript(strings.NewReader(in)); err == nil {
			t.Errorf("parseScript(%q) should fail", in)
		}
	}
}

func TestParseScript_Testdata(t *testing.T) {
	f, err := os.Open("testdata/hello.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	steps, err := parseScript(f)
	if err != nil {
		t.Fatalf("parseScript error: %v", err)
	}
	if got := frameCount(steps); got != 101 {
		t.Errorf("frameCount = %d, want 101", got)
	}
}

func TestSynthesize(t *testing.T) {
	utts := synthesize(3, 0.5, 0.25, features.DefaultSampleRate)
	if len(utts) != 3 {
		t.Fatalf("len = %d, want 3", len(utts))
	}
	if utts[0].Message.TurnID != utts[1].Message.TurnID {
		t.Error("utterances 0 and 1 should share a turn")
	}
	if utts[1].Message.TurnID == utts[2].Message.TurnID {
		t.Error("utterance 2 should start a new turn")
	}
	if len(utts[0].Speech) != 8000 || len(utts[0].Silence) != 4000 {
		t.Errorf("speech %d silence %d samples", len(utts[0].Speech), len(utts[0].Silence))
	}

	ext := features.NewExtractor(features.DefaultSampleRate, features.DefaultFrameRate)
	frames := ext.FeedPCM16(utts[0].Speech, features.DefaultSampleRate)
	var peak float64
	for _, f := range frames {
		peak = max(peak, f.Energy)
	}
	if peak < 0.1 {
		t.Errorf("peak energy = %v, want a clearly voiced signal", peak)
	}
}

func TestChunk(t *testing.T) {
	parts := chunk(make([]int16, 1200), 16000, 30)
	if len(parts) != 3 || len(parts[0]) != 533 || len(parts[2]) != 134 {
		t.Errorf("chunk sizes wrong: %d parts", len(parts))
	}
}

func TestDescribe(t *testing.T) {
	out := avatar.FrameOutput{
		FrameNumber:           7,
		State:                 lifecycle.Speaking,
		ShouldDisplaySubtitle: true,
		DisplayedMessageID:    "m-1",
		Debug: avatar.Snapshot{
			EyeState:       blink.EyesOpen,
			MouthIntensity: mouth.Open,
			VoiceActivity:  vad.Active,
			FinishReason:   vad.FinishZeroEnergy,
		},
	}
	got := describe(out)
	for _, want := range []string{"#7", "speaking", "mouth=open", "subtitle=m-1", "finish=zero_energy"} {
		if !strings.Contains(got, want) {
			t.Errorf("describe() = %q, missing %q", got, want)
		}
	}
}

func TestPacer_ZeroIntervalHonorsContext(t *testing.T) {
	p := newPacer(0)
	defer p.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	if !p.Wait(ctx) {
		t.Error("Wait should not block without an interval")
	}
	cancel()
	if p.Wait(ctx) {
		t.Error("Wait should report a cancelled context")
	}
}
