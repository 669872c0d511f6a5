package main

import (
	"math"

	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/pkg/avatar"
)

// utterance is one synthetic spoken line: a burst of tone followed by
// silence.
type utterance struct {
	Message avatar.PendingMessage
	Speech  []int16
	Silence []int16
}

var toneLines = []string{
	"[happy] Hello! Nice to meet you.",
	"[thinking] Let me think about that for a second.",
	"[excited] Oh, I know exactly what to do!",
	"[neutral] Here is the plan.",
}

// synthesize builds count utterances of speechSec seconds of syllabic tone
// followed by pauseSec seconds of silence, at sampleRate.
func synthesize(count int, speechSec, pauseSec float64, sampleRate int) []utterance {
	out := make([]utterance, 0, count)
	turn := uuid.NewString()
	for i := 0; i < count; i++ {
		if i%2 == 0 {
			turn = uuid.NewString()
		}
		out = append(out, utterance{
			Message: avatar.PendingMessage{
				ID:         uuid.NewString(),
				Content:    toneLines[i%len(toneLines)],
				TurnID:     turn,
				TurnStatus: "in_progress",
			},
			Speech:  syllables(speechSec, sampleRate, 180+float64(i%3)*40),
			Silence: make([]int16, int(pauseSec*float64(sampleRate))),
		})
	}
	return out
}

// syllables renders a tone at freq Hz, amplitude-modulated at 4 Hz so the
// mouth opens and closes like speech.
func syllables(sec float64, sampleRate int, freq float64) []int16 {
	n := int(sec * float64(sampleRate))
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		env := 0.5 - 0.5*math.Cos(2*math.Pi*4*t)
		out[i] = int16(12000 * env * math.Sin(2*math.Pi*freq*t))
	}
	return out
}

// chunk splits samples into frame-sized slices.
func chunk(samples []int16, sampleRate, frameRate int) [][]int16 {
	size := max(1, sampleRate/frameRate)
	var out [][]int16
	for len(samples) > 0 {
		k := min(size, len(samples))
		out = append(out, samples[:k])
		samples = samples[k:]
	}
	return out
}
