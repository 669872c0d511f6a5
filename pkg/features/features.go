// Package features defines the per-frame audio feature vector consumed by the
// avatar controllers, plus a lightweight time-domain extractor that produces
// it from PCM audio.
//
// The extractor is a reference collaborator: it avoids an FFT and estimates
// spectral shape from zero crossings and first differences, which is good
// enough to drive coarse mouth and activity signals.
package features

import (
	"errors"
	"math"
)

// Frame is one tick's audio analysis result. All fields are non-negative.
type Frame struct {
	Energy           float64 `json:"energy"`
	ZeroCrossingRate float64 `json:"zcr"`
	SpectralCentroid float64 `json:"spectral_centroid"`
	HighFreqEnergy   float64 `json:"high_freq_energy"`
}

// ErrNegativeFeature is returned by Validate when any feature is negative or NaN.
var ErrNegativeFeature = errors.New("features: values must be finite and non-negative")

// Validate checks that every feature is a finite, non-negative number.
func (f Frame) Validate() error {
	for _, v := range [...]float64{f.Energy, f.ZeroCrossingRate, f.SpectralCentroid, f.HighFreqEnergy} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNegativeFeature
		}
	}
	return nil
}

// Silence is the all-zero frame.
var Silence = Frame{}

// Extractor configuration
const (
	DefaultSampleRate = 16000 // Hz, analysis rate
	DefaultFrameRate  = 30    // Frames per second
)

// Extractor converts PCM audio into feature frames at a fixed frame rate.
type Extractor struct {
	sampleRate int
	frameSize  int
	buf        []float64
}

// NewExtractor creates an extractor that analyses audio at sampleRate and
// emits frameRate frames per second.
func NewExtractor(sampleRate, frameRate int) *Extractor {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	frameSize := max(1, sampleRate/frameRate)
	return &Extractor{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		buf:        make([]float64, 0, frameSize*2),
	}
}

// FrameSize returns the number of samples per emitted frame.
func (e *Extractor) FrameSize() int { return e.frameSize }

// Reset discards buffered samples.
func (e *Extractor) Reset() {
	e.buf = e.buf[:0]
}

// FeedPCM16 appends int16 samples recorded at sampleRate and returns every
// complete frame now available. Audio is resampled when rates differ.
func (e *Extractor) FeedPCM16(samples []int16, sampleRate int) []Frame {
	if len(samples) == 0 {
		return nil
	}
	if sampleRate > 0 && sampleRate != e.sampleRate {
		samples = Resample(samples, sampleRate, e.sampleRate)
	}
	for _, s := range samples {
		e.buf = append(e.buf, float64(s)/32768.0)
	}
	return e.drain()
}

// FeedFloat32 appends normalized samples ([-1, 1]) already at the analysis rate.
func (e *Extractor) FeedFloat32(samples []float32) []Frame {
	for _, s := range samples {
		e.buf = append(e.buf, float64(s))
	}
	return e.drain()
}

func (e *Extractor) drain() []Frame {
	var out []Frame
	for len(e.buf) >= e.frameSize {
		out = append(out, Analyze(e.buf[:e.frameSize], e.sampleRate))
		e.buf = append(e.buf[:0], e.buf[e.frameSize:]...)
	}
	return out
}

// Analyze computes features for one window of normalized samples.
//
//	Energy           RMS amplitude
//	ZeroCrossingRate sign changes per sample
//	SpectralCentroid ZCR-based frequency estimate normalized by Nyquist
//	HighFreqEnergy   RMS of the first difference (pre-emphasis)
func Analyze(window []float64, sampleRate int) Frame {
	if len(window) == 0 {
		return Silence
	}

	var sumSq, diffSq float64
	crossings := 0
	for i, s := range window {
		sumSq += s * s
		if i == 0 {
			continue
		}
		d := s - window[i-1]
		diffSq += d * d
		if (s >= 0) != (window[i-1] >= 0) {
			crossings++
		}
	}

	n := float64(len(window))
	zcr := 0.0
	if len(window) > 1 {
		zcr = float64(crossings) / (n - 1)
	}

	// A pure tone at f crosses zero 2f times per second, so f ≈ zcr·sr/2.
	// Normalized by Nyquist (sr/2) this is just zcr, clamped to [0,1].
	centroid := math.Min(zcr, 1)
	if sumSq == 0 {
		centroid = 0
	}

	return Frame{
		Energy:           math.Sqrt(sumSq / n),
		ZeroCrossingRate: zcr,
		SpectralCentroid: centroid,
		HighFreqEnergy:   math.Sqrt(diffSq/n) / 2,
	}
}
