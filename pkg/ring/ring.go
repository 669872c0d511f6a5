// Package ring provides bounded FIFO histories for per-frame signals.
//
// Both buffers store fixed-size records in a byte ring and evict the oldest
// record before a write that would overflow, so Len never exceeds Cap.
package ring

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/smallnest/ringbuffer"
)

// ErrInvalidCapacity is returned when a buffer is created with capacity < 1.
var ErrInvalidCapacity = errors.New("ring: capacity must be at least 1")

// records is a fixed-width record store over a non-blocking byte ring.
type records struct {
	width int
	cap   int
	rb    *ringbuffer.RingBuffer
}

func newRecords(capacity, width int) (*records, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &records{
		width: width,
		cap:   capacity,
		rb:    ringbuffer.New(capacity * width).SetBlocking(false),
	}, nil
}

func (r *records) push(rec []byte) {
	for r.rb.Free() < r.width {
		if !r.dropOldest() {
			r.rb.Reset()
			break
		}
	}
	_, _ = r.rb.Write(rec)
}

func (r *records) dropOldest() bool {
	if r.rb.IsEmpty() {
		return false
	}
	skip := make([]byte, r.width)
	n, err := r.rb.Read(skip)
	return err == nil && n == r.width
}

func (r *records) len() int {
	return r.rb.Length() / r.width
}

// snapshot copies unread bytes without moving the read pointer.
func (r *records) snapshot() []byte {
	if r.rb.IsEmpty() {
		return nil
	}
	return r.rb.Bytes(nil)
}

func (r *records) reset() {
	r.rb.Reset()
}

// Float64s is a bounded FIFO of float64 values.
type Float64s struct {
	r *records
}

// NewFloat64s creates a buffer holding at most capacity values.
func NewFloat64s(capacity int) (*Float64s, error) {
	r, err := newRecords(capacity, 8)
	if err != nil {
		return nil, err
	}
	return &Float64s{r: r}, nil
}

// Push appends v, evicting the oldest value when full.
func (f *Float64s) Push(v float64) {
	var rec [8]byte
	binary.LittleEndian.PutUint64(rec[:], math.Float64bits(v))
	f.r.push(rec[:])
}

// Len returns the number of stored values.
func (f *Float64s) Len() int { return f.r.len() }

// Cap returns the maximum number of stored values.
func (f *Float64s) Cap() int { return f.r.cap }

// Values returns the stored values, oldest first.
func (f *Float64s) Values() []float64 {
	raw := f.r.snapshot()
	out := make([]float64, 0, len(raw)/8)
	for i := 0; i+8 <= len(raw); i += 8 {
		out = append(out, math.Float64frombits(binary.LittleEndian.Uint64(raw[i:i+8])))
	}
	return out
}

// Mean returns the mean of all stored values, or 0 when empty.
func (f *Float64s) Mean() float64 {
	return Mean(f.Values())
}

// Reset discards all values.
func (f *Float64s) Reset() { f.r.reset() }

// Bytes is a bounded FIFO of single-byte symbols (enum values).
type Bytes struct {
	r *records
}

// NewBytes creates a buffer holding at most capacity symbols.
func NewBytes(capacity int) (*Bytes, error) {
	r, err := newRecords(capacity, 1)
	if err != nil {
		return nil, err
	}
	return &Bytes{r: r}, nil
}

// Push appends b, evicting the oldest symbol when full.
func (b *Bytes) Push(v byte) {
	b.r.push([]byte{v})
}

// Len returns the number of stored symbols.
func (b *Bytes) Len() int { return b.r.len() }

// Cap returns the maximum number of stored symbols.
func (b *Bytes) Cap() int { return b.r.cap }

// Values returns the stored symbols, oldest first.
func (b *Bytes) Values() []byte {
	raw := b.r.snapshot()
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

// Reset discards all symbols.
func (b *Bytes) Reset() { b.r.reset() }

// Mean returns the arithmetic mean of vs, or 0 for an empty slice.
func Mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
