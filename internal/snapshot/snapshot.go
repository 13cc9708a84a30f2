// Package snapshot implements the flat, word-sized atomic record that the
// worker and audio threads publish into and the UI thread samples
// lock-free. Every field is independently atomic; no ordering between
// fields is claimed — callers accept mild cross-field skew under
// concurrent reads.
package snapshot

import (
	"math"
	"sync/atomic"
)

// Snapshot is a continuously-sampled metering/transport record. All writes
// use relaxed ordering (plain atomic load/store): these are continuously
// republished values, not a one-shot coordination signal.
type Snapshot struct {
	bpm             atomic.Uint64 // float64 bits
	bpi             atomic.Int32
	intervalPos     atomic.Int64
	intervalLen     atomic.Int64
	beatPos         atomic.Int64
	masterVUL       atomic.Uint32 // float32 bits
	masterVUR       atomic.Uint32
	localVUL        atomic.Uint32
	localVUR        atomic.Uint32
	connectionState atomic.Int32 // mirror of engine.ConnectionState, release/acquire (see SetConnectionState)
}

// New returns a ready-to-use Snapshot with all fields zeroed.
func New() *Snapshot { return &Snapshot{} }

// SetBPM stores the server-published beats-per-minute.
func (s *Snapshot) SetBPM(bpm float64) { s.bpm.Store(math.Float64bits(bpm)) }

// BPM loads the last published beats-per-minute.
func (s *Snapshot) BPM() float64 { return math.Float64frombits(s.bpm.Load()) }

// SetBPI stores the server-published beats-per-interval.
func (s *Snapshot) SetBPI(bpi int) { s.bpi.Store(int32(bpi)) }

// BPI loads the last published beats-per-interval.
func (s *Snapshot) BPI() int { return int(s.bpi.Load()) }

// SetInterval stores the (position, length) pair of the interval clock.
// The two stores are independent; a reader may observe position from one
// tick and length from the next during a BPM/BPI change. Callers tolerate
// that skew rather than pay for a consistent multi-word snapshot.
func (s *Snapshot) SetInterval(position, length int64) {
	s.intervalPos.Store(position)
	s.intervalLen.Store(length)
}

// Interval loads the last published (position, length) pair.
func (s *Snapshot) Interval() (position, length int64) {
	return s.intervalPos.Load(), s.intervalLen.Load()
}

// SetBeatPosition stores the current beat index within the interval.
func (s *Snapshot) SetBeatPosition(beat int64) { s.beatPos.Store(beat) }

// BeatPosition loads the current beat index.
func (s *Snapshot) BeatPosition() int64 { return s.beatPos.Load() }

// SetMasterVU stores the most recent master output peak, per channel.
// Called from the audio thread on every processed block.
func (s *Snapshot) SetMasterVU(l, r float32) {
	s.masterVUL.Store(math.Float32bits(l))
	s.masterVUR.Store(math.Float32bits(r))
}

// MasterVU loads the most recent master output peak.
func (s *Snapshot) MasterVU() (l, r float32) {
	return math.Float32frombits(s.masterVUL.Load()), math.Float32frombits(s.masterVUR.Load())
}

// SetLocalVU stores the most recent local (pre-send) input peak.
func (s *Snapshot) SetLocalVU(l, r float32) {
	s.localVUL.Store(math.Float32bits(l))
	s.localVUR.Store(math.Float32bits(r))
}

// LocalVU loads the most recent local input peak.
func (s *Snapshot) LocalVU() (l, r float32) {
	return math.Float32frombits(s.localVUL.Load()), math.Float32frombits(s.localVUR.Load())
}

// SetConnectionState publishes the connection state mirror. Go's atomic
// store on a dedicated field gives sequential consistency, a strictly
// stronger guarantee than the release/acquire ordering a cross-thread
// mirror actually needs.
func (s *Snapshot) SetConnectionState(state int32) { s.connectionState.Store(state) }

// ConnectionState loads the connection state mirror. Safe to call from the
// audio thread: never blocks, never allocates.
func (s *Snapshot) ConnectionState() int32 { return s.connectionState.Load() }
