package engine

import (
	"testing"

	"ninjamplugin/internal/codec"
	"ninjamplugin/internal/pcmring"
)

const (
	testSampleRate = 48000
	testBlockSize  = 256
	testCapacity   = 4
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return newTestEngineWithSampleRate(t, testSampleRate)
}

func newTestEngineWithSampleRate(t *testing.T, sampleRate int) *Engine {
	t.Helper()
	pool := pcmring.NewPool(testCapacity, testBlockSize)
	return New(Config{
		SampleRate:          sampleRate,
		MaxBlockSize:        testBlockSize,
		PeerChannelCapacity: testCapacity,
		Codec:               codec.FakeFactory{},
	}, Callbacks{}, pool)
}

// joinTestEngine forces an engine straight to Joined with a primed codec
// and interval clock, bypassing the network handshake, for tests that
// only care about the post-join real-time/admin surface.
func joinTestEngine(t *testing.T, bpm float64, bpi int) *Engine {
	t.Helper()
	e := newTestEngine(t)
	if err := e.primeCodec(); err != nil {
		t.Fatalf("primeCodec() = %v", err)
	}
	e.mu.Lock()
	e.bpm, e.bpi = bpm, bpi
	e.mu.Unlock()
	length := framesForTest(bpm, bpi)
	e.intervalLength.Store(length)
	e.bpiAtomic.Store(int32(bpi))
	e.state.Store(int32(Joined))
	return e
}

func framesForTest(bpm float64, bpi int) int64 {
	if bpm <= 0 {
		return 0
	}
	frames := float64(testSampleRate) * 60 * float64(bpi) / bpm
	return int64(frames + 0.5)
}
