package worker

import (
	"context"
	"testing"
	"time"

	"ninjamplugin/internal/codec"
	"ninjamplugin/internal/engine"
	"ninjamplugin/internal/pcmring"
	"ninjamplugin/internal/ring"
	"ninjamplugin/internal/snapshot"
)

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	pool := pcmring.NewPool(4, 256)
	snap := snapshot.New()
	evRing := ring.New(16)
	return New(Config{
		Engine: engine.Config{
			SampleRate:          48000,
			MaxBlockSize:        256,
			PeerChannelCapacity: 4,
			Codec:               codec.FakeFactory{},
		},
	}, evRing, snap, pool)
}

func TestNewWorkerStartsIdle(t *testing.T) {
	w := newTestWorker(t)
	if got := w.Engine().State(); got != engine.Idle {
		t.Fatalf("initial state = %v, want Idle", got)
	}
}

func TestStartTwiceErrors(t *testing.T) {
	w := newTestWorker(t)
	if err := w.Start(); err != nil {
		t.Fatalf("first Start() = %v, want nil", err)
	}
	defer w.Stop()
	if err := w.Start(); err == nil {
		t.Fatal("second Start() = nil, want an error")
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	w := newTestWorker(t)
	w.Stop() // must not panic
}

func TestTickLoopPublishesStateToSnapshot(t *testing.T) {
	pool := pcmring.NewPool(4, 256)
	snap := snapshot.New()
	evRing := ring.New(16)
	w := New(Config{
		Engine: engine.Config{
			SampleRate:          48000,
			MaxBlockSize:        256,
			PeerChannelCapacity: 4,
			Codec:               codec.FakeFactory{},
		},
	}, evRing, snap, pool)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	defer w.Stop()

	deadline := time.Now().Add(time.Second)
	for snap.ConnectionState() != int32(engine.Idle) {
		if time.Now().After(deadline) {
			t.Fatal("snapshot never observed Idle")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestReconnectRespectsContextCancellation(t *testing.T) {
	w := newTestWorker(t)
	w.limiter.Allow() // spend the single burst token; the next refills only after 5s, past ctx's deadline

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := w.Reconnect(ctx, "127.0.0.1:0", "user", "pass"); err == nil {
		t.Fatal("Reconnect() = nil, want a throttle error")
	}
}
