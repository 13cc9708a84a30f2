// Package worker implements the single long-lived network coordinator
// (T_net): it drives the engine's cooperative tick on an adaptive sleep
// schedule, mediates every UI-facing action through the engine mutex, and
// forwards engine callbacks onward as ring events and snapshot writes.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ninjamplugin/internal/engine"
	"ninjamplugin/internal/events"
	"ninjamplugin/internal/pcmring"
	"ninjamplugin/internal/ring"
	"ninjamplugin/internal/snapshot"
)

const (
	tickJoined  = 2 * time.Millisecond
	tickIdle    = 10 * time.Millisecond
	licenseWait = 60 * time.Second
)

// Config carries the fixed knobs the coordinator needs beyond what it
// forwards straight to the engine.
type Config struct {
	Engine engine.Config

	// KeepaliveRate bounds how often a reconnect attempt may fire, so a
	// flaky server can't be hammered by a tight retry loop.
	KeepaliveRate  rate.Limit
	KeepaliveBurst int
}

// Worker owns the engine, the event ring, and the atomic snapshot; it is
// the plugin's single point of contact with the network thread.
type Worker struct {
	cfg     Config
	eng     *engine.Engine
	events  *ring.Ring
	snap    *snapshot.Snapshot
	license *licenseSlot

	limiter *rate.Limiter

	stop    context.CancelFunc
	group   *errgroup.Group
	started chan struct{} // 1-buffered, used as a non-reentrant start guard
}

// New constructs a Worker and the Engine it owns, wiring every engine
// callback back into this worker's event/snapshot forwarding. pcmPool
// must already be preallocated to engineCfg's capacity.
func New(cfg Config, evRing *ring.Ring, snap *snapshot.Snapshot, pcmPool *pcmring.Pool) *Worker {
	if cfg.KeepaliveRate == 0 {
		cfg.KeepaliveRate = rate.Every(5 * time.Second)
	}
	if cfg.KeepaliveBurst == 0 {
		cfg.KeepaliveBurst = 1
	}
	w := &Worker{
		cfg:     cfg,
		events:  evRing,
		snap:    snap,
		license: newLicenseSlot(),
		limiter: rate.NewLimiter(cfg.KeepaliveRate, cfg.KeepaliveBurst),
		started: make(chan struct{}, 1),
	}
	w.started <- struct{}{}
	w.eng = engine.New(cfg.Engine, engine.Callbacks{
		OnStateChanged:    w.onStateChanged,
		OnUserInfoChanged: w.onUserInfoChanged,
		OnTopicChanged:    w.onTopicChanged,
		OnLicense:         w.onLicense,
	}, pcmPool)
	return w
}

// Engine exposes the owned engine for the real-time audio path (Process
// calls Engine.ProcessAudio directly; that is the one caller allowed to
// bypass the worker, since it never touches anything the engine mutex
// guards).
func (w *Worker) Engine() *engine.Engine { return w.eng }

// LicenseText returns the pending license prompt text, if any, for the UI
// to render this frame.
func (w *Worker) LicenseText() (text string, pending bool) { return w.license.Pending() }

// RespondLicense resolves a pending license prompt. A no-op if nothing is
// pending.
func (w *Worker) RespondLicense(accept bool) { w.license.Respond(accept) }

// Start spawns the tick goroutine. Safe to call once; a second call
// returns an error.
func (w *Worker) Start() error {
	select {
	case <-w.started:
	default:
		return fmt.Errorf("worker: already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	w.stop, w.group = cancel, g
	g.Go(func() error {
		w.tickLoop(gctx)
		return nil
	})
	return nil
}

// Stop signals the tick goroutine to exit at its next wakeup (bounded by
// the adaptive sleep cap) and waits for it to return.
func (w *Worker) Stop() {
	if w.stop == nil {
		return
	}
	w.eng.Disconnect()
	w.stop()
	_ = w.group.Wait()
}

// Connect dispatches a synchronous connect through the engine. If the
// server requires a license acknowledgement, the engine calls back into
// onLicense, which blocks this goroutine on the rendezvous for up to the
// 60-second hard timeout.
func (w *Worker) Connect(addr, username, password string) error {
	return w.eng.Connect(addr, username, password)
}

// Reconnect retries Connect, paced by the keepalive limiter so a server
// that keeps failing handshakes can't be hammered by the UI holding down
// a reconnect button. Returns the limiter's own wait error if the caller
// asks for attempts faster than the configured rate and ctx expires
// first.
func (w *Worker) Reconnect(ctx context.Context, addr, username, password string) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("worker: reconnect throttled: %w", err)
	}
	return w.Connect(addr, username, password)
}

// Disconnect dispatches a synchronous disconnect through the engine.
func (w *Worker) Disconnect() { w.eng.Disconnect() }

// SetLocalChannel forwards to the engine's idempotent channel-admin entry
// point.
func (w *Worker) SetLocalChannel(name string, transmit bool, bitrateKB int) error {
	return w.eng.SetLocalChannel(name, transmit, bitrateKB)
}

// SetPeerChannel forwards to the engine's peer monitoring entry point.
func (w *Worker) SetPeerChannel(userIdx uint16, channelIdx byte, subscribed bool, volume, pan float32, mute, solo bool) error {
	err := w.eng.SetPeerChannel(userIdx, channelIdx, subscribed, volume, pan, mute, solo)
	if err == engine.ErrCapacityExceeded {
		w.pushEvent(events.UiEvent{Kind: events.CapacityExceeded, Text: err.Error()})
	}
	return err
}

// SetLocalMonitor forwards to the engine's lock-free monitor knob.
func (w *Worker) SetLocalMonitor(volume, pan float32, mute, solo bool) {
	w.eng.SetLocalMonitor(volume, pan, mute, solo)
}

// Peers returns a defensive snapshot of the peer/channel registry.
func (w *Worker) Peers() map[uint16]engine.PeerSnapshot { return w.eng.Peers() }

// onLicense is the engine callback installed at construction. It runs on
// whatever goroutine called Worker.Connect (not the tick goroutine) and
// blocks on the license rendezvous until the UI responds or the
// 60-second timeout elapses.
func (w *Worker) onLicense(text string) engine.LicenseDecision {
	return w.license.publish(text, licenseWait)
}

func (w *Worker) onStateChanged(state engine.ConnectionState, err error) {
	w.snap.SetConnectionState(int32(state))
	text := ""
	if err != nil {
		text = err.Error()
	}
	w.pushEvent(events.UiEvent{Kind: events.StatusChanged, State: int32(state), Text: text})
}

func (w *Worker) onUserInfoChanged() {
	w.pushEvent(events.UiEvent{Kind: events.UserInfoChanged})
}

func (w *Worker) onTopicChanged(text string) {
	w.pushEvent(events.UiEvent{Kind: events.TopicChanged, Text: text})
}

// tickLoop is T_net's body: call Run, publish whatever changed, sleep
// adaptively, repeat until ctx is cancelled. The sleep is short while
// Joined, Handshaking, or Authenticating (the UI expects responsiveness
// and intervals are time-sensitive) and long while Idle, with an upper
// bound so a stop request is never left waiting more than one tick.
func (w *Worker) tickLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		progressed, err := w.eng.Run()
		if err != nil {
			log.Printf("[worker] tick error: %v", err)
			w.pushEvent(events.UiEvent{Kind: events.StatusChanged, State: int32(w.eng.State()), Text: err.Error()})
		}
		w.publishSnapshot()

		sleep := tickIdle
		switch w.eng.State() {
		case engine.Joined, engine.Handshaking, engine.Authenticating:
			sleep = tickJoined
		}
		if progressed {
			sleep = 0
		}
		if sleep > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
		}
	}
}

// publishSnapshot copies the engine's current transport state into the
// shared UiAtomicSnapshot. Called once per tick from T_net; VU fields are
// written separately, by T_audio, and are not touched here.
func (w *Worker) publishSnapshot() {
	pos, length := w.eng.Interval()
	w.snap.SetInterval(pos, length)
	w.snap.SetBeatPosition(w.eng.BeatPosition())
	w.snap.SetConnectionState(int32(w.eng.State()))
}

func (w *Worker) pushEvent(ev events.UiEvent) {
	w.events.TryPush(ev)
}
