// Package plugin is the top-level entry point: it owns exactly one
// engine (via one worker), one event ring, one atomic snapshot, and the
// persisted preferences, and exposes the imperative/read-only surface a
// host or UI drives. Keep this struct thin — delegate to worker and
// engine rather than duplicating their state.
package plugin

import (
	"fmt"
	"sync"
	"sync/atomic"

	"ninjamplugin/internal/codec"
	"ninjamplugin/internal/engine"
	"ninjamplugin/internal/events"
	"ninjamplugin/internal/pcmring"
	"ninjamplugin/internal/plugstate"
	"ninjamplugin/internal/ring"
	"ninjamplugin/internal/snapshot"
	"ninjamplugin/internal/worker"
)

// ActivateConfig carries the parameters the host supplies at activation:
// its sample rate and the largest block size it promises never to
// exceed. Both are fixed for the activation's lifetime; a sample-rate
// change requires Deactivate then Activate again.
type ActivateConfig struct {
	SampleRate          int
	MaxBlockSize        int
	PeerChannelCapacity int
}

// Plugin is the single owner of one session's engine, worker, and UI
// surface. The zero Plugin is not usable; construct with New.
type Plugin struct {
	mu     sync.Mutex
	active bool

	events *ring.Ring
	snap   *snapshot.Snapshot
	params *paramState

	// wPtr mirrors the active worker (nil while inactive) behind an
	// atomic pointer so Process, the real-time entry point, can read it
	// without ever taking mu. Every other method still goes through mu
	// for the ordinary start/stop/reconfigure serialization a UI/worker
	// thread needs; only the RT-reachable read is lock-free.
	wPtr atomic.Pointer[worker.Worker]

	// segInL/segInR are preallocated to ActivateConfig.MaxBlockSize at
	// Activate, giving Process somewhere to assemble a silence-filled
	// input segment without allocating. Only Process reads or writes
	// them, and only between Activate and the matching Deactivate — the
	// same single-real-time-caller contract every host audio plugin API
	// already guarantees.
	segInL []float32
	segInR []float32

	state plugstate.State
}

// New constructs an inactive Plugin with its event ring and persisted
// preferences loaded, ready for Activate.
func New() *Plugin {
	return &Plugin{
		events: ring.New(64),
		snap:   snapshot.New(),
		params: newParamState(),
		state:  plugstate.Load(),
	}
}

// Activate builds the engine/worker pair for this sample rate and block
// size and starts the worker's tick goroutine. Calling Activate while
// already active is an error; call Deactivate first.
func (p *Plugin) Activate(cfg ActivateConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return fmt.Errorf("plugin: already active")
	}
	if cfg.PeerChannelCapacity <= 0 {
		cfg.PeerChannelCapacity = 32
	}

	p.segInL = make([]float32, cfg.MaxBlockSize)
	p.segInR = make([]float32, cfg.MaxBlockSize)

	pool := pcmring.NewPool(cfg.PeerChannelCapacity, cfg.MaxBlockSize)
	w := worker.New(worker.Config{
		Engine: engine.Config{
			SampleRate:          cfg.SampleRate,
			MaxBlockSize:        cfg.MaxBlockSize,
			PeerChannelCapacity: cfg.PeerChannelCapacity,
			Codec:               codec.OpusFactory{},
		},
	}, p.events, p.snap, pool)

	if err := w.Start(); err != nil {
		return err
	}
	p.wPtr.Store(w)
	p.active = true
	return nil
}

// Deactivate stops the worker's tick goroutine and tears down the
// session. Safe to call when not active.
func (p *Plugin) Deactivate() {
	p.mu.Lock()
	p.active = false
	w := p.wPtr.Swap(nil)
	p.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

func (p *Plugin) worker() (*worker.Worker, error) {
	w := p.wPtr.Load()
	if w == nil {
		return nil, fmt.Errorf("plugin: not active")
	}
	return w, nil
}

// Connect dispatches connect(host, user, pass) to the worker.
func (p *Plugin) Connect(addr, username, password string) error {
	w, err := p.worker()
	if err != nil {
		return err
	}
	return w.Connect(addr, username, password)
}

// Disconnect dispatches disconnect to the worker, if active.
func (p *Plugin) Disconnect() {
	if w, err := p.worker(); err == nil {
		w.Disconnect()
	}
}

// SetLocalChannel forwards the local channel's transmit configuration.
func (p *Plugin) SetLocalChannel(name string, transmit bool, bitrateKB int) error {
	w, err := p.worker()
	if err != nil {
		return err
	}
	err = w.SetLocalChannel(name, transmit, bitrateKB)
	p.mu.Lock()
	p.state.LocalChannel = plugstate.LocalChannel{Name: name, Transmit: transmit, BitrateKB: bitrateKB}
	p.mu.Unlock()
	return err
}

// SetPeerChannel forwards one peer channel's monitoring configuration.
func (p *Plugin) SetPeerChannel(userIdx uint16, channelIdx byte, subscribed bool, volume, pan float32, mute, solo bool) error {
	w, err := p.worker()
	if err != nil {
		return err
	}
	return w.SetPeerChannel(userIdx, channelIdx, subscribed, volume, pan, mute, solo)
}

// SetLocalMonitor forwards the local monitor volume/pan/mute/solo.
func (p *Plugin) SetLocalMonitor(volume, pan float32, mute, solo bool) {
	if w, err := p.worker(); err == nil {
		w.SetLocalMonitor(volume, pan, mute, solo)
	}
}

// SetParam applies one host parameter change outside of a Process call
// (e.g. from a UI control, rather than timestamped host automation).
func (p *Plugin) SetParam(id ParamID, value float64) {
	p.params.apply(ParamEvent{ID: id, Value: value})
}

// Peers returns a defensive copy of the peer/channel registry.
func (p *Plugin) Peers() map[uint16]engine.PeerSnapshot {
	w, err := p.worker()
	if err != nil {
		return nil
	}
	return w.Peers()
}

// DrainEvents visits every queued UiEvent in FIFO order. Call once per UI
// frame.
func (p *Plugin) DrainEvents(visitor func(events.UiEvent)) {
	p.events.Drain(visitor)
}

// Snapshot returns the read-only atomic snapshot for continuous
// sampling (interval position, beat, VU peaks, connection state). Its
// bpm and bpi fields are not published by the worker and read zero.
func (p *Plugin) Snapshot() *snapshot.Snapshot { return p.snap }

// LicenseRequest returns the pending license prompt text, if any.
func (p *Plugin) LicenseRequest() (text string, pending bool) {
	w, err := p.worker()
	if err != nil {
		return "", false
	}
	return w.LicenseText()
}

// RespondLicense resolves a pending license prompt.
func (p *Plugin) RespondLicense(accept bool) {
	if w, err := p.worker(); err == nil {
		w.RespondLicense(accept)
	}
}

// LoadState refreshes the in-memory preferences from disk. Called once
// at construction (via New) and available to call again explicitly.
func (p *Plugin) LoadState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = plugstate.Load()
}

// SaveState snapshots the current server/username/monitor/local-channel
// configuration under the plugin mutex, then writes it to disk outside
// the lock. server and username come from the caller (the UI owns the
// connect-form fields); password is never part of this document.
func (p *Plugin) SaveState(server, username string) error {
	masterVol, masterMute := p.params.master()
	metroVol, metroMute := p.params.metronome()

	p.mu.Lock()
	state := p.state
	state.Server = server
	state.Username = username
	state.Master = plugstate.Monitor{Volume: float64(masterVol), Mute: masterMute}
	state.Metronome = plugstate.Monitor{Volume: float64(metroVol), Mute: metroMute}
	p.state = state
	p.mu.Unlock()

	return plugstate.Save(state)
}

// State returns a copy of the in-memory preferences document (e.g. for
// the UI to prefill a connect form on startup).
func (p *Plugin) State() plugstate.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
