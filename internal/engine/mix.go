package engine

import (
	"math"
	"sync/atomic"

	"ninjamplugin/internal/meter"
)

// peerSlot mirrors one pcmring slot's mix parameters as lock-free
// atomics, so ProcessAudio can read "is this channel active, how loud,
// panned where" without ever taking the engine mutex. Every Engine
// preallocates cfg.PeerChannelCapacity of these at construction.
type peerSlot struct {
	active atomic.Bool
	mute   atomic.Bool
	solo   atomic.Bool
	volume atomic.Uint32 // float32 bits
	pan    atomic.Uint32 // float32 bits
}

// mixState holds the local-channel monitor parameters written from the
// UI/worker thread and read lock-free from ProcessAudio.
type mixState struct {
	localVolume atomic.Uint32 // float32 bits, linear [0,2]
	localPan    atomic.Uint32 // float32 bits, [-1,1]
	localMute   atomic.Bool
	localSolo   atomic.Bool

	localVUL atomic.Uint32 // float32 bits; engine's own local peak cache
	localVUR atomic.Uint32
}

// LocalVU returns the local-channel peak cache the engine maintains
// during ProcessAudio, for the plugin layer to publish into the UI
// snapshot.
func (e *Engine) LocalVU() (l, r float32) {
	return math.Float32frombits(e.mix.localVUL.Load()), math.Float32frombits(e.mix.localVUR.Load())
}

// SetLocalMonitor updates the local channel's monitoring gain/pan/mute,
// lock-free. Safe to call at any time; taken into account starting with
// the next ProcessAudio call.
func (e *Engine) SetLocalMonitor(volume, pan float32, mute, solo bool) {
	e.mix.localVolume.Store(math.Float32bits(volume))
	e.mix.localPan.Store(math.Float32bits(pan))
	e.mix.localMute.Store(mute)
	e.mix.localSolo.Store(solo)
}

// equalPowerGains returns the (left, right) gain multipliers for a mono
// source panned by pan in [-1, 1].
func equalPowerGains(pan float32) (l, r float32) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := float64(pan+1) * (math.Pi / 4) // maps [-1,1] -> [0, pi/2]
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// anySolo reports whether any channel (local or peer) is currently
// soloed, read lock-free over the preallocated slot array.
func (e *Engine) anySolo() bool {
	if e.mix.localSolo.Load() {
		return true
	}
	for i := range e.slots {
		if e.slots[i].active.Load() && e.slots[i].solo.Load() {
			return true
		}
	}
	return false
}

// ProcessAudio is the engine's single real-time-safe entry point,
// callable only while State()==Joined. It advances the interval clock,
// mixes every subscribed peer channel's decoded PCM plus the monitored
// local input plus metronome clicks, and writes the stereo result to
// out. It never allocates, never blocks, and never takes the engine
// mutex: peer/channel mix parameters are read from the preallocated
// atomic slot mirror, not the mutex-guarded registry.
func (e *Engine) ProcessAudio(inL, inR, outL, outR []float32, metronomeVolume float32, metronomeMute bool) {
	frames := len(outL)
	if len(outR) < frames {
		frames = len(outR)
	}
	if frames > len(e.mixScratch) {
		frames = len(e.mixScratch)
	}

	for i := 0; i < frames; i++ {
		outL[i] = 0
		outR[i] = 0
	}

	haveInput := len(inL) >= frames && len(inR) >= frames
	if haveInput {
		mono := e.mixMono[:frames]
		for i := 0; i < frames; i++ {
			mono[i] = (inL[i] + inR[i]) * 0.5
		}
		e.capture.Write(mono)
	}

	localVol := math.Float32frombits(e.mix.localVolume.Load())
	localPan := math.Float32frombits(e.mix.localPan.Load())
	localMute := e.mix.localMute.Load()
	anySolo := e.anySolo()

	localAudible := !localMute && (!anySolo || e.mix.localSolo.Load())
	if localAudible && haveInput {
		gl, gr := equalPowerGains(localPan)
		for i := 0; i < frames; i++ {
			mono := (inL[i] + inR[i]) * 0.5 * localVol
			outL[i] += mono * gl
			outR[i] += mono * gr
		}
	}

	var localPeakL, localPeakR float32
	if len(inL) >= frames {
		localPeakL = meter.Peak(inL[:frames])
	}
	if len(inR) >= frames {
		localPeakR = meter.Peak(inR[:frames])
	}
	e.mix.localVUL.Store(math.Float32bits(localPeakL))
	e.mix.localVUR.Store(math.Float32bits(localPeakR))

	e.mixPeerChannels(outL, outR, frames, anySolo)

	if !metronomeMute && metronomeVolume > 0 {
		e.mixMetronome(outL, outR, frames, metronomeVolume)
	}

	crossed := e.intervalPosition.Add(int64(frames)) >= e.intervalLength.Load()
	if crossed {
		e.boundaryPending.Store(true)
	}
	length := e.intervalLength.Load()
	if length > 0 {
		bpi := int64(e.bpiAtomic.Load())
		pos := e.intervalPosition.Load()
		if pos > length {
			pos = length
		}
		e.beatPosition.Store(pos * bpi / length)
	}
}

// Interval returns the current (position, length) pair, safe to call
// from any thread.
func (e *Engine) Interval() (position, length int64) {
	return e.intervalPosition.Load(), e.intervalLength.Load()
}

// BeatPosition returns the current beat index, safe to call from any
// thread.
func (e *Engine) BeatPosition() int64 { return e.beatPosition.Load() }

// mixPeerChannels reads every preallocated slot's atomics (lock-free)
// and, for active+audible ones, mixes its ring's buffered PCM into the
// output. Active slots that are muted or excluded by solo are still
// drained so a ring never grows stale while silenced; inactive slots are
// skipped.
func (e *Engine) mixPeerChannels(outL, outR []float32, frames int, anySolo bool) {
	scratch := e.mixScratch[:frames]
	for i := range e.slots {
		s := &e.slots[i]
		if !s.active.Load() {
			continue
		}
		ring := e.pcm.Ring(i)
		ring.Read(scratch)

		if s.mute.Load() || (anySolo && !s.solo.Load()) {
			continue
		}
		volume := math.Float32frombits(s.volume.Load())
		pan := math.Float32frombits(s.pan.Load())
		gl, gr := equalPowerGains(pan)
		for f := 0; f < frames; f++ {
			v := scratch[f] * volume
			outL[f] += v * gl
			outR[f] += v * gr
		}
	}
}
