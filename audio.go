package plugin

import (
	"ninjamplugin/internal/engine"
	"ninjamplugin/internal/meter"
	"ninjamplugin/internal/worker"
)

// Process is the plugin's single real-time-safe entry point, called once
// per host audio block. It never takes p.mu, never allocates, and never
// blocks: the active worker (if any) is read from a lock-free atomic
// pointer, the input is assembled into preallocated scratch sized at
// Activate, and all per-block mix work happens on the engine's own
// real-time path.
//
// paramEvents carries the block's timestamped host automation, assumed
// delivered in non-decreasing Frame order (the contract every
// automation-capable host this core targets already honors). Each event
// splits the block at its Frame, and each segment is mixed under the
// metronome volume/mute in force at that point. Master volume and mute
// are not split this way: they are applied once, after the last
// segment, to the whole block, using the values left by the block's
// last event.
func (p *Plugin) Process(inL, inR, outL, outR []float32, paramEvents []ParamEvent) {
	// The host's promised block length governs; it owns both buffers'
	// backing storage, so outL/outR are never truncated by a short or
	// absent input bus — a nil or short input reads as silence for
	// whatever tail it doesn't cover, not as a reason to skip the block.
	frames := len(outL)
	if len(outR) < frames {
		frames = len(outR)
	}
	if frames > len(p.segInL) {
		frames = len(p.segInL) // defends the preallocated scratch; a
		// conforming host never exceeds the MaxBlockSize negotiated at
		// Activate, so this only bites a misbehaving caller.
	}
	outL = outL[:frames]
	outR = outR[:frames]
	if frames == 0 {
		return
	}

	segInL := p.segInL[:frames]
	segInR := p.segInR[:frames]
	fillSegment(segInL, inL)
	fillSegment(segInR, inR)

	w := p.wPtr.Load()

	cursor := 0
	for _, ev := range paramEvents {
		if ev.Frame > cursor && ev.Frame < frames {
			p.processSegment(w, segInL[cursor:ev.Frame], segInR[cursor:ev.Frame], outL[cursor:ev.Frame], outR[cursor:ev.Frame])
			cursor = ev.Frame
		}
		p.params.apply(ev)
	}
	p.processSegment(w, segInL[cursor:], segInR[cursor:], outL[cursor:], outR[cursor:])

	masterVol, masterMute := p.params.master()
	if masterMute {
		for i := range outL {
			outL[i] = 0
			outR[i] = 0
		}
	} else if w != nil && w.Engine().State() == engine.Joined {
		for i := range outL {
			outL[i] *= masterVol
			outR[i] *= masterVol
		}
	}

	peakL, peakR := meter.StereoPeak(outL, outR)
	p.snap.SetMasterVU(peakL, peakR)
	if w != nil {
		localL, localR := w.Engine().LocalVU()
		p.snap.SetLocalVU(localL, localR)
	}
}

// processSegment mixes one contiguous run of frames under a single set
// of parameter values. While not Joined (or while no session is active
// at all), the segment is pure pass-through: output == input, bitwise.
func (p *Plugin) processSegment(w *worker.Worker, inL, inR, outL, outR []float32) {
	if w == nil || w.Engine().State() != engine.Joined {
		copy(outL, inL)
		copy(outR, inR)
		return
	}
	metroVol, metroMute := p.params.metronome()
	w.Engine().ProcessAudio(inL, inR, outL, outR, metroVol, metroMute)
}

// fillSegment copies as much of full into dst as overlaps, zero-filling
// whatever full doesn't cover (a short or entirely absent input bus).
func fillSegment(dst, full []float32) {
	n := copy(dst, full)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
