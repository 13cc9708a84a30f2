package engine

import "math"

// clickFrames is how many frames of the synthesized click decay to
// render at the start of each beat.
const clickFrames = 240 // 5ms @ 48kHz

// mixMetronome adds a short decaying tone burst at every beat boundary
// that falls inside this block. Placement uses integer frame math on
// interval_length/bpi rather than a running phase accumulator, so the
// click never drifts over a long session: each beat's start frame is
// computed directly from the interval position, not accumulated error.
func (e *Engine) mixMetronome(outL, outR []float32, frames int, volume float32) {
	length := e.intervalLength.Load()
	bpi := int64(e.bpiAtomic.Load())
	if length <= 0 || bpi <= 0 {
		return
	}
	blockStart := e.intervalPosition.Load()
	blockEnd := blockStart + int64(frames)

	beatLen := length / bpi
	if beatLen <= 0 {
		return
	}
	firstBeat := blockStart / beatLen
	for beat := firstBeat; beat*beatLen < blockEnd; beat++ {
		beatStart := beat * beatLen
		if beatStart < blockStart {
			continue
		}
		offset := int(beatStart - blockStart)
		renderClick(outL, outR, offset, frames, volume, float64(e.cfg.SampleRate))
	}
}

// renderClick additively mixes a short sine burst with a linear decay
// envelope starting at offset within the block. sampleRate is the
// session's configured rate, not a fixed constant: the click's pitch and
// envelope length must track whatever rate the host actually opened.
func renderClick(outL, outR []float32, offset, frames int, volume float32, sampleRate float64) {
	const freq = 1000.0 // Hz
	n := clickFrames
	if offset+n > frames {
		n = frames - offset
	}
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		env := float32(1 - float64(i)/float64(clickFrames))
		s := float32(math.Sin(2*math.Pi*freq*t)) * env * volume
		outL[offset+i] += s
		outR[offset+i] += s
	}
}
