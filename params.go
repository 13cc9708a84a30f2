package plugin

import (
	"math"
	"sync/atomic"
)

// ParamID identifies one of the four fixed host parameters.
type ParamID int32

const (
	ParamMasterVolume ParamID = iota
	ParamMasterMute
	ParamMetronomeVolume
	ParamMetronomeMute
)

// ParamEvent is a single timestamped parameter change delivered by the
// host inside a Process call. Events for a given block are expected in
// non-decreasing Frame order, matching how every host automation stream
// this core targets already delivers them; Process applies each at (or
// before) its timestamped frame.
type ParamEvent struct {
	ID    ParamID
	Value float64
	Frame int
}

// paramState holds the four fixed parameters as lock-free atomics, read
// by Process on every block and written by both Process (applying host
// automation) and any UI-facing setter.
type paramState struct {
	masterVolume    atomic.Uint64 // float64 bits, linear [0,2]
	masterMute      atomic.Bool
	metronomeVolume atomic.Uint64 // float64 bits, linear [0,2]
	metronomeMute   atomic.Bool
}

func newParamState() *paramState {
	p := &paramState{}
	p.masterVolume.Store(math.Float64bits(1.0))
	p.metronomeVolume.Store(math.Float64bits(0.5))
	return p
}

func (p *paramState) apply(ev ParamEvent) {
	switch ev.ID {
	case ParamMasterVolume:
		p.masterVolume.Store(math.Float64bits(clampVolume(ev.Value)))
	case ParamMasterMute:
		p.masterMute.Store(ev.Value != 0)
	case ParamMetronomeVolume:
		p.metronomeVolume.Store(math.Float64bits(clampVolume(ev.Value)))
	case ParamMetronomeMute:
		p.metronomeMute.Store(ev.Value != 0)
	}
}

func (p *paramState) master() (volume float32, mute bool) {
	return float32(math.Float64frombits(p.masterVolume.Load())), p.masterMute.Load()
}

func (p *paramState) metronome() (volume float32, mute bool) {
	return float32(math.Float64frombits(p.metronomeVolume.Load())), p.metronomeMute.Load()
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 2 {
		return 2
	}
	return v
}

// DisplayDB maps a linear volume in [0, 2] to the dB value a host shows
// next to the parameter, per the 20*log10(v) convention with -inf at
// zero.
func DisplayDB(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(linear)
}
