package plugin

import (
	"math"
	"testing"
)

func TestNewParamStateDefaults(t *testing.T) {
	p := newParamState()
	vol, mute := p.master()
	if vol != 1.0 || mute {
		t.Errorf("master = (%v, %v), want (1.0, false)", vol, mute)
	}
	vol, mute = p.metronome()
	if vol != 0.5 || mute {
		t.Errorf("metronome = (%v, %v), want (0.5, false)", vol, mute)
	}
}

func TestApplyClampsVolume(t *testing.T) {
	p := newParamState()
	p.apply(ParamEvent{ID: ParamMasterVolume, Value: 5})
	if vol, _ := p.master(); vol != 2 {
		t.Errorf("master volume = %v, want clamped to 2", vol)
	}
	p.apply(ParamEvent{ID: ParamMasterVolume, Value: -1})
	if vol, _ := p.master(); vol != 0 {
		t.Errorf("master volume = %v, want clamped to 0", vol)
	}
}

func TestApplyMuteIsStepped(t *testing.T) {
	p := newParamState()
	p.apply(ParamEvent{ID: ParamMasterMute, Value: 1})
	if _, mute := p.master(); !mute {
		t.Error("master mute = false after value=1")
	}
	p.apply(ParamEvent{ID: ParamMasterMute, Value: 0})
	if _, mute := p.master(); mute {
		t.Error("master mute = true after value=0")
	}
}

func TestApplyMetronomeIndependentOfMaster(t *testing.T) {
	p := newParamState()
	p.apply(ParamEvent{ID: ParamMetronomeVolume, Value: 1.5})
	p.apply(ParamEvent{ID: ParamMetronomeMute, Value: 1})

	if vol, mute := p.metronome(); vol != 1.5 || !mute {
		t.Errorf("metronome = (%v, %v), want (1.5, true)", vol, mute)
	}
	if vol, mute := p.master(); vol != 1.0 || mute {
		t.Errorf("master = (%v, %v), want untouched (1.0, false)", vol, mute)
	}
}

func TestDisplayDB(t *testing.T) {
	if got := DisplayDB(0); !math.IsInf(got, -1) {
		t.Errorf("DisplayDB(0) = %v, want -Inf", got)
	}
	if got := DisplayDB(1.0); math.Abs(got-0) > 1e-9 {
		t.Errorf("DisplayDB(1.0) = %v, want 0", got)
	}
	if got := DisplayDB(2.0); math.Abs(got-(20*math.Log10(2))) > 1e-9 {
		t.Errorf("DisplayDB(2.0) = %v, want %v", got, 20*math.Log10(2))
	}
}
