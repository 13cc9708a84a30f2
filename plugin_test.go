package plugin

import (
	"testing"

	"ninjamplugin/internal/events"
)

func TestNewIsInactiveUntilActivate(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	p := New()
	if err := p.Connect("127.0.0.1:0", "u", "p"); err == nil {
		t.Fatal("Connect() before Activate = nil, want an error")
	}
}

func TestActivateTwiceErrors(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	p := New()
	cfg := ActivateConfig{SampleRate: 48000, MaxBlockSize: 256, PeerChannelCapacity: 4}
	if err := p.Activate(cfg); err != nil {
		t.Fatalf("Activate() = %v", err)
	}
	defer p.Deactivate()
	if err := p.Activate(cfg); err == nil {
		t.Fatal("second Activate() = nil, want an error")
	}
}

func TestDeactivateWithoutActivateIsNoop(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	p := New()
	p.Deactivate() // must not panic
}

func TestSaveStateWritesServerAndUsername(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	p := New()

	if err := p.SaveState("ninjam.example.com:2049", "alice"); err != nil {
		t.Fatalf("SaveState() = %v", err)
	}
	if got := p.State(); got.Server != "ninjam.example.com:2049" || got.Username != "alice" {
		t.Errorf("State() = %+v, want server/username set", got)
	}

	reloaded := New()
	if reloaded.State().Server != "ninjam.example.com:2049" {
		t.Errorf("reloaded server = %q, want round-tripped value", reloaded.State().Server)
	}
}

func TestDrainEventsEmptyIsNoop(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	p := New()
	calls := 0
	p.DrainEvents(func(_ events.UiEvent) { calls++ })
	if calls != 0 {
		t.Errorf("visitor called %d times on an empty ring, want 0", calls)
	}
}
