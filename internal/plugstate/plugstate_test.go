package plugstate_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"ninjamplugin/internal/plugstate"
)

func TestDefault(t *testing.T) {
	s := plugstate.Default()
	if s.Version != 1 {
		t.Errorf("version = %d, want 1", s.Version)
	}
	if s.Master.Volume != 1.0 || s.Master.Mute {
		t.Errorf("master = %+v, want {1.0 false}", s.Master)
	}
	if s.Metronome.Volume != 0.5 || s.Metronome.Mute {
		t.Errorf("metronome = %+v, want {0.5 false}", s.Metronome)
	}
	if !s.LocalChannel.Transmit || s.LocalChannel.BitrateKB != 64 {
		t.Errorf("localChannel = %+v, want transmit=true bitrate=64", s.LocalChannel)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	s := plugstate.State{
		Version:  1,
		Server:   "ninjam.example.com:2049",
		Username: "alice",
		Master:   plugstate.Monitor{Volume: 0.8, Mute: true},
		Metronome: plugstate.Monitor{
			Volume: 0.3,
			Mute:   false,
		},
		LocalChannel: plugstate.LocalChannel{Name: "gtr", Transmit: true, BitrateKB: 96},
	}

	if err := plugstate.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := plugstate.Load()
	if loaded != s {
		t.Errorf("round trip mismatch: saved %+v, loaded %+v", s, loaded)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	loaded := plugstate.Load()
	if loaded != plugstate.Default() {
		t.Errorf("loaded = %+v, want Default()", loaded)
	}
}

func TestLoadCorruptFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "ninjamplugin", "state.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not json {{{"), 0o600); err != nil {
		t.Fatal(err)
	}

	loaded := plugstate.Load()
	if loaded != plugstate.Default() {
		t.Errorf("loaded = %+v, want Default()", loaded)
	}
}

func TestLoadToleratesUnknownFieldsAndOlderVersion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "ninjamplugin", "state.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	doc := `{
		"version": 0,
		"server": "old.example.com:2049",
		"username": "bob",
		"somethingFromTheFuture": {"nested": true},
		"localChannel": {"name": "bass", "transmit": false, "bitrate": 32}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	loaded := plugstate.Load()
	if loaded.Server != "old.example.com:2049" || loaded.Username != "bob" {
		t.Errorf("loaded = %+v, want server/username from the old doc", loaded)
	}
	if loaded.LocalChannel.Name != "bass" || loaded.LocalChannel.Transmit {
		t.Errorf("localChannel = %+v, want {bass false 32}", loaded.LocalChannel)
	}
	if loaded.Version != 1 {
		t.Errorf("version = %d, want normalized to 1", loaded.Version)
	}
}

func TestPasswordFieldDoesNotExist(t *testing.T) {
	// State has no password field at all, so there is nothing a caller
	// could accidentally set that Save would then write to disk.
	if _, ok := reflect.TypeOf(plugstate.State{}).FieldByName("Password"); ok {
		t.Fatal("State has a Password field; Save would write it to disk")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := plugstate.Save(plugstate.Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, "ninjamplugin", "state.json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file not created: %v", err)
	}
}
