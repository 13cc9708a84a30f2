// Package plugstate manages the plugin's persisted preferences: the last
// server/username, master and metronome monitor settings, and the local
// channel's transmit configuration. Stored as JSON at
// os.UserConfigDir()/ninjamplugin/state.json.
package plugstate

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// currentVersion is bumped whenever a field's meaning changes in a way
// that Load can't tolerate transparently. Load never rejects an older
// (or newer) version; it just fills in defaults for anything missing.
const currentVersion = 1

// State is the full persisted document. Password is deliberately absent:
// it is never written to disk.
type State struct {
	Version      int          `json:"version"`
	Server       string       `json:"server"`
	Username     string       `json:"username"`
	Master       Monitor      `json:"master"`
	Metronome    Monitor      `json:"metronome"`
	LocalChannel LocalChannel `json:"localChannel"`
}

// Monitor is a volume/mute pair, shared shape for the master and
// metronome sections.
type Monitor struct {
	Volume float64 `json:"volume"`
	Mute   bool    `json:"mute"`
}

// LocalChannel is the transmit configuration remembered across sessions.
type LocalChannel struct {
	Name      string `json:"name"`
	Transmit  bool   `json:"transmit"`
	BitrateKB int    `json:"bitrate"`
}

// Default returns a State populated with sensible defaults for a first
// run.
func Default() State {
	return State{
		Version:   currentVersion,
		Master:    Monitor{Volume: 1.0, Mute: false},
		Metronome: Monitor{Volume: 0.5, Mute: false},
		LocalChannel: LocalChannel{
			Name:      "channel0",
			Transmit:  true,
			BitrateKB: 64,
		},
	}
}

// Path returns the absolute path to the state file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ninjamplugin", "state.json"), nil
}

// Load reads the state file and returns it. If the file is missing,
// unreadable, or its JSON is malformed, the default state is returned —
// never an error — since a corrupt or absent preferences file is not a
// reason to refuse to start. Unknown fields and fields from an older
// version are tolerated by decoding on top of Default().
func Load() State {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	state := Default()
	if err := json.Unmarshal(data, &state); err != nil {
		return Default()
	}
	if state.Version <= 0 {
		state.Version = currentVersion
	}
	return state
}

// Save writes state to disk, creating the directory if needed. The
// caller is responsible for taking any snapshot of live state (e.g.
// under the engine mutex) before calling Save; this function itself does
// no locking and performs its write entirely off any caller-held lock.
func Save(state State) error {
	if state.Version == 0 {
		state.Version = currentVersion
	}
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return writeFileFull(path, data, 0o600)
}

// writeFileFull writes data to path, looping on partial writes the way a
// regular file write on some platforms/filesystems can legitimately
// return fewer bytes than requested. os.WriteFile's single f.Write call
// would silently truncate on a short write; this loops until every byte
// is accounted for or a real error occurs.
func writeFileFull(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()

	for written := 0; written < len(data); {
		n, err := f.Write(data[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}
