package wire

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

// AuthChallenge is the server's initial handshake message: an opaque
// challenge to be hashed together with the user's credentials.
type AuthChallenge struct {
	Challenge          [8]byte
	ServerCapabilities uint32
	KeepaliveInterval  uint32 // seconds
}

func (c AuthChallenge) Marshal() []byte {
	buf := make([]byte, 16)
	copy(buf[0:8], c.Challenge[:])
	binary.LittleEndian.PutUint32(buf[8:12], c.ServerCapabilities)
	binary.LittleEndian.PutUint32(buf[12:16], c.KeepaliveInterval)
	return buf
}

func UnmarshalAuthChallenge(b []byte) (AuthChallenge, error) {
	var c AuthChallenge
	if len(b) < 16 {
		return c, fmt.Errorf("wire: auth challenge too short (%d bytes)", len(b))
	}
	copy(c.Challenge[:], b[0:8])
	c.ServerCapabilities = binary.LittleEndian.Uint32(b[8:12])
	c.KeepaliveInterval = binary.LittleEndian.Uint32(b[12:16])
	return c, nil
}

// HashChallenge computes the client-auth password hash NINJAM servers
// expect: SHA1(SHA1(username + ":" + password) joined with the server's
// challenge bytes).
func HashChallenge(username, password string, challenge [8]byte) [20]byte {
	inner := sha1.Sum([]byte(username + ":" + password))
	h := sha1.New()
	h.Write(inner[:])
	h.Write(challenge[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ClientAuth is sent in reply to AuthChallenge.
type ClientAuth struct {
	Username           string
	PasswordHash       [20]byte
	ClientCapabilities uint32
	ProtocolVersion    uint32
}

func (a ClientAuth) Marshal() []byte {
	buf := make([]byte, 0, len(a.Username)+1+20+8)
	buf = append(buf, []byte(a.Username)...)
	buf = append(buf, 0)
	buf = append(buf, a.PasswordHash[:]...)
	capBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(capBuf, a.ClientCapabilities)
	buf = append(buf, capBuf...)
	verBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(verBuf, a.ProtocolVersion)
	buf = append(buf, verBuf...)
	return buf
}

// AuthReply flags.
const (
	AuthReplySuccess        byte = 1 << 0
	AuthReplyLicenseRequired byte = 1 << 1
)

// AuthReply is the server's verdict on a ClientAuth, possibly carrying
// license text the UI must approve before the session is usable.
type AuthReply struct {
	Flags   byte
	Message string // error text on failure, license text when AuthReplyLicenseRequired is set
}

func UnmarshalAuthReply(b []byte) (AuthReply, error) {
	if len(b) < 1 {
		return AuthReply{}, fmt.Errorf("wire: auth reply empty")
	}
	return AuthReply{Flags: b[0], Message: string(b[1:])}, nil
}

func (r AuthReply) Succeeded() bool        { return r.Flags&AuthReplySuccess != 0 }
func (r AuthReply) NeedsLicense() bool     { return r.Flags&AuthReplyLicenseRequired != 0 }

// ConfigChange carries the server's beats-per-minute / beats-per-interval
// pair, published on join and whenever the admin changes them.
type ConfigChange struct {
	BPM uint16
	BPI uint16
}

func UnmarshalConfigChange(b []byte) (ConfigChange, error) {
	if len(b) < 4 {
		return ConfigChange{}, fmt.Errorf("wire: config change too short (%d bytes)", len(b))
	}
	return ConfigChange{
		BPM: binary.LittleEndian.Uint16(b[0:2]),
		BPI: binary.LittleEndian.Uint16(b[2:4]),
	}, nil
}

// UserChannelEntry describes one peer channel inside a UserInfoChange
// message: either an update (Active) or a removal.
type UserChannelEntry struct {
	Active      bool
	UserIndex   uint16
	ChannelIndex byte
	Volume      int16
	Pan         int16
	Flags       byte
	UserName    string
	ChannelName string
}

// UnmarshalUserInfoChange parses the variable-length list of channel
// entries in a ServerUserInfoChange payload.
func UnmarshalUserInfoChange(b []byte) ([]UserChannelEntry, error) {
	var entries []UserChannelEntry
	for len(b) > 0 {
		if len(b) < 8 {
			return nil, fmt.Errorf("wire: truncated user-info entry")
		}
		e := UserChannelEntry{
			Active:       b[0] != 0,
			ChannelIndex: b[1],
			Volume:       int16(binary.LittleEndian.Uint16(b[2:4])),
			Pan:          int16(binary.LittleEndian.Uint16(b[4:6])),
			Flags:        b[6],
		}
		b = b[7:]
		userName, rest, err := readCString(b)
		if err != nil {
			return nil, err
		}
		channelName, rest2, err := readCString(rest)
		if err != nil {
			return nil, err
		}
		e.UserName = userName
		e.ChannelName = channelName
		entries = append(entries, e)
		b = rest2
	}
	return entries, nil
}

func readCString(b []byte) (string, []byte, error) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), b[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("wire: unterminated string")
}

// SetUsermaskEntry toggles a peer channel subscription.
type SetUsermaskEntry struct {
	ChannelIndex byte
	Active       bool
}

func MarshalSetUsermask(entries []SetUsermaskEntry) []byte {
	buf := make([]byte, 0, len(entries)*2)
	for _, e := range entries {
		buf = append(buf, e.ChannelIndex)
		var flag byte
		if e.Active {
			flag = 1
		}
		buf = append(buf, flag)
	}
	return buf
}

// IntervalBegin announces a new local interval: fresh GUID, target
// channel, and the codec fourCC the payload chunks will carry.
type IntervalBegin struct {
	GUID         [16]byte
	ChannelIndex byte
	FourCC       [4]byte
}

func (m IntervalBegin) Marshal() []byte {
	buf := make([]byte, 21)
	copy(buf[0:16], m.GUID[:])
	buf[16] = m.ChannelIndex
	copy(buf[17:21], m.FourCC[:])
	return buf
}

// IntervalWrite carries one chunk of compressed audio for an in-flight
// interval; a zero-length AudioData is the terminating chunk.
type IntervalWrite struct {
	GUID      [16]byte
	AudioData []byte
}

func (m IntervalWrite) Marshal() []byte {
	buf := make([]byte, 16+len(m.AudioData))
	copy(buf[0:16], m.GUID[:])
	copy(buf[16:], m.AudioData)
	return buf
}

// DownloadInterval is the server->client counterpart: it carries a
// user index alongside the channel index so the receiver can route
// chunks to the right peer's decoder.
type DownloadInterval struct {
	GUID         [16]byte
	UserIndex    uint16
	ChannelIndex byte
	FourCC       [4]byte
	AudioData    []byte
	IsEnd        bool
}

func UnmarshalDownloadInterval(b []byte) (DownloadInterval, error) {
	var d DownloadInterval
	if len(b) < 23 {
		return d, fmt.Errorf("wire: download-interval header too short (%d bytes)", len(b))
	}
	copy(d.GUID[:], b[0:16])
	d.UserIndex = binary.LittleEndian.Uint16(b[16:18])
	d.ChannelIndex = b[18]
	copy(d.FourCC[:], b[19:23])
	d.AudioData = b[23:]
	d.IsEnd = len(d.AudioData) == 0
	return d, nil
}
