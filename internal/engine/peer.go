package engine

// LocalChannel is the single local stereo input stream this core
// supports: one display name, transmit flag, target bitrate, and
// monitoring parameters.
type LocalChannel struct {
	Name      string
	Transmit  bool
	BitrateKB int

	Volume float32 // linear gain, [0, 2]
	Pan    float32 // equal-power pan, [-1, 1]
	Mute   bool
	Solo   bool
}

// diff reports which fields changed relative to last, for the
// set_local_channel_info idempotence-diffing rule: only modified fields
// generate a wire message.
func (l LocalChannel) diff(last LocalChannel) (nameChanged, transmitChanged, bitrateChanged bool) {
	return l.Name != last.Name, l.Transmit != last.Transmit, l.BitrateKB != last.BitrateKB
}

// PeerChannel is one channel owned by a PeerUser: a name, subscription
// state, monitoring parameters, and the two VU peak slots the data model
// calls for.
type PeerChannel struct {
	Name       string
	Subscribed bool

	Volume float32
	Pan    float32
	Mute   bool
	Solo   bool

	VUPeakL float32
	VUPeakR float32

	// ringSlot is the index into the engine's pcmring.Pool reserved for
	// this channel's decoded PCM, or -1 if unsubscribed / capacity was
	// exhausted.
	ringSlot int
	// guid is not written anywhere in this package; the engine's
	// decoder map is keyed by peerKey(user, channel), not by this field.
	guid [16]byte
}

// PeerUser is identified by a server-assigned name and owns a set of
// PeerChannels keyed by channel index.
type PeerUser struct {
	Name     string
	UserIdx  uint16
	Channels map[byte]*PeerChannel
}

func newPeerUser(name string, idx uint16) *PeerUser {
	return &PeerUser{Name: name, UserIdx: idx, Channels: make(map[byte]*PeerChannel)}
}

// channel returns (creating if necessary) the PeerChannel at idx.
func (p *PeerUser) channel(idx byte) *PeerChannel {
	ch, ok := p.Channels[idx]
	if !ok {
		ch = &PeerChannel{ringSlot: -1}
		p.Channels[idx] = ch
	}
	return ch
}
