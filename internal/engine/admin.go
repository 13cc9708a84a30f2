package engine

import "ninjamplugin/internal/wire"

// SetLocalChannel is the idempotent channel-administration entry point:
// it diffs against the last-sent values and emits a user-info message
// only for the fields that actually changed.
func (e *Engine) SetLocalChannel(name string, transmit bool, bitrateKB int) error {
	e.mu.Lock()
	next := LocalChannel{
		Name: name, Transmit: transmit, BitrateKB: bitrateKB,
		Volume: e.local.Volume, Pan: e.local.Pan, Mute: e.local.Mute, Solo: e.local.Solo,
	}
	nameChanged, transmitChanged, bitrateChanged := next.diff(e.lastLocal)
	e.local.Name, e.local.Transmit, e.local.BitrateKB = name, transmit, bitrateKB
	changed := nameChanged || transmitChanged || bitrateChanged
	e.lastLocal = next
	conn := e.conn
	encoder := e.encoder
	e.mu.Unlock()

	if bitrateChanged && encoder != nil {
		_ = encoder.SetBitrate(bitrateKB * 1000)
	}
	if !changed || conn == nil {
		return nil
	}
	entry := wire.UserChannelEntry{
		Active: transmit, UserName: "", ChannelName: name,
	}
	return wire.WriteMessage(conn, wire.MsgServerUserInfoChange, marshalOutgoingUserInfo(entry))
}

// marshalOutgoingUserInfo encodes a single outgoing user-info entry in
// the same layout UnmarshalUserInfoChange parses on the way in.
func marshalOutgoingUserInfo(e wire.UserChannelEntry) []byte {
	buf := make([]byte, 0, 8+len(e.UserName)+len(e.ChannelName)+2)
	var active byte
	if e.Active {
		active = 1
	}
	buf = append(buf, active, e.ChannelIndex, 0, 0, 0, 0, e.Flags)
	buf = append(buf, []byte(e.UserName)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(e.ChannelName)...)
	buf = append(buf, 0)
	return buf
}

// SetPeerChannel mutates a peer channel's monitoring parameters and, if
// subscribed flipped, sends server-set-usermask. Subscribing reserves a
// preallocated pcmring slot immediately so the first incoming chunk
// never has to; if the pool is exhausted the channel stays unsubscribed
// and ErrCapacityExceeded is returned.
func (e *Engine) SetPeerChannel(userIdx uint16, channelIdx byte, subscribed bool, volume, pan float32, mute, solo bool) error {
	e.mu.Lock()
	user, ok := e.peers[userIdx]
	if !ok {
		e.mu.Unlock()
		return ErrProtocolError
	}
	ch := user.channel(channelIdx)
	wasSubscribed := ch.Subscribed
	ch.Volume, ch.Pan, ch.Mute, ch.Solo = volume, pan, mute, solo

	var capacityErr error
	if subscribed && !wasSubscribed {
		if ch.ringSlot < 0 {
			slot, ok := e.pcm.Acquire()
			if !ok {
				capacityErr = ErrCapacityExceeded
				subscribed = false
			} else {
				ch.ringSlot = slot
			}
		}
	}
	if !subscribed && wasSubscribed && ch.ringSlot >= 0 {
		e.slots[ch.ringSlot].active.Store(false)
		e.pcm.Release(ch.ringSlot)
		ch.ringSlot = -1
	}
	ch.Subscribed = subscribed
	e.mirrorSlotLocked(ch)
	conn := e.conn
	e.mu.Unlock()

	if conn != nil && subscribed != wasSubscribed {
		mask := []wire.SetUsermaskEntry{{ChannelIndex: channelIdx, Active: subscribed}}
		_ = wire.WriteMessage(conn, wire.MsgClientSetUsermask, wire.MarshalSetUsermask(mask))
	}
	return capacityErr
}

// PeerSnapshot is a read-only copy of one peer's channel set, safe to
// hold and render on the UI thread without racing the worker.
type PeerSnapshot struct {
	Name     string
	Channels map[byte]PeerChannel
}

// Peers returns a defensive copy of the peer registry, refreshed under
// the engine mutex. The UI calls this after observing UserInfoChanged.
func (e *Engine) Peers() map[uint16]PeerSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[uint16]PeerSnapshot, len(e.peers))
	for idx, p := range e.peers {
		channels := make(map[byte]PeerChannel, len(p.Channels))
		for ci, ch := range p.Channels {
			channels[ci] = *ch
		}
		out[idx] = PeerSnapshot{Name: p.Name, Channels: channels}
	}
	return out
}
