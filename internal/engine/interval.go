package engine

import (
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"

	"ninjamplugin/internal/clock"
	"ninjamplugin/internal/pcmring"
	"ninjamplugin/internal/wire"
)

func peerKey(userIdx uint16, channelIdx byte) uint32 {
	return uint32(userIdx)<<8 | uint32(channelIdx)
}

// rotateInterval runs on the worker thread when Run observes
// boundaryPending: finish the current local interval (stream the whole
// codec frames still queued, send the terminating empty chunk) and begin the next
// one with a fresh GUID. If a BPM/BPI change arrived mid-interval, it is
// adopted here — never mid-flight — per the tie-break rule that the
// current interval always completes at its original length.
func (e *Engine) rotateInterval() {
	e.mu.Lock()
	conn := e.conn
	guid := e.localGUID
	newBPM, newBPI, adopt := e.pendingBPM, e.pendingBPI, e.bpmPending
	e.bpmPending = false
	e.mu.Unlock()

	if conn == nil {
		return
	}
	// Stream every whole codec frame still queued under the outgoing GUID,
	// then the terminating empty chunk; any partial tail shorter than one
	// frame is simply not transmitted, matching the "not delayed"
	// boundary rule.
	for n := e.capture.Available() / frameSamples; n > 0; n-- {
		if e.drainCaptureAndEncode(e.capture) != nil {
			break
		}
	}
	_ = wire.WriteMessage(conn, wire.MsgUploadIntervalWrite, wire.IntervalWrite{GUID: guid}.Marshal())

	e.mu.Lock()
	if adopt {
		e.bpm, e.bpi = newBPM, newBPI
		e.bpiAtomic.Store(int32(e.bpi))
	}
	length := clock.FramesForInterval(float64(e.cfg.SampleRate), e.bpi, e.bpm)
	e.mu.Unlock()

	next := [16]byte(uuid.New())
	e.mu.Lock()
	e.localGUID = next
	e.mu.Unlock()

	e.intervalPosition.Store(0)
	e.intervalLength.Store(length)
	e.beatPosition.Store(0)

	if conn != nil {
		_ = wire.WriteMessage(conn, wire.MsgUploadIntervalBegin, wire.IntervalBegin{GUID: next, FourCC: [4]byte{'O', 'G', 'G', 'v'}}.Marshal())
	}
}

// drainCaptureAndEncode pulls whatever local PCM the audio thread has
// queued into capture, encodes one codec frame at a time, and streams
// the result as interval chunks. Called from Run, never from the audio
// thread.
func (e *Engine) drainCaptureAndEncode(capture *pcmring.Ring) error {
	e.mu.Lock()
	encoder := e.encoder
	conn := e.conn
	guid := e.localGUID
	transmit := e.local.Transmit
	e.mu.Unlock()
	if !transmit {
		// Not transmitting: drop whatever has queued up so the ring
		// doesn't silently fall behind once transmit is re-enabled.
		var scratch [frameSamples]float32
		for capture.ReadFull(scratch[:]) {
		}
		return nil
	}
	if encoder == nil || conn == nil {
		return nil
	}

	var frame [frameSamples]float32
	if !capture.ReadFull(frame[:]) {
		return nil
	}
	pcm := make([]int16, frameSamples)
	for i, s := range frame {
		pcm[i] = int16(s * 32767)
	}
	buf := make([]byte, maxEncodedFrame)
	n, err := encoder.Encode(pcm, buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodecError, err)
	}
	return wire.WriteMessage(conn, wire.MsgUploadIntervalWrite, wire.IntervalWrite{GUID: guid, AudioData: buf[:n]}.Marshal())
}

const (
	frameSamples    = 960 // 20ms @ 48kHz, matches the codec's native frame size
	maxEncodedFrame = 4000
)

// applyUserInfoChange mutates the peer registry in response to a server
// notification. Runs on the worker thread; the UI only ever reads a
// refreshed copy, guarded by the dirty flag the caller (Run) surfaces via
// OnUserInfoChanged.
func (e *Engine) applyUserInfoChange(entries []wire.UserChannelEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ent := range entries {
		user, ok := e.peers[ent.UserIndex]
		if !ok {
			user = newPeerUser(ent.UserName, ent.UserIndex)
			e.peers[ent.UserIndex] = user
		}
		if !ent.Active {
			if ch, ok := user.Channels[ent.ChannelIndex]; ok && ch.ringSlot >= 0 {
				e.slots[ch.ringSlot].active.Store(false)
				e.pcm.Release(ch.ringSlot)
			}
			delete(user.Channels, ent.ChannelIndex)
			if len(user.Channels) == 0 {
				delete(e.peers, ent.UserIndex)
			}
			continue
		}
		ch := user.channel(ent.ChannelIndex)
		ch.Name = ent.ChannelName
		ch.Volume = volumeFromWire(ent.Volume)
		ch.Pan = panFromWire(ent.Pan)
		e.mirrorSlotLocked(ch)
	}
	e.peersDirty = true
}

// mirrorSlotLocked copies a channel's current mix parameters into its
// preallocated atomic slot mirror, if it has one. Caller must hold mu.
func (e *Engine) mirrorSlotLocked(ch *PeerChannel) {
	if ch.ringSlot < 0 {
		return
	}
	s := &e.slots[ch.ringSlot]
	s.active.Store(true)
	s.mute.Store(ch.Mute)
	s.solo.Store(ch.Solo)
	s.volume.Store(math.Float32bits(ch.Volume))
	s.pan.Store(math.Float32bits(ch.Pan))
}

func volumeFromWire(v int16) float32 { return float32(v) / 256.0 }
func panFromWire(p int16) float32    { return float32(p) / 256.0 }

// handleDownloadInterval decodes an incoming interval chunk for a
// subscribed channel straight into that channel's preallocated PCM ring
// as soon as it arrives. Chunks are not buffered per GUID, and playback
// is not held back to the next interval boundary.
func (e *Engine) handleDownloadInterval(dl wire.DownloadInterval) {
	e.mu.Lock()
	user, ok := e.peers[dl.UserIndex]
	if !ok {
		e.mu.Unlock()
		return
	}
	ch, ok := user.Channels[dl.ChannelIndex]
	if !ok || !ch.Subscribed {
		e.mu.Unlock()
		return
	}
	if ch.ringSlot < 0 {
		slot, ok := e.pcm.Acquire()
		if !ok {
			e.mu.Unlock()
			return // CapacityExceeded was already reported at subscribe time
		}
		ch.ringSlot = slot
		e.mirrorSlotLocked(ch)
	}
	key := peerKey(dl.UserIndex, dl.ChannelIndex)
	dec, ok := e.decoder[key]
	if !ok {
		var err error
		dec, err = e.cfg.Codec.NewDecoder(e.cfg.SampleRate, 1)
		if err != nil {
			e.mu.Unlock()
			log.Printf("[engine] new decoder for peer %d channel %d: %v", dl.UserIndex, dl.ChannelIndex, err)
			return
		}
		e.decoder[key] = dec
	}
	ring := e.pcm.Ring(ch.ringSlot)
	e.mu.Unlock()

	if dl.IsEnd {
		return
	}
	pcm := make([]int16, frameSamples)
	n, err := dec.Decode(dl.AudioData, pcm)
	if err != nil {
		// CodecError on one block: drop it, the decoder simply has
		// nothing to play for that slice.
		log.Printf("[engine] decode peer %d channel %d: %v", dl.UserIndex, dl.ChannelIndex, err)
		return
	}
	floats := make([]float32, n)
	for i, s := range pcm[:n] {
		floats[i] = float32(s) / 32768.0
	}
	ring.Write(floats)
}
