package engine

import (
	"bufio"
	"net"
	"testing"
	"time"

	"ninjamplugin/internal/wire"
)

type recvMsg struct {
	msgType byte
	payload []byte
}

// attachPipe wires e.conn to one end of an in-memory net.Pipe and drains
// everything written on it into a channel, so tests can assert on
// exactly which (and how many) messages SetLocalChannel/SetPeerChannel
// produce.
func attachPipe(t *testing.T, e *Engine) <-chan recvMsg {
	t.Helper()
	client, server := net.Pipe()
	e.mu.Lock()
	e.conn = client
	e.reader = bufio.NewReader(client)
	e.mu.Unlock()

	out := make(chan recvMsg, 16)
	go func() {
		r := bufio.NewReader(server)
		for {
			hdr, payload, err := wire.ReadMessage(r)
			if err != nil {
				close(out)
				return
			}
			out <- recvMsg{hdr.MsgType, payload}
		}
	}()
	t.Cleanup(func() { client.Close(); server.Close() })
	return out
}

func recvOrTimeout(t *testing.T, ch <-chan recvMsg) recvMsg {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before a message arrived")
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
		return recvMsg{}
	}
}

func assertNoMessage(t *testing.T, ch <-chan recvMsg) {
	t.Helper()
	select {
	case m, ok := <-ch:
		if ok {
			t.Fatalf("unexpected message sent: type=%d", m.msgType)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSetLocalChannelSendsOnFirstCall(t *testing.T) {
	e := newTestEngine(t)
	ch := attachPipe(t, e)

	if err := e.SetLocalChannel("guitar", true, 64); err != nil {
		t.Fatalf("SetLocalChannel() = %v", err)
	}
	msg := recvOrTimeout(t, ch)
	if msg.msgType != wire.MsgServerUserInfoChange {
		t.Errorf("msgType = %d, want MsgServerUserInfoChange", msg.msgType)
	}
}

func TestSetLocalChannelIdempotentOnRepeat(t *testing.T) {
	e := newTestEngine(t)
	ch := attachPipe(t, e)

	if err := e.SetLocalChannel("guitar", true, 64); err != nil {
		t.Fatalf("first SetLocalChannel() = %v", err)
	}
	recvOrTimeout(t, ch)

	if err := e.SetLocalChannel("guitar", true, 64); err != nil {
		t.Fatalf("second SetLocalChannel() = %v", err)
	}
	assertNoMessage(t, ch) // identical call must not re-send
}

func TestSetLocalChannelResendsOnlyWhenAFieldChanges(t *testing.T) {
	e := newTestEngine(t)
	ch := attachPipe(t, e)

	if err := e.SetLocalChannel("guitar", true, 64); err != nil {
		t.Fatalf("SetLocalChannel() = %v", err)
	}
	recvOrTimeout(t, ch)

	if err := e.SetLocalChannel("guitar", true, 128); err != nil {
		t.Fatalf("SetLocalChannel() with changed bitrate = %v", err)
	}
	recvOrTimeout(t, ch) // bitrate changed: must re-send
}

func TestSetPeerChannelUnknownUserErrors(t *testing.T) {
	e := newTestEngine(t)
	err := e.SetPeerChannel(42, 0, true, 1, 0, false, false)
	if err != ErrProtocolError {
		t.Fatalf("SetPeerChannel(unknown user) = %v, want ErrProtocolError", err)
	}
}

func TestSetPeerChannelSubscribeAcquiresSlot(t *testing.T) {
	e := newTestEngine(t)
	e.mu.Lock()
	e.peers[7] = newPeerUser("bob", 7)
	e.mu.Unlock()
	attachPipe(t, e)

	if err := e.SetPeerChannel(7, 0, true, 1, 0, false, false); err != nil {
		t.Fatalf("SetPeerChannel() = %v", err)
	}
	e.mu.Lock()
	slot := e.peers[7].channel(0).ringSlot
	e.mu.Unlock()
	if slot < 0 {
		t.Fatal("ringSlot not assigned after subscribing")
	}
	if !e.slots[slot].active.Load() {
		t.Fatal("slot mirror not marked active after subscribing")
	}
}

func TestSetPeerChannelExhaustedCapacityReturnsError(t *testing.T) {
	e := newTestEngine(t) // testCapacity slots total
	attachPipe(t, e)
	e.mu.Lock()
	for i := 0; i < testCapacity+1; i++ {
		e.peers[uint16(i)] = newPeerUser("u", uint16(i))
	}
	e.mu.Unlock()

	for i := 0; i < testCapacity; i++ {
		if err := e.SetPeerChannel(uint16(i), 0, true, 1, 0, false, false); err != nil {
			t.Fatalf("SetPeerChannel(%d) = %v, want nil while capacity remains", i, err)
		}
	}
	err := e.SetPeerChannel(uint16(testCapacity), 0, true, 1, 0, false, false)
	if err != ErrCapacityExceeded {
		t.Fatalf("SetPeerChannel() over capacity = %v, want ErrCapacityExceeded", err)
	}
}

func TestSetPeerChannelUnsubscribeReleasesSlot(t *testing.T) {
	e := newTestEngine(t)
	e.mu.Lock()
	e.peers[7] = newPeerUser("bob", 7)
	e.mu.Unlock()
	attachPipe(t, e)

	if err := e.SetPeerChannel(7, 0, true, 1, 0, false, false); err != nil {
		t.Fatalf("subscribe SetPeerChannel() = %v", err)
	}
	if err := e.SetPeerChannel(7, 0, false, 1, 0, false, false); err != nil {
		t.Fatalf("unsubscribe SetPeerChannel() = %v", err)
	}
	e.mu.Lock()
	slot := e.peers[7].channel(0).ringSlot
	e.mu.Unlock()
	if slot != -1 {
		t.Fatalf("ringSlot = %d after unsubscribing, want -1", slot)
	}
}

func TestPeersReturnsDefensiveCopy(t *testing.T) {
	e := newTestEngine(t)
	e.mu.Lock()
	e.peers[1] = newPeerUser("alice", 1)
	e.peers[1].channel(0).Name = "vocals"
	e.mu.Unlock()

	snap := e.Peers()
	snap[1].Channels[0] = PeerChannel{Name: "mutated"}

	e.mu.Lock()
	live := e.peers[1].Channels[0].Name
	e.mu.Unlock()
	if live != "vocals" {
		t.Fatalf("live registry mutated through Peers() copy: got %q", live)
	}
}
