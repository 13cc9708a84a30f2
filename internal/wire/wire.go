// Package wire implements NINJAM's length-prefixed binary message
// framing: a 4-byte little-endian payload length, a 1-byte message type,
// then the payload itself. This core must stay wire-compatible with
// existing NINJAM servers, so the byte layout here is fixed by the
// protocol, not a local design choice.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Message type tags. NINJAM reuses the low tag space in each direction
// (client->server vs. server->client), so a tag's meaning depends on
// which side is reading it; names below spell out the direction.
const (
	MsgServerAuthChallenge  byte = 0x00 // server -> client
	MsgClientAuth           byte = 0x80 // client -> server
	MsgServerAuthReply      byte = 0x01 // server -> client
	MsgServerConfigChange   byte = 0x02 // server -> client
	MsgServerUserInfoChange byte = 0x03 // server -> client
	MsgClientSetUsermask    byte = 0x04 // client -> server
	MsgChatMessage          byte = 0xc0 // either direction
	MsgKeepalive            byte = 0xfd // either direction

	// Interval transfer sub-messages, keyed by guid within their payload.
	MsgUploadIntervalBegin byte = 0x10 // client -> server: new interval header
	MsgUploadIntervalWrite byte = 0x11 // client -> server: interval chunk / terminating empty chunk
	MsgDownloadInterval    byte = 0x12 // server -> client: interval chunk; a zero-length audio chunk marks the end
)

// Header is the 5-byte frame preamble: payload length followed by
// message type.
type Header struct {
	Length  uint32
	MsgType byte
}

const headerSize = 5
const maxPayload = 16 << 20 // sanity ceiling; a length beyond this is a protocol error, not a real frame

// ReadMessage blocks until a full frame arrives from r, or returns an
// error (including io.EOF on a clean peer close). The returned payload is
// a freshly allocated slice sized exactly to the frame.
func ReadMessage(r *bufio.Reader) (Header, []byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Header{}, nil, err
	}
	length := binary.LittleEndian.Uint32(hdr[0:4])
	msgType := hdr[4]
	if length > maxPayload {
		return Header{}, nil, fmt.Errorf("wire: frame length %d exceeds sanity ceiling", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, fmt.Errorf("wire: short payload read: %w", err)
	}
	return Header{Length: length, MsgType: msgType}, payload, nil
}

// WriteMessage frames and writes a single message to w.
func WriteMessage(w io.Writer, msgType byte, payload []byte) error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	hdr[4] = msgType
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("wire: write payload: %w", err)
		}
	}
	return nil
}
