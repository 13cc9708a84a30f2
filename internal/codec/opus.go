package codec

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// OpusFactory constructs codec.Encoder/Decoder backed by libopus. NINJAM
// servers historically speak Ogg Vorbis; Opus is used here as the
// concrete stand-in behind the same opaque encode/decode contract, since
// no maintained pure-Go (or cgo) Vorbis encoder exists to wire in
// instead.
type OpusFactory struct {
	// Application selects the Opus encoder tuning; defaults to
	// opus.AppAudio (music) if zero.
	Application int
}

// NewEncoder constructs an Opus encoder for the given sample rate and
// channel count.
func (f OpusFactory) NewEncoder(sampleRate, channels int) (Encoder, error) {
	app := f.Application
	if app == 0 {
		app = opus.AppAudio
	}
	enc, err := opus.NewEncoder(sampleRate, channels, app)
	if err != nil {
		return nil, fmt.Errorf("codec: new opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

// NewDecoder constructs an Opus decoder for the given sample rate and
// channel count.
func (f OpusFactory) NewDecoder(sampleRate, channels int) (Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("codec: new opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

type opusEncoder struct {
	enc *opus.Encoder
}

func (e *opusEncoder) Encode(pcm []int16, dst []byte) (int, error) {
	return e.enc.Encode(pcm, dst)
}

func (e *opusEncoder) SetBitrate(bitsPerSecond int) error {
	return e.enc.SetBitrate(bitsPerSecond)
}

type opusDecoder struct {
	dec *opus.Decoder
}

func (d *opusDecoder) Decode(data []byte, pcm []int16) (int, error) {
	return d.dec.Decode(data, pcm)
}
