package codec

import "errors"

// FakeFactory produces codecs that "compress" by copying raw int16 bytes
// verbatim, for engine tests that need a deterministic, dependency-free
// encode/decode round-trip instead of real audio compression.
type FakeFactory struct{}

func (FakeFactory) NewEncoder(sampleRate, channels int) (Encoder, error) {
	return &fakeCodec{}, nil
}

func (FakeFactory) NewDecoder(sampleRate, channels int) (Decoder, error) {
	return &fakeCodec{}, nil
}

type fakeCodec struct {
	bitrate int
}

var errShortBuffer = errors.New("codec: destination buffer too small")

func (f *fakeCodec) Encode(pcm []int16, dst []byte) (int, error) {
	need := len(pcm) * 2
	if len(dst) < need {
		return 0, errShortBuffer
	}
	for i, s := range pcm {
		dst[2*i] = byte(s)
		dst[2*i+1] = byte(s >> 8)
	}
	return need, nil
}

func (f *fakeCodec) SetBitrate(bitsPerSecond int) error {
	f.bitrate = bitsPerSecond
	return nil
}

func (f *fakeCodec) Decode(data []byte, pcm []int16) (int, error) {
	if data == nil {
		for i := range pcm {
			pcm[i] = 0
		}
		return len(pcm), nil
	}
	n := len(data) / 2
	if n > len(pcm) {
		n = len(pcm)
	}
	for i := 0; i < n; i++ {
		pcm[i] = int16(data[2*i]) | int16(data[2*i+1])<<8
	}
	return n, nil
}
