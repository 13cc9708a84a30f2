// Package codec wraps the audio compressor used for interval payloads
// behind a small interface, so the engine can be driven by a fake in
// tests without linking the real codec.
package codec

// Encoder abstracts a block-oriented audio encoder producing compressed
// payload bytes from signed 16-bit PCM.
type Encoder interface {
	// Encode compresses pcm (interleaved int16 samples) into dst and
	// returns the number of bytes written.
	Encode(pcm []int16, dst []byte) (int, error)
	// SetBitrate changes the target bitrate in bits per second.
	SetBitrate(bitsPerSecond int) error
}

// Decoder abstracts a block-oriented audio decoder.
type Decoder interface {
	// Decode decompresses data into pcm (interleaved int16 samples) and
	// returns the number of samples per channel written.
	Decode(data []byte, pcm []int16) (int, error)
}

// Factory constructs a matched Encoder/Decoder pair bound to a sample
// rate and channel count, so engine code and tests can swap
// implementations uniformly.
type Factory interface {
	NewEncoder(sampleRate, channels int) (Encoder, error)
	NewDecoder(sampleRate, channels int) (Decoder, error)
}
