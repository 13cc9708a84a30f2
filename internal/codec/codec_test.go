package codec

import "testing"

func TestFakeCodecRoundTrip(t *testing.T) {
	f := FakeFactory{}
	enc, err := f.NewEncoder(48000, 1)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec, err := f.NewDecoder(48000, 1)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	pcm := []int16{1, -2, 3, -4, 32767, -32768}
	buf := make([]byte, len(pcm)*2)
	n, err := enc.Encode(pcm, buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out := make([]int16, len(pcm))
	got, err := dec.Decode(buf[:n], out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != len(pcm) {
		t.Fatalf("Decode returned %d samples, want %d", got, len(pcm))
	}
	for i := range pcm {
		if out[i] != pcm[i] {
			t.Fatalf("sample %d = %v, want %v", i, out[i], pcm[i])
		}
	}
}

func TestFakeCodecDecodeNilDataZerosOutput(t *testing.T) {
	f := FakeFactory{}
	dec, _ := f.NewDecoder(48000, 1)
	pcm := []int16{7, 7, 7}
	if _, err := dec.Decode(nil, pcm); err != nil {
		t.Fatalf("Decode(nil, ...): %v", err)
	}
	for i, v := range pcm {
		if v != 0 {
			t.Fatalf("pcm[%d] = %v, want 0", i, v)
		}
	}
}

func TestFakeCodecEncodeShortBuffer(t *testing.T) {
	f := FakeFactory{}
	enc, _ := f.NewEncoder(48000, 1)
	_, err := enc.Encode([]int16{1, 2, 3}, make([]byte, 2))
	if err == nil {
		t.Fatalf("expected error encoding into an undersized buffer")
	}
}
