// Package meter computes the instantaneous peak level published into the
// UI-visible VU atomics. A decay-per-block ballistic meter is desirable
// but left for a layer outside this core; this is deliberately the
// simplest thing that satisfies "peak per block, per channel".
package meter

// Peak returns the largest absolute sample value in frame, or 0 for an
// empty frame.
func Peak(frame []float32) float32 {
	var peak float32
	for _, s := range frame {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	return peak
}

// StereoPeak computes Peak independently for the left and right channel
// buffers. The two buffers need not be the same length as each other;
// each is measured on its own.
func StereoPeak(left, right []float32) (l, r float32) {
	return Peak(left), Peak(right)
}
