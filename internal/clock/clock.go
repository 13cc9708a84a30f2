// Package clock computes the interval length (in frames) the engine
// derives from the session's BPM/BPI, the one piece of interval timing
// that isn't bookkept directly on the engine's own atomics.
package clock

// FramesForInterval computes interval_frames = round(sampleRate * 60 *
// bpi / bpm).
func FramesForInterval(sampleRate float64, bpi int, bpm float64) int64 {
	if bpm <= 0 {
		return 0
	}
	frames := sampleRate * 60 * float64(bpi) / bpm
	return int64(frames + 0.5)
}
