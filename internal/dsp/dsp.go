// Package dsp holds the per-buffer sample arithmetic run on the audio thread.
//
// Every function here works in place on caller-owned slices and never
// allocates, so it is safe to call from a PortAudio callback.
package dsp

import "math"

// Metrics summarises one buffer of interleaved samples.
type Metrics struct {
	// Frames is the frame count reported by the engine for the buffer.
	Frames int
	// Peak is the largest absolute sample value.
	Peak float32
	// RMS is the root-mean-square level, accumulated in float64.
	RMS float64
}

// Measure computes peak and RMS over samples. An empty slice yields zero
// for both values.
func Measure(samples []float32) (peak float32, rms float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	var sumSquares float64
	for _, s := range samples {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
		v := float64(s)
		sumSquares += v * v
	}

	return peak, math.Sqrt(sumSquares / float64(len(samples)))
}

// Invert writes the phase-inverted input into dst. Only min(len(dst),
// len(src)) samples are written; any remaining dst samples are zeroed.
func Invert(dst, src []float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = -src[i]
	}
	clear(dst[n:])
}

// Silence zeroes dst.
func Silence(dst []float32) {
	clear(dst)
}
