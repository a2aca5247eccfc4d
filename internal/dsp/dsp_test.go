package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeasure(t *testing.T) {
	tests := []struct {
		name     string
		samples  []float32
		wantPeak float32
		wantRMS  float64
	}{
		{"Empty", []float32{}, 0, 0},
		{"Nil", nil, 0, 0},
		{"Silence", []float32{0, 0, 0, 0}, 0, 0},
		{"MixedSigns", []float32{1.0, -1.0, 0.5, -0.5}, 1.0, math.Sqrt(0.625)},
		{"NegativePeak", []float32{0.1, -0.8, 0.3}, 0.8, math.Sqrt((0.01 + 0.64 + 0.09) / 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peak, rms := Measure(tt.samples)
			assert.Equal(t, tt.wantPeak, peak)
			assert.InDelta(t, tt.wantRMS, rms, 1e-6)
		})
	}
}

func TestMeasureMixedSignsApprox(t *testing.T) {
	_, rms := Measure([]float32{1.0, -1.0, 0.5, -0.5})
	assert.InDelta(t, 0.7906, rms, 1e-4)
}

// Accumulating 2^-18 in float32 would drift long before 100k samples.
func TestMeasureLongBufferPrecision(t *testing.T) {
	const v = 0.001953125
	samples := make([]float32, 100_000)
	for i := range samples {
		samples[i] = v
	}

	peak, rms := Measure(samples)
	assert.Equal(t, float32(v), peak)
	assert.InEpsilon(t, v, rms, 1e-12)
}

func TestInvert(t *testing.T) {
	src := []float32{0.2, -0.3, 0.9}
	dst := make([]float32, len(src))

	Invert(dst, src)

	assert.Equal(t, []float32{-0.2, 0.3, -0.9}, dst)
}

func TestInvertShortSource(t *testing.T) {
	dst := []float32{9, 9, 9, 9}
	Invert(dst, []float32{0.5, -0.25})

	assert.Equal(t, []float32{-0.5, 0.25, 0, 0}, dst)
}

func TestSilence(t *testing.T) {
	dst := []float32{0.1, -0.2, 0.3, 1}
	Silence(dst)

	for i, s := range dst {
		assert.Zerof(t, s, "sample %d not silent", i)
	}
}

func TestMeasureDoesNotAllocate(t *testing.T) {
	samples := make([]float32, 1024)
	for i := range samples {
		samples[i] = float32(i%7) / 7
	}
	out := make([]float32, len(samples))

	allocs := testing.AllocsPerRun(100, func() {
		Measure(samples)
		Invert(out, samples)
		Silence(out)
	})
	assert.Zero(t, allocs)
}
