package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinToSpectrumIndex(t *testing.T) {
	tt := []struct {
		blockSize int
		bin       int
		expected  int
	}{
		{blockSize: 512, bin: 0, expected: 256},
		{blockSize: 512, bin: 1, expected: 257},
		{blockSize: 512, bin: 255, expected: 511},
		{blockSize: 512, bin: 256, expected: 0},
		{blockSize: 512, bin: 257, expected: 1},
		{blockSize: 512, bin: 511, expected: 255},
	}
	for _, tc := range tt {
		t.Run(fmt.Sprintf("%d_%d", tc.blockSize, tc.bin), func(t *testing.T) {
			actual := binToSpectrumIndex(tc.bin, tc.blockSize)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestFrequencyMapping(t *testing.T) {
	sampleRate := 48000
	blockSize := 512
	centerFrequency := 7020000
	tt := []struct {
		bin    int
		center int
	}{
		{0, centerFrequency - sampleRate/2},
		{256, centerFrequency},
	}
	for _, tc := range tt {
		t.Run(fmt.Sprintf("%d", tc.bin), func(t *testing.T) {
			m := NewFrequencyMapping[int](sampleRate, blockSize, centerFrequency)

			assert.Equal(t, tc.bin, m.FrequencyToBin(tc.center), "center to bin")
			assert.Equal(t, tc.center, m.BinToFrequency(tc.bin, BinCenter), "bin to center")
		})
	}
}

func TestFrequencyMappingFollowsSampleRate(t *testing.T) {
	m := NewFrequencyMapping[float64](48000, 1024, 0)
	assert.Equal(t, -24000.0, m.FromFrequency())
	assert.Equal(t, 24000.0, m.ToFrequency())

	m.SetSampleRate(96000)

	assert.Equal(t, 96000, m.SampleRate())
	assert.Equal(t, -48000.0, m.FromFrequency())
	assert.Equal(t, 48000.0, m.ToFrequency())
	assert.Equal(t, 512, m.FrequencyToBin(0))
}

func TestSpectrumOfTone(t *testing.T) {
	const blockSize = 64
	const toneBin = 8
	samples := make([]complex128, blockSize)
	for i := range samples {
		samples[i] = cmplx.Exp(complex(0, 2*math.Pi*toneBin*float64(i)/blockSize))
	}
	spectrum := make([]float64, blockSize)

	NewFFT(Rectangular).Spectrum(spectrum, samples, PowerIndB)

	peak, peakIndex := Block[float64](spectrum).Max(0, blockSize-1)
	assert.Equal(t, blockSize/2+toneBin, peakIndex)
	assert.InDelta(t, 0, peak, 0.001)
	assert.Equal(t, MinPowerIndB, spectrum[0])
}

func TestSpectrumIgnoresNonFiniteSamples(t *testing.T) {
	const blockSize = 64
	const toneBin = 8
	samples := make([]complex128, blockSize)
	for i := range samples {
		samples[i] = cmplx.Exp(complex(0, 2*math.Pi*toneBin*float64(i)/blockSize))
	}
	samples[3] = cmplx.NaN()
	samples[17] = cmplx.Inf()
	spectrum := make([]float64, blockSize)

	NewFFT(Rectangular).Spectrum(spectrum, samples, PowerIndB)

	for i, value := range spectrum {
		assert.False(t, math.IsNaN(value) || math.IsInf(value, 0), "bin %d: %f", i, value)
	}
	_, peakIndex := Block[float64](spectrum).Max(0, blockSize-1)
	assert.Equal(t, blockSize/2+toneBin, peakIndex)
}

func TestPSDValueIndBBounds(t *testing.T) {
	tt := []struct {
		desc     string
		value    float64
		expected float64
	}{
		{desc: "zero", value: 0, expected: MinPowerIndB},
		{desc: "negative", value: -1, expected: MinPowerIndB},
		{desc: "NaN", value: math.NaN(), expected: MinPowerIndB},
		{desc: "infinite", value: math.Inf(1), expected: MaxPowerIndB},
		{desc: "full scale", value: 64 * 64, expected: 0},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, PSDValueIndB(tc.value, 64))
		})
	}
}

func TestSpectrumPanicsOnSizeMismatch(t *testing.T) {
	assert.Panics(t, func() {
		NewFFT(Hann).Spectrum(make([]float64, 4), make([]complex128, 8), PowerIndB)
	})
}

func TestParseWindow(t *testing.T) {
	tt := []struct {
		value    string
		expected Window
		invalid  bool
	}{
		{value: "", expected: BlackmanHarris},
		{value: "Blackman_Harris", expected: BlackmanHarris},
		{value: "hann", expected: Hann},
		{value: "kaiser", invalid: true},
	}
	for _, tc := range tt {
		t.Run(tc.value, func(t *testing.T) {
			w, err := ParseWindow(tc.value)
			if tc.invalid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, w)
		})
	}
}

func TestBlackmanHarrisIsSymmetric(t *testing.T) {
	c := BlackmanHarris.Coefficients(9)
	require.Len(t, c, 9)
	assert.InDelta(t, 1.0, c[4], 0.0001)
	assert.InDelta(t, 0.00006, c[0], 0.00001)
	for i := range c {
		assert.InDelta(t, c[i], c[len(c)-1-i], 1e-12)
	}
}

func TestExponentialAverage(t *testing.T) {
	avg := NewExponentialAverage[float64](0.5)

	first := Block[float64]{2, 4}
	avg.Put(first)
	assert.Equal(t, Block[float64]{2, 4}, first)

	second := Block[float64]{4, 0}
	avg.Put(second)
	assert.Equal(t, Block[float64]{3, 2}, second)

	avg.Reset()
	third := Block[float64]{8, 8}
	avg.Put(third)
	assert.Equal(t, Block[float64]{8, 8}, third)
}
