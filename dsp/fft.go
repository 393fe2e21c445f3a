package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// MinPowerIndB is the floor of the power values, used instead of -Inf for empty bins.
	MinPowerIndB = -200.0
	// MaxPowerIndB is the ceiling of the power values.
	MaxPowerIndB = 200.0
)

// FFT transforms sample blocks into fft-shifted spectra. The window is applied to every block.
type FFT struct {
	window  Window
	weights []float64
	samples []complex128
}

func NewFFT(window Window) *FFT {
	return &FFT{window: window}
}

func (f *FFT) Window() Window {
	return f.window
}

// Spectrum calculates the spectrum of the given samples, starting at the lowest frequency bin.
// The projection maps each FFT value to the value stored in the spectrum.
func (f *FFT) Spectrum(spectrum []float64, samples []complex128, projection func(complex128, int) float64) {
	blockSize := len(samples)
	if len(spectrum) != blockSize {
		panic(fmt.Sprintf("the spectrum slice must have the same length as the FFT's input: %d", blockSize))
	}
	if len(f.weights) != blockSize {
		f.weights = f.window.Coefficients(blockSize)
		f.samples = make([]complex128, blockSize)
	}
	for i, s := range samples {
		f.samples[i] = finite(s) * complex(f.weights[i], 0)
	}

	fftResult := fft.FFT(f.samples)
	for i, value := range fftResult {
		k := binToSpectrumIndex(i, blockSize)
		spectrum[k] = projection(value, blockSize)
	}
}

func binToSpectrumIndex(bin int, blockSize int) int {
	centerBin := blockSize / 2
	return (bin + centerBin) % blockSize
}

func PSD(fftValue complex128, blockSize int) float64 {
	return math.Pow(real(fftValue), 2) + math.Pow(imag(fftValue), 2)
}

// PowerIndB returns the power of the FFT value relative to a full scale sine, normalized by the block size.
func PowerIndB(fftValue complex128, blockSize int) float64 {
	return PSDValueIndB(PSD(fftValue, blockSize), blockSize)
}

func PSDValueIndB(psdValue float64, blockSize int) float64 {
	if psdValue <= 0 || math.IsNaN(psdValue) {
		return MinPowerIndB
	}
	return min(MaxPowerIndB, max(MinPowerIndB, 10.0*math.Log10(psdValue/math.Pow(float64(blockSize), 2))))
}

// finite replaces a NaN or infinite sample with zero, a single broken sample would otherwise spread over all bins.
func finite(s complex128) complex128 {
	if cmplx.IsNaN(s) || cmplx.IsInf(s) {
		return 0
	}
	return s
}

type BinLocation float64

const (
	BinFrom   BinLocation = -0.5
	BinCenter BinLocation = 0
	BinTo     BinLocation = 0.5
)

// FrequencyMapping maps the bins of an fft-shifted spectrum to frequencies.
type FrequencyMapping[F Number] struct {
	sampleRate int
	blockSize  int
	binSize    float64

	centerFrequency float64
	fromFrequency   float64
}

func NewFrequencyMapping[F Number](sampleRate int, blockSize int, centerFrequency F) *FrequencyMapping[F] {
	result := &FrequencyMapping[F]{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		binSize:    float64(sampleRate) / float64(blockSize),
	}
	result.SetCenterFrequency(centerFrequency)

	return result
}

func (m *FrequencyMapping[F]) SetCenterFrequency(frequency F) {
	m.centerFrequency = float64(frequency)
	m.fromFrequency = m.centerFrequency - float64(m.sampleRate)/2
}

func (m *FrequencyMapping[F]) SetSampleRate(sampleRate int) {
	m.sampleRate = sampleRate
	m.binSize = float64(sampleRate) / float64(m.blockSize)
	m.fromFrequency = m.centerFrequency - float64(m.sampleRate)/2
}

func (m *FrequencyMapping[F]) SampleRate() int {
	return m.sampleRate
}

// FromFrequency is the lower end of the displayed frequency range, the center of the first bin.
func (m *FrequencyMapping[F]) FromFrequency() F {
	return F(m.fromFrequency)
}

// ToFrequency is the upper end of the displayed frequency range.
func (m *FrequencyMapping[F]) ToFrequency() F {
	return F(m.fromFrequency + float64(m.sampleRate))
}

func (m *FrequencyMapping[F]) BinToFrequency(bin int, location BinLocation) F {
	locationDelta := m.binSize * float64(location)

	return F(m.fromFrequency + float64(bin)*m.binSize + locationDelta)
}

func (m *FrequencyMapping[F]) FrequencyToBin(frequency F) int {
	bin := int((float64(frequency) - m.fromFrequency) / m.binSize)
	return max(0, min(bin, m.blockSize-1))
}
