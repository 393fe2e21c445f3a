package scope

import (
	"fmt"
	"time"

	"github.com/ftl/replayscope/dsp"
	"github.com/ftl/replayscope/stream"
)

// spectrum transforms sample buffers into averaged power spectra.
type spectrum struct {
	fft     *dsp.FFT
	average *dsp.ExponentialAverage[float64]
	mapping *dsp.FrequencyMapping[float64]
	samples []complex128
}

func newSpectrum(sampleRate int, config Config) *spectrum {
	window, _ := dsp.ParseWindow(config.Window)
	return &spectrum{
		fft:     dsp.NewFFT(window),
		average: dsp.NewExponentialAverage[float64](config.Average),
		mapping: dsp.NewFrequencyMapping(sampleRate, config.Size, config.CenterFrequency),
		samples: make([]complex128, config.Size),
	}
}

func transform[S stream.Sample](s *spectrum, sampleRate int, buffer []S) []float64 {
	if s.mapping.SampleRate() != sampleRate {
		s.mapping.SetSampleRate(sampleRate)
		s.average.Reset()
	}

	stream.ToComplex(s.samples, buffer)
	values := make([]float64, len(buffer))
	s.fft.Spectrum(values, s.samples, dsp.PowerIndB)
	s.average.Put(values)
	return values
}

// FrequencySink plots the magnitude spectrum of the samples.
type FrequencySink[S stream.Sample] struct {
	*sink[S]
	lines    []LineStyle
	spectrum *spectrum
}

func NewFrequencySink[S stream.Sample](id StreamID, sampleRate int, config Config) (*FrequencySink[S], error) {
	if config.Type != FrequencyPanel {
		return nil, fmt.Errorf("sink %s: %q is not a frequency sink", id, config.Type)
	}
	base, err := newSink[S](id, sampleRate, config)
	if err != nil {
		return nil, err
	}

	return &FrequencySink[S]{
		sink:     base,
		lines:    defaultLines(config.Lines, 1, func(i int) string { return fmt.Sprintf("Data %d", i) }),
		spectrum: newSpectrum(sampleRate, config),
	}, nil
}

func (s *FrequencySink[S]) Panel() Panel {
	return s.panel(s.lines)
}

// FrequencyRange returns the frequency range that is displayed with the current sample rate.
func (s *FrequencySink[S]) FrequencyRange() (float64, float64) {
	return frequencyRange(s.config.CenterFrequency, s.SampleRate())
}

func frequencyRange(centerFrequency float64, sampleRate int) (float64, float64) {
	return centerFrequency - float64(sampleRate)/2, centerFrequency + float64(sampleRate)/2
}

func (s *FrequencySink[S]) Refresh(now time.Time, display Display) bool {
	buffer, ok := s.next(now)
	if !ok {
		return false
	}

	values := transform(s.spectrum, s.SampleRate(), buffer)

	frame := &SpectralFrame{
		Frame:         Frame{Stream: s.id, Timestamp: now},
		FromFrequency: s.spectrum.mapping.FromFrequency(),
		ToFrequency:   s.spectrum.mapping.ToFrequency(),
		YMin:          s.config.YMin,
		YMax:          s.config.YMax,
		Values:        values,
	}
	if s.config.Autoscale {
		frame.YMin, frame.YMax = autoscale(values)
	}

	display.ShowSpectralFrame(frame)
	return true
}

func (s *FrequencySink[S]) Snapshot() Snapshot {
	return s.snapshot()
}
