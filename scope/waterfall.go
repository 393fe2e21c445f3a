package scope

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ftl/replayscope/stream"
)

// WaterfallSink shows the evolution of the spectrum over time. Every refresh adds one row.
type WaterfallSink[S stream.Sample] struct {
	*sink[S]
	lines    []LineStyle
	spectrum *spectrum

	// ring of the latest rows
	history [][]float64
	oldest  int
}

func NewWaterfallSink[S stream.Sample](id StreamID, sampleRate int, config Config) (*WaterfallSink[S], error) {
	if config.Type != WaterfallPanel {
		return nil, fmt.Errorf("sink %s: %q is not a waterfall sink", id, config.Type)
	}
	base, err := newSink[S](id, sampleRate, config)
	if err != nil {
		return nil, err
	}

	return &WaterfallSink[S]{
		sink:     base,
		lines:    defaultLines(config.Lines, 1, func(i int) string { return fmt.Sprintf("Data %d", i) }),
		spectrum: newSpectrum(sampleRate, config),
		history:  make([][]float64, 0, config.History),
	}, nil
}

func (s *WaterfallSink[S]) Panel() Panel {
	return s.panel(s.lines)
}

// FrequencyRange returns the frequency range that is displayed with the current sample rate.
func (s *WaterfallSink[S]) FrequencyRange() (float64, float64) {
	return frequencyRange(s.config.CenterFrequency, s.SampleRate())
}

func (s *WaterfallSink[S]) Refresh(now time.Time, display Display) bool {
	buffer, ok := s.next(now)
	if !ok {
		return false
	}

	values := transform(s.spectrum, s.SampleRate(), buffer)
	s.addRow(values)

	display.ShowWaterfallFrame(&WaterfallFrame{
		Frame:         Frame{Stream: s.id, Timestamp: now},
		FromFrequency: s.spectrum.mapping.FromFrequency(),
		ToFrequency:   s.spectrum.mapping.ToFrequency(),
		MinIntensity:  s.config.YMin,
		MaxIntensity:  s.config.YMax,
		Values:        values,
	})
	return true
}

func (s *WaterfallSink[S]) addRow(row []float64) {
	if len(s.history) < s.config.History {
		s.history = append(s.history, row)
		return
	}
	s.history[s.oldest] = row
	s.oldest = (s.oldest + 1) % len(s.history)
}

// Rows returns the waterfall history from the oldest to the newest row.
func (s *WaterfallSink[S]) Rows() [][]float64 {
	result := make([][]float64, 0, len(s.history))
	result = append(result, s.history[s.oldest:]...)
	result = append(result, s.history[:s.oldest]...)
	return result
}

func (s *WaterfallSink[S]) Snapshot() Snapshot {
	result := s.snapshot()
	rows := s.Rows()
	if len(rows) == 0 {
		return result
	}
	history := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		history.SetRow(i, row)
	}
	result.History = history
	return result
}
