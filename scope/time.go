package scope

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/ftl/replayscope/stream"
)

// TimeSink plots the amplitude of the samples over time. Complex streams are plotted as two lines,
// the real and the imaginary part.
type TimeSink[S stream.Sample] struct {
	*sink[S]
	lines []LineStyle
}

func NewTimeSink[S stream.Sample](id StreamID, sampleRate int, config Config) (*TimeSink[S], error) {
	if config.Type != TimePanel {
		return nil, fmt.Errorf("sink %s: %q is not a time sink", id, config.Type)
	}
	base, err := newSink[S](id, sampleRate, config)
	if err != nil {
		return nil, err
	}

	result := &TimeSink[S]{sink: base}
	if stream.KindOf[S]() == stream.Complex {
		lines := defaultLines(config.Lines, 1, func(i int) string { return fmt.Sprintf("Data %d", i) })
		re, im := lines[0], lines[0]
		re.Label = fmt.Sprintf("Re{%s}", lines[0].Label)
		im.Label = fmt.Sprintf("Im{%s}", lines[0].Label)
		if len(config.Lines) > 1 {
			im.Color = config.Lines[1].Color
		} else {
			im.Color = "red"
		}
		result.lines = []LineStyle{re, im}
	} else {
		result.lines = defaultLines(config.Lines, 1, func(i int) string { return fmt.Sprintf("Data %d", i) })
	}
	return result, nil
}

func (s *TimeSink[S]) Panel() Panel {
	return s.panel(s.lines)
}

func (s *TimeSink[S]) Refresh(now time.Time, display Display) bool {
	buffer, ok := s.next(now)
	if !ok {
		return false
	}

	lines := make([][]float64, len(s.lines))
	for i := range lines {
		lines[i] = make([]float64, len(buffer))
	}
	var im []float64
	if len(lines) > 1 {
		im = lines[1]
	}
	stream.Split(lines[0], im, buffer)
	for _, line := range lines {
		replaceNonFinite(line)
	}

	sampleRate := s.SampleRate()
	frame := &TimeFrame{
		Frame:      Frame{Stream: s.id, Timestamp: now},
		SampleRate: sampleRate,
		Duration:   time.Duration(float64(len(buffer)) / float64(sampleRate) * float64(time.Second)),
		YMin:       s.config.YMin,
		YMax:       s.config.YMax,
		Lines:      lines,
	}
	if s.config.Autoscale {
		frame.YMin, frame.YMax = autoscale(lines...)
	}

	display.ShowTimeFrame(frame)
	return true
}

func (s *TimeSink[S]) Snapshot() Snapshot {
	return s.snapshot()
}

// replaceNonFinite sets NaN and infinite values to zero, they cannot be plotted.
func replaceNonFinite(values []float64) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			values[i] = 0
		}
	}
}

// autoscale returns the value range of all given lines, widened if the lines are flat.
func autoscale(lines ...[]float64) (float64, float64) {
	first := true
	var minValue, maxValue float64
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		lineMin, lineMax := floats.Min(line), floats.Max(line)
		if first || lineMin < minValue {
			minValue = lineMin
		}
		if first || lineMax > maxValue {
			maxValue = lineMax
		}
		first = false
	}
	if maxValue-minValue < 1e-9 {
		minValue -= 0.5
		maxValue += 0.5
	}
	return minValue, maxValue
}
