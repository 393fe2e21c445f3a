package scope

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ftl/replayscope/dsp"
	"github.com/ftl/replayscope/stream"
)

const (
	defaultSize           = 1024
	defaultUpdateInterval = 100 * time.Millisecond
	defaultHistory        = 200
)

// Config holds the static parameters of a sink.
type Config struct {
	Type            PanelKind     `mapstructure:"type"`
	Title           string        `mapstructure:"title"`
	Size            int           `mapstructure:"size"`
	UpdateInterval  time.Duration `mapstructure:"update_interval"`
	YMin            float64       `mapstructure:"y_min"`
	YMax            float64       `mapstructure:"y_max"`
	YLabel          string        `mapstructure:"y_label"`
	YUnit           string        `mapstructure:"y_unit"`
	Autoscale       bool          `mapstructure:"autoscale"`
	Window          string        `mapstructure:"window"`
	CenterFrequency float64       `mapstructure:"center_frequency"`
	Average         float64       `mapstructure:"average"`
	History         int           `mapstructure:"history"`
	Lines           []LineStyle   `mapstructure:"lines"`
}

// DefaultTimeConfig returns the configuration of a free running time plot.
func DefaultTimeConfig(title string) Config {
	return Config{
		Type:           TimePanel,
		Title:          title,
		Size:           defaultSize,
		UpdateInterval: defaultUpdateInterval,
		YMin:           -1,
		YMax:           1,
		YLabel:         "Amplitude",
		Autoscale:      true,
		Lines:          []LineStyle{{Label: "Signal 1", Color: "blue", Width: 1, Alpha: 1, Style: 1, Marker: -1}},
	}
}

// DefaultFrequencyConfig returns the configuration of a spectrum plot with a Blackman-Harris window.
func DefaultFrequencyConfig(title string) Config {
	return Config{
		Type:           FrequencyPanel,
		Title:          title,
		Size:           defaultSize,
		UpdateInterval: defaultUpdateInterval,
		YMin:           -140,
		YMax:           10,
		YLabel:         "Relative Gain",
		YUnit:          "dB",
		Window:         string(dsp.BlackmanHarris),
		Average:        1,
		Lines:          []LineStyle{{Label: "Data 0", Color: "blue", Width: 1, Alpha: 1}},
	}
}

// DefaultWaterfallConfig returns the configuration of a waterfall with a Blackman-Harris window.
func DefaultWaterfallConfig(title string) Config {
	return Config{
		Type:           WaterfallPanel,
		Title:          title,
		Size:           defaultSize,
		UpdateInterval: defaultUpdateInterval,
		YMin:           -140,
		YMax:           10,
		YUnit:          "dB",
		Window:         string(dsp.BlackmanHarris),
		Average:        1,
		History:        defaultHistory,
		Lines:          []LineStyle{{Label: "Data 0", Alpha: 1}},
	}
}

// Validate checks that the configuration describes a usable sink.
func (c Config) Validate() error {
	var errs []error
	switch c.Type {
	case TimePanel, FrequencyPanel, WaterfallPanel:
	default:
		errs = append(errs, fmt.Errorf("unknown sink type %q", c.Type))
	}
	if c.Size <= 0 {
		errs = append(errs, fmt.Errorf("invalid buffer size %d", c.Size))
	}
	if c.UpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("invalid update interval %v", c.UpdateInterval))
	}
	if c.YMin >= c.YMax {
		errs = append(errs, fmt.Errorf("invalid axis range %v - %v", c.YMin, c.YMax))
	}
	if c.Type != TimePanel {
		if _, err := dsp.ParseWindow(c.Window); err != nil {
			errs = append(errs, err)
		}
		if c.Average <= 0 || c.Average > 1 {
			errs = append(errs, fmt.Errorf("invalid averaging factor %v", c.Average))
		}
	}
	if c.Type == WaterfallPanel && c.History <= 0 {
		errs = append(errs, fmt.Errorf("invalid waterfall history %d", c.History))
	}
	return errors.Join(errs...)
}

// Sink is the render side of a display sink.
type Sink interface {
	ID() StreamID
	Panel() Panel
	UpdateInterval() time.Duration
	SampleRate() int
	SetSampleRate(sampleRate int) error
	// Refresh renders the latest buffer if the update interval elapsed and hands the frame to the display.
	// It returns true if a frame was shown.
	Refresh(now time.Time, display Display) bool
	Snapshot() Snapshot
}

// Consumer is the processing side of a display sink.
type Consumer[S stream.Sample] interface {
	Consume(block []S)
}

// Snapshot holds the latest raw buffer of a sink, either []float32 or []complex64, and the
// rendered history of waterfalls (one row per line).
type Snapshot struct {
	Stream  StreamID
	Samples any
	History *mat.Dense
}

// sink collects samples into buffers of a fixed size. Each full buffer is published through a mailbox
// to the render side, where only the latest one is rendered.
type sink[S stream.Sample] struct {
	id         StreamID
	config     Config
	sampleRate atomic.Int64

	// processing side
	buffer  []S
	fill    int
	buffers *Mailbox[[]S]

	// render side
	lastRefresh time.Time
	last        []S
}

func newSink[S stream.Sample](id StreamID, sampleRate int, config Config) (*sink[S], error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration of sink %s: %w", id, err)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d for sink %s", sampleRate, id)
	}
	result := &sink[S]{
		id:      id,
		config:  config,
		buffer:  make([]S, config.Size),
		buffers: NewMailbox[[]S](),
	}
	result.sampleRate.Store(int64(sampleRate))
	return result, nil
}

func (s *sink[S]) ID() StreamID {
	return s.id
}

func (s *sink[S]) UpdateInterval() time.Duration {
	return s.config.UpdateInterval
}

func (s *sink[S]) SampleRate() int {
	return int(s.sampleRate.Load())
}

func (s *sink[S]) SetSampleRate(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	s.sampleRate.Store(int64(sampleRate))
	return nil
}

func (s *sink[S]) panel(lines []LineStyle) Panel {
	return Panel{
		Stream: s.id,
		Kind:   s.config.Type,
		Title:  s.config.Title,
		YLabel: s.config.YLabel,
		YUnit:  s.config.YUnit,
		Lines:  lines,
	}
}

func (s *sink[S]) Consume(block []S) {
	for len(block) > 0 {
		n := copy(s.buffer[s.fill:], block)
		s.fill += n
		block = block[n:]
		if s.fill < len(s.buffer) {
			continue
		}

		full := make([]S, len(s.buffer))
		copy(full, s.buffer)
		s.buffers.Put(full)
		s.fill = 0
	}
}

// next returns the latest full buffer, if the update interval elapsed and a new buffer is available.
func (s *sink[S]) next(now time.Time) ([]S, bool) {
	if !s.lastRefresh.IsZero() && now.Sub(s.lastRefresh) < s.config.UpdateInterval {
		return nil, false
	}
	buffer, ok := s.buffers.Take()
	if !ok {
		return nil, false
	}
	s.lastRefresh = now
	s.last = buffer
	return buffer, true
}

func (s *sink[S]) snapshot() Snapshot {
	result := Snapshot{Stream: s.id}
	if s.last != nil {
		samples := make([]S, len(s.last))
		copy(samples, s.last)
		result.Samples = samples
	}
	return result
}

func defaultLines(lines []LineStyle, count int, label func(int) string) []LineStyle {
	result := make([]LineStyle, count)
	for i := range result {
		if i < len(lines) {
			result[i] = lines[i]
		}
		if result[i].Label == "" {
			result[i].Label = label(i)
		}
		if result[i].Width == 0 {
			result[i].Width = 1
		}
		if result[i].Alpha == 0 {
			result[i].Alpha = 1
		}
	}
	return result
}
