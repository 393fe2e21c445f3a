// Package scope provides the display sinks of replayscope: time domain plots, spectrum plots and waterfalls.
// The sinks collect samples on the processing side and hand rendered frames to a Display on the render side.
package scope

import (
	"time"
)

type StreamID string

// PanelKind identifies how a display renders the frames of a sink.
type PanelKind string

const (
	TimePanel      PanelKind = "time"
	FrequencyPanel PanelKind = "frequency"
	WaterfallPanel PanelKind = "waterfall"
)

// LineStyle describes the cosmetics of one plotted line.
type LineStyle struct {
	Label  string  `mapstructure:"label" json:"label"`
	Color  string  `mapstructure:"color" json:"color"`
	Width  int     `mapstructure:"width" json:"width"`
	Alpha  float64 `mapstructure:"alpha" json:"alpha"`
	Style  int     `mapstructure:"style" json:"style"`
	Marker int     `mapstructure:"marker" json:"marker"`
}

// Panel describes the static layout of a sink's display panel.
type Panel struct {
	Stream StreamID    `json:"stream"`
	Kind   PanelKind   `json:"kind"`
	Title  string      `json:"title"`
	YLabel string      `json:"yLabel"`
	YUnit  string      `json:"yUnit"`
	Lines  []LineStyle `json:"lines"`
}

type Frame struct {
	Stream    StreamID
	Timestamp time.Time
}

// TimeFrame holds the amplitude values of one buffer, one line per signal component.
type TimeFrame struct {
	Frame
	SampleRate int
	Duration   time.Duration
	YMin       float64
	YMax       float64
	Lines      [][]float64
}

// SpectralFrame holds the magnitude spectrum of one buffer in dB, from the lowest to the highest frequency.
type SpectralFrame struct {
	Frame
	FromFrequency float64
	ToFrequency   float64
	YMin          float64
	YMax          float64
	Values        []float64
}

// WaterfallFrame holds the newest row of a waterfall in dB.
type WaterfallFrame struct {
	Frame
	FromFrequency float64
	ToFrequency   float64
	MinIntensity  float64
	MaxIntensity  float64
	Values        []float64
}

// Display renders frames. The methods are called from the render context only.
type Display interface {
	ShowTimeFrame(*TimeFrame)
	ShowSpectralFrame(*SpectralFrame)
	ShowWaterfallFrame(*WaterfallFrame)
}

// NullScope discards all frames.
type NullScope struct{}

func NewNullScope() *NullScope {
	return &NullScope{}
}

func (s *NullScope) ShowTimeFrame(*TimeFrame)           {}
func (s *NullScope) ShowSpectralFrame(*SpectralFrame)   {}
func (s *NullScope) ShowWaterfallFrame(*WaterfallFrame) {}

// Displays hands every frame to each of its displays.
type Displays []Display

func (d Displays) ShowTimeFrame(frame *TimeFrame) {
	for _, display := range d {
		display.ShowTimeFrame(frame)
	}
}

func (d Displays) ShowSpectralFrame(frame *SpectralFrame) {
	for _, display := range d {
		display.ShowSpectralFrame(frame)
	}
}

func (d Displays) ShowWaterfallFrame(frame *WaterfallFrame) {
	for _, display := range d {
		display.ShowWaterfallFrame(frame)
	}
}

// Add appends a display. It must not be called while frames are shown.
func (d *Displays) Add(display Display) {
	*d = append(*d, display)
}
