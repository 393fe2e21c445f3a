package web

import (
	"encoding/json"
	"time"

	"github.com/ftl/replayscope/scope"
	"github.com/ftl/replayscope/settings"
)

type messageType string

const (
	sessionMessage  messageType = "session"
	panelsMessage   messageType = "panels"
	geometryMessage messageType = "geometry"
	frameMessage    messageType = "frame"
)

type message struct {
	Type      messageType        `json:"type"`
	Session   string             `json:"session,omitempty"`
	Panels    []scope.Panel      `json:"panels,omitempty"`
	Geometry  *settings.Geometry `json:"geometry,omitempty"`
	Frame     any                `json:"frame,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

type frameHeader struct {
	Kind      scope.PanelKind `json:"kind"`
	Stream    scope.StreamID  `json:"stream"`
	Timestamp time.Time       `json:"timestamp"`
}

type timeFrame struct {
	frameHeader
	SampleRate int         `json:"sampleRate"`
	Duration   float64     `json:"duration"`
	YMin       float64     `json:"yMin"`
	YMax       float64     `json:"yMax"`
	Lines      [][]float64 `json:"lines"`
}

type spectralFrame struct {
	frameHeader
	FromFrequency float64   `json:"fromFrequency"`
	ToFrequency   float64   `json:"toFrequency"`
	YMin          float64   `json:"yMin"`
	YMax          float64   `json:"yMax"`
	Values        []float64 `json:"values"`
}

type waterfallFrame struct {
	frameHeader
	FromFrequency float64   `json:"fromFrequency"`
	ToFrequency   float64   `json:"toFrequency"`
	MinIntensity  float64   `json:"minIntensity"`
	MaxIntensity  float64   `json:"maxIntensity"`
	Values        []float64 `json:"values"`
}

func encodeTimeFrame(frame *scope.TimeFrame) ([]byte, error) {
	return encodeFrame(frame.Timestamp, timeFrame{
		frameHeader: frameHeader{Kind: scope.TimePanel, Stream: frame.Stream, Timestamp: frame.Timestamp},
		SampleRate:  frame.SampleRate,
		Duration:    frame.Duration.Seconds(),
		YMin:        frame.YMin,
		YMax:        frame.YMax,
		Lines:       frame.Lines,
	})
}

func encodeSpectralFrame(frame *scope.SpectralFrame) ([]byte, error) {
	return encodeFrame(frame.Timestamp, spectralFrame{
		frameHeader:   frameHeader{Kind: scope.FrequencyPanel, Stream: frame.Stream, Timestamp: frame.Timestamp},
		FromFrequency: frame.FromFrequency,
		ToFrequency:   frame.ToFrequency,
		YMin:          frame.YMin,
		YMax:          frame.YMax,
		Values:        frame.Values,
	})
}

func encodeWaterfallFrame(frame *scope.WaterfallFrame) ([]byte, error) {
	return encodeFrame(frame.Timestamp, waterfallFrame{
		frameHeader:   frameHeader{Kind: scope.WaterfallPanel, Stream: frame.Stream, Timestamp: frame.Timestamp},
		FromFrequency: frame.FromFrequency,
		ToFrequency:   frame.ToFrequency,
		MinIntensity:  frame.MinIntensity,
		MaxIntensity:  frame.MaxIntensity,
		Values:        frame.Values,
	})
}

func encodeFrame(timestamp time.Time, frame any) ([]byte, error) {
	return json.Marshal(message{
		Type:      frameMessage,
		Frame:     frame,
		Timestamp: timestamp,
	})
}
