package scope

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Frames travel over the wire as protobuf structs:
//
//	kind:      "time" | "frequency" | "waterfall"
//	stream:    the stream ID
//	timestamp: RFC 3339 with nanoseconds
//
// plus the kind specific fields below. Numbers are always doubles.

func encodeTimeFrame(frame *TimeFrame) *structpb.Struct {
	lines := make([]*structpb.Value, len(frame.Lines))
	for i, line := range frame.Lines {
		lines[i] = numberList(line)
	}
	fields := frameFields(TimePanel, frame.Frame)
	fields["sample_rate"] = structpb.NewNumberValue(float64(frame.SampleRate))
	fields["duration"] = structpb.NewNumberValue(frame.Duration.Seconds())
	fields["y_min"] = structpb.NewNumberValue(frame.YMin)
	fields["y_max"] = structpb.NewNumberValue(frame.YMax)
	fields["lines"] = structpb.NewListValue(&structpb.ListValue{Values: lines})
	return &structpb.Struct{Fields: fields}
}

func encodeSpectralFrame(frame *SpectralFrame) *structpb.Struct {
	fields := frameFields(FrequencyPanel, frame.Frame)
	fields["from_frequency"] = structpb.NewNumberValue(frame.FromFrequency)
	fields["to_frequency"] = structpb.NewNumberValue(frame.ToFrequency)
	fields["y_min"] = structpb.NewNumberValue(frame.YMin)
	fields["y_max"] = structpb.NewNumberValue(frame.YMax)
	fields["values"] = numberList(frame.Values)
	return &structpb.Struct{Fields: fields}
}

func encodeWaterfallFrame(frame *WaterfallFrame) *structpb.Struct {
	fields := frameFields(WaterfallPanel, frame.Frame)
	fields["from_frequency"] = structpb.NewNumberValue(frame.FromFrequency)
	fields["to_frequency"] = structpb.NewNumberValue(frame.ToFrequency)
	fields["min_intensity"] = structpb.NewNumberValue(frame.MinIntensity)
	fields["max_intensity"] = structpb.NewNumberValue(frame.MaxIntensity)
	fields["values"] = numberList(frame.Values)
	return &structpb.Struct{Fields: fields}
}

func frameFields(kind PanelKind, frame Frame) map[string]*structpb.Value {
	return map[string]*structpb.Value{
		"kind":      structpb.NewStringValue(string(kind)),
		"stream":    structpb.NewStringValue(string(frame.Stream)),
		"timestamp": structpb.NewStringValue(frame.Timestamp.Format(time.RFC3339Nano)),
	}
}

func numberList(values []float64) *structpb.Value {
	list := make([]*structpb.Value, len(values))
	for i, v := range values {
		list[i] = structpb.NewNumberValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list})
}

// decodeFrame returns a *TimeFrame, *SpectralFrame or *WaterfallFrame.
func decodeFrame(s *structpb.Struct) (any, error) {
	fields := s.GetFields()
	timestamp, err := time.Parse(time.RFC3339Nano, fields["timestamp"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("cannot parse frame timestamp: %w", err)
	}
	frame := Frame{
		Stream:    StreamID(fields["stream"].GetStringValue()),
		Timestamp: timestamp,
	}
	number := func(name string) float64 {
		return fields[name].GetNumberValue()
	}

	switch kind := PanelKind(fields["kind"].GetStringValue()); kind {
	case TimePanel:
		rawLines := fields["lines"].GetListValue().GetValues()
		lines := make([][]float64, len(rawLines))
		for i, line := range rawLines {
			lines[i] = numbers(line)
		}
		return &TimeFrame{
			Frame:      frame,
			SampleRate: int(number("sample_rate")),
			Duration:   time.Duration(number("duration") * float64(time.Second)),
			YMin:       number("y_min"),
			YMax:       number("y_max"),
			Lines:      lines,
		}, nil
	case FrequencyPanel:
		return &SpectralFrame{
			Frame:         frame,
			FromFrequency: number("from_frequency"),
			ToFrequency:   number("to_frequency"),
			YMin:          number("y_min"),
			YMax:          number("y_max"),
			Values:        numbers(fields["values"]),
		}, nil
	case WaterfallPanel:
		return &WaterfallFrame{
			Frame:         frame,
			FromFrequency: number("from_frequency"),
			ToFrequency:   number("to_frequency"),
			MinIntensity:  number("min_intensity"),
			MaxIntensity:  number("max_intensity"),
			Values:        numbers(fields["values"]),
		}, nil
	default:
		return nil, fmt.Errorf("unknown frame kind %q", kind)
	}
}

func numbers(value *structpb.Value) []float64 {
	list := value.GetListValue().GetValues()
	result := make([]float64, len(list))
	for i, v := range list {
		result[i] = v.GetNumberValue()
	}
	return result
}
