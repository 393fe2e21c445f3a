package graph

import (
	"errors"
	"fmt"
	"time"

	"github.com/ftl/replayscope/scope"
	"github.com/ftl/replayscope/stream"
)

type SourceType string

const (
	FileSource SourceType = "file"
	TCISource  SourceType = "tci"
	KiwiSource SourceType = "kiwi"
)

const (
	DefaultSampleRate = 48000
	defaultBlockSize  = 1024
	minRenderTick     = 10 * time.Millisecond
)

// SourceConfig describes where the samples of a channel come from. Which fields are used depends on the type.
type SourceConfig struct {
	Type SourceType `mapstructure:"type"`

	// file
	Path   string `mapstructure:"path"`
	Once   bool   `mapstructure:"once"` // stop at the end instead of looping
	Offset int64  `mapstructure:"offset"`
	Length int64  `mapstructure:"length"`

	// tci and kiwi
	Host            string  `mapstructure:"host"`
	TRX             int     `mapstructure:"trx"`
	TraceTCI        bool    `mapstructure:"trace_tci"`
	Username        string  `mapstructure:"username"`
	Password        string  `mapstructure:"password"`
	CenterFrequency float64 `mapstructure:"center_frequency"`
	Bandwidth       int     `mapstructure:"bandwidth"`
}

// ChannelConfig describes one source → throttle → sinks chain.
type ChannelConfig struct {
	Name    string         `mapstructure:"name"`
	Kind    stream.Kind    `mapstructure:"kind"`
	Source  SourceConfig   `mapstructure:"source"`
	Sinks   []scope.Config `mapstructure:"sinks"`
	Taps    []string       `mapstructure:"taps"`
	Monitor bool           `mapstructure:"monitor"`
}

type Config struct {
	SampleRate  int             `mapstructure:"sample_rate"`
	BlockSize   int             `mapstructure:"block_size"`
	DataDir     string          `mapstructure:"data_dir"`
	SnapshotDir string          `mapstructure:"snapshot_dir"`
	Channels    []ChannelConfig `mapstructure:"channels"`
}

// DefaultConfig replays the three debug files of the SmartNet control channel decoder: the complex
// input, the output of the symbol filter and the demodulated signal.
func DefaultConfig() Config {
	return Config{
		SampleRate:  DefaultSampleRate,
		BlockSize:   defaultBlockSize,
		DataDir:     ".",
		SnapshotDir: "snapshots",
		Channels: []ChannelConfig{
			{
				Name:   "sym",
				Kind:   stream.Real,
				Source: SourceConfig{Type: FileSource, Path: "smartnet_debug_sym.float"},
				Sinks:  []scope.Config{scope.DefaultTimeConfig("Symbol Filter (Float)")},
			},
			{
				Name:   "in",
				Kind:   stream.Complex,
				Source: SourceConfig{Type: FileSource, Path: "smartnet_debug_in.cfile"},
				Sinks: []scope.Config{
					scope.DefaultFrequencyConfig("Input (Complex)"),
					scope.DefaultWaterfallConfig(""),
				},
			},
			{
				Name:   "demod",
				Kind:   stream.Real,
				Source: SourceConfig{Type: FileSource, Path: "smartnet_debug_demod.float"},
				Sinks:  []scope.Config{scope.DefaultTimeConfig("Demod (Float)")},
			},
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("invalid sample rate %d", c.SampleRate))
	}
	if c.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid block size %d", c.BlockSize))
	}
	if len(c.Channels) == 0 {
		errs = append(errs, fmt.Errorf("no channels configured"))
	}
	names := make(map[string]bool)
	for i, channel := range c.Channels {
		if channel.Name == "" {
			errs = append(errs, fmt.Errorf("channel #%d has no name", i+1))
		} else if names[channel.Name] {
			errs = append(errs, fmt.Errorf("duplicate channel %s", channel.Name))
		}
		names[channel.Name] = true

		kind, err := stream.ParseKind(string(channel.Kind))
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", channel.Name, err))
		}
		switch channel.Source.Type {
		case FileSource, "":
			if channel.Source.Path == "" {
				errs = append(errs, fmt.Errorf("channel %s: no file", channel.Name))
			}
		case TCISource, KiwiSource:
			if err == nil && kind != stream.Complex {
				errs = append(errs, fmt.Errorf("channel %s: %s provides complex samples", channel.Name, channel.Source.Type))
			}
		default:
			errs = append(errs, fmt.Errorf("channel %s: unknown source type %q", channel.Name, channel.Source.Type))
		}
		if channel.Monitor && err == nil && kind != stream.Real {
			errs = append(errs, fmt.Errorf("channel %s: only real channels can be monitored", channel.Name))
		}
		if len(channel.Sinks) == 0 {
			errs = append(errs, fmt.Errorf("channel %s: no sinks", channel.Name))
		}
	}
	return errors.Join(errs...)
}
