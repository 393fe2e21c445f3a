package cmd

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/replayscope/graph"
	"github.com/ftl/replayscope/scope"
	"github.com/ftl/replayscope/stream"
)

func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	result := &cobra.Command{Use: "test"}
	addGraphFlags(result)
	require.NoError(t, result.ParseFlags(args))
	return result
}

const testConfigFile = `
sample_rate: 32000
data_dir: /var/lib/smartnet
channels:
  - name: ctrl
    kind: complex
    source:
      type: file
      path: ctrl.cfile
    taps:
      - udp:localhost:7355
    sinks:
      - type: frequency
        title: Control Channel
        size: 2048
        update_interval: 50ms
        y_min: -120
        y_max: 0
        window: hann
        average: 0.2
`

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", dir)

	config, err := loadConfig(newTestCommand(t), "")
	require.NoError(t, err)

	assert.Equal(t, graph.DefaultConfig(), config)
}

func TestLoadConfigFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "replayscope.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(testConfigFile), 0o644))

	config, err := loadConfig(newTestCommand(t), filename)
	require.NoError(t, err)

	assert.Equal(t, 32000, config.SampleRate)
	assert.Equal(t, "/var/lib/smartnet", config.DataDir)
	assert.Equal(t, "snapshots", config.SnapshotDir)
	require.Len(t, config.Channels, 1)
	channel := config.Channels[0]
	assert.Equal(t, "ctrl", channel.Name)
	assert.Equal(t, stream.Complex, channel.Kind)
	assert.Equal(t, graph.SourceConfig{Type: graph.FileSource, Path: "ctrl.cfile"}, channel.Source)
	assert.Equal(t, []string{"udp:localhost:7355"}, channel.Taps)
	require.Len(t, channel.Sinks, 1)
	assert.Equal(t, scope.FrequencyPanel, channel.Sinks[0].Type)
	assert.Equal(t, 2048, channel.Sinks[0].Size)
	assert.Equal(t, 50*time.Millisecond, channel.Sinks[0].UpdateInterval)
	assert.Equal(t, 0.2, channel.Sinks[0].Average)
}

func TestLoadConfigPrecedence(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "replayscope.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(testConfigFile), 0o644))
	t.Setenv("REPLAYSCOPE_DATA_DIR", "/srv/recordings")

	config, err := loadConfig(newTestCommand(t, "--sample-rate", "96000"), filename)
	require.NoError(t, err)

	assert.Equal(t, 96000, config.SampleRate)
	assert.Equal(t, "/srv/recordings", config.DataDir)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("sample_rate: 0\n"), 0o644))
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("channels: [\n"), 0o644))

	tt := []struct {
		desc     string
		filename string
	}{
		{desc: "missing file", filename: filepath.Join(dir, "missing.yaml")},
		{desc: "invalid sample rate", filename: invalid},
		{desc: "broken yaml", filename: broken},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := loadConfig(newTestCommand(t), tc.filename)
			assert.Error(t, err)
		})
	}
}

func TestLiveChannelIsValid(t *testing.T) {
	config := graph.DefaultConfig()
	config.Channels = []graph.ChannelConfig{liveChannel("tci", graph.SourceConfig{Type: graph.TCISource, Host: "localhost:40001"}, nil)}

	assert.NoError(t, config.Validate())
}

func TestFramePrinter(t *testing.T) {
	out := &bytes.Buffer{}
	printer := &framePrinter{out: out}
	timestamp := time.Date(2024, 5, 17, 12, 30, 45, 0, time.Local)

	printer.ShowTimeFrame(&scope.TimeFrame{
		Frame:    scope.Frame{Stream: "sym-time", Timestamp: timestamp},
		Duration: 20 * time.Millisecond,
		YMin:     -1,
		YMax:     1,
		Lines:    [][]float64{{0, 1, 0, -1}},
	})
	printer.ShowSpectralFrame(&scope.SpectralFrame{
		Frame:         scope.Frame{Stream: "in-frequency", Timestamp: timestamp},
		FromFrequency: -24000,
		ToFrequency:   24000,
		Values:        []float64{-100, -90, -3.5, -90},
	})

	assert.Equal(t,
		"12:30:45.000 sym-time         time      1 lines of 4 samples, 20ms, y -1.000..1.000\n"+
			"12:30:45.000 in-frequency     frequency 4 bins, -24000..24000 Hz, peak -3.5 dB at 0 Hz, floor -100.0 dB\n",
		out.String())
}

func TestFatalReportsOnStderr(t *testing.T) {
	tt := []struct {
		desc  string
		debug bool
	}{
		{desc: "silent log"},
		{desc: "debug log", debug: true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			out := &bytes.Buffer{}
			exitCode := -1
			previousStderr, previousExit, previousFlags, previousLog := stderr, exit, rootFlags, log.Writer()
			t.Cleanup(func() {
				stderr, exit, rootFlags = previousStderr, previousExit, previousFlags
				log.SetOutput(previousLog)
			})
			stderr = out
			exit = func(code int) { exitCode = code }
			rootFlags.debug = tc.debug
			rootFlags.logFile = ""

			setupLogging()
			if tc.debug {
				log.SetOutput(stderr)
			}
			fatal("cannot open sym.float")

			assert.Equal(t, 1, exitCode)
			assert.Equal(t, 1, strings.Count(out.String(), "cannot open sym.float"), out.String())
		})
	}
}
