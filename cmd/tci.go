package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ftl/replayscope/graph"
	"github.com/ftl/replayscope/scope"
	"github.com/ftl/replayscope/stream"
)

var tciFlags = struct {
	host     string
	trx      int
	traceTCI bool
	taps     []string
}{}

var tciCmd = &cobra.Command{
	Use:   "tci",
	Short: "show the live IQ stream of a TCI server instead of the recorded files",
	Run:   runWithCtx(runTCI),
}

func init() {
	rootCmd.AddCommand(tciCmd)

	tciCmd.Flags().StringVar(&tciFlags.host, "host", "localhost:40001", "the TCI host and port")
	tciCmd.Flags().IntVar(&tciFlags.trx, "trx", 0, "the zero-based index of the TCI trx")
	tciCmd.Flags().BoolVar(&tciFlags.traceTCI, "trace_tci", false, "trace the TCI communication on the console")
	tciCmd.Flags().StringSliceVar(&tciFlags.taps, "tap", nil, "copy the IQ stream to file:<filename> | udp:<host:port> | zmq:<endpoint>")
}

func runTCI(ctx context.Context, cmd *cobra.Command, args []string) {
	config, err := loadConfig(cmd, rootFlags.config)
	if err != nil {
		fatal(err)
	}
	config.Channels = []graph.ChannelConfig{liveChannel("tci", graph.SourceConfig{
		Type:     graph.TCISource,
		Host:     tciFlags.host,
		TRX:      tciFlags.trx,
		TraceTCI: tciFlags.traceTCI,
	}, tciFlags.taps)}

	runGraph(ctx, config)
}

// liveChannel shows the IQ stream of a receiver in a spectrum and a waterfall.
func liveChannel(name string, source graph.SourceConfig, taps []string) graph.ChannelConfig {
	return graph.ChannelConfig{
		Name:   name,
		Kind:   stream.Complex,
		Source: source,
		Sinks: []scope.Config{
			scope.DefaultFrequencyConfig("IQ (Complex)"),
			scope.DefaultWaterfallConfig(""),
		},
		Taps: taps,
	}
}
