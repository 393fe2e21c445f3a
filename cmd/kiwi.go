package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ftl/replayscope/graph"
)

// kiwiSampleRate is the nominal IQ sample rate of a KiwiSDR, used until the KiwiSDR announces its actual rate.
const kiwiSampleRate = 12000

var kiwiFlags = struct {
	host            string
	username        string
	password        string
	centerFrequency float64
	bandwidth       int
	taps            []string
}{}

var kiwiCmd = &cobra.Command{
	Use:   "kiwi",
	Short: "EXPERIMENTAL: show the live IQ stream of a KiwiSDR instead of the recorded files",
	Run:   runWithCtx(runKiwi),
}

func init() {
	rootCmd.AddCommand(kiwiCmd)

	kiwiCmd.Flags().StringVar(&kiwiFlags.host, "host", "localhost:8073", "the KiwiSDR host and port")
	kiwiCmd.Flags().StringVar(&kiwiFlags.username, "username", "", "the KiwiSDR username")
	kiwiCmd.Flags().StringVar(&kiwiFlags.password, "password", "", "the KiwiSDR password")
	kiwiCmd.Flags().Float64Var(&kiwiFlags.centerFrequency, "center", 7_020_000, "the center frequency")
	kiwiCmd.Flags().IntVar(&kiwiFlags.bandwidth, "bandwidth", 10_000, "the observed bandwidth (max 12000)")
	kiwiCmd.Flags().StringSliceVar(&kiwiFlags.taps, "tap", nil, "copy the IQ stream to file:<filename> | udp:<host:port> | zmq:<endpoint>")
}

func runKiwi(ctx context.Context, cmd *cobra.Command, args []string) {
	config, err := loadConfig(cmd, rootFlags.config)
	if err != nil {
		fatal(err)
	}
	if !cmd.Flags().Changed("sample-rate") {
		config.SampleRate = kiwiSampleRate
	}
	channel := liveChannel("kiwi", graph.SourceConfig{
		Type:            graph.KiwiSource,
		Host:            kiwiFlags.host,
		Username:        kiwiFlags.username,
		Password:        kiwiFlags.password,
		CenterFrequency: kiwiFlags.centerFrequency,
		Bandwidth:       kiwiFlags.bandwidth,
	}, kiwiFlags.taps)
	for i := range channel.Sinks {
		channel.Sinks[i].CenterFrequency = kiwiFlags.centerFrequency
	}
	config.Channels = []graph.ChannelConfig{channel}

	runGraph(ctx, config)
}
