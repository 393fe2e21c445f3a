package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ftl/replayscope/graph"
)

const envPrefix = "REPLAYSCOPE"

var graphFlags = struct {
	listen       string
	scope        bool
	scopeAddress string
}{}

func addGraphFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&graphFlags.listen, "listen", "localhost:8088", "listening address of the web window")
	flags.BoolVar(&graphFlags.scope, "scope", false, "enable the scope server to forward the frames to remote displays")
	flags.StringVar(&graphFlags.scopeAddress, "scope-address", ":35369", "listening address of the scope server")
	flags.Int("sample-rate", graph.DefaultSampleRate, "the sample rate of all channels in Hz")
	flags.String("data-dir", ".", "the directory of relative sample file names")
	flags.String("snapshot-dir", "snapshots", "the directory where snapshots are written")
}

// loadConfig reads the configuration from the defaults, the configuration file, the environment and the
// command line, in increasing order of precedence.
func loadConfig(cmd *cobra.Command, filename string) (graph.Config, error) {
	defaults := graph.DefaultConfig()
	v := viper.New()
	v.SetDefault("sample_rate", defaults.SampleRate)
	v.SetDefault("block_size", defaults.BlockSize)
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("snapshot_dir", defaults.SnapshotDir)

	flags := cmd.Flags()
	for key, flag := range map[string]string{
		"sample_rate":  "sample-rate",
		"data_dir":     "data-dir",
		"snapshot_dir": "snapshot-dir",
	} {
		if f := flags.Lookup(flag); f != nil {
			err := v.BindPFlag(key, f)
			if err != nil {
				return graph.Config{}, fmt.Errorf("cannot bind flag %s: %w", flag, err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if filename != "" {
		if _, err := os.Stat(filename); err != nil {
			return graph.Config{}, fmt.Errorf("cannot read configuration: %w", err)
		}
		v.SetConfigFile(filename)
	} else {
		v.SetConfigName("replayscope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "replayscope"))
		}
		v.AddConfigPath("/etc/replayscope")
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(err, &notFound):
		log.Print("no configuration file found, using the defaults")
	case err != nil:
		return graph.Config{}, fmt.Errorf("cannot read configuration: %w", err)
	default:
		log.Printf("using configuration file %s", v.ConfigFileUsed())
	}

	result := defaults
	result.Channels = nil
	err = v.Unmarshal(&result, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return graph.Config{}, fmt.Errorf("cannot parse configuration: %w", err)
	}
	if len(result.Channels) == 0 {
		result.Channels = defaults.Channels
	}

	return result, result.Validate()
}
