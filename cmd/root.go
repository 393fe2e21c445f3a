package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	version   string = "develop"
	gitCommit string = "-"
	buildTime string = "-"
)

var rootFlags = struct {
	pprof   bool
	debug   bool
	config  string
	logFile string
}{}

var rootCmd = &cobra.Command{
	Use:   "replayscope",
	Short: "replayscope - replay recorded sample streams into time, spectrum and waterfall displays",
	Run:   runWithCtx(runRun),
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootFlags.pprof, "pprof", false, "enable pprof")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootFlags.config, "config", "", "the configuration file (default replayscope.yaml in ., $HOME/.config/replayscope or /etc/replayscope)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFile, "log-file", "", "write the debug log into this file, with rotation")

	rootCmd.PersistentFlags().MarkHidden("pprof")

	addGraphFlags(rootCmd)
}

func runWithCtx(f func(ctx context.Context, cmd *cobra.Command, args []string)) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		setupLogging()

		log.Printf("replayscope Version %s", formatVersion())

		if rootFlags.pprof {
			go func() {
				log.Printf("starting pprof on http://localhost:6060/debug/pprof")
				log.Println(http.ListenAndServe("localhost:6060", nil))
			}()
		}

		ctx, cancel := context.WithCancel(context.Background())
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go handleCancelation(signals, cancel)

		f(ctx, cmd, args)
	}
}

func setupLogging() {
	var out io.Writer = &nopWriter{}
	switch {
	case rootFlags.logFile != "":
		out = &lumberjack.Logger{
			Filename:   rootFlags.logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 4,
			MaxAge:     30, // days
			Compress:   true,
		}
	case rootFlags.debug:
		out = os.Stderr
	}
	log.SetOutput(out)
}

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// fatal logs the error and exits. The error is also written to stderr if the log is silent or goes to a file.
func fatal(v ...any) {
	message := fmt.Sprint(v...)
	log.Print(message)
	if log.Writer() != stderr {
		fmt.Fprintln(stderr, message)
	}
	exit(1)
}

func fatalf(format string, v ...any) {
	fatal(fmt.Sprintf(format, v...))
}

func formatVersion() string {
	if gitCommit == "-" && buildTime == "-" {
		return version
	}
	return fmt.Sprintf("%s_%s_%s", version, gitCommit, buildTime)
}

func handleCancelation(signals <-chan os.Signal, cancel context.CancelFunc) {
	count := 0
	for range signals {
		count++
		if count == 1 {
			cancel()
		} else {
			log.Fatal("hard shutdown")
		}
	}
}

type nopWriter struct{}

func (w *nopWriter) Write(p []byte) (n int, err error) { return len(p), nil }
