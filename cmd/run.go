package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/ftl/replayscope/graph"
	"github.com/ftl/replayscope/scope"
	"github.com/ftl/replayscope/settings"
	"github.com/ftl/replayscope/web"
)

// The window state lives where the GNU Radio debug flow graph keeps it.
const (
	settingsOrganization = "gnuradio/flowgraphs"
	settingsApplication  = "debug_smartnet"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "replay the configured channels into the web window (default)",
	Run:   runWithCtx(runRun),
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(ctx context.Context, cmd *cobra.Command, args []string) {
	config, err := loadConfig(cmd, rootFlags.config)
	if err != nil {
		fatal(err)
	}
	runGraph(ctx, config)
}

// runGraph builds the graph of the given configuration, shows it in the web window and runs it until
// the context is done.
func runGraph(ctx context.Context, config graph.Config) {
	displays := new(scope.Displays)
	g, err := graph.New(config, displays)
	if err != nil {
		fatal(err)
	}

	store := settings.Open(settingsOrganization, settingsApplication)
	webServer := web.NewServer(graphFlags.listen, g.Panels(), store, g)
	err = webServer.Start()
	if err != nil {
		g.Close()
		fatalf("cannot start web window: %v", err)
	}
	displays.Add(webServer)

	var scopeServer *scope.ScopeServer
	if graphFlags.scope {
		scopeServer = scope.NewScopeServer(graphFlags.scopeAddress)
		err := scopeServer.Start()
		if err != nil {
			log.Printf("cannot start scope server: %v", err)
		} else {
			displays.Add(scopeServer)
		}
	}

	err = g.Run(ctx)
	if err != nil {
		log.Printf("cannot run graph: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = webServer.Stop(shutdownCtx)
	if err != nil {
		log.Printf("cannot stop web window: %v", err)
	}
	if scopeServer != nil {
		scopeServer.Stop()
	}

	err = store.Save()
	if err != nil {
		log.Printf("cannot save window state: %v", err)
	}
}
