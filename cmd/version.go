package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("replayscope Version %s\n", formatVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
