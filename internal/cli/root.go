package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/cuedeck/cuedeck/internal/cli.version=1.2.3"
	version = "1.0.0"
	logo    = "\n" +
		"   ____ _   _ _____ ____  _____ ____ _  __\n" +
		"  / ___| | | | ____|  _ \\| ____/ ___| |/ /\n" +
		" | |   | | | |  _| | | | |  _|| |   | ' /\n" +
		" | |___| |_| | |___| |_| | |__| |___| . \\\n" +
		"  \\____|\\___/|_____|____/|_____\\____|_|\\_\\\n"
)

var rootCmd = &cobra.Command{
	Use:   "cuedeck",
	Short: "CueDeck - human-in-the-loop console for AI agents",
	Long:  color.CyanString(logo) + "\nA web console for answering cue requests raised by AI agents over MCP.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}
