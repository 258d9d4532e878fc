package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags, shared by every subcommand.
	dataDir    string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ltm",
	Short: "Manage a long-term, emotionally-annotated memory store",
	Long: `ltm operates directly on a memory store's data directory.

Each subcommand opens its own store handle, performs one operation, and
exits. There is no long-running server.

Examples:
  ltm list --level 2
  ltm show mem_20260115_a1b2c3d4
  ltm search "the move to Seattle"
  ltm protect mem_20260115_a1b2c3d4
  ltm stats
  ltm purge-archive --older-than 180d`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "store data directory (default: ~/.ltm/ltm/data)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file (default: ~/.ltm/ltm/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
