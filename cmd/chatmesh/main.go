// Command chatmesh runs the chat orchestration engine as an HTTP service or
// answers a single query from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/logging"
)

var (
	configPath string
	verbose    bool

	cfg    *config.AppConfig
	logger logging.Logger
	syncFn func() error
)

var rootCmd = &cobra.Command{
	Use:   "chatmesh",
	Short: "chatmesh - streaming conversational orchestration",
	Long: `chatmesh runs conversational turns through retrieval, generation,
persistence and titling and streams the progress as events.

Configuration is read from an optional YAML file and CHATMESH_* environment
variables (REDIS_URL, SESSION_EXPIRE_TIME and MAX_CONCURRENT_CHATS are honored
as well).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, syncFn, err = buildLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if syncFn != nil {
			_ = syncFn()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, askCmd, configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
