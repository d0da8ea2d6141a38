package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor runs branching visual-novel stories",
	Long: `Arbor plays story graphs in the console, renders them as diagrams,
validates them and serves live sessions over HTTP.

Settings come from ARBOR_* environment variables (and an optional .env file);
flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env")
		loaded, err := config.Load(envFile)
		if err != nil {
			return err
		}
		applyFlags(cmd, &loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		logger = cfg.Logger()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("env", ".env", "Optional dotenv file")
	flags.String("source", "", "Graph source: file, loam, redis or sqlite (ARBOR_SOURCE)")
	flags.String("dir", "", "Graph directory of the file and loam sources (ARBOR_DIR)")
	flags.String("log-level", "", "debug, info, warn or error (ARBOR_LOG_LEVEL)")
	flags.Bool("log-json", false, "Log as JSON (ARBOR_LOG_JSON)")
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		c.Source, _ = flags.GetString("source")
	}
	if flags.Changed("dir") {
		c.Dir, _ = flags.GetString("dir")
	}
	if flags.Changed("log-level") {
		c.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		c.LogJSON, _ = flags.GetBool("log-json")
	}
}

// openSource opens the configured source; the caller closes it.
func openSource() (*cli.Source, error) {
	return cli.OpenSource(cfg, logger)
}

// graphArg returns the graph named on the command line or the configured one.
func graphArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Graph
}
