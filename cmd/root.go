package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/config"
)

// cfg is loaded once per invocation, before any subcommand runs.
var cfg *config.Config

// flagOverrides maps root persistent flags to the config keys they replace.
var flagOverrides = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"store":        "store.driver",
	"sources-file": "hunter.sources_file",
}

var rootCmd = &cobra.Command{
	Use:   "hunter",
	Short: "Expansion-lead hunter",
	Long: `Fetches news sources, extracts companies that are opening or expanding
locations, and merges them into deduplicated, scored leads.

Settings come from config.yaml (or --config), HUNTER_* environment
variables and the flags below, in increasing order of precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	bindRootFlags(rootCmd)
}

func bindRootFlags(c *cobra.Command) {
	pf := c.PersistentFlags()
	pf.String("config", "", "config file (default ./config.yaml when present)")
	pf.String("log-level", "", "log level override (debug, info, warn, error)")
	pf.String("log-format", "", "log format override (json, console)")
	pf.String("store", "", "store driver override (postgres, sqlite)")
	pf.String("sources-file", "", "source definitions file override")
}

// setup loads configuration for cmd and installs the global logger.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadWith(loadOptions(cmd))
	if err != nil {
		return eris.Wrap(err, "hunter: load config")
	}
	if err := config.InitLogger(c.Log); err != nil {
		return eris.Wrap(err, "hunter: init logger")
	}
	cfg = c

	zap.L().Debug("hunter: config loaded",
		zap.String("command", cmd.CommandPath()),
		zap.String("store", cfg.Store.Driver),
		zap.String("crm", cfg.CRM.Driver),
		zap.String("extract", cfg.Extract.Provider),
	)
	return nil
}

// loadOptions collects --config and every override flag set explicitly.
func loadOptions(cmd *cobra.Command) config.LoadOptions {
	var opts config.LoadOptions
	if f := cmd.Flags().Lookup("config"); f != nil {
		opts.File = f.Value.String()
	}
	for name, key := range flagOverrides {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if opts.Overrides == nil {
			opts.Overrides = make(map[string]any, len(flagOverrides))
		}
		opts.Overrides[key] = f.Value.String()
	}
	return opts
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
