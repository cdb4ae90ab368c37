// Package cli implements the ersatz command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ersatz/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// dotEnvFile is read from the working directory before configuration loads.
const dotEnvFile = ".env"

// app carries state resolved in PersistentPreRunE to the subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(newRootCmd(), os.Args[1:])
}

func run(rootCmd *cobra.Command, args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		if getOutputFormat(rootCmd) == config.OutputJSON {
			_ = printJSON(rootCmd.OutOrStdout(), map[string]any{"error": err.Error()})
		} else {
			_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ersatz",
		Short: "Query pseudo table-valued functions on SQLite",
		Long: "ersatz rewrites SQL that calls configured functions in FROM, as in\n" +
			"SELECT foo FROM func(1, 2), into plain SQL that unpacks the function's\n" +
			"JSON result with json_each, and can run it on SQLite.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default ersatz.yaml in the working directory)")
	pf.String("log-level", "", "Log level: debug, info, warn, error (default info)")
	pf.StringP("output", "o", "", "Output format: table, json, csv (default table)")
	pf.String("database", "", "SQLite database path or :memory: (default :memory:)")

	rootCmd.AddCommand(newRewriteCmd(a))
	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newExecCmd(a))
	rootCmd.AddCommand(newMappingsCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// init loads configuration and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		return err
	}

	cfg, used, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	a.logger.Debug("configuration loaded",
		"file", used,
		"database", cfg.Database,
		"functions", cfg.Mappings().Names(),
	)
	return nil
}
