package cli

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/spf13/cobra"

	"ersatz/internal/engine"
)

func newExecCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "exec [SQL]",
		Short: "Rewrite and run SQL on SQLite",
		Long: "Exec runs each statement on the configured SQLite database with every\n" +
			"configured function registered, and prints the rows of statements that\n" +
			"return columns.",
		Example: `  ersatz exec "SELECT foo FROM func(1, 2)"
  ersatz exec --database data.sqlite --file report.sql -o csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readSQL(cmd, args, file)
			if err != nil {
				return err
			}

			stmts, err := pg_query.SplitWithScanner(input, true)
			if err != nil {
				return fmt.Errorf("split statements: %w", err)
			}

			eng, err := engine.Open(cmd.Context(), a.cfg.Database, a.cfg.EngineFunctions(), a.logger)
			if err != nil {
				return err
			}
			defer eng.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			for i, stmt := range stmts {
				if strings.TrimSpace(stmt) == "" {
					continue
				}
				rs, err := runStatement(cmd, eng, stmt)
				if err != nil {
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
				if len(rs.cols) == 0 {
					continue
				}
				if err := renderResults(out, rs, a.cfg.Output); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read SQL from file")
	return cmd
}

func runStatement(cmd *cobra.Command, eng *engine.Engine, stmt string) (*resultSet, error) {
	rows, err := eng.Query(cmd.Context(), stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	return readResults(rows)
}
