package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ersatz/internal/config"
	"ersatz/internal/sqlrewrite"
)

func newRewriteCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "rewrite [SQL]",
		Short: "Print SQL with pseudo-function calls rewritten",
		Long: "Rewrite reads SQL from its arguments, --file, or stdin and prints it with\n" +
			"every configured function call in FROM replaced by a json_each CTE.\n" +
			"SQL without such calls is printed unchanged.",
		Example: `  ersatz rewrite "SELECT foo FROM func(1, 2)"
  ersatz rewrite --file query.sql
  echo "SELECT * FROM func()" | ersatz rewrite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(cmd, args, file)
			if err != nil {
				return err
			}

			rewritten, err := sqlrewrite.Rewrite(sql, a.cfg.Mappings())
			if err != nil {
				return err
			}
			a.logger.Debug("rewrite finished", "changed", rewritten != sql)

			out := cmd.OutOrStdout()
			if a.cfg.Output == config.OutputJSON {
				return printJSON(out, map[string]any{
					"original":  sql,
					"rewritten": rewritten,
					"changed":   rewritten != sql,
				})
			}
			_, _ = fmt.Fprintln(out, rewritten)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read SQL from file")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "check [SQL]",
		Short: "Report whether SQL might call a configured function",
		Long: "Check runs the cheap textual test that decides whether rewrite parses\n" +
			"the SQL at all. It matches a space, the upper-cased function name and an\n" +
			"opening parenthesis, so it can miss calls written without a leading space.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(cmd, args, file)
			if err != nil {
				return err
			}

			might := sqlrewrite.MightHaveFunctionCalls(sql, a.cfg.Mappings())

			out := cmd.OutOrStdout()
			if a.cfg.Output == config.OutputJSON {
				return printJSON(out, map[string]bool{"might_have_function_calls": might})
			}
			_, _ = fmt.Fprintf(out, "might have function calls: %t\n", might)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read SQL from file")
	return cmd
}
