package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ersatz/internal/config"
)

func newMappingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "Print the function column mappings in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mappings := a.cfg.Mappings()
			out := cmd.OutOrStdout()

			if a.cfg.Output == config.OutputJSON {
				return printJSON(out, mappings)
			}
			if len(mappings) == 0 {
				_, _ = fmt.Fprintln(out, "no functions configured")
				return nil
			}

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(map[string][]string(mappings)); err != nil {
				return fmt.Errorf("encode mappings: %w", err)
			}
			return enc.Close()
		},
	}
}
