package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNoSQL = errors.New("no SQL given: pass it as an argument, with --file, or on stdin")

// readSQL returns the SQL text from args, the --file flag, or stdin when
// stdin is not a terminal.
func readSQL(cmd *cobra.Command, args []string, file string) (string, error) {
	if len(args) > 0 && file != "" {
		return "", errors.New("pass SQL as an argument or with --file, not both")
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if file != "" {
		data, err := os.ReadFile(file) //nolint:gosec // path is caller-controlled
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return nonEmpty(string(data))
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errNoSQL
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return nonEmpty(string(data))
}

func nonEmpty(sql string) (string, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", errNoSQL
	}
	return sql, nil
}
