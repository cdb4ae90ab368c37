package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
functions:
  func:
    columns: [foo, bar]
    rows:
      - [1, 2]
      - [2, 3]
  pair:
    columns: [a, b]
    rows:
      - [10, "ten"]
`

// cliResult holds what one CLI invocation wrote and returned.
type cliResult struct {
	stdout string
	stderr string
	code   int
}

// isolate moves the test into an empty working directory so that no
// ersatz.yaml or .env is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// writeTestConfig writes content to ersatz.yaml in dir and returns its path.
func writeTestConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "ersatz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runCLI executes the root command with args, feeding stdin.
func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer

	rootCmd := newRootCmd()
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))

	code := run(rootCmd, args)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// containsIgnoreCase checks if s contains substr (case-insensitive).
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
