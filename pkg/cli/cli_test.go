package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCLI_RewriteArgument(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "rewrite", "SELECT foo FROM func(1, 2)")
	require.Equal(t, 0, res.code, res.stderr)

	assert.Contains(t, res.stdout, "WITH _ersatz_1 AS (")
	assert.Contains(t, res.stdout, "json_each((SELECT func(1, 2)))")
	assert.Contains(t, res.stdout, "FROM _ersatz_1")
}

func TestCLI_RewritePassThrough(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "rewrite", "SELECT 1")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "SELECT 1\n", res.stdout)
}

func TestCLI_RewriteJoinsArguments(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "rewrite", "SELECT", "foo", "FROM", "func()")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "_ersatz_1")
}

func TestCLI_RewriteStdin(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "SELECT bar FROM FUNC()\n", "rewrite")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "FROM _ersatz_1")
}

func TestCLI_RewriteFile(t *testing.T) {
	dir := isolate(t)
	writeTestConfig(t, dir, testConfig)
	path := filepath.Join(dir, "query.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT a FROM pair()"), 0o600))

	res := runCLI(t, "", "rewrite", "--file", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "json_extract(value, '$[0]') AS a")
}

func TestCLI_RewriteInputErrors(t *testing.T) {
	dir := isolate(t)
	writeTestConfig(t, dir, testConfig)

	tests := []struct {
		name       string
		stdin      string
		args       []string
		wantSubstr string
	}{
		{
			name:       "empty stdin",
			args:       []string{"rewrite"},
			wantSubstr: "no SQL given",
		},
		{
			name:       "argument and file",
			args:       []string{"rewrite", "--file", "query.sql", "SELECT 1"},
			wantSubstr: "not both",
		},
		{
			name:       "missing file",
			args:       []string{"rewrite", "--file", filepath.Join(dir, "missing.sql")},
			wantSubstr: "missing.sql",
		},
		{
			name:       "parse error",
			args:       []string{"rewrite", "SELECT foo FROM func("},
			wantSubstr: "parse SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.stdin, tt.args...)
			assert.Equal(t, 1, res.code)
			assert.Contains(t, res.stderr, "Error: ")
			assert.Contains(t, res.stderr, tt.wantSubstr)
		})
	}
}

func TestCLI_RewriteJSON(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "-o", "json", "rewrite", "SELECT foo FROM func()")
	require.Equal(t, 0, res.code, res.stderr)

	var out struct {
		Original  string `json:"original"`
		Rewritten string `json:"rewritten"`
		Changed   bool   `json:"changed"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, "SELECT foo FROM func()", out.Original)
	assert.Contains(t, out.Rewritten, "_ersatz_1")
	assert.True(t, out.Changed)
}

func TestCLI_ErrorAsJSON(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "--output", "json", "rewrite", "SELECT foo FROM func(")
	assert.Equal(t, 1, res.code)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Contains(t, out["error"], "parse SQL")
}

func TestCLI_ErrorAsJSONUpperCase(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "-o", "JSON", "rewrite", "SELECT foo FROM func(")
	assert.Equal(t, 1, res.code)
	assert.Empty(t, res.stderr)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Contains(t, out["error"], "parse SQL")
}

func TestCLI_Check(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM func()", "true"},
		{"select * from Pair(1)", "true"},
		{"SELECT 1", "false"},
		{"SELECT * FROM\tfunc()", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			res := runCLI(t, "", "check", tt.sql)
			require.Equal(t, 0, res.code, res.stderr)
			assert.Equal(t, "might have function calls: "+tt.want+"\n", res.stdout)
		})
	}
}

func TestCLI_ExecTable(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "exec", "SELECT foo FROM func(1, 2)")
	require.Equal(t, 0, res.code, res.stderr)

	assert.True(t, containsIgnoreCase(res.stdout, "foo"))
	assert.Contains(t, res.stdout, "(2 rows)")
}

func TestCLI_ExecEmptyResult(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "exec", "SELECT foo FROM func() WHERE foo > 10")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "(0 rows)\n", res.stdout)
}

func TestCLI_ExecJSON(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "-o", "json", "exec", "SELECT a, b FROM pair()")
	require.Equal(t, 0, res.code, res.stderr)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rows))
	require.Len(t, rows, 1)
	assert.InDelta(t, 10, rows[0]["a"], 0)
	assert.Equal(t, "ten", rows[0]["b"])
}

func TestCLI_ExecCSV(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "-o", "csv", "exec", "SELECT foo, bar FROM func()")
	require.Equal(t, 0, res.code, res.stderr)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.EqualFold("foo,bar", lines[0]))
	assert.Equal(t, []string{"1,2", "2,3"}, lines[1:])
}

func TestCLI_ExecMultipleStatements(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	script := `
		CREATE TABLE labels (n INTEGER, label TEXT);
		INSERT INTO labels VALUES (1, 'one'), (5, 'five');
		SELECT l.label, s.bar FROM labels l JOIN (SELECT foo, bar FROM func()) s ON s.foo = l.n;
	`
	res := runCLI(t, script, "-o", "json", "exec")
	require.Equal(t, 0, res.code, res.stderr)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "one", rows[0]["label"])
	assert.InDelta(t, 2, rows[0]["bar"], 0)
}

func TestCLI_ExecFileDatabase(t *testing.T) {
	dir := isolate(t)
	writeTestConfig(t, dir, testConfig)
	dbPath := filepath.Join(dir, "data.sqlite")

	res := runCLI(t, "", "--database", dbPath, "exec", "CREATE TABLE t AS SELECT foo FROM func()")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)

	res = runCLI(t, "", "--database", dbPath, "-o", "csv", "exec", "SELECT count(*) AS n FROM t")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "2", strings.Split(strings.TrimSpace(res.stdout), "\n")[1])
}

func TestCLI_ExecDebugLogging(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "--log-level", "debug", "exec", "SELECT foo FROM func()")
	require.Equal(t, 0, res.code, res.stderr)

	assert.Contains(t, res.stderr, "configuration loaded")
	assert.Contains(t, res.stderr, "rewrote query")
}

func TestCLI_ExecUnknownFunction(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "exec", "SELECT * FROM nope()")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "statement 1")
}

func TestCLI_Mappings(t *testing.T) {
	writeTestConfig(t, isolate(t), testConfig)

	res := runCLI(t, "", "mappings")
	require.Equal(t, 0, res.code, res.stderr)

	var got map[string][]string
	require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t, map[string][]string{
		"FUNC": {"foo", "bar"},
		"PAIR": {"a", "b"},
	}, got)
}

func TestCLI_MappingsEmpty(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "mappings")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "no functions configured\n", res.stdout)
}

func TestCLI_ConfigFlagAndDotEnv(t *testing.T) {
	dir := isolate(t)
	cfgDir := t.TempDir()
	path := writeTestConfig(t, cfgDir, testConfig)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ERSATZ_OUTPUT=json\n"), 0o600))
	t.Setenv("ERSATZ_OUTPUT", "")
	require.NoError(t, os.Unsetenv("ERSATZ_OUTPUT"))

	res := runCLI(t, "", "--config", path, "mappings")
	require.Equal(t, 0, res.code, res.stderr)

	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t, []string{"foo", "bar"}, got["FUNC"])
}

func TestCLI_InvalidConfig(t *testing.T) {
	writeTestConfig(t, isolate(t), "output: xml\n")

	res := runCLI(t, "", "mappings")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "invalid output format")
}

func TestCLI_Version(t *testing.T) {
	// An invalid config does not affect version.
	writeTestConfig(t, isolate(t), "output: xml\n")

	res := runCLI(t, "", "version")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "ersatz version dev (commit: none)\n", res.stdout)

	res = runCLI(t, "", "-o", "json", "version")
	require.Equal(t, 0, res.code, res.stderr)
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, "dev", out["version"])
}

func TestCLI_UnknownCommand(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "bogus")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unknown command")
}
