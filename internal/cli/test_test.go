package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: select-one
description: a literal select returns one row
steps:
  - sql: select 1 as a;
    expect:
      - columns: [a]
        rows: [["1"]]
`

const failingScenario = `name: select-wrong
description: the expectation does not match
steps:
  - sql: select 1 as a;
    expect:
      - columns: [a]
        rows: [["2"]]
`

const txScenario = `name: tx-commit
description: commit without begin is a usage error
steps:
  - tx: commit
    error: usage
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestTestCommand_AllPass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario, "b.yml": txScenario})

	out, err := execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ select-one")
	assert.Contains(t, out, "✓ tx-commit")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_Failure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario, "b.yaml": failingScenario})

	out, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ select-wrong")
	assert.Contains(t, out, "step 1: result set 1 row 1")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario, "b.yaml": failingScenario, "c.yaml": txScenario})

	out, err := execute(t, "", "test", dir, "--filter", "tx-*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tx-commit")
	assert.NotContains(t, out, "select-")
	assert.Contains(t, out, "1 total")
}

func TestTestCommand_InvalidFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario})

	_, err := execute(t, "", "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario, "broken.yaml": "name: broken\n"})

	out, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "Load error")
}

func TestTestCommand_GoldenUpdateAndCompare(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario})

	_, err := execute(t, "", "test", dir, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "select-one.golden"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"pass":true,"scenario_name":"select-one","trace":[{"results":[{"columns":["a"],"rows":[["1"]]}],"seq":1,"sql":"select 1 as a;","type":"sql"}]}`,
		string(golden))

	_, err = execute(t, "", "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "select-one.golden"), []byte("{}"), 0o644))
	out, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario, "b.yaml": failingScenario})

	out, err := execute(t, "", "test", dir, "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)

	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "select-one", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.False(t, resp.Data.Scenarios[1].Pass)
}

func TestTestCommand_Empty(t *testing.T) {
	out, err := execute(t, "", "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "", "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}
