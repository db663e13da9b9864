package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleware/internal/store"
)

func scenarioPath(name string) string {
	return filepath.Join("testdata", "scenarios", name+".yaml")
}

func TestRunScenarioInMemory(t *testing.T) {
	buf, err := execute(NewRunCommand(&RootOptions{Format: "text"}), scenarioPath("hello"))
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ hello")
	assert.Contains(t, output, "Token: hello-token")
	assert.Contains(t, output, "LOGIN_SUCCESS")
	assert.Contains(t, output, "fired greetings/WELCOME (#0)")
	assert.Contains(t, output, `"message":"Hello Ada!"`)
	assert.NotContains(t, output, "=== Metrics ===")
}

func TestRunScenarioJSON(t *testing.T) {
	buf, err := execute(NewRunCommand(&RootOptions{Format: "json"}), scenarioPath("hello"), "--metrics")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, "hello-token", resp.Data.Token)
	require.NotEmpty(t, resp.Data.Trace)
	assert.Equal(t, "LOGIN_SUCCESS", resp.Data.Trace[0].Action)

	state, ok := resp.Data.State.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Hello Ada!", state["message"])

	assert.Contains(t, resp.Data.Metrics, "ruleware_rule_fired_total{rule=greetings/WELCOME} 1")
	assert.Contains(t, resp.Data.Metrics, "ruleware_passthroughs_total 1")
}

func TestRunScenarioFailure(t *testing.T) {
	buf, err := execute(NewRunCommand(&RootOptions{Format: "text"}), scenarioPath("wrong"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ wrong")
	assert.Contains(t, buf.String(), "never fired")
}

func TestRunScenarioMissing(t *testing.T) {
	_, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunScenarioPersistsJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")
	opts := &RootOptions{Format: "text"}

	cmd := NewRunCommand(opts)
	buf, err := execute(cmd, scenarioPath("hello"), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ hello")

	_, err = execute(NewRunCommand(opts), scenarioPath("guest"), "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	tokens, err := st.ListTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 2, "each run journals under its own token")
	assert.NotEqual(t, "hello-token", tokens[0].Token)
	assert.Greater(t, tokens[1].FirstSeq, tokens[0].LastSeq, "seq continues across runs")

	counts, err := st.FiringCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts["greetings/WELCOME"])
}

func TestRunScenarioEnvDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.db")
	opts := &RootOptions{Format: "text", DB: dbPath}

	_, err := execute(NewRunCommand(opts), scenarioPath("hello"))
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	tokens, err := st.ListTokens(context.Background())
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}
