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

func TestDispatchFiresRule(t *testing.T) {
	buf, err := execute(NewDispatchCommand(&RootOptions{Format: "text"}),
		programPath("greeting"), "LOGIN_SUCCESS",
		"--payload", `{"user":{"name":"Ada","roles":["admin"]}}`)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ dispatch LOGIN_SUCCESS")
	assert.Contains(t, output, "fired greetings/WELCOME (#0)")
	assert.Contains(t, output, "FLASH_MESSAGE")
	assert.Contains(t, output, `"message":"Hello Ada!"`)
}

func TestDispatchPassthrough(t *testing.T) {
	buf, err := execute(NewDispatchCommand(&RootOptions{Format: "json"}),
		programPath("greeting"), "LOGOUT")
	require.NoError(t, err)

	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Data.Pass)
	require.Len(t, resp.Data.Trace, 2, "one dispatch and its completion")
	assert.Equal(t, "dispatch", resp.Data.Trace[0].Kind)
	assert.Equal(t, "completed", resp.Data.Trace[1].Kind)
}

func TestDispatchUsesInitialState(t *testing.T) {
	buf, err := execute(NewDispatchCommand(&RootOptions{Format: "json"}),
		programPath("pingpong"), "NOTE", "--state", `{"pings":3}`)
	require.NoError(t, err)

	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	state := resp.Data.State.(map[string]any)
	assert.EqualValues(t, 3, state["pings"])
	assert.Equal(t, "recovered", state["note"])
}

func TestDispatchQuotaPanicFails(t *testing.T) {
	buf, err := execute(NewDispatchCommand(&RootOptions{Format: "text", MaxDepth: 4}),
		programPath("pingpong"), "PING")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "exceeded max depth")
}

func TestDispatchInvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"not json", `{oops`, "invalid --payload JSON"},
		{"float", `{"x":1.5}`, "floats are not allowed"},
		{"not object", `[1]`, "invalid --payload JSON"},
		{"trailing input", `{} junk`, "invalid --payload JSON: trailing data"},
		{"second object", `{"a":1}{"b":2}`, "invalid --payload JSON: trailing data"},
		{"null list element", `{"items":["x",null,"y"]}`, "null array element at items.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewDispatchCommand(&RootOptions{Format: "text"}),
				programPath("greeting"), "LOGIN_SUCCESS", "--payload", tt.payload)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDispatchMissingProgram(t *testing.T) {
	_, err := execute(NewDispatchCommand(&RootOptions{Format: "text"}), "/nonexistent.cue", "X")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "program not found")
}

func TestDispatchJournaled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dispatch.db")

	_, err := execute(NewDispatchCommand(&RootOptions{Format: "text"}),
		programPath("greeting"), "LOGIN_SUCCESS",
		"--payload", `{"user":{"name":"Ada","roles":["admin"]}}`, "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	tokens, err := st.ListTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "LOGIN_SUCCESS", tokens[0].RootType)
	assert.Equal(t, 2, tokens[0].Dispatches)
	assert.Equal(t, 1, tokens[0].Firings)
}

func TestParseJSONObjectKeepsLargeIntegers(t *testing.T) {
	m, err := parseJSONObject("--payload", `{"id":9007199254740993}`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), m["id"])
}
