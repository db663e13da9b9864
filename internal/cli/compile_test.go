package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleware/internal/ir"
)

func TestCompileValidProgram(t *testing.T) {
	buf, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), programPath("greeting"))
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 1 rule(s), 1 reducer(s)")
	assert.Contains(t, output, "Program hash: ")
	assert.Contains(t, output, "greetings/WELCOME: [LOGIN_SUCCESS] after → FLASH_MESSAGE")
	assert.Contains(t, output, "LOGIN_SUCCESS: set user")
}

func TestCompileValidProgramJSON(t *testing.T) {
	buf, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), programPath("greeting"))
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.ProgramHash)
	require.NotNil(t, resp.Data.Program)
	require.Len(t, resp.Data.Program.Rules, 1)
	assert.Equal(t, "greetings/WELCOME", resp.Data.Program.Rules[0].Type)
}

func TestCompileHashIsStable(t *testing.T) {
	first, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), programPath("pingpong"))
	require.NoError(t, err)
	second, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), programPath("pingpong"))
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	buf, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), programPath("greeting"), "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Wrote canonical IR to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result struct {
		Program struct {
			Rules []struct {
				Type string `json:"type"`
			} `json:"rules"`
		} `json:"program"`
		ProgramHash string `json:"program_hash"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Program.Rules, 1)
	assert.Equal(t, "greetings/WELCOME", result.Program.Rules[0].Type)

	program, err := LoadProgram(programPath("greeting"))
	require.NoError(t, err)
	want, err := ir.ProgramHash(program)
	require.NoError(t, err)
	assert.Equal(t, want, result.ProgramHash)
}

func TestCompileOutputUnwritable(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "missing", "dir", "out.json")

	buf, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), programPath("greeting"), "-o", outputFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeWriteFailed)
}

func TestCompileMissingProgram(t *testing.T) {
	buf, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), "/nonexistent/rules.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, buf.String(), "program not found")
}

func TestCompileSyntaxError(t *testing.T) {
	buf, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), programPath("broken"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeLoadFailed)
	assert.Contains(t, buf.String(), "broken.cue:")
}

func TestCompileInvalidProgram(t *testing.T) {
	buf, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), programPath("invalid"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "E205")
	assert.Contains(t, buf.String(), "E207")
}

func TestCompileVerboseLogsToErrWriter(t *testing.T) {
	buf, errBuf := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{programPath("greeting")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Loaded 1 rule(s), 1 reducer(s)")
	assert.NotContains(t, buf.String(), "Loaded")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"cue", ErrCodeLoadFailed},
		{"rules", ErrCodeInvalidRule},
		{"rules[0].reaction", ErrCodeInvalidRule},
		{"reducers[2]", ErrCodeInvalidReducer},
		{"other", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
