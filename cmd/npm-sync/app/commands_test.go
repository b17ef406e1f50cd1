package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/npm-sync/internal/backfill"
	"github.com/stacklok/npm-sync/internal/versions"
)

// writeFileConfig writes a file-storage config into a temp dir
func writeFileConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "registry:\n" +
		"  url: http://127.0.0.1:1\n" +
		"  replicateUrl: http://127.0.0.1:1\n" +
		"  downloadsUrl: http://127.0.0.1:1\n" +
		"changes:\n  enabled: false\n" +
		"fileStorage:\n  baseDir: " + filepath.Join(dir, "data") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// execute runs the root command with args and returns its stdout
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd_JSON(t *testing.T) {
	out, err := execute(t, "", "version", "--format", "json")
	require.NoError(t, err)

	var info versions.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestRequiredConfigFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "serve", args: []string{"serve"}},
		{name: "migrate up", args: []string{"migrate", "up", "--yes"}},
		{name: "backfill status", args: []string{"backfill", "status"}},
		{name: "queue stats", args: []string{"queue", "stats"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `required flag(s) "config" not set`)
		})
	}
}

func TestMigrateUp_RequiresDatabase(t *testing.T) {
	_, err := execute(t, "", "migrate", "up", "--yes", "--config", writeFileConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database configuration is required")
}

func TestBackfillCmd_FileStorage(t *testing.T) {
	configPath := writeFileConfig(t)

	out, err := execute(t, "", "backfill", "status", "--config", configPath)
	require.NoError(t, err)
	var state backfill.State
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, backfill.StatusIdle, state.Status)

	_, err = execute(t, "", "backfill", "pause", "--config", configPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, backfill.ErrInvalidTransition)

	out, err = execute(t, "", "backfill", "reset", "--config", configPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, backfill.StatusIdle, state.Status)
}

func TestBackfillCmd_StartFailsOnUnreachableRegistry(t *testing.T) {
	configPath := writeFileConfig(t)

	_, err := execute(t, "", "backfill", "start", "--config", configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill start failed")

	out, err := execute(t, "", "backfill", "status", "--config", configPath)
	require.NoError(t, err)
	var state backfill.State
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, backfill.StatusError, state.Status)
	assert.NotEmpty(t, state.Error)
}

func TestQueueCmd(t *testing.T) {
	configPath := writeFileConfig(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "stats needs database", args: []string{"queue", "stats"}, wantErr: "requires database storage"},
		{name: "unknown queue", args: []string{"queue", "failed", "nope"}, wantErr: `unknown queue "nope"`},
		{name: "bad limit", args: []string{"queue", "failed", "sync", "--limit", "0"}, wantErr: "positive integer"},
		{name: "missing queue argument", args: []string{"queue", "failed"}, wantErr: "accepts 1 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", append(tt.args, "--config", configPath)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "yes\n", want: true},
		{name: "short yes", input: "Y\n", want: true},
		{name: "no", input: "no\n", want: false},
		{name: "empty line", input: "\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newMigrateUpCmd()
			cmd.Flags().Bool("yes", false, "")
			cmd.SetIn(bytes.NewBufferString(tt.input))
			cmd.SetOut(&bytes.Buffer{})

			got, err := confirm(cmd, "proceed?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
