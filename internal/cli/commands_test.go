package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(cmd *cobra.Command) *bytes.Buffer {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return buf
}

func execute(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := captureOutput(cmd)
	cmd.SetArgs(args)
	return out, cmd.Execute()
}

func TestRecordThenReplay(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX echo")
	}
	dir := filepath.Join(t.TempDir(), "rec")

	out, err := execute(t, "record", "--dir", dir, "--", "echo", "hello")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hello")

	out, err = execute(t, "replay", "--dir", dir, "--", "echo", "hello")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hello")
}

func TestReplay_Drift(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX echo")
	}
	dir := filepath.Join(t.TempDir(), "rec")

	_, err := execute(t, "record", "--dir", dir, "--", "echo", "hello")
	require.NoError(t, err)

	// A command the recording never saw is drift, not a silent skip.
	_, err = execute(t, "replay", "--dir", dir, "--", "echo", "goodbye")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRecord_PreservesExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX false")
	}
	dir := filepath.Join(t.TempDir(), "rec")

	_, err := execute(t, "record", "--dir", dir, "--", "false")
	require.Error(t, err)
	assert.Equal(t, 1, GetExitCode(err))

	// Replay reports the same exit code.
	_, err = execute(t, "replay", "--dir", dir, "--", "false")
	require.Error(t, err)
	assert.Equal(t, 1, GetExitCode(err))
}

func TestShowCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX echo")
	}
	dir := filepath.Join(t.TempDir(), "rec")

	_, err := execute(t, "record", "--dir", dir, "--", "echo", "hello")
	require.NoError(t, err)

	out, err := execute(t, "show", dir)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1 entries")
	assert.Contains(t, out.String(), "echo hello")
	assert.Contains(t, out.String(), "(exit 0)")
}

func TestShowCommand_JSON(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX echo")
	}
	dir := filepath.Join(t.TempDir(), "rec")

	_, err := execute(t, "record", "--dir", dir, "--", "echo", "hello")
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "show", dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestShowCommand_MissingManifest(t *testing.T) {
	_, err := execute(t, "show", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRegisterAndList(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX echo")
	}
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "rec")
	db := filepath.Join(tmp, "catalog.db")

	_, err := execute(t, "record", "--dir", dir, "--", "echo", "hello")
	require.NoError(t, err)

	out, err := execute(t, "register", "--catalog", db, "smoke", dir)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "registered")

	out, err = execute(t, "list", "--catalog", db)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "smoke")
}

func TestList_EmptyCatalog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "catalog.db")

	out, err := execute(t, "list", "--catalog", db)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "no recordings registered")
}
