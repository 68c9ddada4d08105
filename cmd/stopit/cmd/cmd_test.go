package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestCLI_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	global := []string{"--config", filepath.Join(dir, "none.yaml"), "--data-dir", dir, "--backend", "bbolt", "-u", "alice"}
	with := func(args ...string) []string { return append(args, global...) }
	pw := testPassword + "\n"

	_, err := run(t, pw+"different\n", with("register", "alice")...)
	require.Error(t, err)

	out, err := run(t, pw+pw, with("register", "alice")...)
	require.NoError(t, err)
	assert.Contains(t, out, `Account "alice" created`)

	out, err = run(t, pw, with("profile", "--quit-date", "2025-01-01", "--per-day", "10", "--cost", "8")...)
	require.NoError(t, err)
	assert.Contains(t, out, "cigarettesPerDay: 10")
	assert.Contains(t, out, "onboardingCompleted: true")
	assert.Contains(t, out, "New badge:")

	out, err = run(t, pw, with("log", "--trigger", "coffee", "--strategy", "water")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Craving #1 resisted")

	out, err = run(t, pw, with("plan", "add", "coffee", "drink", "water")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Plan #1: when Coffee, drink water")

	out, err = run(t, pw, with("plan", "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "drink water")

	out, err = run(t, pw, with("stats")...)
	require.NoError(t, err)
	assert.Contains(t, out, "1. Coffee")
	assert.Contains(t, out, "Last 7 days: 1 cravings, 1 resisted, 0 relapses")
	assert.Contains(t, out, "[x] 🫁 Blood carbon monoxide back to normal")

	out, err = run(t, pw, with("status")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Money saved:")
	assert.Contains(t, out, "It has been a while since your last backup")

	out, err = run(t, pw, with("export")...)
	require.NoError(t, err)
	var doc struct {
		Username string `json:"username"`
		Data     struct {
			Logs  []json.RawMessage `json:"logs"`
			Plans []json.RawMessage `json:"plans"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "alice", doc.Username)
	assert.Len(t, doc.Data.Logs, 1)
	assert.Len(t, doc.Data.Plans, 1)

	out, err = run(t, pw, with("status")...)
	require.NoError(t, err)
	assert.NotContains(t, out, "It has been a while")

	_, err = run(t, "wrong password\n", with("status")...)
	require.Error(t, err)

	_, err = run(t, pw, with("delete-account")...)
	require.Error(t, err)
	_, err = run(t, pw, with("delete-account", "--yes")...)
	require.NoError(t, err)
	_, err = run(t, pw, with("status")...)
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

	got, err := parseDate("now", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = parseDate("2025-03-01T08:30:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC), got)

	got, err = parseDate("2025-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local).UTC(), got)

	_, err = parseDate("2025-04-01", now)
	require.Error(t, err)
	_, err = parseDate("yesterday", now)
	require.Error(t, err)
}
