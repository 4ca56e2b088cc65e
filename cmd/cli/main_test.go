package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "log:\n  level: error\nstore:\n  backend: sqlite\n  sqlite_path: " + filepath.Join(dir, "cli.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_SeedSpendingResolve(t *testing.T) {
	cfg := writeConfig(t)
	today := time.Now().UTC().Format("2006-01-02")

	out, err := run(t, "-c", cfg, "-s", "u1", "seed", "--seed", "4", "--end", today)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded")

	out, err = run(t, "-c", cfg, "-s", "u1", "--json", "spending")
	require.NoError(t, err)
	var res struct {
		Status       domain.CycleStatus       `json:"status"`
		ActionsTaken []domain.PersistedAction `json:"actions_taken"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.StatusSuccess, res.Status)

	out, err = run(t, "-c", cfg, "-s", "u1", "--json", "actions", "--limit", "0")
	require.NoError(t, err)
	var actions []domain.PersistedAction
	require.NoError(t, json.Unmarshal([]byte(out), &actions))
	assert.Len(t, actions, len(res.ActionsTaken))

	if len(actions) > 0 {
		out, err = run(t, "-c", cfg, "-s", "u1", "resolve", actions[0].ActionID)
		require.NoError(t, err)
		assert.Contains(t, out, "Resolved")

		out, err = run(t, "-c", cfg, "-s", "u1", "actions", "--unresolved")
		require.NoError(t, err)
		assert.NotContains(t, out, actions[0].ActionID)
	}
}

func TestCLI_InvestAndHistory(t *testing.T) {
	cfg := writeConfig(t)
	today := time.Now().UTC().Format("2006-01-02")

	_, err := run(t, "-c", cfg, "-s", "u1", "seed", "--end", today)
	require.NoError(t, err)

	out, err := run(t, "-c", cfg, "-s", "u1", "invest")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: success")
	assert.Contains(t, out, "Path:")

	out, err = run(t, "-c", cfg, "-s", "u1", "invest", "--history", "5")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)
}

func TestCLI_Errors(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "-c", cfg, "spending")
	assert.ErrorContains(t, err, "--subject")

	_, err = run(t, "-c", cfg, "-s", "u1", "resolve", "missing")
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, "-c", cfg, "-s", "u1", "seed", "--end", "31/03/2025")
	assert.ErrorContains(t, err, "--end")

	_, err = run(t, "-c", cfg, "audit", "gs://b/x.json")
	assert.ErrorContains(t, err, "not configured")

	_, err = run(t, "-c", cfg, "-s", "u1", "sync-notion")
	assert.ErrorContains(t, err, "database-id")
}
