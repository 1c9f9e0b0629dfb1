package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/config"
)

func setupEnv(t *testing.T, backupDriver string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvStorageDriver, "file")
	t.Setenv(config.EnvStoragePath, filepath.Join(dir, "Storage", "database.json"))
	t.Setenv(config.EnvBackupDriver, backupDriver)
	t.Setenv(config.EnvBackupRoot, filepath.Join(dir, "backups"))
	t.Setenv(config.EnvLogLevel, "debug")
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	code := cli(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestInitSeedsDefaultUsersOnce(t *testing.T) {
	setupEnv(t, "none")

	code, out, logs := runCLI(t, "init")
	require.Equal(t, 0, code, logs)
	assert.Contains(t, out, "seeded=true")
	assert.Contains(t, logs, "env file not loaded")

	code, out, _ = runCLI(t, "init")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "seeded=false")

	code, out, _ = runCLI(t, "stats")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "users: 2")
	assert.Contains(t, out, "orders: 0")
}

func TestInitWithoutSeeding(t *testing.T) {
	setupEnv(t, "none")
	t.Setenv(config.EnvSeedDefaultUsers, "false")

	code, out, _ := runCLI(t, "init")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "seeded=false")

	_, out, _ = runCLI(t, "stats")
	assert.Contains(t, out, "users: 0")
}

func TestBackupAndList(t *testing.T) {
	setupEnv(t, "fs")
	code, _, logs := runCLI(t, "init")
	require.Equal(t, 0, code, logs)

	code, out, logs := runCLI(t, "backup")
	require.Equal(t, 0, code, logs)
	key := strings.Fields(out)[0]
	assert.True(t, strings.HasPrefix(key, "backups/"), key)

	code, out, _ = runCLI(t, "backups")
	require.Equal(t, 0, code)
	assert.Contains(t, out, key)
}

func TestBackupDisabled(t *testing.T) {
	setupEnv(t, "none")
	code, _, logs := runCLI(t, "backup")
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, config.EnvBackupDriver)
}

func TestUsageErrors(t *testing.T) {
	setupEnv(t, "none")

	code, _, logs := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, logs, "usage:")

	code, _, _ = runCLI(t, "explode")
	assert.Equal(t, 2, code)

	var stderr bytes.Buffer
	assert.Equal(t, 2, cli(context.Background(), []string{"-nope"}, &bytes.Buffer{}, &stderr))
}

func TestConfigErrorExits(t *testing.T) {
	setupEnv(t, "none")
	t.Setenv(config.EnvStorageDriver, "mongo")
	code, _, logs := runCLI(t, "stats")
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, "failed to load config")
}

func TestTraceAndMetricsFile(t *testing.T) {
	setupEnv(t, "none")
	metricsPath := filepath.Join(t.TempDir(), "procurement.prom")

	code, _, logs := runCLI(t, "-trace", "-metrics-file", metricsPath, "init")
	require.Equal(t, 0, code, logs)
	assert.Contains(t, logs, `"span":"ensure_default_users"`)
	assert.Contains(t, logs, `"outcome":"ok"`)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `procurement_operations_total{operation="ensure_default_users",status="success"} 1`)
	assert.Contains(t, string(data), "procurement_operation_duration_seconds_bucket")
}

func TestMetricsFileWrittenOnCommandFailure(t *testing.T) {
	setupEnv(t, "none")
	metricsPath := filepath.Join(t.TempDir(), "procurement.prom")

	code, _, _ := runCLI(t, "-metrics-file", metricsPath, "backup")
	assert.Equal(t, 1, code)
	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `procurement_operations_total{operation="backup",status="error"} 1`)
}

func TestMetricsFileWriteFailure(t *testing.T) {
	setupEnv(t, "none")
	code, _, logs := runCLI(t, "-metrics-file", filepath.Join(t.TempDir(), "missing", "dir", "m.prom"), "stats")
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, "failed to write metrics")
}
