package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeWithEnv(t, nil, args...)
	return out, err
}

func executeWithEnv(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_FILE", "")
	for k, v := range env {
		t.Setenv(k, v)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCheckDB_Success(t *testing.T) {
	out, err := execute(t, "--database-url", "sqlite://:memory:")
	require.NoError(t, err)
	assert.Equal(t, "✅ Successfully connected to the database!\n", out)
}

func TestCheckDB_FailureKeepsZeroExit(t *testing.T) {
	out, err := execute(t, "--database-url", "sqlite://:memory:", "--query", "SELEC 1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "❌ Failed to connect: "), out)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestCheckDB_StrictFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.db")
	out, err := execute(t, "--database-url", "sqlite://"+missing, "--strict")
	assert.ErrorIs(t, err, errCheckFailed)
	assert.True(t, strings.HasPrefix(out, "❌ Failed to connect: "), out)
}

func TestCheckDB_MissingURL(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Equal(t, "❌ Failed to connect: DATABASE_URL is required\n", out)
}

func TestCheckDB_UnsupportedScheme(t *testing.T) {
	out, err := execute(t, "--database-url", "mysql://root@localhost/app", "--strict")
	assert.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "unsupported database url scheme")
}

func TestCheckDB_Version(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "check_db dev"), out)
}

func TestCheckDB_UnknownFlag(t *testing.T) {
	out, errOut, err := executeWithEnv(t, nil, "--bogus")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "unknown flag: --bogus")
}

func TestCheckDB_StrayArgument(t *testing.T) {
	_, errOut, err := executeWithEnv(t, nil, "--database-url", "sqlite://:memory:", "extra")
	require.Error(t, err)
	assert.Contains(t, errOut, "extra")
}

func TestCheckDB_FlagOverridesEnvironment(t *testing.T) {
	env := map[string]string{"DATABASE_URL": "mysql://root@localhost/app"}

	out, _, err := executeWithEnv(t, env, "--strict")
	assert.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "unsupported database url scheme")

	out, _, err = executeWithEnv(t, env, "--database-url", "sqlite://:memory:", "--strict")
	require.NoError(t, err)
	assert.Equal(t, "✅ Successfully connected to the database!\n", out)
}

func TestCheckDB_FlagOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "check.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_url: mysql://root@localhost/app\nliveness_query: SELEC 1\n"), 0o600))

	out, err := execute(t, "--config", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "❌ Failed to connect: "), out)

	out, _, err = executeWithEnv(t, nil, "--config", path, "--database-url", "sqlite://:memory:", "--query", "SELECT 1", "--strict")
	require.NoError(t, err)
	assert.Equal(t, "✅ Successfully connected to the database!\n", out)
}
