package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"fitness-dashboard/internal/auth"
	"fitness-dashboard/internal/models"
	"fitness-dashboard/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Success(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "test_success.json")

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	args := []string{"-user", "testuser", "-password", "secret", "-store", storePath}
	err := run(args, stdin, stdout, stderr)
	require.NoError(t, err)

	output := stdout.String()
	assert.Contains(t, output, "User testuser created successfully")

	user, err := storage.NewJSONStore(storePath).Get(context.Background(), "testuser")
	require.NoError(t, err)
	assert.Equal(t, auth.HashSHA256("secret"), user.PasswordHash)
	assert.Equal(t, models.DefaultGoal, user.Goal)
	assert.Empty(t, user.History)
}

func TestRun_CustomGoalAndBcrypt(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "users.json")
	stdout := new(bytes.Buffer)

	args := []string{"-user", "gina", "-password", "secret", "-store", storePath, "-goal", "3500", "-scheme", "bcrypt"}
	require.NoError(t, run(args, new(bytes.Buffer), stdout, new(bytes.Buffer)))

	user, err := storage.NewJSONStore(storePath).Get(context.Background(), "gina")
	require.NoError(t, err)
	assert.Equal(t, 3500.0, user.Goal)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
	assert.True(t, auth.CheckPassword("secret", user.PasswordHash))
}

func TestRun_DuplicateUser(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "test_duplicate.json")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	args := []string{"-user", "testuser", "-password", "secret", "-store", storePath}

	// First run
	err := run(args, stdin, stdout, stderr)
	require.NoError(t, err, "first run should succeed")

	// Second run
	stdout.Reset()
	stderr.Reset()
	err = run(args, stdin, stdout, stderr)
	require.Error(t, err, "expected error on duplicate user")
	assert.Contains(t, err.Error(), "already exists")
}

func TestRun_ShortPassword(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "users.json")

	args := []string{"-user", "shorty", "-password", "abc", "-store", storePath}
	err := run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Password must be at least 6 characters long.")
	assert.NoFileExists(t, storePath)
}

func TestRun_MissingUserFlag(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	// Missing user
	args := []string{"-password", "secret"}
	err := run(args, stdin, stdout, stderr)
	require.Error(t, err, "expected error for missing user flag")
	assert.Contains(t, err.Error(), "missing required flags: user")

	// Usage should be printed
	assert.Contains(t, stdout.String(), "Usage:")
}

func TestRun_InteractivePassword(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "test_interactive.json")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	// Simulate user typing "interactive_secret" followed by newline
	stdin := bytes.NewBufferString("interactive_secret\n")

	// Omit -password flag
	args := []string{"-user", "interactive_user", "-store", storePath}
	err := run(args, stdin, stdout, stderr)
	require.NoError(t, err)

	output := stdout.String()
	assert.Contains(t, output, "Password: ")
	assert.Contains(t, output, "User interactive_user created successfully")
}

func TestRun_InteractivePassword_Empty(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	// Simulate user typing newline (empty password)
	stdin := bytes.NewBufferString("\n")

	// Omit -password flag
	args := []string{"-user", "empty_pass_user"}
	err := run(args, stdin, stdout, stderr)
	require.Error(t, err, "expected error for empty password")
	assert.Contains(t, err.Error(), "password cannot be empty")
}

func TestRun_EnvVarOverride(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "test_env.json")

	t.Setenv("STORE_PATH", storePath)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	// Do not pass -store flag, let it use env var
	args := []string{"-user", "envuser", "-password", "secret"}
	err := run(args, stdin, stdout, stderr)
	require.NoError(t, err)

	assert.FileExists(t, storePath)
}

func TestRun_SQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fitness.db")
	stdout := new(bytes.Buffer)

	args := []string{"-user", "sam", "-password", "secret", "-backend", "sqlite", "-db", dbPath, "-goal", "2500"}
	require.NoError(t, run(args, new(bytes.Buffer), stdout, new(bytes.Buffer)))
	assert.Contains(t, stdout.String(), "created successfully in "+dbPath)

	db, err := storage.NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	user, err := db.Get(context.Background(), "sam")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("secret", user.PasswordHash))
	assert.Equal(t, 2500.0, user.Goal)
}

func TestRun_SQLiteBackendFromEnv(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "env.db")
	storePath := filepath.Join(dir, "users.json")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("STORE_PATH", storePath)

	args := []string{"-user", "envsql", "-password", "secret"}
	require.NoError(t, run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer)))

	db, err := storage.NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Get(context.Background(), "envsql")
	require.NoError(t, err)
	assert.NoFileExists(t, storePath, "json store untouched")
}

func TestRun_InvalidStorePath(t *testing.T) {
	// The parent directory does not exist, so the store cannot be written
	storePath := filepath.Join(t.TempDir(), "missing", "users.json")

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	args := []string{"-user", "failuser", "-password", "secret", "-store", storePath}
	err := run(args, stdin, stdout, stderr)
	require.Error(t, err, "expected error for invalid store path")
	assert.Contains(t, err.Error(), "failed to create user")
}

func TestRun_InvalidFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"undefined flag", []string{"-invalid"}, "flag provided but not defined"},
		{"bad scheme", []string{"-user", "u", "-password", "secret", "-scheme", "md5"}, "unknown password scheme"},
		{"bad goal", []string{"-user", "u", "-password", "secret", "-goal", "0"}, "goal must be positive"},
		{"bad backend", []string{"-user", "u", "-password", "secret", "-backend", "postgres"}, "unknown store backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
