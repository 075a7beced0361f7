package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("data", "engine.db"), cfg.DatabasePath())
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load("testdata/engine.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/evita", cfg.Storage.Directory)
	assert.Equal(t, "engine.db", cfg.Storage.DatabaseFile, "unset fields keep their defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Server.TransactionTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout.Std())
	assert.Equal(t, 8, cfg.Executor.Workers)
	assert.Equal(t, FormatJSON, cfg.Log.Format)
	assert.Equal(t, "/var/lib/evita/engine.db", cfg.DatabasePath())
}

func TestLoadCUE(t *testing.T) {
	cfg, err := Load("testdata/engine.cue")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/evita", cfg.Storage.Directory)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.TransactionTimeout.Std())
	assert.Equal(t, time.Minute, cfg.Server.ShutdownTimeout.Std())
	assert.Equal(t, 8, cfg.Executor.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEmptyYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown yaml key", "c.yaml", "storage:\n  dir: x\n", "field dir not found"},
		{"numeric duration", "c.yaml", "server:\n  transactionTimeout: 5\n", "duration must be a string"},
		{"bad duration", "c.yaml", "server:\n  transactionTimeout: soon\n", "invalid duration"},
		{"negative workers", "c.yaml", "executor:\n  workers: -1\n", "executor.workers must not be negative"},
		{"zero timeout", "c.yaml", "server:\n  shutdownTimeout: 0s\n", "server.shutdownTimeout must be positive"},
		{"bad format", "c.yaml", "log:\n  format: xml\n", "log.format"},
		{"bad level", "c.yaml", "log:\n  level: loud\n", "log.level"},
		{"unknown cue field", "c.cue", "storage: dir: \"x\"\n", "not allowed"},
		{"cue workers", "c.cue", "executor: workers: -2\n", "invalid value"},
		{"cue duration", "c.cue", "server: shutdownTimeout: \"later\"\n", "invalid value"},
		{"extension", "c.toml", "", "unsupported config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"storage.directory",
		"storage.databaseFile",
		"server.transactionTimeout",
		"server.shutdownTimeout",
		"log.format",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	Log{Level: "warn", Format: FormatJSON}.NewLogger(&buf, false).Info("hidden")
	assert.Empty(t, buf.String())

	Log{Level: "warn", Format: FormatJSON}.NewLogger(&buf, true).Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	Log{Level: "info", Format: FormatText}.NewLogger(&buf, false).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
