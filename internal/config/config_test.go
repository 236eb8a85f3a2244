package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfoundry/caseflowd/internal/evidence"
)

// writeConfig places a config file where the loader allows it and points
// HOME at the temp tree.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "caseflowd")
	require.NoError(t, os.MkdirAll(dir, 0700))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, evidence.ProviderChromem, cfg.Evidence.Provider)
	assert.Equal(t, 0.6, cfg.Validation.OverlapThreshold)
	assert.Equal(t, 0.5, cfg.Validation.MinCoverage)
	assert.Equal(t, 0.7, cfg.Validation.MinSelfReported)
	assert.Equal(t, 8465, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Stage.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Orchestrator.GracePeriod)
	assert.Equal(t, "caseflowd", cfg.Observability.ServiceName)
	assert.False(t, cfg.Offline)
}

func TestLoadWithFile_YAMLOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
evidence:
  provider: memory
validation:
  overlap_threshold: 0.8
  min_coverage: 0.4
stage:
  timeout: 30s
  max_retries: 5
offline: true
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, evidence.ProviderMemory, cfg.Evidence.Provider)
	assert.Equal(t, 0.8, cfg.Validation.OverlapThreshold)
	assert.Equal(t, 0.4, cfg.Validation.MinCoverage)
	assert.Equal(t, 30*time.Second, cfg.Stage.Timeout)
	assert.Equal(t, 5, cfg.Stage.MaxRetries)
	assert.True(t, cfg.Offline)
}

func TestLoadWithFile_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("VALIDATION_MIN_COVERAGE", "0.65")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 0.65, cfg.Validation.MinCoverage)
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	require.NoError(t, os.Chmod(path, 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0600))

	_, err := LoadWithFile(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be in")
}

func TestLoadWithFile_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "overlap threshold above one",
			yaml:    "validation:\n  overlap_threshold: 1.5\n",
			wantErr: "overlap_threshold",
		},
		{
			name:    "unknown evidence provider",
			yaml:    "evidence:\n  provider: faiss\n",
			wantErr: "evidence.provider",
		},
		{
			name:    "port out of range",
			yaml:    "server:\n  port: 70000\n",
			wantErr: "server.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := LoadWithFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret-key")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret-key", s.Value())
	assert.True(t, s.IsSet())

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(raw))

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("not-a-duration")))

	text, err := Duration(time.Minute).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m0s", string(text))
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())

	info, err := os.Stat(filepath.Join(home, ".config", "caseflowd"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}
