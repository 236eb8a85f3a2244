package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults are valid", cfg: NewDefaultConfig()},
		{name: "console format", cfg: Config{Level: "debug", Format: "console"}},
		{name: "bad level", cfg: Config{Level: "loud", Format: "json"}, wantErr: true},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("builds from defaults", func(t *testing.T) {
		logger, err := NewLogger(NewDefaultConfig())
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("caseflowd logger up")
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		_, err := NewLogger(Config{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})

	t.Run("rejects broken redaction pattern", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Redaction.Patterns = []string{"(unclosed"}
		_, err := NewLogger(cfg)
		assert.Error(t, err)
	})
}

func newJSONRedactor(t *testing.T, cfg RedactionConfig) *RedactingEncoder {
	t.Helper()
	enc, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), cfg)
	require.NoError(t, err)
	return enc
}

func TestRedactingEncoder(t *testing.T) {
	enc := newJSONRedactor(t, RedactionConfig{
		Enabled:  true,
		Fields:   []string{"api_key", "facts"},
		Patterns: []string{`sk-[a-zA-Z0-9]+`},
	})

	enc.AddString("api_key", "very-secret")
	enc.AddString("facts", "client intake narrative")
	enc.AddString("note", "uses key sk-abc123 for calls")
	enc.AddString("stage", "retrieval")

	buf, err := enc.EncodeEntry(zapcore.Entry{Level: zapcore.InfoLevel, Message: "stage run"}, nil)
	require.NoError(t, err)
	out := buf.String()

	assert.NotContains(t, out, "very-secret")
	assert.NotContains(t, out, "client intake narrative")
	assert.Contains(t, out, `"api_key":"[REDACTED]"`)
	assert.Contains(t, out, `"facts":"[REDACTED]"`)
	assert.Contains(t, out, `"note":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"stage":"retrieval"`)
}

func TestRedactingEncoderFieldNameCaseInsensitive(t *testing.T) {
	enc := newJSONRedactor(t, RedactionConfig{Enabled: true, Fields: []string{"Authorization"}})

	enc.AddString("authorization", "Bearer abc")
	buf, err := enc.EncodeEntry(zapcore.Entry{}, nil)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Bearer abc")
}

func TestRedactingEncoderClone(t *testing.T) {
	enc := newJSONRedactor(t, RedactionConfig{Enabled: true, Fields: []string{"token"}})

	clone, ok := enc.Clone().(*RedactingEncoder)
	require.True(t, ok)
	clone.AddString("token", "abc")
	buf, err := clone.EncodeEntry(zapcore.Entry{}, nil)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "abc")
}

func TestRedactedString(t *testing.T) {
	f := RedactedString("token", "abcd")
	assert.Equal(t, "token", f.Key)
	assert.Equal(t, "[REDACTED:4]", f.String)
}

func TestRedactingEncoderRejectsLongPattern(t *testing.T) {
	_, err := NewRedactingEncoder(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		RedactionConfig{Enabled: true, Patterns: []string{strings.Repeat("a", 201)}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too long")
}
