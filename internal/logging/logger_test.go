package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, log.TraceLevel, GetLevel("trace"))
	assert.Equal(t, log.DebugLevel, GetLevel("DEBUG"))
	assert.Equal(t, log.WarnLevel, GetLevel("warning"))
	assert.Equal(t, log.ErrorLevel, GetLevel("error"))
	assert.Equal(t, log.InfoLevel, GetLevel(""))
	assert.Equal(t, log.InfoLevel, GetLevel("verbose"))
}

func TestSetup_WritesToFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	base := filepath.Join(t.TempDir(), "server")
	Setup(LoggerSetupParams{
		LogFileName:   base,
		LogLevel:      "info",
		LogFormatJSON: true,
	})

	log.WithField("user", "alice").Info("workout logged")

	data, err := os.ReadFile(base + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"workout logged"`)
	assert.Contains(t, string(data), `"user":"alice"`)
}
