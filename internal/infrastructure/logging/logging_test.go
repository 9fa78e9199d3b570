package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staysched.log")
	logger, closer, err := New(Options{Level: "debug", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.WithField("reservation_id", "r1").Debug("hello")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"reservation_id":"r1"`)
	assert.Contains(t, string(b), `"msg":"hello"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "chatty"})
	assert.Error(t, err)

	logger, closer, err := New(Options{Level: "warn"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.NoError(t, closer.Close())
}
