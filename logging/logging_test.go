package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/opd-ai/rtpbridge/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	logger := logrus.New()
	var buf bytes.Buffer

	closer, err := setup(logger, config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.WithFields(logrus.Fields{"function": "TestSetupJSON"}).Debug("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "TestSetupJSON", entry["function"])
}

func TestSetupLevelFilters(t *testing.T) {
	logger := logrus.New()
	var buf bytes.Buffer

	_, err := setup(logger, config.LogConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("quiet")
	assert.Empty(t, buf.String())
	logger.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestSetupFileOutput(t *testing.T) {
	logger := logrus.New()
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "rtpbridge.log")

	closer, err := setup(logger, config.LogConfig{
		Level:  "info",
		Format: "text",
		File:   config.FileConfig{Enabled: true, Path: path, MaxSizeMB: 1},
	}, &buf)
	require.NoError(t, err)

	logger.Info("to both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
	}{
		{name: "bad level", cfg: config.LogConfig{Level: "loud", Format: "text"}},
		{name: "bad format", cfg: config.LogConfig{Level: "info", Format: "xml"}},
		{name: "file without path", cfg: config.LogConfig{Level: "info", Format: "text", File: config.FileConfig{Enabled: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := setup(logrus.New(), tt.cfg, &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}
