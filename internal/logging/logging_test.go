package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatText, ParseFormat("tint"))
	assert.Equal(t, FormatText, ParseFormat(" Human "))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatAuto, ParseFormat("yaml"))
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelDebug, l)

	l, ok = ParseLevel(" WARN ")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, l)

	l, ok = ParseLevel("chatty")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, l)
}

func TestOptionsLevelDefaults(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Options{}.level())
	assert.Equal(t, slog.LevelDebug, Options{Foreground: true}.level())
	assert.Equal(t, slog.LevelError, Options{Foreground: true, Level: "error"}.level())
}

func TestNonTTYAutoIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, FormatAuto, slog.LevelInfo))
	log.Debug("hidden")
	log.Info("peer discovered", "peer", "b")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "peer discovered", rec["msg"])
	assert.Equal(t, "b", rec["peer"])
}

func TestTextFormatIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, FormatText, slog.LevelInfo)).Info("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}
