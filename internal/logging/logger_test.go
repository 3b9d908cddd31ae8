package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("loud"))
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})
	l.Info("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown", "column", "age")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "column=age")
}

func TestNewJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{JSON: true, Service: "tabstep", Output: &buf})
	l.Info("snapshot saved", "index", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tabstep", rec["service"])
	assert.Equal(t, "snapshot saved", rec["msg"])
	assert.EqualValues(t, 3, rec["index"])
}
