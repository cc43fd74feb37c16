package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTo_TagsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "trip-booking", "warn")
	l.Info("hidden")
	l.Warn("persist failed", "key", "bookingHistory")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "persist failed", line["msg"])
	assert.Equal(t, "trip-booking", line["service"])
	assert.Equal(t, "bookingHistory", line["key"])
}
