package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("info", &buf)

	l.Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	l.Info("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("debug", &buf).With("component", "storeapi")

	l.Debug("request")
	assert.Contains(t, buf.String(), `"component":"storeapi"`)
	assert.True(t, l.IsDebug())
}

func TestNopWritesNothing(t *testing.T) {
	l := Nop()
	l.Error("boom")
	assert.False(t, l.IsDebug())
}
