package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, NewLogger(Config{Level: "WARN"}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger(Config{Level: "bogus"}).GetLevel())
}

func TestDestination(t *testing.T) {
	assert.Equal(t, os.Stdout, destination("stdout"))
	assert.Equal(t, os.Stderr, destination(""))
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	w := logWriter(Config{Format: "console"}, &buf)
	_, ok := w.(zerolog.ConsoleWriter)
	assert.True(t, ok)

	assert.Equal(t, &buf, logWriter(Config{Format: "json"}, &buf))
}
