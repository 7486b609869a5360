package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer lets the spinner goroutine and the test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	plainOutput(t)
	var out syncBuffer

	s := NewSpinner(&out, "Connecting to dev")
	s.Start()
	time.Sleep(250 * time.Millisecond)
	s.UpdateMessage("Still connecting")
	s.Stop(true, "Connected to dev")

	text := out.String()
	assert.Contains(t, text, "Connecting to dev")
	assert.Contains(t, text, "✓ Connected to dev (")

	// A second stop is ignored.
	s.Stop(false, "again")
	assert.NotContains(t, out.String(), "again")
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	plainOutput(t)
	var out syncBuffer

	s := NewSpinner(&out, "idle")
	s.Stop(false, "Connection failed")

	assert.True(t, strings.HasSuffix(out.String(), "✗ Connection failed\n"))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1500 * time.Millisecond, "1.5s"},
		{30 * time.Second, "30.0s"},
		{90 * time.Second, "1m30s"},
		{5*time.Minute + 15*time.Second, "5m15s"},
		{2*time.Hour + 30*time.Minute, "2h30m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatDuration(tt.duration))
	}
}
