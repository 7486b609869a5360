package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopipe/pkg/models"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Level:   DebugLevel,
		Output:  &buf,
		Service: "test-service",
		Version: "1.0.0",
	})

	logger.Info("test message")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test message", entry.Message)
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "test-service", entry.Service)
	assert.NotEmpty(t, entry.Caller)
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: InfoLevel, Output: &buf})

	batchLogger := logger.WithField("run_id", "r-1")
	batchLogger.InfoWithFields("batch inserted", map[string]interface{}{
		"batch": 3,
		"error": fmt.Errorf("boom"),
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "r-1", entry.Fields["run_id"])
	assert.Equal(t, float64(3), entry.Fields["batch"])
	assert.Equal(t, "boom", entry.Fields["error"])

	assert.Empty(t, logger.FieldNames(), "parent logger must not gain fields")
	assert.Equal(t, []string{"run_id"}, batchLogger.FieldNames())
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerFromConfig(models.Log{Level: "warn"}, "test", &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Errorf("shown %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLogLevelFromString(t *testing.T) {
	assert.Equal(t, DebugLevel, LogLevelFromString("debug"))
	assert.Equal(t, WarnLevel, LogLevelFromString("WARNING"))
	assert.Equal(t, ErrorLevel, LogLevelFromString(" error "))
	assert.Equal(t, InfoLevel, LogLevelFromString("nonsense"))
}

func TestHealthManager(t *testing.T) {
	hm := NewHealthManager(time.Second, nil)
	hm.RegisterCheck(NewPingCheck("warehouse", func(ctx context.Context) error { return nil }))

	report := hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusUp, report.Status)
	assert.Contains(t, report.Components, "warehouse")

	hm.RegisterCheck(NewPingCheck("ledger", func(ctx context.Context) error { return fmt.Errorf("locked") }))
	report = hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusDown, report.Status)
	assert.Contains(t, report.Components["ledger"].Message, "locked")
	assert.Equal(t, []string{"ledger", "warehouse"}, hm.Names())
}

func TestHealthHandler(t *testing.T) {
	hm := NewHealthManager(time.Second, nil)
	hm.RegisterCheck(NewPingCheck("warehouse", func(ctx context.Context) error { return fmt.Errorf("down") }))

	rec := httptest.NewRecorder()
	hm.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, HealthStatusDown, report.Status)
}
