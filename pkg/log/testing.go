package log

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

// TestLogger is a json ZerologLogger whose output stays in memory, so tests
// can assert on what a component logged.
type TestLogger struct {
	*ZerologLogger
	buffer *bytes.Buffer
}

// NewTestLogger returns a logger capturing events at level and above, and the
// buffer holding one json object per event.
//
//	logger, _ := log.NewTestLogger(log.LevelDebug)
//	cfg.Log(logger)
//	assert.True(t, logger.ContainsField(log.ConfigKeyKey, "Name"))
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	zl := zerolog.New(buffer).Level(toZerologLevel(level))
	return &TestLogger{ZerologLogger: NewZerologLogger(zl), buffer: buffer}, buffer
}

// GetLogEntries decodes the captured events in order.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(t.buffer.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured output contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.buffer.String(), message)
}

// ContainsField reports whether an event carries key with value. Numbers are
// compared as decoded from json, i.e. as float64.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}
