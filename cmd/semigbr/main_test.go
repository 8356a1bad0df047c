package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecuteUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"a.config", "b.config"}} {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, execute(args, &stdout, &stderr))
		assert.Equal(t, usage+"\n", stderr.String())
	}
}

func TestExecuteFailedRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{filepath.Join(t.TempDir(), "absent.config")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "FATAL:")
	assert.Empty(t, stderr.String())
}
