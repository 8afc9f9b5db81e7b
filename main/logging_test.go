package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogGeneration(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 3, logGeneration("/var/log/hoverfc/hoverfc.log.3"))
	assert.Equal(t, 12, logGeneration("hoverfc.log.12"))
	assert.Equal(t, -1, logGeneration("hoverfc.log.old"))
}

func TestRotatedLogsOrder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"hoverfc.log", "hoverfc.log.10", "hoverfc.log.2", "hoverfc.log.1", "other.log.1"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}
	l := newLogRotator(dir)
	logs := l.rotatedLogs()
	require.Len(t, logs, 3)
	assert.Equal(t, filepath.Join(dir, "hoverfc.log.1"), logs[0])
	assert.Equal(t, filepath.Join(dir, "hoverfc.log.10"), logs[2])

	assert.Equal(t, int64(len("hoverfc.log.10")), l.deleteOldest())
	assert.NoFileExists(t, filepath.Join(dir, "hoverfc.log.10"))
	assert.Len(t, l.rotatedLogs(), 2)
}
