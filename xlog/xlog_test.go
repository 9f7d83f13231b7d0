package xlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWritesFile(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Dir = dir
	opts.Name = "unit"
	opts.Console = false
	opts.Level = "info"
	require.NoError(t, Configure(opts))
	defer Close()

	Debugf("hidden %d", 1)
	InfoF("frame decoded len=%d", 42)
	Errorf("checksum mismatch on session %d", 7)
	require.NoError(t, Sync())

	b, err := os.ReadFile(filepath.Join(dir, "unit.log"))
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "frame decoded len=42")
	assert.Contains(t, out, "checksum mismatch on session 7")
	assert.Contains(t, out, `"loglevel":"error"`)
	assert.NotContains(t, out, "hidden 1")
}

func TestConfigureBadLevel(t *testing.T) {
	opts := DefaultOptions()
	opts.Dir = t.TempDir()
	opts.Level = "loud"
	assert.Error(t, Configure(opts))
}

func TestLoggerCloseDrains(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "async.log")
	l := NewLogger(fname, 1, 1, 1, 16, 1)
	_, err := l.Write([]byte("line one\n"))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	b, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(b))
}
