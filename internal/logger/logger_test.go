package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "davshare.log")
	require.NoError(t, SetOutput(path))
	t.Cleanup(func() { require.NoError(t, SetOutput("stderr")) })

	Info("log sink check %d", 42)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "log sink check 42")
}

func TestSetOutputRejectsUnwritablePath(t *testing.T) {
	err := SetOutput(filepath.Join(t.TempDir(), "missing", "davshare.log"))
	assert.Error(t, err)
}
