package boot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWithDefaultConfig(t *testing.T) {
	img := NewImage(4096, 0x7FFFF000)
	k, err := Start(img, nil, "")
	require.NoError(t, err)
	assert.NotNil(t, k)
	assert.True(t, k.MMU.IsEnabled())
}

func TestStartRejectsDirtyBSS(t *testing.T) {
	img := NewImage(16, 0x7FFFF000)
	img.BSS[3] = 0xFF
	_, err := Start(img, nil, "")
	assert.Error(t, err)
}

func TestStartRejectsCorruptedGuard(t *testing.T) {
	img := NewImage(16, 0x7FFFF000)
	img.stackGuard = 0
	_, err := Start(img, nil, "")
	assert.Error(t, err)
}

func TestStartLoadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quantum: 25\n"), 0o644))

	img := NewImage(16, 0x7FFFF000)
	k, err := Start(img, nil, path)
	require.NoError(t, err)
	assert.NotNil(t, k)
}

func TestStartErrorsOnMissingConfigFile(t *testing.T) {
	img := NewImage(16, 0x7FFFF000)
	_, err := Start(img, nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
