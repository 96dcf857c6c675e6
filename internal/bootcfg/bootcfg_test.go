package bootcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint64(10), cfg.Quantum)
	assert.Equal(t, uint32(115200), cfg.BaudRate)
	assert.Equal(t, uint64(0xFE201000), cfg.MMIO.UART)
	assert.Equal(t, uint64(16*1024*1024), cfg.Pools.L2)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadOverridesOnlySpecifiedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.yaml")
	content := "quantum: 20\nmmio:\n  uart: 4276094976\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(20), cfg.Quantum)
	assert.Equal(t, uint64(4276094976), cfg.MMIO.UART)
	// Unspecified fields keep their defaults.
	assert.Equal(t, uint32(115200), cfg.BaudRate)
	assert.Equal(t, uint64(64*1024), cfg.Pools.L0)
}

func TestLoadInvalidYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
