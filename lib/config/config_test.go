package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storozhukBM/hookarena/lib/arena"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "arena.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint(4096), cfg.Arena.PoolSize)
	assert.Equal(t, uint(64), cfg.Arena.MinBlockSize)
	assert.Equal(t, uint(8), cfg.Arena.Alignment)
	assert.Zero(t, cfg.Heap.LimitBytes)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[arena]
pool_size = 65536
alignment = 16

[heap]
limit_bytes = 1048576

[log]
verbosity = "trace"
color = true
`)
	cfg, loadErr := Load(path)
	require.NoError(t, loadErr)
	assert.Equal(t, uint(65536), cfg.Arena.PoolSize)
	assert.Equal(t, uint(64), cfg.Arena.MinBlockSize, "untouched keys keep defaults")
	assert.Equal(t, uint(16), cfg.Arena.Alignment)
	assert.Equal(t, uint(1048576), cfg.Heap.LimitBytes)
	assert.True(t, cfg.Log.Color)

	lvl, lvlErr := cfg.Level()
	require.NoError(t, lvlErr)
	assert.Equal(t, log.LvlTrace, lvl)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[arena]
pool_sise = 65536
`)
	_, loadErr := Load(path)
	require.Error(t, loadErr)
	assert.Contains(t, loadErr.Error(), "arena.pool_sise")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	_, loadErr := Load(writeConfig(t, "[arena\npool_size = 1"))
	require.Error(t, loadErr)

	_, loadErr = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, loadErr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"empty pool", func(c *Config) { c.Arena.PoolSize = 0 }},
		{"alignment not power of 2", func(c *Config) { c.Arena.Alignment = 12 }},
		{"alignment smaller than word", func(c *Config) { c.Arena.Alignment = 2 }},
		{"min block can't hold link", func(c *Config) { c.Arena.MinBlockSize = uint(arena.MinBlockSizeFloor) - 1 }},
		{"unknown verbosity", func(c *Config) { c.Log.Verbosity = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOptionsBuildWorkingAllocators(t *testing.T) {
	cfg := Default()
	cfg.Arena.Alignment = 32
	cfg.Heap.LimitBytes = 128

	heap := arena.NewHeapAllocator(cfg.HeapOptions(nil))
	fixed := arena.NewFixedAllocator(arena.NewAlignedBuffer(int(cfg.Arena.PoolSize), 32), cfg.FixedOptions(heap, nil))
	assert.Equal(t, uintptr(32), fixed.Alignment())
	assert.Equal(t, uintptr(64), fixed.MinBlockSize())
	assert.Same(t, heap, fixed.Backing())

	ptr, allocErr := heap.Allocate(100)
	require.NoError(t, allocErr)
	assert.Zero(t, uintptr(ptr)%32)
	_, allocErr = heap.Allocate(100)
	assert.ErrorIs(t, allocErr, arena.AllocationLimitError)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Heap.LimitBytes = 512
	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	assert.Contains(t, buf.String(), "pool_size = 4096")

	loaded, loadErr := Load(writeConfig(t, buf.String()))
	require.NoError(t, loadErr)
	assert.Equal(t, cfg, loaded)
}

func TestValidateAcceptsArenaFloors(t *testing.T) {
	cfg := Default()
	cfg.Arena.Alignment = uint(arena.AlignmentFloor)
	cfg.Arena.MinBlockSize = uint(arena.MinBlockSizeFloor)
	require.NoError(t, cfg.Validate())

	assert.NotPanics(t, func() {
		arena.NewFixedAllocator(arena.NewAlignedBuffer(int(cfg.Arena.PoolSize), arena.AlignmentFloor), cfg.FixedOptions(nil, nil))
	})
}
