// Package config holds the arena configuration file of arenactl and hosts embedding the arena.
package config

import (
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/storozhukBM/hookarena/lib/arena"
)

// Config is the root of the configuration file.
type Config struct {
	Arena Arena `toml:"arena"`
	Heap  Heap  `toml:"heap"`
	Log   Log   `toml:"log"`
}

// Arena configures the fixed capacity pool.
type Arena struct {
	PoolSize     uint `toml:"pool_size"`
	MinBlockSize uint `toml:"min_block_size"`
	Alignment    uint `toml:"alignment"`
}

// Heap configures the fallback allocator. LimitBytes of 0 means unlimited.
type Heap struct {
	LimitBytes uint `toml:"limit_bytes"`
}

// Log configures the root logger.
type Log struct {
	Verbosity string `toml:"verbosity"`
	Color     bool   `toml:"color"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Arena: Arena{
			PoolSize:     4096,
			MinBlockSize: uint(arena.DefaultMinBlockSize),
			Alignment:    uint(arena.DefaultAlignment),
		},
		Log: Log{
			Verbosity: "info",
		},
	}
}

// Load reads the file at path on top of Default.
// Keys that don't map to any field are rejected, so typos don't silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	md, decodeErr := toml.DecodeFile(path, &cfg)
	if decodeErr != nil {
		return Config{}, errors.Wrapf(decodeErr, "can't decode config %v", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return Config{}, errors.Errorf("unknown keys in config %v: %v", path, strings.Join(keys, ", "))
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return Config{}, errors.Wrapf(validationErr, "invalid config %v", path)
	}
	return cfg, nil
}

// Validate checks the values the allocators would otherwise reject with a panic.
func (c Config) Validate() error {
	if c.Arena.PoolSize == 0 {
		return errors.New("arena.pool_size can't be 0")
	}
	if !isPowerOfTwo(c.Arena.Alignment) {
		return errors.Errorf("arena.alignment should be power of 2. actual value: %d", c.Arena.Alignment)
	}
	if c.Arena.Alignment < uint(arena.AlignmentFloor) {
		return errors.Errorf("arena.alignment can't be smaller than %d. actual value: %d", arena.AlignmentFloor, c.Arena.Alignment)
	}
	if c.Arena.MinBlockSize < uint(arena.MinBlockSizeFloor) {
		return errors.Errorf("arena.min_block_size can't be smaller than %d. actual value: %d", arena.MinBlockSizeFloor, c.Arena.MinBlockSize)
	}
	if _, lvlErr := c.Level(); lvlErr != nil {
		return lvlErr
	}
	return nil
}

// Level parses the log verbosity.
func (c Config) Level() (log.Lvl, error) {
	lvl, lvlErr := log.LvlFromString(c.Log.Verbosity)
	if lvlErr != nil {
		return 0, errors.Wrapf(lvlErr, "invalid log.verbosity %q", c.Log.Verbosity)
	}
	return lvl, nil
}

// FixedOptions converts the arena section into options for arena.NewFixedAllocator.
// backing is used as the fallback allocator and can be nil.
func (c Config) FixedOptions(backing *arena.HeapAllocator, logger log.Logger) arena.FixedOptions {
	return arena.FixedOptions{
		MinBlockSize: uintptr(c.Arena.MinBlockSize),
		Alignment:    uintptr(c.Arena.Alignment),
		Backing:      backing,
		Logger:       logger,
	}
}

// HeapOptions converts the heap section into options for arena.NewHeapAllocator.
// The heap shares the arena alignment, so every pointer a hook returns has the same guarantee.
func (c Config) HeapOptions(logger log.Logger) arena.HeapOptions {
	return arena.HeapOptions{
		Alignment:    uintptr(c.Arena.Alignment),
		LimitInBytes: c.Heap.LimitBytes,
		Logger:       logger,
	}
}

// Encode writes the configuration as TOML.
func (c Config) Encode(w io.Writer) error {
	if encodeErr := toml.NewEncoder(w).Encode(c); encodeErr != nil {
		return errors.Wrap(encodeErr, "can't encode config")
	}
	return nil
}

func isPowerOfTwo(x uint) bool {
	return x != 0 && (x&(x-1)) == 0
}
