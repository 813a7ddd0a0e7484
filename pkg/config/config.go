// Package config loads the engine's size limits and defaults from a JSON
// file and merges them with command-line overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// Defaults applied by Resolve to zero fields.
const (
	DefaultMaxVertices       = 2_000_000
	DefaultMaxFaces          = 4_000_000
	DefaultMaxImagePixels    = 40_000_000
	DefaultVoxelMemoryBudget = 512 << 20
	DefaultOutlineSize       = 80.0
)

// Limits bound the inputs an engine call accepts. They are checked before
// any algorithm allocates.
type Limits struct {
	MaxVertices       int   `json:"max_vertices"`
	MaxFaces          int   `json:"max_faces"`
	MaxImagePixels    int   `json:"max_image_pixels"`
	VoxelMemoryBudget int64 `json:"voxel_memory_budget"`
}

// Config holds all configurable limits and processing defaults.
type Config struct {
	Limits Limits `json:"limits"`

	// Processing settings
	Workers     int     `json:"workers"`
	OutlineSize float64 `json:"outline_size_mm"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Default returns a fully resolved Config with no file and no flags.
func Default() Config {
	var c Config
	c.Resolve(Flags{})
	return c
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.VoxelMemoryMB > 0 {
		c.Limits.VoxelMemoryBudget = flags.VoxelMemoryMB << 20
	}
	if flags.MaxImagePixels > 0 {
		c.Limits.MaxImagePixels = flags.MaxImagePixels
	}
	if flags.OutlineSize > 0 {
		c.OutlineSize = flags.OutlineSize
	}

	// Defaults for limits
	if c.Limits.MaxVertices <= 0 {
		c.Limits.MaxVertices = DefaultMaxVertices
	}
	if c.Limits.MaxFaces <= 0 {
		c.Limits.MaxFaces = DefaultMaxFaces
	}
	if c.Limits.MaxImagePixels <= 0 {
		c.Limits.MaxImagePixels = DefaultMaxImagePixels
	}
	if c.Limits.VoxelMemoryBudget <= 0 {
		c.Limits.VoxelMemoryBudget = DefaultVoxelMemoryBudget
	}

	// Defaults for processing settings
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.OutlineSize <= 0 {
		c.OutlineSize = DefaultOutlineSize
	}
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Workers        int
	VoxelMemoryMB  int64
	MaxImagePixels int
	OutlineSize    float64
}
