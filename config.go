package blockcache

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hupe1980/blockcache/internal/partition"
)

// PartitionConfig describes one cache partition.
type PartitionConfig = partition.Config

// Config is the JSON-loadable cache configuration. Every field maps to a
// constructor option. Options apply in order: non-zero fields override
// options placed before WithConfig, options placed after it override the
// configuration, and configured partitions are appended to any set earlier.
type Config struct {
	CacheLineSize            uint32 `json:"cache_line_size"`
	SectorSize               uint32 `json:"sector_size"`
	Lines                    uint32 `json:"lines"`
	HashBuckets              uint32 `json:"hash_buckets"`
	FallbackPTErrorThreshold int64  `json:"fallback_pt_error_threshold"`
	Partitions               []struct {
		Name    string `json:"name"`
		MaxSize uint32 `json:"max_size"`
		Enabled bool   `json:"enabled"`
	} `json:"partitions"`
}

// LoadConfig parses a JSON configuration.
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Lines == 0 {
		return fmt.Errorf("%w: lines must be positive", ErrInvalidConfig)
	}
	lineSize := c.CacheLineSize
	if lineSize == 0 {
		lineSize = DefaultCacheLineSize
	}
	sectorSize := c.SectorSize
	if sectorSize == 0 {
		sectorSize = DefaultSectorSize
	}
	if sectorSize > lineSize || lineSize%sectorSize != 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig,
			(&ErrInvalidGeometry{CacheLineSize: lineSize, SectorSize: sectorSize}).Error())
	}
	return nil
}

// WithConfig applies a loaded configuration.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if cfg.CacheLineSize != 0 {
			o.cacheLineSize = cfg.CacheLineSize
		}
		if cfg.SectorSize != 0 {
			o.sectorSize = cfg.SectorSize
		}
		if cfg.Lines != 0 {
			o.lines = cfg.Lines
		}
		if cfg.HashBuckets != 0 {
			o.hashBuckets = cfg.HashBuckets
		}
		if cfg.FallbackPTErrorThreshold != 0 {
			o.fallbackPTErrorThreshold = cfg.FallbackPTErrorThreshold
		}
		for _, p := range cfg.Partitions {
			o.partitions = append(o.partitions, partition.Config{
				Name:    p.Name,
				MaxSize: p.MaxSize,
				Enabled: p.Enabled,
			})
		}
	}
}
