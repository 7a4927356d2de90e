// Package partition implements the cache partition table: per-partition
// membership sets, capacity quotas, and enable flags.
package partition

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/blockcache/model"
)

// Config describes one partition.
type Config struct {
	Name string
	// MaxSize is the partition's quota in cache lines. Zero means the whole
	// cache.
	MaxSize uint32
	Enabled bool
}

type part struct {
	name    string
	maxSize uint32
	enabled bool
	members *roaring.Bitmap
}

// Table is the partition table. It is safe for concurrent use; membership is
// only mutated while holding a hash-bucket write lock or the global exclusive
// metadata lock, but reads (quota checks) may race with unrelated writers.
type Table struct {
	mu    sync.RWMutex
	parts []*part
	lines uint32
}

// NewTable creates a partition table for a cache of the given size. Partition
// ids are assigned in configuration order.
func NewTable(lines uint32, configs []Config) (*Table, error) {
	if len(configs) == 0 {
		configs = []Config{{Name: "default", Enabled: true}}
	}
	if len(configs) > model.MaxParts {
		return nil, fmt.Errorf("partition: too many partitions: %d > %d", len(configs), model.MaxParts)
	}

	t := &Table{lines: lines}
	for _, cfg := range configs {
		maxSize := cfg.MaxSize
		if maxSize == 0 || maxSize > lines {
			maxSize = lines
		}
		t.parts = append(t.parts, &part{
			name:    cfg.Name,
			maxSize: maxSize,
			enabled: cfg.Enabled,
			members: roaring.New(),
		})
	}
	return t, nil
}

// Count returns the number of partitions.
func (t *Table) Count() int { return len(t.parts) }

// Name returns a partition's name.
func (t *Table) Name(id model.PartID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parts[id].name
}

// IsEnabled returns true when the partition accepts new insertions.
func (t *Table) IsEnabled(id model.PartID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(id) < len(t.parts) && t.parts[id].enabled
}

// SetEnabled flips a partition's enable flag.
func (t *Table) SetEnabled(id model.PartID, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parts[id].enabled = enabled
}

// HasSpace returns true when the partition can take unmapped additional
// lines within its quota.
func (t *Table) HasSpace(id model.PartID, unmapped uint32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p := t.parts[id]
	return p.members.GetCardinality()+uint64(unmapped) <= uint64(p.maxSize)
}

// Add records a cache line as a member of the partition.
func (t *Table) Add(id model.PartID, line model.CacheLine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parts[id].members.Add(uint32(line))
}

// Remove drops a cache line from the partition.
func (t *Table) Remove(id model.PartID, line model.CacheLine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parts[id].members.Remove(uint32(line))
}

// Contains returns true when the line is a member of the partition.
func (t *Table) Contains(id model.PartID, line model.CacheLine) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parts[id].members.Contains(uint32(line))
}

// Size returns the number of lines currently in the partition.
func (t *Table) Size(id model.PartID) uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint32(t.parts[id].members.GetCardinality())
}
