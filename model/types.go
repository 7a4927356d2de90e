package model

import "fmt"

// CoreID identifies a client block device ("core") attached to the cache.
type CoreID uint16

// InvalidCoreID marks a cache line that currently has no owner.
const InvalidCoreID CoreID = 0xFFFF

// PartID identifies a user-defined cache partition.
type PartID uint8

// DefaultPartID is the partition new requests target unless configured
// otherwise.
const DefaultPartID PartID = 0

// MaxParts bounds the number of partitions a cache can define.
const MaxParts = 32

// CacheLine is an index into the cache device's slot array. The collision
// table size N acts as the "no line" sentinel; it is carried by the metadata
// store, not by this type.
type CacheLine uint32

// CoreLineAddr identifies one cache-line-sized unit of a core device's LBA
// space.
type CoreLineAddr struct {
	CoreID   CoreID
	CoreLine uint64
}

// String returns a string representation of the address.
func (a CoreLineAddr) String() string {
	return fmt.Sprintf("core(%d:%d)", a.CoreID, a.CoreLine)
}

// RW is the direction of a request.
type RW uint8

const (
	// RWRead marks a read request.
	RWRead RW = iota
	// RWWrite marks a write request.
	RWWrite
)

// String returns "read" or "write".
func (rw RW) String() string {
	if rw == RWWrite {
		return "write"
	}
	return "read"
}
