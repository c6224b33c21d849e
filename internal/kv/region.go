package kv

import (
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/keys"
)

// RegionID names a disjoint key range owned by one column, index or entity.
// Region 0 holds the catalogue.
type RegionID uint64

// CatalogRegion is the region that stores catalogue entries.
const CatalogRegion RegionID = 0

// Key tags within a region.
const (
	tagHeader byte = 0x00
	tagData   byte = 0x01
	tagStats  byte = 0x02
	tagMeta   byte = 0x03
)

// Prefix returns the key prefix shared by every key of the region.
func (r RegionID) Prefix() []byte {
	return keys.EncodeUvarintAscending(nil, uint64(r))
}

func (r RegionID) tagged(tag byte) []byte {
	return append(r.Prefix(), tag)
}

// HeaderKey is the key whose presence marks the region as existing.
func (r RegionID) HeaderKey() []byte { return r.tagged(tagHeader) }

// StatsKey holds the region's statistics record.
func (r RegionID) StatsKey() []byte { return r.tagged(tagStats) }

// MetaKey holds region-specific bookkeeping such as sequences.
func (r RegionID) MetaKey(name string) []byte {
	return keys.EncodeBytesAscending(r.tagged(tagMeta), []byte(name))
}

// DataKey returns the data key with the given suffix.
func (r RegionID) DataKey(suffix []byte) []byte {
	return append(r.tagged(tagData), suffix...)
}

// DataPrefix returns the prefix of every data key.
func (r RegionID) DataPrefix() []byte { return r.tagged(tagData) }

// DataSpan returns [start, end) covering every data key.
func (r RegionID) DataSpan() (start, end []byte) {
	start = r.DataPrefix()
	return start, keys.PrefixEnd(start)
}

// Span returns [start, end) covering the whole region.
func (r RegionID) Span() (start, end []byte) {
	start = r.Prefix()
	return start, keys.PrefixEnd(start)
}

// CreateRegion writes the region header.
func CreateRegion(tx *Tx, r RegionID, header []byte) error {
	if header == nil {
		header = []byte{}
	}
	return tx.Set(r.HeaderKey(), header)
}

// DropRegion deletes every key of the region.
func DropRegion(tx *Tx, r RegionID) error {
	start, end := r.Span()
	return tx.DeleteRange(start, end)
}

// RegionHeader returns the region header, or a corruption error when the
// region does not exist.
func RegionHeader(tx *Tx, r RegionID) ([]byte, error) {
	h, ok, err := tx.Get(r.HeaderKey())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Corruptionf("region %d is missing", r)
	}
	return h, nil
}
