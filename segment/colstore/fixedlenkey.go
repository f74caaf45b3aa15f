//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ V /| |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package colstore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/willf/bloom"

	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

// BloomObservers receives the three outcomes a bloom-filter-guarded exact
// search can produce. A nil field is a no-op; callers typically set these
// once after Build/Load rather than per-lookup.
type BloomObservers struct {
	TrueNegative  func(time.Time) // filter said "absent", key really was absent
	FalsePositive func(time.Time) // filter said "maybe present", key was absent
	TruePositive  func(time.Time) // filter said "maybe present", key was present
}

// FixedLenKeyIndex is a balanced binary search tree over fixed-length keys,
// marshalled with segmentindex.MarshalSortedKeys and read back through
// segmentindex.DiskTree. A bloom filter sits in front of exact lookups as a
// fast-reject, mirroring the teacher's bloom-filter-guarded point reads.
type FixedLenKeyIndex struct {
	tree      *segmentindex.DiskTree
	raw       []byte
	filter    *bloom.BloomFilter
	rows      uint64
	size      int64
	observers BloomObservers
}

// SetBloomObservers installs lookup-outcome callbacks, typically curried
// metrics from the owning table. Safe to call with a zero BloomObservers
// to silence a previously installed set.
func (idx *FixedLenKeyIndex) SetBloomObservers(o BloomObservers) {
	idx.observers = o
}

// BuildFixedLenKeyIndex builds a new index from sorted (key, valueEnd)
// pairs. keys must already be sorted ascending by key.
func BuildFixedLenKeyIndex(keys [][]byte, valueEnds []idspace.PhysicalRowID) (*FixedLenKeyIndex, []byte, error) {
	if len(keys) != len(valueEnds) {
		return nil, nil, errors.New("fixedlenkeyindex: keys/valueEnds length mismatch")
	}

	redux := make([]segmentindex.KeyRedux, len(keys))
	for i := range keys {
		redux[i] = segmentindex.KeyRedux{Key: keys[i], ValueEnd: valueEnds[i]}
	}

	var buf []byte
	bw := &byteBufWriter{}
	size, err := segmentindex.MarshalSortedKeys(bw, redux)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal fixedlenkeyindex")
	}
	buf = bw.data

	filter := bloom.NewWithEstimates(uint(len(keys))+1, 0.01)
	for _, k := range keys {
		filter.Add(k)
	}

	return &FixedLenKeyIndex{
		tree:   segmentindex.NewDiskTree(buf),
		raw:    buf,
		filter: filter,
		rows:   uint64(len(keys)),
		size:   size,
	}, buf, nil
}

type byteBufWriter struct{ data []byte }

func (w *byteBufWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

// SeekLowerBound performs an exact-match lookup (the spec's index contract
// is "exact search" for FixedLenKeyIndex; ordered range scans are an index
// implementation detail out of scope per spec.md §1). The bloom filter
// short-circuits misses before touching the tree.
func (idx *FixedLenKeyIndex) SeekLowerBound(key []byte) ([]idspace.PhysicalRowID, error) {
	start := time.Now()

	if idx.filter != nil && !idx.filter.Test(key) {
		if idx.observers.TrueNegative != nil {
			idx.observers.TrueNegative(start)
		}
		return nil, nil
	}

	node, err := idx.tree.Get(key)
	if err == segmentindex.NotFound {
		if idx.filter != nil && idx.observers.FalsePositive != nil {
			idx.observers.FalsePositive(start)
		}
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "fixedlenkeyindex seek")
	}
	if idx.filter != nil && idx.observers.TruePositive != nil {
		idx.observers.TruePositive(start)
	}
	return []idspace.PhysicalRowID{node.Start}, nil
}

// Get returns the key stored for physical. The tree is ordered by key, so
// this walks the serialized nodes (keyLen, key, start, end, left, right)
// one after another until it meets the node whose start is physical.
func (idx *FixedLenKeyIndex) Get(physical idspace.PhysicalRowID) ([]byte, error) {
	for pos := 0; pos+4 <= len(idx.raw); {
		keyLen := int(binary.LittleEndian.Uint32(idx.raw[pos:]))
		if pos+36+keyLen > len(idx.raw) {
			break
		}
		if binary.LittleEndian.Uint64(idx.raw[pos+4+keyLen:]) == physical {
			return idx.raw[pos+4 : pos+4+keyLen], nil
		}
		pos += 36 + keyLen
	}
	return nil, errors.Errorf("fixedlenkeyindex: physical id %d not found", physical)
}

func (idx *FixedLenKeyIndex) AsReadableStore() ReadableStore { return idx }

func (idx *FixedLenKeyIndex) NumDataRows() uint64     { return idx.rows }
func (idx *FixedLenKeyIndex) DataInflateSize() uint64 { return uint64(idx.size) }
func (idx *FixedLenKeyIndex) DataStorageSize() uint64 { return uint64(idx.size) }
func (idx *FixedLenKeyIndex) Kind() segmentindex.Kind { return segmentindex.KindFixedLenKey }

func (idx *FixedLenKeyIndex) Save(dir, name string) error {
	path := filepath.Join(dir, "index-"+name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "save fixedlenkeyindex %q", path)
	}
	defer f.Close()

	if _, err := f.Write(idx.raw); err != nil {
		return errors.Wrap(err, "write fixedlenkeyindex tree")
	}

	if idx.filter != nil {
		bf, err := os.OpenFile(path+".bloom", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return errors.Wrapf(err, "save fixedlenkeyindex bloom sidecar %q", path)
		}
		defer bf.Close()
		if _, err := idx.filter.WriteTo(bf); err != nil {
			return errors.Wrap(err, "write fixedlenkeyindex bloom filter")
		}
	}

	return nil
}

// LoadFixedLenKeyIndex wraps an on-disk index file's bytes and a previously
// loaded bloom filter sidecar (nil disables the fast-reject, falling back
// to a tree lookup on every SeekLowerBound).
func LoadFixedLenKeyIndex(data []byte, rows uint64, filter *bloom.BloomFilter) *FixedLenKeyIndex {
	return &FixedLenKeyIndex{
		tree:   segmentindex.NewDiskTree(data),
		raw:    data,
		filter: filter,
		rows:   rows,
		size:   int64(len(data)),
	}
}

// LoadFixedLenKeyIndexFromDir reads both the tree file and its bloom
// sidecar (if present) from dir.
func LoadFixedLenKeyIndexFromDir(dir, name string, rows uint64) (*FixedLenKeyIndex, error) {
	path := filepath.Join(dir, "index-"+name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read fixedlenkeyindex %q", path)
	}

	var filter *bloom.BloomFilter
	if bf, err := os.Open(path + ".bloom"); err == nil {
		defer bf.Close()
		filter = &bloom.BloomFilter{}
		if _, err := filter.ReadFrom(bf); err != nil {
			return nil, errors.Wrap(err, "read fixedlenkeyindex bloom filter")
		}
	}

	return LoadFixedLenKeyIndex(data, rows, filter), nil
}

// sortKeysWithValueEnds sorts parallel key/valueEnd slices together by key,
// used by buildIndex before calling BuildFixedLenKeyIndex.
func sortKeysWithValueEnds(keys [][]byte, valueEnds []idspace.PhysicalRowID) {
	idxs := make([]int, len(keys))
	for i := range idxs {
		idxs[i] = i
	}
	sort.Slice(idxs, func(a, b int) bool {
		return string(keys[idxs[a]]) < string(keys[idxs[b]])
	})

	sortedKeys := make([][]byte, len(keys))
	sortedEnds := make([]idspace.PhysicalRowID, len(valueEnds))
	for i, orig := range idxs {
		sortedKeys[i] = keys[orig]
		sortedEnds[i] = valueEnds[orig]
	}
	copy(keys, sortedKeys)
	copy(valueEnds, sortedEnds)
}
