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

// Package colstore holds the column-group store backends a readonly
// segment assembles its rows from: fixed-length arrays, multi-part
// concatenations, integer-packed columns, trie/zip-compressed blobs, and
// the two key-index backends (FixedLenKeyIndex, BoltKeyIndex). Every
// backend satisfies ReadableStore; buildStore and buildIndex apply the
// registry's fallback policy over a column group's schema hint.
package colstore

import (
	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

// ColumnType classifies the values handed to buildStore/buildIndex. The
// spec's "if a single integer column" fallback policy only fires for
// ColInt64 groups of exactly one column.
type ColumnType int

const (
	ColBytes ColumnType = iota
	ColInt64
)

// Schema is the build-time hint a column group carries: its declared
// backend preference and the dict-zip tunables that govern Phase C of the
// converter.
type Schema struct {
	Name     string
	ColType  ColumnType
	FixedLen int // 0 means variable-length
	IsIndex  bool
	Unique   bool

	UseFixedLenStore bool

	DictZipLocalMatch      bool
	DictZipSampleRatio     float64
	CompressingWorkMemSize int64
}

// ReadableStore is the contract every column-group backend satisfies:
// point read by physical id, an iterator-friendly row count, size
// accounting for metrics, and save/load against a segment directory.
type ReadableStore interface {
	Get(physical idspace.PhysicalRowID) ([]byte, error)
	NumDataRows() uint64
	DataInflateSize() uint64
	DataStorageSize() uint64
	Kind() segmentindex.Kind
	Save(dir, name string) error
}

// InPlaceUpdatable is implemented by stores whose bytes may be overwritten
// without rewriting the file, i.e. FixedLenStore. WritableSegment uses this
// to splice updatable column-group bytes directly.
type InPlaceUpdatable interface {
	ReadableStore
	RecordsBasePtr() []byte
	FixedRowLen() int
	SetAt(physical idspace.PhysicalRowID, value []byte) error
}

// ReadableIndex is the external contract index implementations provide
// (spec.md §1: only this contract is in scope, not the implementations
// themselves). SeekLowerBound returns physical ids in ascending key order.
type ReadableIndex interface {
	ReadableStore
	SeekLowerBound(key []byte) ([]idspace.PhysicalRowID, error)
	AsReadableStore() ReadableStore
}

var (
	ErrUnknownColumnGroupFile = errors.New("colstore: unrecognized column group file")
	ErrOutOfOrderParts        = errors.New("colstore: multi-part store has a gap in its part sequence")
)
