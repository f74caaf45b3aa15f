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

	"github.com/sirupsen/logrus"

	"github.com/hangzhao/terark-db/idspace"
)

// maxFixedLenKeyIndexWidth is the spec's "fixedLen <= 16" threshold for
// preferring FixedLenKeyIndex over BoltKeyIndex.
const maxFixedLenKeyIndexWidth = 16

// BuildIndex implements the index half of the buildStore(schema, strVec)
// policy: fixed-length keys at or under 16 bytes go into a
// FixedLenKeyIndex; everything else falls back to BoltKeyIndex. An
// all-deleted source produces an EmptyIndexStore.
func BuildIndex(sc Schema, boltPath string, keys [][]byte, physicalIDs []idspace.PhysicalRowID, log logrus.FieldLogger) (ReadableIndex, error) {
	if len(keys) == 0 {
		return EmptyIndexStore{}, nil
	}

	if sc.FixedLen > 0 && sc.FixedLen <= maxFixedLenKeyIndexWidth {
		sortedKeys := make([][]byte, len(keys))
		copy(sortedKeys, keys)
		valueEnds := make([]idspace.PhysicalRowID, len(keys))
		for i := range physicalIDs {
			valueEnds[i] = physicalIDs[i] + 1
		}
		sortKeysWithValueEnds(sortedKeys, valueEnds)

		idx, _, err := BuildFixedLenKeyIndex(sortedKeys, valueEnds)
		if err == nil {
			return idx, nil
		}
		if log != nil {
			log.WithField("action", "build_index").WithError(err).
				Warn("fixedlenkeyindex build failed, falling back to boltkeyindex")
		}
	}

	return BuildBoltKeyIndex(boltPath, keys, physicalIDs)
}

// BuildStore implements the non-index half of the policy: Phase C's
// fixed-length adoption, dict-zip decision, and multi-part split bounded by
// compressingWorkMemSize are orchestrated by the converter itself (it alone
// knows the two-pass sampling protocol); this function is the single-part
// "attempt integer-packed, fall back to fixed-length or blob" leaf that
// both the converter and the purger call per part.
func BuildStore(sc Schema, rows [][]byte, log logrus.FieldLogger) (ReadableStore, error) {
	if sc.UseFixedLenStore && sc.FixedLen > 0 {
		return NewFixedLenStoreFromRows(sc.FixedLen, rows)
	}

	if sc.ColType == ColInt64 && allFixedWidth(rows, 8) {
		values := make([]int64, len(rows))
		for i, r := range rows {
			values[i] = int64(binary.LittleEndian.Uint64(r))
		}
		store, err := NewZipIntStore(values)
		if err == nil {
			return store, nil
		}
		if log != nil {
			log.WithField("action", "build_store").WithError(err).
				Warn("zipint store build failed, falling back to fixedlen store")
		}
		return NewFixedLenStoreFromRows(8, rows)
	}

	if sc.FixedLen > 0 && allFixedWidth(rows, sc.FixedLen) {
		return NewFixedLenStoreFromRows(sc.FixedLen, rows)
	}

	return NewFastZipBlobStore(rows)
}

func allFixedWidth(rows [][]byte, width int) bool {
	for _, r := range rows {
		if len(r) != width {
			return false
		}
	}
	return true
}

// SplitByWorkMemSize partitions rows into parts whose cumulative byte size
// stays under compressingWorkMemSize, used by Phase C's multi-part branch
// and by purgeColgroup's multi-part fallback.
func SplitByWorkMemSize(rows [][]byte, compressingWorkMemSize int64) [][][]byte {
	if compressingWorkMemSize <= 0 || len(rows) == 0 {
		return [][][]byte{rows}
	}

	var parts [][][]byte
	var current [][]byte
	var currentSize int64

	for _, r := range rows {
		if currentSize > 0 && currentSize+int64(len(r)) > compressingWorkMemSize {
			parts = append(parts, current)
			current = nil
			currentSize = 0
		}
		current = append(current, r)
		currentSize += int64(len(r))
	}
	if len(current) > 0 {
		parts = append(parts, current)
	}

	return parts
}
