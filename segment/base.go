//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package segment

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hangzhao/terark-db/bitmap"
	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/colstore"
	"github.com/hangzhao/terark-db/updatebits"
)

const isDelFileName = "IsDel"
const isPurgedFileName = "IsPurged.rs"

// SegmentBase is the state WritableSegment and ReadonlySegment share:
// deletion bitmap, optional purge bitmap, schema reference, directory, and
// the update-tracking list/bitmap a running Converter reserves against.
// Embedded by value via composition (Go has no virtual dispatch, so the
// delegation the teacher's lazy_segment.go does through an interface is
// done here with a plain embedded struct).
type SegmentBase struct {
	dir    string
	schema TableSchema
	log    logrus.FieldLogger

	// segMutex is the per-segment spin-rwlock stand-in (spec.md §5):
	// protects IsDel, updateList, updateBits and in-place-updatable
	// columns on a live writable segment. A frozen readonly segment never
	// acquires it for reads, only for IsDel's monotonic 0->1 flips.
	segMutex sync.RWMutex

	isDel    *bitmap.Bitmap
	isPurged *bitmap.Bitmap
	purgeRS  *bitmap.RankSelect
	trans    *idspace.Translator
	withPurgeBits bool

	indices   map[string]colstore.ReadableIndex
	colgroups map[string]colstore.ReadableStore

	frozen bool

	// update tracking, enabled only while bookUpdates is true (during a
	// Converter/Purger run against this segment). updateBits escalates
	// from a sparse slice to a compressed roaring set once the sparse
	// list would otherwise exceed rows/256 entries (spec.md §4.1).
	bookUpdates bool
	updateList  []uint32
	updateBits  *updatebits.Bits
}

func newSegmentBase(dir string, schema TableSchema, log logrus.FieldLogger) *SegmentBase {
	return &SegmentBase{
		dir:       dir,
		schema:    schema,
		log:       log,
		indices:   make(map[string]colstore.ReadableIndex),
		colgroups: make(map[string]colstore.ReadableStore),
		trans:     idspace.NewTranslator(nil),
	}
}

// numDataRows returns the logical row count (|IsDel|).
func (b *SegmentBase) numDataRows() uint64 {
	if b.isDel == nil {
		return 0
	}
	return b.isDel.Len()
}

// physicRows returns the physical row count: rank0(IsPurged) when purged,
// else |IsDel|.
func (b *SegmentBase) physicRows() uint64 {
	if b.purgeRS != nil {
		return b.purgeRS.Rank0(b.isPurged.Len())
	}
	return b.numDataRows()
}

// physicalID translates a logical row id to its physical store offset.
func (b *SegmentBase) physicalID(logical idspace.LogicalRowID) (idspace.PhysicalRowID, error) {
	if logical >= b.numDataRows() {
		return 0, errors.Wrapf(ErrOutOfRange, "logical id %d (rows=%d)", logical, b.numDataRows())
	}
	return b.trans.PhysicalID(logical)
}

// logicalID translates a physical store offset back to its logical id.
func (b *SegmentBase) logicalID(physical idspace.PhysicalRowID) (idspace.LogicalRowID, error) {
	if physical >= b.physicRows() {
		return 0, errors.Wrapf(ErrOutOfRange, "physical id %d (physicRows=%d)", physical, b.physicRows())
	}
	return b.trans.LogicalID(physical)
}

// loadIsDel mmaps <dir>/IsDel and, if present, <dir>/IsPurged.rs, building
// the rank/select cache the translator needs.
func (b *SegmentBase) loadIsDel(dir string, rsClass bitmap.RankSelectClass) error {
	isDel, err := bitmap.Load(filepath.Join(dir, isDelFileName))
	if err != nil {
		return errors.Wrapf(err, "load IsDel for segment %q", dir)
	}
	b.isDel = isDel

	purgedPath := filepath.Join(dir, isPurgedFileName)
	if _, err := os.Stat(purgedPath); err == nil {
		purged, err := bitmap.Load(purgedPath)
		if err != nil {
			return errors.Wrapf(err, "load IsPurged.rs for segment %q", dir)
		}
		b.isPurged = purged
		b.purgeRS = bitmap.Build(purged, rsClass)
		b.withPurgeBits = true
		b.trans = idspace.NewTranslator(b.purgeRS)
	}

	return nil
}

// saveIsDel persists IsPurged.rs (when present) and then IsDel to dir, so
// IsDel is always the last file flushed.
func (b *SegmentBase) saveIsDel(dir string) error {
	if b.isPurged != nil {
		if err := b.isPurged.Flush(); err != nil {
			return errors.Wrapf(err, "flush IsPurged.rs for segment %q", dir)
		}
	}
	if b.isDel != nil {
		if err := b.isDel.Flush(); err != nil {
			return errors.Wrapf(err, "flush IsDel for segment %q", dir)
		}
	}
	return nil
}

// closeIsDel explicitly unmaps the deletion and purge bitmaps.
func (b *SegmentBase) closeIsDel() error {
	var firstErr error
	if b.isDel != nil {
		if err := b.isDel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.isPurged != nil {
		if err := b.isPurged.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// addToUpdateList records logical as modified since bookUpdates was set.
// A sparse list is kept until it would exceed rows/256 entries, at which
// point it escalates to a compressed roaring set (updatebits.Bits) holding
// exactly the recorded ids; the set has no fixed length and carries no
// trailing stop bit.
func (b *SegmentBase) addToUpdateList(logical idspace.LogicalRowID) error {
	if !b.bookUpdates {
		return nil
	}

	b.segMutex.Lock()
	defer b.segMutex.Unlock()

	if b.updateBits != nil {
		b.updateBits.Set(uint64(logical))
		return nil
	}

	threshold := b.numDataRows() / 256
	if uint64(len(b.updateList))+1 > threshold {
		bits := updatebits.FromIDs(b.updateList)
		bits.Set(uint64(logical))
		b.updateBits = bits
		b.updateList = nil
		return nil
	}

	b.updateList = append(b.updateList, uint32(logical))
	return nil
}

// totalIndexSize sums DataStorageSize across every index.
func (b *SegmentBase) totalIndexSize() uint64 {
	var total uint64
	for _, idx := range b.indices {
		total += idx.DataStorageSize()
	}
	return total
}

// drainUpdates swaps out the current updateList/updateBits under the
// segment's spin-rwlock and returns the sorted, de-duplicated set of
// logical ids touched since the last drain. This is the primitive
// syncNewDeletionMark's three passes are built from.
func (b *SegmentBase) drainUpdates() []idspace.LogicalRowID {
	b.segMutex.Lock()
	list := b.updateList
	bits := b.updateBits
	b.updateList = nil
	b.updateBits = nil
	b.segMutex.Unlock()

	if bits != nil {
		raw := bits.ToArray()
		ids := make([]idspace.LogicalRowID, len(raw))
		for i, v := range raw {
			ids[i] = idspace.LogicalRowID(v)
		}
		return ids
	}

	ids := make([]idspace.LogicalRowID, len(list))
	for i, v := range list {
		ids[i] = idspace.LogicalRowID(v)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return dedupSorted(ids)
}

func dedupSorted(ids []idspace.LogicalRowID) []idspace.LogicalRowID {
	if len(ids) == 0 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
