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
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hangzhao/terark-db/bitmap"
	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/colstore"
)

// Converter streams a frozen WritableSegment into a new ReadonlySegment,
// replacing the table's slot under a writer lock once built (spec.md
// §4.4). One Converter is scoped to a single segIdx.
type Converter struct {
	table  *Table
	segIdx int
	log    logrus.FieldLogger
}

func NewConverter(t *Table, segIdx int) *Converter {
	log := t.logger
	if log == nil {
		log = logrus.New()
	}
	return &Converter{table: t, segIdx: segIdx, log: log.WithField("action", "convert").WithField("segIdx", segIdx)}
}

// Convert runs the full protocol and returns once the new readonly segment
// has replaced the writable one in the table's slot.
func (c *Converter) Convert() error {
	t := c.table
	startNs := time.Now().UnixNano()
	observe := t.metrics.ConversionOpObserver()
	defer observe(startNs)

	// step 2: snapshot under a read lock, validate preconditions.
	t.rwMutex.RLock()
	input := t.slots[c.segIdx].writable
	t.rwMutex.RUnlock()
	if input == nil {
		return errors.Wrapf(ErrInvalidArgument, "slot %d is not a writable segment", c.segIdx)
	}
	if !input.isFrozen() {
		return errors.Wrapf(ErrInvalidArgument, "segment %d must be frozen before conversion", c.segIdx)
	}

	input.segMutex.Lock()
	if len(input.updateList) != 0 || input.bookUpdates {
		input.segMutex.Unlock()
		return errors.Wrapf(ErrLogicError, "segment %d already has a conversion or purge in flight", c.segIdx)
	}
	// step 3: reserve update-list slots and flip bookUpdates; from here
	// every mutation against input is recorded for replay.
	input.updateList = make([]uint32, 0, t.updateListReserve)
	input.bookUpdates = true
	input.segMutex.Unlock()

	newDir := t.segmentDirName("rd", c.segIdx)
	tmpDir := newDir + ".tmp"
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return errors.Wrapf(err, "create tmp dir %q", tmpDir)
	}

	// step 4: copy IsDel, record logicRowNum.
	logicRowNum := input.numDataRows()
	isDelCopy, err := cloneBitmap(input.isDel, filepath.Join(tmpDir, isDelFileName))
	if err != nil {
		return err
	}

	// Phase A: stream non-deleted rows into per-colgroup accumulators.
	colRows := make(map[string][][]byte, len(t.schema.ColumnGroups))
	colPhysical := make(map[string][]idspace.PhysicalRowID)
	var newRowNum uint64

	cursor := input.NewForwardCursor()
	seenLogical := uint64(0)
	for {
		logical, row, ok, err := cursor.Next()
		if err != nil {
			return errors.Wrap(err, "phase A: iterate source")
		}
		if !ok {
			break
		}
		seenLogical = logical + 1

		for _, g := range t.schema.ColumnGroups {
			colRows[g.Name] = append(colRows[g.Name], g.Project(row))
			colPhysical[g.Name] = append(colPhysical[g.Name], idspace.PhysicalRowID(newRowNum))
		}
		newRowNum++
	}

	// Iterator under-run: it yielded fewer rows than IsDel's logical
	// count implies trailing ids were skipped. Mark them deleted on both
	// sides rather than silently losing them (spec.md §9 open question).
	if seenLogical < logicRowNum {
		c.log.WithField("expected", logicRowNum).WithField("observed", seenLogical).
			Warn("iterator under-run: marking trailing range deleted")
		for id := seenLogical; id < logicRowNum; id++ {
			isDelCopy.Set(id, true)
			input.isDel.Set(id, true)
		}
	}

	delcnt := isDelCopy.Popcount()
	if logicRowNum-delcnt != newRowNum {
		return errors.Wrapf(ErrLogicError, "phase A row accounting: logicRowNum=%d delcnt=%d newRowNum=%d",
			logicRowNum, delcnt, newRowNum)
	}

	// Phase B: build indices.
	indices := make(map[string]colstore.ReadableIndex)
	for _, g := range t.schema.ColumnGroups {
		if !g.IsIndex {
			continue
		}
		boltPath := filepath.Join(tmpDir, "index-"+g.Name+".bolt")
		idx, err := t.buildIndex(g.Build, boltPath, colRows[g.Name], colPhysical[g.Name])
		if err != nil {
			return errors.Wrapf(err, "phase B: build index %q", g.Name)
		}
		indices[g.Name] = idx
	}

	// Phase C: build non-index column-group stores.
	colgroups := make(map[string]colstore.ReadableStore)
	for _, g := range t.schema.ColumnGroups {
		if g.IsIndex {
			continue
		}
		store, err := buildColgroupStore(t, tmpDir, g, colRows[g.Name])
		if err != nil {
			return errors.Wrapf(err, "phase C: build colgroup %q", g.Name)
		}
		colgroups[g.Name] = store
	}

	// step 10: purge bitmap, only when there are tombstones.
	newSeg := NewReadonlySegment(tmpDir, t.schema, c.log)
	newSeg.isDel = isDelCopy
	newSeg.colgroups = colgroups
	newSeg.indices = indices
	if delcnt > 0 {
		purged, err := cloneBitmap(isDelCopy, filepath.Join(tmpDir, isPurgedFileName))
		if err != nil {
			return err
		}
		newSeg.isPurged = purged
		newSeg.purgeRS = bitmap.Build(purged, bitmap.RankSelectClass(t.rankSelectClass))
		newSeg.withPurgeBits = true
		newSeg.trans = idspace.NewTranslator(newSeg.purgeRS)
	}

	// step 11: save, clear, reload mmap-backed.
	if err := newSeg.Save(tmpDir); err != nil {
		return errors.Wrap(err, "save new readonly segment")
	}
	if err := newSeg.closeIsDel(); err != nil {
		return errors.Wrap(err, "close in-memory bitmaps before reload")
	}
	reloaded, err := Load(tmpDir, t.schema, c.log, bitmap.RankSelectClass(t.rankSelectClass), true)
	if err != nil {
		return errors.Wrap(err, "reload new readonly segment")
	}
	newSeg = reloaded
	t.wireBloomMetrics(newSeg)

	// step 12: three-pass deletion/update replay.
	if err := syncNewDeletionMark(input, newSeg); err != nil {
		return errors.Wrap(err, "replay pass 1 (unlocked)")
	}
	t.rwMutex.RLock()
	err = syncNewDeletionMark(input, newSeg)
	t.rwMutex.RUnlock()
	if err != nil {
		return errors.Wrap(err, "replay pass 2 (read-locked)")
	}

	// step 13: final pass and swap happen under the writer lock so no
	// update can land between the last replay and the swap.
	oldDir := input.dir
	t.rwMutex.Lock()
	if err := syncNewDeletionMark(input, newSeg); err != nil {
		t.rwMutex.Unlock()
		return errors.Wrap(err, "replay pass 3 (write-locked)")
	}
	t.slots[c.segIdx] = segmentSlot{readonly: newSeg}
	t.segArrayUpdateSeq++
	t.rwMutex.Unlock()

	if err := os.Rename(tmpDir, newDir); err != nil {
		return errors.Wrapf(err, "rename %q to %q", tmpDir, newDir)
	}
	newSeg.dir = newDir

	t.markTobeDel(oldDir)
	input.bookUpdates = false
	t.refreshSegmentMetrics(c.segIdx, newSeg)

	return nil
}

// buildColgroupStore implements step 8's three-way branch: fixed-length
// adoption, dict-zip, or a compressingWorkMemSize-bounded multi-part split.
// Shared by the Converter's Phase C and the Purger's purgeColgroup, since
// both reduce to "build one store from a materialized slice of rows" once
// the deleted/purged rows have already been filtered out by the caller.
func buildColgroupStore(t *Table, tmpDir string, g ColumnGroupSchema, rows [][]byte) (colstore.ReadableStore, error) {
	if g.Build.UseFixedLenStore && g.Build.FixedLen > 0 {
		return colstore.NewFixedLenStoreFromRows(g.Build.FixedLen, rows)
	}

	var totalBytes uint64
	for _, r := range rows {
		totalBytes += uint64(len(r))
	}

	if colstore.ShouldUseDictZip(g.Build, totalBytes, uint64(len(rows))) {
		sample := sampleDictZipTrainingSet(tmpDir, g.Build.DictZipSampleRatio, rows)
		return t.buildDictZipStore(rows, sample)
	}

	parts := colstore.SplitByWorkMemSize(rows, t.compressingWorkMemSize)
	if len(parts) <= 1 {
		only := rows
		if len(parts) == 1 {
			only = parts[0]
		}
		return t.buildStore(g.Build, only)
	}

	stores := make([]colstore.ReadableStore, len(parts))
	eg := &errgroup.Group{}
	eg.SetLimit(phaseCConcurrency)
	for i, part := range parts {
		i, part := i, part
		eg.Go(func() error {
			store, err := t.buildStore(g.Build, part)
			if err != nil {
				return errors.Wrapf(err, "build part %d", i)
			}
			stores[i] = store
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return colstore.NewMultiPartStore(stores), nil
}

// phaseCConcurrency bounds how many disjoint row-range parts Phase C builds
// at once; each part writes to its own index of stores, so no part waits on
// another's I/O or compression work.
const phaseCConcurrency = 4

// sampleDictZipTrainingSet implements §4.4.1's pass 1: a deterministic,
// per-segment-seeded sample of rows (replacing rand()/RAND_MAX with
// math/rand seeded from a hash of tmpDir, per spec.md §9's redesign note),
// falling back to a single guaranteed sample when the ratio rejects every
// row.
func sampleDictZipTrainingSet(tmpDir string, ratio float64, rows [][]byte) []byte {
	if ratio <= 0 {
		ratio = 0.01
	}
	rng := rand.New(rand.NewSource(int64(xxhash.Sum64String(tmpDir))))

	var sample []byte
	for _, r := range rows {
		if rng.Float64() < ratio {
			sample = append(sample, r...)
		}
	}
	if len(sample) == 0 {
		if len(rows) > 0 {
			sample = append(sample, rows[len(rows)-1]...)
		} else {
			sample = []byte("Hello World!")
		}
	}
	return sample
}

// cloneBitmap creates a fresh mmap-backed bitmap at path with the same
// length and bits as src.
func cloneBitmap(src *bitmap.Bitmap, path string) (*bitmap.Bitmap, error) {
	dst, err := bitmap.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create bitmap clone %q", path)
	}
	for i := uint64(0); i < src.Len(); i++ {
		if err := dst.Push(src.Get(i)); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// syncNewDeletionMark replays deletions and in-place-updatable-column
// changes recorded on input since the last drain onto dest: a tombstone
// sets dest.IsDel, an in-place update splices the new bytes into dest's
// adopted FixedLenStore at the translated physical id. Runs three times
// across Convert's protocol (unlocked, read-locked, write-locked) exactly
// as spec.md §9 requires — never collapsed to two passes.
func syncNewDeletionMark(input *WritableSegment, dest *ReadonlySegment) error {
	ids := input.drainUpdates()
	for _, id := range ids {
		if id >= dest.numDataRows() {
			continue // row did not exist yet when dest was built
		}
		if input.isDel.Get(id) {
			if !dest.isDel.Get(id) {
				dest.isDel.Set(id, true)
			}
			continue
		}

		physical, err := dest.physicalID(id)
		if err != nil {
			continue
		}
		for _, g := range input.schema.UpdatableGroups() {
			val, err := input.updatable[g.Name].get(id)
			if err != nil {
				continue
			}
			if fixed, ok := dest.colgroups[g.Name].(*colstore.FixedLenStore); ok {
				if err := fixed.SetAt(physical, val); err != nil {
					return errors.Wrapf(err, "replay update of colgroup %q at physical id %d", g.Name, physical)
				}
			}
		}
	}
	return nil
}
