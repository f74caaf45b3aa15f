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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hangzhao/terark-db/bitmap"
	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/colstore"
	"github.com/hangzhao/terark-db/storagestate"
)

// Purger compacts a readonly segment by physically dropping its deleted
// rows, rebuilding every index and column-group store from the survivors,
// and swapping the result in under the table's writer lock (spec.md §4.5).
// One Purger is scoped to a single segIdx.
type Purger struct {
	table  *Table
	segIdx int
	log    logrus.FieldLogger
}

func NewPurger(t *Table, segIdx int) *Purger {
	log := t.logger
	if log == nil {
		log = logrus.New()
	}
	return &Purger{table: t, segIdx: segIdx, log: log.WithField("action", "purge").WithField("segIdx", segIdx)}
}

// Purge runs the full protocol and returns once the compacted segment has
// replaced the original in the table's slot.
func (p *Purger) Purge() error {
	t := p.table
	startNs := time.Now().UnixNano()
	observe := t.metrics.PurgeOpObserver()
	defer observe(startNs)

	if t.hasActiveScan() {
		return errors.Wrapf(ErrInvalidArgument, "table has an active scan, cannot purge segment %d", p.segIdx)
	}

	// step 1: reserve update-list slots, flip bookUpdates, mark the table
	// purging, all under the writer lock.
	t.rwMutex.Lock()
	input := t.slots[p.segIdx].readonly
	if input == nil {
		t.rwMutex.Unlock()
		return errors.Wrapf(ErrInvalidArgument, "slot %d is not a readonly segment", p.segIdx)
	}
	input.segMutex.Lock()
	if len(input.updateList) != 0 || input.bookUpdates {
		input.segMutex.Unlock()
		t.rwMutex.Unlock()
		return errors.Wrapf(ErrLogicError, "segment %d already has a conversion or purge in flight", p.segIdx)
	}
	input.updateList = make([]uint32, 0, t.updateListReserve)
	input.bookUpdates = true
	input.segMutex.Unlock()
	t.setPurgeStatus(storagestate.StatusPurging)
	t.rwMutex.Unlock()

	defer t.setPurgeStatus(storagestate.StatusReady)

	newDir := input.dir
	tmpDir := newDir + ".purge.tmp"
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return errors.Wrapf(err, "create tmp dir %q", tmpDir)
	}

	// step 2: snapshot IsDel, compute delcnt.
	logicRowNum := input.numDataRows()
	isDelCopy, err := cloneBitmap(input.isDel, filepath.Join(tmpDir, isDelFileName))
	if err != nil {
		return err
	}
	delcnt := isDelCopy.Popcount()

	// Gather surviving rows once (a forward cursor already skips IsDel),
	// the same materialize-then-build simplification the Converter uses
	// for its own single-pass Phase A.
	colRows := make(map[string][][]byte, len(t.schema.ColumnGroups))
	colPhysical := make(map[string][]idspace.PhysicalRowID)
	var newRowNum uint64

	cursor := input.NewForwardCursor()
	for {
		_, row, ok, err := cursor.Next()
		if err != nil {
			return errors.Wrap(err, "purge: iterate source")
		}
		if !ok {
			break
		}
		for _, g := range t.schema.ColumnGroups {
			colRows[g.Name] = append(colRows[g.Name], g.Project(row))
			colPhysical[g.Name] = append(colPhysical[g.Name], idspace.PhysicalRowID(newRowNum))
		}
		newRowNum++
	}

	if logicRowNum-delcnt != newRowNum {
		return errors.Wrapf(ErrLogicError, "purge row accounting: logicRowNum=%d delcnt=%d newRowNum=%d",
			logicRowNum, delcnt, newRowNum)
	}

	// step 3: purgeIndex per index colgroup.
	indices := make(map[string]colstore.ReadableIndex)
	for _, g := range t.schema.ColumnGroups {
		if !g.IsIndex {
			continue
		}
		idx, err := purgeIndex(t, tmpDir, g, colRows[g.Name], colPhysical[g.Name])
		if err != nil {
			return errors.Wrapf(err, "purge index %q", g.Name)
		}
		indices[g.Name] = idx
	}

	// step 4: purgeColgroup per non-index colgroup.
	colgroups := make(map[string]colstore.ReadableStore)
	for _, g := range t.schema.ColumnGroups {
		if g.IsIndex {
			continue
		}
		store, err := purgeColgroup(t, tmpDir, g, colRows[g.Name])
		if err != nil {
			return errors.Wrapf(err, "purge colgroup %q", g.Name)
		}
		colgroups[g.Name] = store
	}

	newSeg := NewReadonlySegment(tmpDir, t.schema, p.log)
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

	if err := newSeg.Save(tmpDir); err != nil {
		return errors.Wrap(err, "save purged segment")
	}
	if err := newSeg.closeIsDel(); err != nil {
		return errors.Wrap(err, "close in-memory bitmaps before reload")
	}
	reloaded, err := Load(tmpDir, t.schema, p.log, bitmap.RankSelectClass(t.rankSelectClass), true)
	if err != nil {
		return errors.Wrap(err, "reload purged segment")
	}
	newSeg = reloaded
	t.wireBloomMetrics(newSeg)

	// step 5: completeAndReload's three-pass update replay, same shape as
	// the Converter's, but reading updated values back off input's own
	// persisted FixedLenStore instead of an in-memory updatable map.
	if err := syncPurgeDeletionMark(input, newSeg); err != nil {
		return errors.Wrap(err, "replay pass 1 (unlocked)")
	}
	t.rwMutex.RLock()
	err = syncPurgeDeletionMark(input, newSeg)
	t.rwMutex.RUnlock()
	if err != nil {
		return errors.Wrap(err, "replay pass 2 (read-locked)")
	}

	// step 6: final pass, backup-and-rename swap under the writer lock.
	backupDir := nextBackupDirName(newDir)

	t.rwMutex.Lock()
	if err := syncPurgeDeletionMark(input, newSeg); err != nil {
		t.rwMutex.Unlock()
		return errors.Wrap(err, "replay pass 3 (write-locked)")
	}

	if err := os.Rename(newDir, backupDir); err != nil {
		t.rwMutex.Unlock()
		return errors.Wrapf(err, "backup source segment dir %q to %q", newDir, backupDir)
	}
	if err := os.Rename(tmpDir, newDir); err != nil {
		if restoreErr := os.Rename(backupDir, newDir); restoreErr != nil {
			t.rwMutex.Unlock()
			return errors.Wrapf(restoreErr, "restore backup %q after failed rename of %q (original error: %v)",
				backupDir, tmpDir, err)
		}
		t.rwMutex.Unlock()
		return errors.Wrapf(err, "rename %q to %q, backup restored", tmpDir, newDir)
	}
	newSeg.dir = newDir
	t.slots[p.segIdx] = segmentSlot{readonly: newSeg}
	t.segArrayUpdateSeq++
	t.rwMutex.Unlock()

	t.markTobeDel(backupDir)
	input.bookUpdates = false
	t.refreshSegmentMetrics(p.segIdx, newSeg)

	return nil
}

// purgeIndex rebuilds one index colgroup from its surviving rows. An
// all-deleted source (no surviving rows) emits an EmptyIndexStore rather
// than attempting to build an index over nothing.
func purgeIndex(t *Table, tmpDir string, g ColumnGroupSchema, rows [][]byte, physicalIDs []idspace.PhysicalRowID) (colstore.ReadableIndex, error) {
	if len(rows) == 0 {
		return colstore.EmptyIndexStore{}, nil
	}
	boltPath := filepath.Join(tmpDir, "index-"+g.Name+".bolt")
	return t.buildIndex(g.Build, boltPath, rows, physicalIDs)
}

// purgeColgroup rebuilds one non-index colgroup from its surviving rows,
// reusing the Converter's Phase C branch logic (fixed-length adoption,
// dict-zip, compressingWorkMemSize-bounded multi-part split). An
// all-deleted source emits an EmptyIndexStore, which also satisfies
// ReadableStore.
func purgeColgroup(t *Table, tmpDir string, g ColumnGroupSchema, rows [][]byte) (colstore.ReadableStore, error) {
	if len(rows) == 0 {
		return colstore.EmptyIndexStore{}, nil
	}
	return buildColgroupStore(t, tmpDir, g, rows)
}

// syncPurgeDeletionMark is syncNewDeletionMark's counterpart for a
// readonly source: in-place updates land directly on input's own
// FixedLenStore (there is no in-memory updatable map to read from, unlike
// a WritableSegment), so the replay re-reads the already-mutated value off
// input at its own physical id before splicing it into dest.
func syncPurgeDeletionMark(input *ReadonlySegment, dest *ReadonlySegment) error {
	ids := input.drainUpdates()
	for _, id := range ids {
		if id >= dest.numDataRows() {
			continue
		}
		if input.isDel.Get(id) {
			if !dest.isDel.Get(id) {
				dest.isDel.Set(id, true)
			}
			continue
		}

		destPhysical, err := dest.physicalID(id)
		if err != nil {
			continue
		}
		inputPhysical, err := input.physicalID(id)
		if err != nil {
			continue
		}
		for _, g := range input.schema.UpdatableGroups() {
			srcStore, ok := input.colgroups[g.Name].(*colstore.FixedLenStore)
			if !ok {
				continue
			}
			val, err := srcStore.Get(inputPhysical)
			if err != nil {
				continue
			}
			if dstStore, ok := dest.colgroups[g.Name].(*colstore.FixedLenStore); ok {
				if err := dstStore.SetAt(destPhysical, val); err != nil {
					return errors.Wrapf(err, "replay purge update of colgroup %q at physical id %d", g.Name, destPhysical)
				}
			}
		}
	}
	return nil
}

// nextBackupDirName finds the first unused "<dir>.backup-N" name, N
// starting at 1, matching spec.md §4.5 step 6's naming.
func nextBackupDirName(dir string) string {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.backup-%d", dir, n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// compactIDSpace implements the withPurgeBits=false branch of §4.5's
// IsPurged.rs load semantics: it shrinks the logical id space itself down
// to rank0(IsPurged), rewrites IsDel atomically, and drops IsPurged.rs.
// Only called once, right after a purge, on a segment that isn't
// configured to keep its purge bits.
func compactIDSpace(dir string, log logrus.FieldLogger) error {
	purgedPath := filepath.Join(dir, isPurgedFileName)
	if _, err := os.Stat(purgedPath); os.IsNotExist(err) {
		return nil
	}

	purged, err := bitmap.Load(purgedPath)
	if err != nil {
		return errors.Wrapf(err, "load IsPurged.rs for compaction in %q", dir)
	}
	defer purged.Close()

	rs := bitmap.Build(purged, bitmap.RSClassPlus512)
	newLen := rs.Rank0(purged.Len())

	oldIsDelPath := filepath.Join(dir, isDelFileName)
	oldIsDel, err := bitmap.Load(oldIsDelPath)
	if err != nil {
		return errors.Wrapf(err, "load IsDel for compaction in %q", dir)
	}
	defer oldIsDel.Close()

	newPath := oldIsDelPath + ".compact"
	newIsDel, err := bitmap.Create(newPath)
	if err != nil {
		return errors.Wrapf(err, "create compacted IsDel in %q", dir)
	}
	for physical := uint64(0); physical < newLen; physical++ {
		logical, err := rs.Select0(physical)
		if err != nil {
			newIsDel.Close()
			return errors.Wrapf(err, "select0(%d) during id-space compaction", physical)
		}
		if err := newIsDel.Push(oldIsDel.Get(logical)); err != nil {
			newIsDel.Close()
			return err
		}
	}
	if err := newIsDel.Flush(); err != nil {
		newIsDel.Close()
		return err
	}
	if err := newIsDel.Close(); err != nil {
		return err
	}

	backupPath := oldIsDelPath + ".backup"
	if err := os.Rename(oldIsDelPath, backupPath); err != nil {
		return errors.Wrap(err, "backup old IsDel before compaction swap")
	}
	if err := os.Rename(newPath, oldIsDelPath); err != nil {
		if restoreErr := os.Rename(backupPath, oldIsDelPath); restoreErr != nil {
			return errors.Wrapf(restoreErr, "restore IsDel backup after failed compaction swap (original error: %v)", err)
		}
		return errors.Wrap(err, "swap in compacted IsDel, backup restored")
	}

	if err := os.Remove(purgedPath); err != nil && !os.IsNotExist(err) {
		log.WithField("action", "compact_id_space").WithError(err).Warn("failed to remove IsPurged.rs after compaction")
	}
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		log.WithField("action", "compact_id_space").WithError(err).Warn("failed to remove IsDel backup after compaction")
	}
	return nil
}

// recoverInterruptedIDSpaceCompaction restores a stale IsDel backup left
// behind by a compactIDSpace run that crashed between the backup rename
// and the final swap (spec.md §4.5: "interrupted compactions are
// recoverable by detecting |IsDel| < |IsPurged| and restoring the
// backup"). Presence of the backup file is itself sufficient evidence of
// an interrupted swap, since compactIDSpace always removes it on success.
func recoverInterruptedIDSpaceCompaction(dir string) error {
	backupPath := filepath.Join(dir, isDelFileName+".backup")
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return nil
	}
	return os.Rename(backupPath, filepath.Join(dir, isDelFileName))
}
