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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hangzhao/terark-db/bitmap"
	"github.com/hangzhao/terark-db/cyclemanager"
	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/colstore"
	"github.com/hangzhao/terark-db/storagestate"
)

// segmentSlot holds one table slot: at most one live writable segment
// (always the last slot) and any number of readonly segments, matching
// spec.md §3.3's single-active-writable-segment-plus-readonly-segments
// model. Exactly one of readonly/writable is non-nil.
type segmentSlot struct {
	readonly *ReadonlySegment
	writable *WritableSegment
}

// Table is the minimal external collaborator spec.md §1 places out of
// scope, just enough of §6's contract (createDbContextNoLock, segments[i],
// rwMutex, buildIndex/buildStore) to drive and test the
// Converter/Purger protocols end-to-end. Grounded on segment_group.go's
// SegmentGroup: a slice of segments behind a maintenance RWMutex, a status
// field, and pass-through store-building delegated to the colstore
// registry.
type Table struct {
	dir    string
	schema TableSchema

	// rwMutex guards the segments slice: readers do lookups/iteration,
	// writers mutate it (rollover, convert-swap, purge-swap).
	rwMutex sync.RWMutex
	slots   []segmentSlot

	segArrayUpdateSeq    uint64
	tableScanningRefCount int64

	purgeStatus     storagestate.Status
	purgeStatusLock sync.Mutex

	logger  logrus.FieldLogger
	metrics *Metrics

	compressingWorkMemSize int64
	dictZipLocalMatch      bool
	dictZipSampleRatio     float64
	rankSelectClass        int
	withPurgeBits          bool
	tobeDelSweepInterval   time.Duration
	updateListReserve      int

	reduceMemMutex sync.Mutex // process-wide in spirit; scoped to this Table's conversions here

	tobeDel   []string
	tobeDelMu sync.Mutex

	sweepCycle cyclemanager.CycleManager
}

// NewTable constructs an empty table rooted at dir, applying opts over
// sane defaults.
func NewTable(dir string, schema TableSchema, opts ...TableOption) (*Table, error) {
	t := &Table{
		dir:                    dir,
		schema:                 schema,
		logger:                 logrus.New(),
		purgeStatus:            storagestate.StatusReady,
		compressingWorkMemSize: 64 << 20,
		rankSelectClass:        int(bitmap.RSClassPlus512),
		tobeDelSweepInterval:   time.Minute,
		updateListReserve:      1024,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, errors.Wrap(err, "apply table option")
		}
	}

	t.sweepCycle = cyclemanager.NewMulti(cyclemanager.NewFixedTicker(t.tobeDelSweepInterval))
	t.sweepCycle.Register(t.sweepCycleFunc)
	t.sweepCycle.Start()

	return t, nil
}

// Open reopens a table previously persisted at dir, reloading every
// segment directory it finds ("rd-NNNN" readonly, "wr-NNNN" writable,
// matching segmentDirName's naming) back into the slot its index names; a
// "wr-NNNN" directory whose "rd-NNNN" twin exists is skipped. This is the
// table-level reload path readonly.go's Load anticipates:
// unlike the Converter/Purger's own internal reload of a freshly built tmp
// directory (which always passes withPurgeBits=true so the purge-preserving
// id mapping survives until the final rename), Open honors the table's own
// withPurgeBits policy, compacting away a stale IsPurged.rs on load when
// the table is configured not to keep it.
func Open(dir string, schema TableSchema, opts ...TableOption) (*Table, error) {
	t, err := NewTable(dir, schema, opts...)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read table dir %q", dir)
	}

	type found struct {
		idx  int
		kind string
		path string
	}
	var slots []found
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		var kind string
		switch {
		case strings.HasPrefix(name, "rd-"):
			kind = "rd"
		case strings.HasPrefix(name, "wr-"):
			kind = "wr"
		default:
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(name, kind+"-"))
		if err != nil {
			continue
		}
		slots = append(slots, found{idx: idx, kind: kind, path: filepath.Join(dir, name)})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].idx < slots[j].idx })

	// A wr-NNNN directory with an rd-NNNN twin is the source of a finished
	// conversion still waiting for the tobeDel sweep: the readonly twin
	// replaces it, so it is not loaded.
	converted := map[int]bool{}
	for _, f := range slots {
		if f.kind == "rd" {
			converted[f.idx] = true
		}
	}
	live := slots[:0]
	for _, f := range slots {
		if !(f.kind == "wr" && converted[f.idx]) {
			live = append(live, f)
		}
	}
	slots = live

	t.slots = make([]segmentSlot, len(slots))
	for i, f := range slots {
		switch f.kind {
		case "rd":
			seg, err := Load(f.path, schema, t.logger, bitmap.RankSelectClass(t.rankSelectClass), t.withPurgeBits)
			if err != nil {
				return nil, errors.Wrapf(err, "load readonly segment %q", f.path)
			}
			t.wireBloomMetrics(seg)
			t.slots[i] = segmentSlot{readonly: seg}
		case "wr":
			ws, err := LoadWritableSegment(f.path, schema, t.logger)
			if err != nil {
				return nil, errors.Wrapf(err, "load writable segment %q", f.path)
			}
			t.slots[i] = segmentSlot{writable: ws}
		}
	}

	return t, nil
}

// sweepCycleFunc adapts sweepTobeDel to cyclemanager.CycleFunc: it always
// reports "did work" as true when there was anything pending, regardless of
// per-directory removal errors (those are logged and swallowed by
// sweepTobeDel itself).
func (t *Table) sweepCycleFunc(shouldBreak cyclemanager.ShouldBreakFunc) bool {
	t.tobeDelMu.Lock()
	pending := len(t.tobeDel)
	t.tobeDelMu.Unlock()
	if pending == 0 {
		return false
	}
	t.sweepTobeDel(os.RemoveAll)
	return true
}

// Shutdown stops the background tobeDel sweep cycle, waiting up to ctx's
// deadline for the in-flight cycle (if any) to finish.
func (t *Table) Shutdown(ctx context.Context) error {
	return t.sweepCycle.StopAndWait(ctx)
}

// createDbContextNoLock snapshots the current segment count and update
// sequence, callable only while the caller already holds rwMutex (read or
// write). Mirrors spec.md §4.4 step 2's "snapshot the current DbContext".
type dbContext struct {
	segArrayUpdateSeq uint64
	numSegments        int
}

func (t *Table) createDbContextNoLock() dbContext {
	return dbContext{segArrayUpdateSeq: t.segArrayUpdateSeq, numSegments: len(t.slots)}
}

// segmentDirName builds the on-disk directory name for slot idx of the
// given type (spec.md §6: "<tableDir>/<type>-<NNNN>/", type in {wr, rd}).
// The Converter and Purger always build into a *new* directory distinct
// from the source segment's, so the final rename never collides with a
// directory that's still live.
func (t *Table) segmentDirName(kind string, idx int) string {
	return filepath.Join(t.dir, fmt.Sprintf("%s-%04d", kind, idx))
}

// appendWritableSlot registers a freshly created writable segment as the
// active slot.
func (t *Table) appendWritableSlot(ws *WritableSegment) {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()
	t.slots = append(t.slots, segmentSlot{writable: ws})
	t.segArrayUpdateSeq++
}

func (t *Table) segmentAt(i int) segmentSlot {
	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()
	return t.slots[i]
}

func (t *Table) numSegments() int {
	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()
	return len(t.slots)
}

// replaceSlot swaps slots[i] under the writer lock and bumps
// segArrayUpdateSeq. It has no caller: the Converter and Purger perform
// the same swap inline at the end of their protocols (spec.md §4.4 step 13
// / §4.5 step 6).
func (t *Table) replaceSlot(i int, slot segmentSlot) {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()
	t.slots[i] = slot
	t.segArrayUpdateSeq++
}

func (t *Table) setPurgeStatus(s storagestate.Status) {
	t.purgeStatusLock.Lock()
	defer t.purgeStatusLock.Unlock()
	t.purgeStatus = s
}

func (t *Table) getPurgeStatus() storagestate.Status {
	t.purgeStatusLock.Lock()
	defer t.purgeStatusLock.Unlock()
	return t.purgeStatus
}

// scanningRefCount tracks live table scans; the Purger's precondition
// (spec.md §4.5 step 1) requires this to be zero.
func (t *Table) beginScan() func() {
	atomic.AddInt64(&t.tableScanningRefCount, 1)
	return func() { atomic.AddInt64(&t.tableScanningRefCount, -1) }
}

func (t *Table) hasActiveScan() bool {
	return atomic.LoadInt64(&t.tableScanningRefCount) > 0
}

// markTobeDel schedules dir for deferred removal, swept by the background
// cyclemanager loop rather than removed synchronously (spec.md §3.3,
// §5's Windows hardlink tolerance note).
func (t *Table) markTobeDel(dir string) {
	t.tobeDelMu.Lock()
	defer t.tobeDelMu.Unlock()
	t.tobeDel = append(t.tobeDel, dir)
}

// sweepTobeDel removes every pending directory, logging and swallowing
// individual failures (a cross-hardlink delete can fail on Windows; the
// drop swallows such errors per spec.md §5).
func (t *Table) sweepTobeDel(remove func(dir string) error) {
	t.tobeDelMu.Lock()
	pending := t.tobeDel
	t.tobeDel = nil
	t.tobeDelMu.Unlock()

	for _, dir := range pending {
		if err := remove(dir); err != nil {
			t.logger.WithField("action", "sweep_tobe_del").WithField("dir", dir).
				WithError(err).Warn("failed to remove stale segment directory")
		}
	}
}

// buildIndex delegates to the colstore registry's fallback policy.
func (t *Table) buildIndex(sc colstore.Schema, boltPath string, keys [][]byte, physicalIDs []idspace.PhysicalRowID) (colstore.ReadableIndex, error) {
	return colstore.BuildIndex(sc, boltPath, keys, physicalIDs, t.logger)
}

// buildStore delegates to the colstore registry's fallback policy.
func (t *Table) buildStore(sc colstore.Schema, rows [][]byte) (colstore.ReadableStore, error) {
	return colstore.BuildStore(sc, rows, t.logger)
}

// wireBloomMetrics installs per-outcome bloom-filter observers on every
// FixedLenKeyIndex a freshly built or reloaded readonly segment carries,
// curried once here rather than re-built on every lookup.
func (t *Table) wireBloomMetrics(seg *ReadonlySegment) {
	if t.metrics == nil {
		return
	}
	bm := newBloomFilterMetrics(t.metrics)
	for _, idx := range seg.indices {
		if fk, ok := idx.(*colstore.FixedLenKeyIndex); ok {
			fk.SetBloomObservers(colstore.BloomObservers{
				TrueNegative:  bm.trueNegative,
				FalsePositive: bm.falsePositive,
				TruePositive:  bm.truePositive,
			})
		}
	}
}

// buildDictZipStore runs the heavy phase of the dict-zip build under the
// table's own reduceMemMutex, serializing it against every other
// dict-zip build in flight on this table (spec.md §5's global reduceMemMutex,
// scoped per-table here rather than process-wide).
func (t *Table) buildDictZipStore(rows [][]byte, sample []byte) (*colstore.DictZipBlobStore, error) {
	t.reduceMemMutex.Lock()
	defer t.reduceMemMutex.Unlock()
	start := time.Now()
	store, err := colstore.NewDictZipBlobStore(rows, sample)
	if err != nil {
		return nil, err
	}
	t.metrics.TrackDictZipBuild(start, uint64(len(sample)))
	return store, nil
}

// refreshSegmentMetrics reports row/size gauges for the slot just replaced
// and the table's current active-segment split between readonly/writable.
func (t *Table) refreshSegmentMetrics(segIdx int, seg *ReadonlySegment) {
	if t.metrics == nil {
		return
	}
	name := fmt.Sprintf("rd-%04d", segIdx)
	t.metrics.SetSegmentRows(name, seg.numDataRows())
	t.metrics.SetSegmentSize(name, seg.totalIndexSize())

	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()
	var readonlyCount, writableCount int
	for _, slot := range t.slots {
		if slot.readonly != nil {
			readonlyCount++
		}
		if slot.writable != nil {
			writableCount++
		}
	}
	t.metrics.SetActiveSegments("readonly", readonlyCount)
	t.metrics.SetActiveSegments("writable", writableCount)
}

