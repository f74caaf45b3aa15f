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

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hangzhao/terark-db/bitmap"
	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/colstore"
)

const wrtStoreFileName = "__wrtStore__"

// updatableColumn is a growable, in-memory fixed-length byte array backing
// one in-place-updatable column group on a live WritableSegment. It
// becomes a colstore.FixedLenStore verbatim once the converter adopts it.
type updatableColumn struct {
	fixedLen int
	data     []byte
}

func (u *updatableColumn) append(value []byte) error {
	if len(value) != u.fixedLen {
		return errors.Errorf("updatable column: value length %d, want %d", len(value), u.fixedLen)
	}
	u.data = append(u.data, value...)
	return nil
}

func (u *updatableColumn) update(id idspace.LogicalRowID, value []byte) error {
	if len(value) != u.fixedLen {
		return errors.Errorf("updatable column: value length %d, want %d", len(value), u.fixedLen)
	}
	start := int(id) * u.fixedLen
	if start+u.fixedLen > len(u.data) {
		return errors.Wrapf(ErrOutOfRange, "updatable column id %d", id)
	}
	copy(u.data[start:start+u.fixedLen], value)
	return nil
}

func (u *updatableColumn) get(id idspace.LogicalRowID) ([]byte, error) {
	start := int(id) * u.fixedLen
	if start+u.fixedLen > len(u.data) {
		return nil, errors.Wrapf(ErrOutOfRange, "updatable column id %d", id)
	}
	return u.data[start : start+u.fixedLen], nil
}

func (u *updatableColumn) rows() uint64 {
	if u.fixedLen == 0 {
		return 0
	}
	return uint64(len(u.data) / u.fixedLen)
}

// WritableSegment accepts inserts, updates and deletes; the wrt-schema
// columns (everything not in an in-place-updatable group) live in an
// append-only msgpack row store, while updatable groups live in growable
// fixed-length byte arrays read/written directly by offset.
type WritableSegment struct {
	*SegmentBase

	wrtRows    [][]byte // msgpack-encoded wrt-schema projection, by logical id
	updatable  map[string]*updatableColumn
}

// NewWritableSegment creates a fresh, empty writable segment rooted at dir.
func NewWritableSegment(dir string, schema TableSchema, log logrus.FieldLogger) (*WritableSegment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create segment directory %q", dir)
	}

	isDel, err := bitmap.Create(filepath.Join(dir, isDelFileName))
	if err != nil {
		return nil, errors.Wrap(err, "create IsDel")
	}

	base := newSegmentBase(dir, schema, log)
	base.isDel = isDel

	ws := &WritableSegment{
		SegmentBase: base,
		updatable:   make(map[string]*updatableColumn),
	}
	for _, g := range schema.UpdatableGroups() {
		ws.updatable[g.Name] = &updatableColumn{fixedLen: g.Build.FixedLen}
	}

	return ws, nil
}

// append parses row into wrt-schema and updatable-group projections,
// appends each, and grows IsDel by one unset bit. All per-group appends
// return the same new id by construction (every group grows in lockstep).
func (ws *WritableSegment) append(row Row) (idspace.LogicalRowID, error) {
	ws.segMutex.Lock()
	defer ws.segMutex.Unlock()

	id := idspace.LogicalRowID(len(ws.wrtRows))

	wrtCols := make([][]byte, 0, len(ws.schema.WrtSchema()))
	for _, g := range ws.schema.WrtSchema() {
		wrtCols = append(wrtCols, g.Project(row))
	}
	encoded, err := msgpack.Marshal(wrtCols)
	if err != nil {
		return 0, errors.Wrap(err, "encode wrt row")
	}
	ws.wrtRows = append(ws.wrtRows, encoded)

	for _, g := range ws.schema.UpdatableGroups() {
		if err := ws.updatable[g.Name].append(g.Project(row)); err != nil {
			return 0, errors.Wrapf(err, "append updatable group %q", g.Name)
		}
	}

	if err := ws.isDel.Push(false); err != nil {
		return 0, errors.Wrap(err, "grow IsDel")
	}

	return id, nil
}

// update mirrors append over an existing id, on both the row store and the
// updatable groups.
// update is split into a row-mutation critical section (guarded by
// segMutex) followed by addToUpdateList, which takes the same mutex
// itself — holding segMutex across that call would self-deadlock since
// sync.RWMutex is not reentrant.
func (ws *WritableSegment) update(id idspace.LogicalRowID, row Row) error {
	if err := ws.updateRow(id, row); err != nil {
		return err
	}
	return ws.addToUpdateList(id)
}

func (ws *WritableSegment) updateRow(id idspace.LogicalRowID, row Row) error {
	ws.segMutex.Lock()
	defer ws.segMutex.Unlock()

	if id >= uint64(len(ws.wrtRows)) {
		return errors.Wrapf(ErrOutOfRange, "update id %d", id)
	}

	wrtCols := make([][]byte, 0, len(ws.schema.WrtSchema()))
	for _, g := range ws.schema.WrtSchema() {
		wrtCols = append(wrtCols, g.Project(row))
	}
	encoded, err := msgpack.Marshal(wrtCols)
	if err != nil {
		return errors.Wrap(err, "encode wrt row")
	}
	ws.wrtRows[id] = encoded

	for _, g := range ws.schema.UpdatableGroups() {
		if err := ws.updatable[g.Name].update(id, g.Project(row)); err != nil {
			return errors.Wrapf(err, "update updatable group %q", g.Name)
		}
	}

	return nil
}

// remove delegates to the row store (a no-op marker here, since the row's
// bytes remain readable until the converter skips it) and sets IsDel[id].
// Idempotent: double-remove beyond the first is a no-op, matching
// spec.md §8. Mirrors update's split locking to avoid the same
// self-deadlock through addToUpdateList.
func (ws *WritableSegment) remove(id idspace.LogicalRowID) error {
	deleted, err := ws.markDeleted(id)
	if err != nil || !deleted {
		return err
	}
	return ws.addToUpdateList(id)
}

func (ws *WritableSegment) markDeleted(id idspace.LogicalRowID) (bool, error) {
	ws.segMutex.Lock()
	defer ws.segMutex.Unlock()

	if id >= ws.isDel.Len() {
		return false, errors.Wrapf(ErrOutOfRange, "remove id %d", id)
	}
	if ws.isDel.Get(id) {
		return false, nil
	}
	ws.isDel.Set(id, true)
	return true, nil
}

// pushIsDel grows IsDel by one bit, used when a table reserves ids ahead
// of the row store actually filling them (not needed by append itself,
// which already grows IsDel, but kept for parity with spec.md §4.2).
func (ws *WritableSegment) pushIsDel(v bool) error { return ws.isDel.Push(v) }
func (ws *WritableSegment) popIsDel() error        { return ws.isDel.Pop() }

// lockFreeUnusedBitsThreshold is spec.md §4.2's ">100 unused IsDel bits"
// bound: below it, a concurrent Push's eventual remap is close enough that
// a lock-free reader could race it, so callers fall back to segMutex.RLock.
const lockFreeUnusedBitsThreshold = 100

// canReadLockFree reports whether getValueAppend/indexSearchExactAppend may
// skip segMutex entirely: a frozen segment never grows IsDel again, and one
// with ample spare mmap capacity won't remap (and invalidate pointers)
// before the read completes.
func (ws *WritableSegment) canReadLockFree() bool {
	return ws.isFrozen() || ws.isDel.UnusedBits() > lockFreeUnusedBitsThreshold
}

// getValueAppend reconstructs row-schema bytes for logical id: the wrt
// row store supplies non-updatable columns, updatable groups are spliced
// in from their fixed-length slots.
func (ws *WritableSegment) getValueAppend(id idspace.LogicalRowID) (Row, error) {
	if !ws.canReadLockFree() {
		ws.segMutex.RLock()
		defer ws.segMutex.RUnlock()
	}

	if id >= uint64(len(ws.wrtRows)) {
		return nil, errors.Wrapf(ErrOutOfRange, "get value id %d", id)
	}

	var wrtCols [][]byte
	if err := msgpack.Unmarshal(ws.wrtRows[id], &wrtCols); err != nil {
		return nil, errors.Wrap(err, "decode wrt row")
	}

	row := make(Row, len(ws.schema.Columns))
	wrtIdx := 0
	for _, g := range ws.schema.WrtSchema() {
		cols, err := g.ProjectBack(wrtCols[wrtIdx])
		if err != nil {
			return nil, errors.Wrapf(err, "project back wrt group %q", g.Name)
		}
		for i, c := range g.Columns {
			row[c] = cols[i]
		}
		wrtIdx++
	}

	for _, g := range ws.schema.UpdatableGroups() {
		raw, err := ws.updatable[g.Name].get(id)
		if err != nil {
			return nil, errors.Wrapf(err, "get updatable group %q", g.Name)
		}
		cols, err := g.ProjectBack(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "project back updatable group %q", g.Name)
		}
		for i, c := range g.Columns {
			row[c] = cols[i]
		}
	}

	return row, nil
}

// selectColumns returns just colIds for id: updatable-group columns are
// read directly from their fixed slot, everything else lazily decodes the
// wrt row once.
func (ws *WritableSegment) selectColumns(id idspace.LogicalRowID, colIds []int) ([][]byte, error) {
	row, err := ws.getValueAppend(id)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(colIds))
	for i, c := range colIds {
		out[i] = row[c]
	}
	return out, nil
}

func (ws *WritableSegment) selectOneColumn(id idspace.LogicalRowID, colID int) ([]byte, error) {
	out, err := ws.selectColumns(id, []int{colID})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (ws *WritableSegment) selectColgroups(id idspace.LogicalRowID, groupNames []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(groupNames))
	for _, name := range groupNames {
		if col, ok := ws.updatable[name]; ok {
			v, err := col.get(id)
			if err != nil {
				return nil, err
			}
			out[name] = v
			continue
		}

		var found bool
		for _, g := range ws.schema.WrtSchema() {
			if g.Name == name {
				found = true
				var wrtCols [][]byte
				if err := msgpack.Unmarshal(ws.wrtRows[id], &wrtCols); err != nil {
					return nil, errors.Wrap(err, "decode wrt row")
				}
				idx := 0
				for _, wg := range ws.schema.WrtSchema() {
					if wg.Name == name {
						out[name] = wrtCols[idx]
						break
					}
					idx++
				}
			}
		}
		if !found {
			return nil, errors.Errorf("unknown column group %q", name)
		}
	}
	return out, nil
}

// indexSearchExactAppend is the only index integration point a
// WritableSegment needs (index implementations themselves are out of
// scope): when idx is non-nil it's queried via the ReadableIndex contract,
// then results are filtered by IsDel; with no index attached, it runs
// scanExact itself, matching key against each live row's first column.
// Applies the same ">100 unused IsDel bits or frozen
// ⇒ lock-free" optimisation as getValueAppend, since both read IsDel
// against a concurrently-mutating markDeleted/Push.
func (ws *WritableSegment) indexSearchExactAppend(idx colstore.ReadableIndex, key []byte, unique bool) ([]idspace.LogicalRowID, error) {
	if idx == nil {
		return ws.scanExact(key)
	}

	physicalIDs, err := idx.SeekLowerBound(key)
	if err != nil {
		return nil, errors.Wrap(err, "index seek")
	}

	if !ws.canReadLockFree() {
		ws.segMutex.RLock()
		defer ws.segMutex.RUnlock()
	}

	var out []idspace.LogicalRowID
	for _, p := range physicalIDs {
		logical := idspace.LogicalRowID(p) // writable segment: physical == logical
		if ws.isDel.Get(logical) {
			continue
		}
		out = append(out, logical)
		if unique {
			break
		}
	}
	return out, nil
}

func (ws *WritableSegment) scanExact(key []byte) ([]idspace.LogicalRowID, error) {
	var out []idspace.LogicalRowID
	for id := idspace.LogicalRowID(0); id < uint64(len(ws.wrtRows)); id++ {
		if ws.isDel.Get(id) {
			continue
		}
		row, err := ws.getValueAppend(id)
		if err != nil {
			return nil, err
		}
		if len(row) > 0 && string(row[0]) == string(key) {
			out = append(out, id)
		}
	}
	return out, nil
}

// ForwardCursor returns logical ids in ascending order, skipping deleted
// rows, restartable via Reset (spec.md §9's "expose cursors... requires
// reset()").
type ForwardCursor struct {
	seg *WritableSegment
	pos idspace.LogicalRowID
}

func (ws *WritableSegment) NewForwardCursor() *ForwardCursor {
	return &ForwardCursor{seg: ws}
}

func (c *ForwardCursor) Reset() { c.pos = 0 }

// Next returns the next live logical id and its row, or ok=false at EOF.
func (c *ForwardCursor) Next() (idspace.LogicalRowID, Row, bool, error) {
	for c.pos < uint64(len(c.seg.wrtRows)) {
		id := c.pos
		c.pos++
		if c.seg.isDel.Get(id) {
			continue
		}
		row, err := c.seg.getValueAppend(id)
		if err != nil {
			return 0, nil, false, err
		}
		return id, row, true, nil
	}
	return 0, nil, false, nil
}

// BackwardCursor mirrors ForwardCursor in descending order.
type BackwardCursor struct {
	seg *WritableSegment
	pos int64
}

func (ws *WritableSegment) NewBackwardCursor() *BackwardCursor {
	return &BackwardCursor{seg: ws, pos: int64(len(ws.wrtRows)) - 1}
}

func (c *BackwardCursor) Reset() { c.pos = int64(len(c.seg.wrtRows)) - 1 }

func (c *BackwardCursor) Next() (idspace.LogicalRowID, Row, bool, error) {
	for c.pos >= 0 {
		id := idspace.LogicalRowID(c.pos)
		c.pos--
		if c.seg.isDel.Get(id) {
			continue
		}
		row, err := c.seg.getValueAppend(id)
		if err != nil {
			return 0, nil, false, err
		}
		return id, row, true, nil
	}
	return 0, nil, false, nil
}

// freeze marks the segment frozen: still mutable via IsDel (deletions),
// but no longer accepting inserts. A frozen writable segment is a
// conversion's precondition (spec.md §4.4 step 2).
func (ws *WritableSegment) freeze() { ws.frozen = true }

func (ws *WritableSegment) isFrozen() bool { return ws.frozen }

// saveWrtStore persists the in-memory row store and updatable groups to
// dir, for a clean shutdown / rollover without an immediate conversion.
func (ws *WritableSegment) saveWrtStore(dir string) error {
	f, err := os.OpenFile(filepath.Join(dir, wrtStoreFileName), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "create wrt store file")
	}
	defer f.Close()

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(ws.wrtRows); err != nil {
		return errors.Wrap(err, "encode wrt store")
	}

	for name, col := range ws.updatable {
		store, err := colstore.NewFixedLenStoreFromRows(col.fixedLen, splitFixed(col.data, col.fixedLen))
		if err != nil {
			return errors.Wrapf(err, "build updatable group %q for save", name)
		}
		if err := store.Save(dir, name); err != nil {
			return errors.Wrapf(err, "save updatable group %q", name)
		}
	}

	return ws.saveIsDel(dir)
}

// LoadWritableSegment reopens a previously-saved writable segment.
func LoadWritableSegment(dir string, schema TableSchema, log logrus.FieldLogger) (*WritableSegment, error) {
	base := newSegmentBase(dir, schema, log)
	if err := base.loadIsDel(dir, bitmap.DefaultRankSelectClass); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, wrtStoreFileName))
	if err != nil {
		return nil, errors.Wrap(err, "read wrt store file")
	}
	var wrtRows [][]byte
	if err := msgpack.Unmarshal(data, &wrtRows); err != nil {
		return nil, errors.Wrap(err, "decode wrt store")
	}

	ws := &WritableSegment{SegmentBase: base, wrtRows: wrtRows, updatable: make(map[string]*updatableColumn)}
	for _, g := range schema.UpdatableGroups() {
		store, err := colstore.LoadFixedLenStore(dir, g.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "load updatable group %q", g.Name)
		}
		ws.updatable[g.Name] = &updatableColumn{fixedLen: g.Build.FixedLen, data: append([]byte(nil), store.RecordsBasePtr()...)}
		store.Close()
	}

	return ws, nil
}

func splitFixed(data []byte, fixedLen int) [][]byte {
	if fixedLen == 0 {
		return nil
	}
	n := len(data) / fixedLen
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = data[i*fixedLen : (i+1)*fixedLen]
	}
	return out
}
