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

package segment

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangzhao/terark-db/segment/colstore"
)

func multiPartSchema() TableSchema {
	return TableSchema{
		Columns: []string{"payload"},
		ColumnGroups: []ColumnGroupSchema{
			{Name: "payload", Columns: []int{0}, Build: colstore.Schema{ColType: colstore.ColBytes}},
		},
	}
}

// scenario 5: compressingWorkMemSize tuned so 1000 fixed-10-byte rows split
// into exactly 3 parts (340 + 340 + 320), assembled into a MultiPartStore
// on load.
func TestConvertMultiPartBuildAssemblesThreeParts(t *testing.T) {
	const rows = 1000
	dir := t.TempDir()
	tbl, err := NewTable(dir, multiPartSchema(), WithLogger(discardLogger()), WithCompressingWorkMemSize(3400))
	require.NoError(t, err)

	ws, err := NewWritableSegment(tbl.segmentDirName("wr", 0), multiPartSchema(), discardLogger())
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		_, err := ws.append(Row{bytes.Repeat([]byte("z"), 10)})
		require.NoError(t, err)
	}
	ws.freeze()
	tbl.appendWritableSlot(ws)

	require.NoError(t, NewConverter(tbl, 0).Convert())

	rdDir := tbl.segmentDirName("rd", 0)
	entries, err := os.ReadDir(rdDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	parts, err := colstore.DiscoverParts(names, "payload")
	require.NoError(t, err)
	assert.Len(t, parts, 3, "1000 rows of 10 bytes at a 3400-byte work mem size must split into 3 parts")

	store, err := colstore.LoadColumnGroup(rdDir, "payload")
	require.NoError(t, err)
	_, ok := store.(*colstore.MultiPartStore)
	assert.True(t, ok, "a 3-part colgroup must reload as a MultiPartStore")

	rs := tbl.segmentAt(0).readonly
	row, err := rs.getValueAppend(999)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("z"), 10), row[0])
}

// a gap in the part sequence (here, a missing .0001 file) must surface as
// ErrOutOfOrderParts rather than silently loading a truncated store.
func TestLoadColumnGroupMissingPartReturnsErrOutOfOrderParts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.0000.fixlen"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.0002.fixlen"), []byte("x"), 0o644))

	_, err := colstore.LoadColumnGroup(dir, "payload")
	assert.ErrorIs(t, err, colstore.ErrOutOfOrderParts)
}

// Open reloads both a readonly and a writable slot from disk, and honors
// WithWithPurgeBits(false) by compacting away a reloaded readonly
// segment's IsPurged.rs, tying comment 4's fix together end to end.
func TestOpenReloadsSlotsAndHonorsWithPurgeBits(t *testing.T) {
	dir := t.TempDir()
	tbl, err := NewTable(dir, rowNameSchema(), WithLogger(discardLogger()))
	require.NoError(t, err)

	ws, err := NewWritableSegment(tbl.segmentDirName("wr", 0), rowNameSchema(), discardLogger())
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := ws.append(Row{[]byte(fmt.Sprintf("%d", i)), []byte(fmt.Sprintf("r%d", i))})
		require.NoError(t, err)
	}
	require.NoError(t, ws.remove(1))
	ws.freeze()
	tbl.appendWritableSlot(ws)
	require.NoError(t, NewConverter(tbl, 0).Convert())
	require.NoError(t, tbl.segmentAt(0).readonly.closeIsDel())

	ws2, err := NewWritableSegment(tbl.segmentDirName("wr", 1), rowNameSchema(), discardLogger())
	require.NoError(t, err)
	_, err = ws2.append(Row{[]byte("9"), []byte("r9")})
	require.NoError(t, err)
	require.NoError(t, ws2.saveWrtStore(tbl.segmentDirName("wr", 1)))
	require.NoError(t, ws2.closeIsDel())

	reopened, err := Open(dir, rowNameSchema(), WithLogger(discardLogger()), WithWithPurgeBits(false))
	require.NoError(t, err)
	require.Equal(t, 2, reopened.numSegments())

	rdSlot := reopened.segmentAt(0)
	require.NotNil(t, rdSlot.readonly)
	assert.Nil(t, rdSlot.readonly.isPurged, "WithWithPurgeBits(false) must compact away IsPurged.rs on Open")

	wrSlot := reopened.segmentAt(1)
	require.NotNil(t, wrSlot.writable)
	row, err := wrSlot.writable.getValueAppend(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("r9"), row[1])
}

func TestOpenWithPurgeBitsTrueKeepsIsPurged(t *testing.T) {
	dir := t.TempDir()
	tbl, err := NewTable(dir, rowNameSchema(), WithLogger(discardLogger()))
	require.NoError(t, err)

	ws, err := NewWritableSegment(tbl.segmentDirName("wr", 0), rowNameSchema(), discardLogger())
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := ws.append(Row{[]byte(fmt.Sprintf("%d", i)), []byte(fmt.Sprintf("r%d", i))})
		require.NoError(t, err)
	}
	require.NoError(t, ws.remove(1))
	ws.freeze()
	tbl.appendWritableSlot(ws)
	require.NoError(t, NewConverter(tbl, 0).Convert())
	require.NoError(t, tbl.segmentAt(0).readonly.closeIsDel())

	reopened, err := Open(dir, rowNameSchema(), WithLogger(discardLogger()), WithWithPurgeBits(true))
	require.NoError(t, err)
	rdSlot := reopened.segmentAt(0)
	require.NotNil(t, rdSlot.readonly)
	assert.NotNil(t, rdSlot.readonly.isPurged, "WithWithPurgeBits(true) must keep IsPurged.rs on Open")
}
