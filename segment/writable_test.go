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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangzhao/terark-db/segment/colstore"
)

func TestWritableSegmentAppendGetUpdateRemove(t *testing.T) {
	ws, err := NewWritableSegment(t.TempDir(), rowNameSchema(), discardLogger())
	require.NoError(t, err)

	id, err := ws.append(Row{[]byte("1"), []byte("r1")})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	row, err := ws.getValueAppend(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("r1"), row[1])

	require.NoError(t, ws.update(id, Row{[]byte("1"), []byte("renamed")}))
	row, err = ws.getValueAppend(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("renamed"), row[1])

	require.NoError(t, ws.remove(id))
	assert.True(t, ws.isDel.Get(id))

	// idempotent: a second remove is a no-op, not an error.
	require.NoError(t, ws.remove(id))
	assert.True(t, ws.isDel.Get(id))
}

func TestWritableSegmentRemoveOutOfRange(t *testing.T) {
	ws, err := NewWritableSegment(t.TempDir(), rowNameSchema(), discardLogger())
	require.NoError(t, err)
	err = ws.remove(5)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestWritableSegmentScanExactAndCursors(t *testing.T) {
	ws, err := NewWritableSegment(t.TempDir(), rowNameSchema(), discardLogger())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := ws.append(Row{[]byte(fmt.Sprintf("%d", i)), []byte(fmt.Sprintf("r%d", i))})
		require.NoError(t, err)
	}
	for i := 0; i < 10; i += 2 {
		require.NoError(t, ws.remove(uint64(i)))
	}

	got, err := ws.indexSearchExactAppend(nil, []byte("3"), false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3), got[0])

	// a deleted row's key is no longer found by scanExact.
	got, err = ws.indexSearchExactAppend(nil, []byte("4"), false)
	require.NoError(t, err)
	assert.Empty(t, got)

	fwd := ws.NewForwardCursor()
	var fwdIDs []uint64
	for {
		id, _, ok, err := fwd.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		fwdIDs = append(fwdIDs, id)
	}
	assert.Equal(t, []uint64{1, 3, 5, 7, 9}, fwdIDs)

	bwd := ws.NewBackwardCursor()
	var bwdIDs []uint64
	for {
		id, _, ok, err := bwd.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		bwdIDs = append(bwdIDs, id)
	}
	assert.Equal(t, []uint64{9, 7, 5, 3, 1}, bwdIDs)

	fwd.Reset()
	id, _, ok, err := fwd.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)
}

func TestWritableSegmentCanReadLockFree(t *testing.T) {
	ws, err := NewWritableSegment(t.TempDir(), rowNameSchema(), discardLogger())
	require.NoError(t, err)

	require.NoError(t, ws.isDel.Push(false))
	assert.True(t, ws.canReadLockFree(), "fresh bitmap has ample spare mmap capacity")

	ws.freeze()
	assert.True(t, ws.canReadLockFree(), "a frozen segment is always lock-free regardless of capacity")
}

func TestWritableSegmentSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	schema := TableSchema{
		Columns: []string{"id", "vector"},
		ColumnGroups: []ColumnGroupSchema{
			{Name: "id", Columns: []int{0}},
			{Name: "vector", Columns: []int{1}, InPlaceUpdatable: true, Build: colstore.Schema{FixedLen: 4}},
		},
	}
	ws, err := NewWritableSegment(dir, schema, discardLogger())
	require.NoError(t, err)

	_, err = ws.append(Row{[]byte("1"), []byte("abcd")})
	require.NoError(t, err)
	_, err = ws.append(Row{[]byte("2"), []byte("efgh")})
	require.NoError(t, err)

	require.NoError(t, ws.saveWrtStore(dir))
	require.NoError(t, ws.closeIsDel())

	reloaded, err := LoadWritableSegment(dir, schema, discardLogger())
	require.NoError(t, err)

	row, err := reloaded.getValueAppend(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), row[1])
	row, err = reloaded.getValueAppend(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("efgh"), row[1])

	require.NoError(t, reloaded.update(0, Row{[]byte("1"), []byte("wxyz")}))
	row, err = reloaded.getValueAppend(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("wxyz"), row[1])
}
