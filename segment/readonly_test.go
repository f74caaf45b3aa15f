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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangzhao/terark-db/bitmap"
	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/colstore"
)

func scoredSchema() TableSchema {
	return TableSchema{
		Columns: []string{"id", "name", "score"},
		ColumnGroups: []ColumnGroupSchema{
			{Name: "id", Columns: []int{0}, IsIndex: true, Unique: true, Build: colstore.Schema{FixedLen: 1}},
			{Name: "name", Columns: []int{1}},
			{Name: "score", Columns: []int{2}, InPlaceUpdatable: true,
				Build: colstore.Schema{FixedLen: 4, UseFixedLenStore: true}},
		},
	}
}

func buildScoredReadonlySegment(t *testing.T, n int) (*Table, *ReadonlySegment) {
	t.Helper()
	schema := scoredSchema()
	dir := t.TempDir()
	tbl, err := NewTable(dir, schema, WithLogger(discardLogger()))
	require.NoError(t, err)

	ws, err := NewWritableSegment(tbl.segmentDirName("wr", 0), schema, discardLogger())
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := ws.append(Row{[]byte{byte(i)}, []byte("name"), []byte{0, 0, 0, byte(i)}})
		require.NoError(t, err)
	}
	ws.freeze()
	tbl.appendWritableSlot(ws)

	require.NoError(t, NewConverter(tbl, 0).Convert())
	return tbl, tbl.segmentAt(0).readonly
}

func TestReadonlySegmentGetValueAppendReturnsErrDeletedForRemovedRow(t *testing.T) {
	_, rs := buildScoredReadonlySegment(t, 5)

	require.NoError(t, rs.remove(2))
	_, err := rs.getValueAppend(2)
	assert.ErrorIs(t, err, ErrDeleted)

	row, err := rs.getValueAppend(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("name"), row[1])
}

func TestReadonlySegmentRemoveIsIdempotent(t *testing.T) {
	_, rs := buildScoredReadonlySegment(t, 3)

	require.NoError(t, rs.remove(0))
	popcountAfterFirst := rs.isDel.Popcount()
	require.NoError(t, rs.remove(0))
	assert.Equal(t, popcountAfterFirst, rs.isDel.Popcount())
}

func TestReadonlySegmentUpdateSplicesIntoFixedLenStore(t *testing.T) {
	_, rs := buildScoredReadonlySegment(t, 3)

	require.NoError(t, rs.update(1, Row{[]byte{1}, []byte("name"), []byte{0, 0, 1, 0}}))
	row, err := rs.getValueAppend(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 1, 0}, row[2])
}

func TestReadonlySegmentIndexSearchExactAppend(t *testing.T) {
	_, rs := buildScoredReadonlySegment(t, 5)
	require.NoError(t, rs.remove(2))

	got, err := rs.indexSearchExactAppend("id", []byte{3}, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, idspace.LogicalRowID(3), got[0])

	got, err = rs.indexSearchExactAppend("id", []byte{2}, true)
	require.NoError(t, err)
	assert.Empty(t, got, "a deleted row must not be returned by index search")

	_, err = rs.indexSearchExactAppend("missing", []byte{0}, true)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReadonlySegmentSaveLoadRoundTrip(t *testing.T) {
	tbl, rs := buildScoredReadonlySegment(t, 4)
	require.NoError(t, rs.remove(1))

	reloaded, err := Load(rs.dir, scoredSchema(), discardLogger(), bitmap.DefaultRankSelectClass, true)
	require.NoError(t, err)

	row, err := reloaded.getValueAppend(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("name"), row[1])

	_, err = reloaded.getValueAppend(1)
	assert.ErrorIs(t, err, ErrDeleted)

	assert.Equal(t, tbl.schema.Columns, reloaded.schema.Columns)
}
