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

	"github.com/stretchr/testify/require"

	"github.com/hangzhao/terark-db/segment/colstore"
)

// rowNameSchema is a simple {id:i64, name:utf8} schema with both columns
// in a single non-index, non-updatable column group.
func rowNameSchema() TableSchema {
	return TableSchema{
		Columns: []string{"id", "name"},
		ColumnGroups: []ColumnGroupSchema{
			{Name: "row", Columns: []int{0, 1}},
		},
	}
}

// indexedRowNameSchema mirrors rowNameSchema but carries its id column as a
// separate, short fixed-length indexed group so indexSearchExactAppend has
// a real FixedLenKeyIndex to query.
func indexedRowNameSchema() TableSchema {
	return TableSchema{
		Columns: []string{"id", "name"},
		ColumnGroups: []ColumnGroupSchema{
			{Name: "id", Columns: []int{0}, IsIndex: true, Unique: true, Build: colstore.Schema{FixedLen: 1}},
			{Name: "name", Columns: []int{1}},
		},
	}
}

// newTableWithFrozenSegment builds a Table at a fresh temp directory with
// one writable slot, populated with n rows (id=i, name="r<i>") and frozen,
// ready for conversion.
func newTableWithFrozenSegment(t *testing.T, schema TableSchema, n int, opts ...TableOption) (*Table, *WritableSegment) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]TableOption{WithLogger(discardLogger())}, opts...)
	tbl, err := NewTable(dir, schema, opts...)
	require.NoError(t, err)

	ws, err := NewWritableSegment(tbl.segmentDirName("wr", 0), schema, discardLogger())
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := ws.append(Row{[]byte(fmt.Sprintf("%d", i)), []byte(fmt.Sprintf("r%d", i))})
		require.NoError(t, err)
	}
	ws.freeze()
	tbl.appendWritableSlot(ws)
	return tbl, ws
}

