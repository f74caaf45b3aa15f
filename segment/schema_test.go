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
)

func TestColumnGroupSchemaSingleColumnProjectIsIdentity(t *testing.T) {
	g := ColumnGroupSchema{Columns: []int{1}}
	row := Row{[]byte("a"), []byte("b"), []byte("c")}

	projected := g.Project(row)
	assert.Equal(t, []byte("b"), projected)

	back, err := g.ProjectBack(projected)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("b")}, back)
}

func TestColumnGroupSchemaMultiColumnProjectRoundTrip(t *testing.T) {
	g := ColumnGroupSchema{Columns: []int{0, 2}}
	row := Row{[]byte("first"), []byte("skipped"), []byte(""), []byte("fourth")}

	projected := g.Project(row)
	back, err := g.ProjectBack(projected)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, []byte("first"), back[0])
	assert.Equal(t, []byte(""), back[1])
}

func TestColumnGroupSchemaProjectBackRejectsTruncatedData(t *testing.T) {
	g := ColumnGroupSchema{Columns: []int{0, 1}}

	_, err := g.ProjectBack([]byte{1, 0, 0}) // truncated length prefix
	assert.Error(t, err)

	_, err = g.ProjectBack([]byte{5, 0, 0, 0, 'a'}) // length says 5, only 1 byte follows
	assert.Error(t, err)
}

func TestTableSchemaWrtAndUpdatableGroupsPartition(t *testing.T) {
	sc := TableSchema{
		Columns: []string{"id", "vector", "payload"},
		ColumnGroups: []ColumnGroupSchema{
			{Name: "id", Columns: []int{0}, InPlaceUpdatable: false},
			{Name: "vector", Columns: []int{1}, InPlaceUpdatable: true},
			{Name: "payload", Columns: []int{2}, InPlaceUpdatable: false},
		},
	}

	wrt := sc.WrtSchema()
	require.Len(t, wrt, 2)
	assert.Equal(t, "id", wrt[0].Name)
	assert.Equal(t, "payload", wrt[1].Name)

	updatable := sc.UpdatableGroups()
	require.Len(t, updatable, 1)
	assert.Equal(t, "vector", updatable[0].Name)
}
