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
	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/segment/colstore"
)

// Row is a single record projected into row-schema column order. The row
// wire format at the table level is out of scope; this is only the
// in-process representation the segment operations move around.
type Row [][]byte

// ColumnGroupSchema declares one column group: the row-schema columns it
// carries and the store-build hint the registry uses for it.
type ColumnGroupSchema struct {
	Name             string
	Columns          []int // indices into TableSchema.Columns
	IsIndex          bool
	Unique           bool
	InPlaceUpdatable bool
	Build            colstore.Schema
}

// TableSchema is the minimal row/column-group declaration the segment
// machinery needs: column names in row order, and how they're partitioned
// into column groups. The schema parser that produces this from a user
// facing DDL is out of scope (spec.md §1); callers construct a TableSchema
// directly or via tests.
type TableSchema struct {
	Columns      []string
	ColumnGroups []ColumnGroupSchema
}

// Project extracts a column group's sub-row from a full row, concatenating
// its declared columns with a length-prefix per column so ProjectBack can
// invert it losslessly for variable-length columns.
func (g ColumnGroupSchema) Project(row Row) []byte {
	if len(g.Columns) == 1 {
		return row[g.Columns[0]]
	}

	out := make([]byte, 0, 32)
	for _, c := range g.Columns {
		col := row[c]
		var lenBuf [4]byte
		putUint32(lenBuf[:], uint32(len(col)))
		out = append(out, lenBuf[:]...)
		out = append(out, col...)
	}
	return out
}

// ProjectBack splits a column group's stored bytes back into its
// constituent columns, inverting Project.
func (g ColumnGroupSchema) ProjectBack(data []byte) ([][]byte, error) {
	if len(g.Columns) == 1 {
		return [][]byte{data}, nil
	}

	out := make([][]byte, 0, len(g.Columns))
	pos := 0
	for range g.Columns {
		if pos+4 > len(data) {
			return nil, errors.New("colgroup projection: truncated length prefix")
		}
		l := int(getUint32(data[pos : pos+4]))
		pos += 4
		if pos+l > len(data) {
			return nil, errors.New("colgroup projection: truncated column value")
		}
		out = append(out, data[pos:pos+l])
		pos += l
	}
	return out, nil
}

// WrtSchema returns the subset of TableSchema.ColumnGroups that are *not*
// in-place updatable: these are the groups projected into the writable
// segment's row store, per spec.md §4.2.
func (s TableSchema) WrtSchema() []ColumnGroupSchema {
	var out []ColumnGroupSchema
	for _, g := range s.ColumnGroups {
		if !g.InPlaceUpdatable {
			out = append(out, g)
		}
	}
	return out
}

// UpdatableGroups returns the in-place updatable column groups.
func (s TableSchema) UpdatableGroups() []ColumnGroupSchema {
	var out []ColumnGroupSchema
	for _, g := range s.ColumnGroups {
		if g.InPlaceUpdatable {
			out = append(out, g)
		}
	}
	return out
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
