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

package updatebits

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitsSetContainsRemove(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.Cardinality())

	b.Set(3)
	b.Set(7)
	b.Set(3) // idempotent

	assert.True(t, b.Contains(3))
	assert.True(t, b.Contains(7))
	assert.False(t, b.Contains(4))
	assert.Equal(t, 2, b.Cardinality())

	b.Remove(3)
	assert.False(t, b.Contains(3))
	assert.Equal(t, 1, b.Cardinality())
}

func TestFromIDs(t *testing.T) {
	b := FromIDs([]uint32{1, 2, 100})
	assert.Equal(t, 3, b.Cardinality())
	assert.True(t, b.Contains(100))

	got := b.ToArray()
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, []uint64{1, 2, 100}, got)
}

func TestBitsCloneIsIndependent(t *testing.T) {
	b := New()
	b.Set(5)

	c := b.Clone()
	c.Set(6)

	assert.False(t, b.Contains(6), "mutating the clone must not affect the original")
	assert.True(t, c.Contains(5))
	assert.True(t, c.Contains(6))
}

func TestBitsMarshalBinaryRoundTrip(t *testing.T) {
	b := New()
	b.Set(1)
	b.Set(1000)
	b.Set(1 << 20)

	data := b.MarshalBinary()
	require := assert.New(t)
	require.NotEmpty(data)

	reloaded := FromBinary(data)
	require.Equal(b.Cardinality(), reloaded.Cardinality())
	for _, id := range []uint64{1, 1000, 1 << 20} {
		require.True(reloaded.Contains(id))
	}
	require.False(reloaded.Contains(2))
}
