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

package idspace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangzhao/terark-db/bitmap"
)

func TestTranslatorIdentityWhenNotPurged(t *testing.T) {
	tr := NewTranslator(nil)

	phys, err := tr.PhysicalID(7)
	require.NoError(t, err)
	assert.Equal(t, LogicalRowID(7), phys)

	logical, err := tr.LogicalID(7)
	require.NoError(t, err)
	assert.Equal(t, PhysicalRowID(7), logical)
}

func TestTranslatorWithPurgeBitmap(t *testing.T) {
	// IsPurged = 1010_1100 (8 rows): logical rows 0,2,4,5 were purged away;
	// survivors (physical rows 0..3) are logical 1,3,6,7 in order.
	path := filepath.Join(t.TempDir(), "IsPurged.rs")
	bm, err := bitmap.Create(path)
	require.NoError(t, err)
	defer bm.Close()

	purged := map[int]bool{0: true, 2: true, 4: true, 5: true}
	for i := 0; i < 8; i++ {
		require.NoError(t, bm.Push(purged[i]))
	}

	rs := bitmap.Build(bm, bitmap.DefaultRankSelectClass)
	tr := NewTranslator(rs)

	cases := []struct {
		logical LogicalRowID
		physical PhysicalRowID
	}{
		{1, 0},
		{3, 1},
		{6, 2},
		{7, 3},
	}
	for _, c := range cases {
		phys, err := tr.PhysicalID(c.logical)
		require.NoError(t, err)
		assert.Equal(t, c.physical, phys, "logical %d", c.logical)

		logical, err := tr.LogicalID(c.physical)
		require.NoError(t, err)
		assert.Equal(t, c.logical, logical, "physical %d", c.physical)
	}

	_, err = tr.LogicalID(4)
	assert.Error(t, err, "only 4 rows survive, physical id 4 is out of range")
}

func TestIsPurged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "IsPurged")
	bm, err := bitmap.Create(path)
	require.NoError(t, err)
	defer bm.Close()

	require.NoError(t, bm.Push(true))
	require.NoError(t, bm.Push(false))

	assert.True(t, IsPurged(bm, 0))
	assert.False(t, IsPurged(bm, 1))
	assert.False(t, IsPurged(bm, 99), "out of range logical id is never purged")
	assert.False(t, IsPurged(nil, 0), "nil bitmap means the segment was never purged")
}
