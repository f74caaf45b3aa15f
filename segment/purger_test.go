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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangzhao/terark-db/bitmap"
)

// buildConvertedSegmentWithPattern builds an 8-row readonly segment and
// deletes the rows whose logical id bit is set in pattern (bit i ==
// (pattern>>i)&1), converting once to produce a segment with a populated
// IsPurged.rs sidecar (delcnt > 0).
func buildConvertedSegmentWithPattern(t *testing.T, pattern uint8) (*Table, *ReadonlySegment) {
	t.Helper()
	tbl, ws := newTableWithFrozenSegment(t, rowNameSchema(), 8)
	for i := 0; i < 8; i++ {
		if pattern&(1<<uint(i)) != 0 {
			require.NoError(t, ws.remove(uint64(i)))
		}
	}
	require.NoError(t, NewConverter(tbl, 0).Convert())
	return tbl, tbl.segmentAt(0).readonly
}

// scenario 4: purge without purge-bits. IsDel = 1010_1100 reading bit0 first
// (rows 0,2,4,5 deleted, delcnt=4), purge the segment, then reload with
// withPurgeBits=false to exercise compactIDSpace.
func TestPurgeWithoutPurgeBitsCompactsIDSpace(t *testing.T) {
	const pattern uint8 = 0b00110101 // bits 0,2,4,5 set
	tbl, rs := buildConvertedSegmentWithPattern(t, pattern)
	require.Equal(t, uint64(4), rs.isDel.Popcount())

	require.NoError(t, NewPurger(tbl, 0).Purge())

	purged := tbl.segmentAt(0).readonly
	require.NotNil(t, purged)
	require.NotNil(t, purged.isPurged, "a purge with delcnt>0 must leave an IsPurged.rs sidecar")
	assert.Equal(t, uint64(4), purged.isPurged.Popcount())
	_, err := os.Stat(filepath.Join(purged.dir, isPurgedFileName))
	require.NoError(t, err)

	// Purge's own internal reload always hardcodes withPurgeBits=true and
	// never consults t.withPurgeBits; a direct Load with withPurgeBits=false
	// is what actually applies the compaction policy.
	reloaded, err := Load(purged.dir, rowNameSchema(), discardLogger(), bitmap.DefaultRankSelectClass, false)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), reloaded.isDel.Len(), "surviving-row count after compaction")
	for i := uint64(0); i < reloaded.isDel.Len(); i++ {
		assert.False(t, reloaded.isDel.Get(i), "logical id %d", i)
	}
	assert.Nil(t, reloaded.isPurged, "IsPurged.rs must be gone after compaction")

	_, err = os.Stat(filepath.Join(purged.dir, isPurgedFileName))
	assert.True(t, os.IsNotExist(err), "IsPurged.rs file must be removed from disk")
	_, err = os.Stat(filepath.Join(purged.dir, isDelFileName+".backup"))
	assert.True(t, os.IsNotExist(err), "compaction backup file must be removed on success")
}

func TestPurgeOfAllSurvivingSegmentLeavesNoPurgeBits(t *testing.T) {
	tbl, rs := buildConvertedSegmentWithPattern(t, 0)
	require.Equal(t, uint64(0), rs.isDel.Popcount())

	require.NoError(t, NewPurger(tbl, 0).Purge())

	purged := tbl.segmentAt(0).readonly
	require.NotNil(t, purged)
	assert.Nil(t, purged.isPurged, "a no-op purge (delcnt=0) must not fabricate an IsPurged.rs")
	assert.Equal(t, uint64(8), purged.numDataRows())
}

func TestRecoverInterruptedIDSpaceCompactionRestoresBackup(t *testing.T) {
	dir := t.TempDir()
	isDel, err := bitmap.Create(filepath.Join(dir, isDelFileName))
	require.NoError(t, err)
	require.NoError(t, isDel.Push(true))
	require.NoError(t, isDel.Push(false))
	require.NoError(t, isDel.Flush())
	require.NoError(t, isDel.Close())

	orig, err := os.ReadFile(filepath.Join(dir, isDelFileName))
	require.NoError(t, err)
	require.NoError(t, os.Rename(filepath.Join(dir, isDelFileName), filepath.Join(dir, isDelFileName+".backup")))
	// Simulate the half-swapped state: a partially written (or missing) new
	// IsDel file sits where the backup's rename target should land.
	require.NoError(t, os.WriteFile(filepath.Join(dir, isDelFileName), []byte("garbage"), 0o644))

	require.NoError(t, recoverInterruptedIDSpaceCompaction(dir))

	restored, err := os.ReadFile(filepath.Join(dir, isDelFileName))
	require.NoError(t, err)
	assert.Equal(t, orig, restored)
	_, err = os.Stat(filepath.Join(dir, isDelFileName+".backup"))
	assert.True(t, os.IsNotExist(err))
}
