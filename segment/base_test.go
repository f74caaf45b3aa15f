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
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangzhao/terark-db/bitmap"
	"github.com/hangzhao/terark-db/idspace"
)

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSegmentBasePhysicRowsFallsBackToNumDataRowsWithoutPurgeRS(t *testing.T) {
	b := newSegmentBase(t.TempDir(), TableSchema{}, discardLogger())
	isDel, err := bitmap.Create(filepath.Join(t.TempDir(), "IsDel"))
	require.NoError(t, err)
	defer isDel.Close()
	for i := 0; i < 5; i++ {
		require.NoError(t, isDel.Push(false))
	}
	b.isDel = isDel

	assert.Equal(t, uint64(5), b.numDataRows())
	assert.Equal(t, uint64(5), b.physicRows())
}

func TestSegmentBasePhysicalIDLogicalIDOutOfRange(t *testing.T) {
	b := newSegmentBase(t.TempDir(), TableSchema{}, discardLogger())
	isDel, err := bitmap.Create(filepath.Join(t.TempDir(), "IsDel"))
	require.NoError(t, err)
	defer isDel.Close()
	require.NoError(t, isDel.Push(false))
	require.NoError(t, isDel.Push(false))
	b.isDel = isDel

	_, err = b.physicalID(5)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = b.logicalID(5)
	assert.ErrorIs(t, err, ErrOutOfRange)

	phys, err := b.physicalID(1)
	require.NoError(t, err)
	assert.Equal(t, idspace.PhysicalRowID(1), phys)
}

func TestSegmentBaseAddToUpdateListEscalatesToBitmapPastThreshold(t *testing.T) {
	b := newSegmentBase(t.TempDir(), TableSchema{}, discardLogger())
	isDel, err := bitmap.Create(filepath.Join(t.TempDir(), "IsDel"))
	require.NoError(t, err)
	defer isDel.Close()
	// 256 rows -> threshold is rows/256 = 1 sparse entry before escalation.
	for i := 0; i < 256; i++ {
		require.NoError(t, isDel.Push(false))
	}
	b.isDel = isDel
	b.bookUpdates = true

	require.NoError(t, b.addToUpdateList(10))
	assert.Nil(t, b.updateBits)
	assert.Len(t, b.updateList, 1)

	require.NoError(t, b.addToUpdateList(20))
	require.NoError(t, b.addToUpdateList(30))
	assert.NotNil(t, b.updateBits, "sparse list should have escalated to a bitmap")
	assert.Nil(t, b.updateList)

	ids := b.drainUpdates()
	assert.Equal(t, []idspace.LogicalRowID{10, 20, 30}, ids)
}

func TestSegmentBaseAddToUpdateListNoOpWhenNotBooking(t *testing.T) {
	b := newSegmentBase(t.TempDir(), TableSchema{}, discardLogger())
	require.NoError(t, b.addToUpdateList(7))
	assert.Empty(t, b.updateList)
	assert.Nil(t, b.updateBits)
}

func TestSegmentBaseDrainUpdatesDedupsAndSorts(t *testing.T) {
	b := newSegmentBase(t.TempDir(), TableSchema{}, discardLogger())
	b.bookUpdates = true
	require.NoError(t, b.addToUpdateList(5))
	require.NoError(t, b.addToUpdateList(1))
	require.NoError(t, b.addToUpdateList(5))
	require.NoError(t, b.addToUpdateList(3))

	ids := b.drainUpdates()
	assert.Equal(t, []idspace.LogicalRowID{1, 3, 5}, ids)

	// a second drain with nothing new returns empty.
	assert.Empty(t, b.drainUpdates())
}
