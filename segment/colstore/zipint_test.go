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

package colstore

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getInt64(t *testing.T, s *ZipIntStore, physical uint64) int64 {
	t.Helper()
	b, err := s.Get(physical)
	require.NoError(t, err)
	return int64(binary.LittleEndian.Uint64(b))
}

func TestZipIntStorePacksAndRoundTrips(t *testing.T) {
	values := []int64{100, 105, 99, 200, 100, 100}
	s, err := NewZipIntStore(values)
	require.NoError(t, err)

	assert.Equal(t, uint64(len(values)), s.NumDataRows())
	for i, want := range values {
		assert.Equal(t, want, getInt64(t, s, uint64(i)))
	}

	_, err = s.Get(uint64(len(values)))
	assert.Error(t, err)
}

func TestZipIntStoreNegativeValues(t *testing.T) {
	values := []int64{-50, -10, 0, 10, 50}
	s, err := NewZipIntStore(values)
	require.NoError(t, err)

	for i, want := range values {
		assert.Equal(t, want, getInt64(t, s, uint64(i)))
	}
}

func TestZipIntStoreConstantColumnUsesOneBit(t *testing.T) {
	values := []int64{7, 7, 7, 7}
	s, err := NewZipIntStore(values)
	require.NoError(t, err)
	assert.Equal(t, 1, s.bitWidth, "a constant column should still pack (zero span rounds up to width 1)")
	for i := range values {
		assert.Equal(t, int64(7), getInt64(t, s, uint64(i)))
	}
}

func TestZipIntStoreSaveLoadRoundTrip(t *testing.T) {
	values := []int64{-1000, 0, 1000, 500000, -500000}
	s, err := NewZipIntStore(values)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, s.Save(dir, "col0"))

	loaded, err := LoadZipIntStore(dir, "col0")
	require.NoError(t, err)

	assert.Equal(t, uint64(len(values)), loaded.NumDataRows())
	for i, want := range values {
		assert.Equal(t, want, getInt64(t, loaded, uint64(i)))
	}
}

func TestZipIntStoreEmpty(t *testing.T) {
	s, err := NewZipIntStore(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), s.NumDataRows())
}
