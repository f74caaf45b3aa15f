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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangzhao/terark-db/bitmap"
)

func TestNestLoudsTrieBlobStoreFreshBuildServesFromResidentBlob(t *testing.T) {
	records := [][]byte{[]byte("one"), []byte(""), []byte("three records long")}
	s := NewNestLoudsTrieBlobStore(records, bitmap.RSClassPlus512)

	assert.Equal(t, uint64(len(records)), s.NumDataRows())
	for i, want := range records {
		got, err := s.Get(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.NoError(t, s.Close(), "closing a never-loaded store must be a no-op")
}

func TestNestLoudsTrieBlobStoreSaveLoadRoundTripsThroughContentReader(t *testing.T) {
	records := [][]byte{
		[]byte("alpha"),
		[]byte("beta value"),
		[]byte(""),
		[]byte("the last record"),
	}
	s := NewNestLoudsTrieBlobStore(records, bitmap.RSClassPlus256)

	dir := t.TempDir()
	require.NoError(t, s.Save(dir, "col0"))

	loaded, err := LoadNestLoudsTrieBlobStore(filepath.Join(dir, "col0.nltp256"), bitmap.RSClassPlus256)
	require.NoError(t, err)
	defer loaded.Close()

	require.Equal(t, uint64(len(records)), loaded.NumDataRows())
	for i, want := range records {
		got, err := loaded.Get(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, want, got, "record %d", i)
	}

	assert.Equal(t, s.DataInflateSize(), loaded.DataInflateSize())
}

func TestNestLoudsTrieBlobStoreGetOutOfRange(t *testing.T) {
	s := NewNestLoudsTrieBlobStore([][]byte{[]byte("x")}, bitmap.RSClass256)
	_, err := s.Get(5)
	assert.Error(t, err)
}

func TestNestLoudsTrieBlobStoreVariantSuffixMatchesClass(t *testing.T) {
	cases := []struct {
		class  bitmap.RankSelectClass
		suffix string
	}{
		{bitmap.RSClass256, ".nlt256"},
		{bitmap.RSClassPlus256, ".nltp256"},
		{bitmap.RSClassPlus512, ".nltp512"},
	}
	for _, c := range cases {
		s := NewNestLoudsTrieBlobStore([][]byte{[]byte("r")}, c.class)
		dir := t.TempDir()
		require.NoError(t, s.Save(dir, "col0"))
		_, err := LoadNestLoudsTrieBlobStore(filepath.Join(dir, "col0"+c.suffix), c.class)
		require.NoError(t, err, "expected file with suffix %s", c.suffix)
	}
}
