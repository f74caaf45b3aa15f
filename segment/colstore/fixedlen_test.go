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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedLenStoreGetRejectsMismatchedRows(t *testing.T) {
	_, err := NewFixedLenStoreFromRows(4, [][]byte{[]byte("abcd"), []byte("xy")})
	assert.Error(t, err)
}

func TestFixedLenStoreGetOutOfRange(t *testing.T) {
	s, err := NewFixedLenStoreFromRows(4, [][]byte{[]byte("abcd")})
	require.NoError(t, err)

	_, err = s.Get(1)
	assert.Error(t, err)
}

func TestFixedLenStoreSaveLoadAndInPlaceUpdate(t *testing.T) {
	rows := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")}
	s, err := NewFixedLenStoreFromRows(4, rows)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, s.Save(dir, "col0"))

	loaded, err := LoadFixedLenStore(dir, "col0")
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, uint64(3), loaded.NumDataRows())
	for i, want := range rows {
		got, err := loaded.Get(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// in-place update only works post-load, per the InPlaceUpdatable contract.
	require.NoError(t, loaded.SetAt(1, []byte("ZZZZ")))
	got, err := loaded.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("ZZZZ"), got)

	err = loaded.SetAt(1, []byte("short"))
	assert.Error(t, err, "SetAt must reject a value of the wrong fixed length")
}

func TestFixedLenStoreSatisfiesInPlaceUpdatable(t *testing.T) {
	var _ InPlaceUpdatable = (*FixedLenStore)(nil)
}
