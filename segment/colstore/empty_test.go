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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyIndexStoreAlwaysMisses(t *testing.T) {
	var s EmptyIndexStore

	_, err := s.Get(0)
	assert.Error(t, err)

	ids, err := s.SeekLowerBound([]byte("anything"))
	require.NoError(t, err)
	assert.Nil(t, ids)

	assert.Equal(t, uint64(0), s.NumDataRows())
	assert.Equal(t, uint64(0), s.DataInflateSize())
	assert.Equal(t, uint64(0), s.DataStorageSize())
}

func TestEmptyIndexStoreSavesMarkerFile(t *testing.T) {
	var s EmptyIndexStore
	dir := t.TempDir()
	require.NoError(t, s.Save(dir, "col0"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Contains(t, names, "index-col0.empty")
}
