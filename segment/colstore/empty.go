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
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

// EmptyIndexStore stands in for an index whose source colgroup has no live
// rows left (purgeIndex's "|IsDel| == delcnt" branch): every lookup misses,
// nothing is ever stored on disk beyond a marker file.
type EmptyIndexStore struct{}

func (EmptyIndexStore) Get(idspace.PhysicalRowID) ([]byte, error) {
	return nil, errors.New("emptyindexstore: no rows")
}

func (EmptyIndexStore) SeekLowerBound([]byte) ([]idspace.PhysicalRowID, error) { return nil, nil }
func (s EmptyIndexStore) AsReadableStore() ReadableStore                      { return s }
func (EmptyIndexStore) NumDataRows() uint64                                   { return 0 }
func (EmptyIndexStore) DataInflateSize() uint64                               { return 0 }
func (EmptyIndexStore) DataStorageSize() uint64                               { return 0 }
func (EmptyIndexStore) Kind() segmentindex.Kind                               { return segmentindex.KindEmpty }

func (EmptyIndexStore) Save(dir, name string) error {
	path := filepath.Join(dir, "index-"+name+".empty")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "save emptyindexstore marker %q", path)
	}
	return f.Close()
}
