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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/bitmap"
)

// LoadColumnGroup rediscovers and reopens a non-index column group
// previously saved under name in dir: single-file variants are detected by
// extension, split ones are reassembled into a MultiPartStore via
// DiscoverParts, mirroring ReadonlySegment.Load's directory scan
// (spec.md §4.3).
func LoadColumnGroup(dir, name string) (ReadableStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list segment directory %q", dir)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	parts, err := DiscoverParts(names, name)
	if err != nil {
		return nil, err
	}
	if len(parts) > 0 {
		stores := make([]ReadableStore, len(parts))
		for i := range parts {
			partName := fmt.Sprintf("%s.%04d", name, i)
			store, err := loadSingleColumnGroup(dir, partName, names)
			if err != nil {
				return nil, errors.Wrapf(err, "load colgroup part %d", i)
			}
			stores[i] = store
		}
		return NewMultiPartStore(stores), nil
	}

	return loadSingleColumnGroup(dir, name, names)
}

func loadSingleColumnGroup(dir, name string, names []string) (ReadableStore, error) {
	switch {
	case hasFile(names, name+".fixlen"):
		return LoadFixedLenStore(dir, name)
	case hasFile(names, name+".zint"):
		return LoadZipIntStore(dir, name)
	case hasFile(names, name+".dictzip"):
		return LoadDictZipBlobStore(dir, name)
	case hasFile(names, name+".fastzip"):
		return LoadFastZipBlobStore(filepath.Join(dir, name+".fastzip"))
	case hasFile(names, name+".seq"):
		return LoadSeqReadAppendonlyStore(filepath.Join(dir, name+".seq"))
	case hasFile(names, name+".nlt256"):
		return LoadNestLoudsTrieBlobStore(filepath.Join(dir, name+".nlt256"), bitmap.RSClass256)
	case hasFile(names, name+".nltp256"):
		return LoadNestLoudsTrieBlobStore(filepath.Join(dir, name+".nltp256"), bitmap.RSClassPlus256)
	case hasFile(names, name+".nltp512"):
		return LoadNestLoudsTrieBlobStore(filepath.Join(dir, name+".nltp512"), bitmap.RSClassPlus512)
	default:
		return nil, errors.Wrapf(ErrUnknownColumnGroupFile, "colgroup %q in %q", name, dir)
	}
}

// LoadIndex rediscovers and reopens an index previously saved under name in
// dir. rows is the physical row count, needed by backends that don't embed
// their own row count header (FixedLenKeyIndex).
func LoadIndex(dir, name string, rows uint64) (ReadableIndex, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list segment directory %q", dir)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	switch {
	case hasFile(names, "index-"+name+".empty"):
		return EmptyIndexStore{}, nil
	case hasFile(names, "index-"+name+".bolt"):
		return OpenBoltKeyIndex(filepath.Join(dir, "index-"+name+".bolt"), rows)
	case hasFile(names, "index-"+name):
		return LoadFixedLenKeyIndexFromDir(dir, name, rows)
	default:
		return nil, errors.Wrapf(ErrUnknownColumnGroupFile, "index %q in %q", name, dir)
	}
}

func hasFile(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
