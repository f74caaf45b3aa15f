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
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

// MultiPartStore concatenates N independently-built stores behind a single
// id-offset table, used when Phase C splits a column group's rows into
// parts bounded by compressingWorkMemSize.
type MultiPartStore struct {
	parts   []ReadableStore
	offsets []uint64 // offsets[i] = first physical id served by parts[i]
}

// NewMultiPartStore wires parts (in part order) into a single store.
func NewMultiPartStore(parts []ReadableStore) *MultiPartStore {
	offsets := make([]uint64, len(parts))
	var running uint64
	for i, p := range parts {
		offsets[i] = running
		running += p.NumDataRows()
	}
	return &MultiPartStore{parts: parts, offsets: offsets}
}

func (s *MultiPartStore) Get(physical idspace.PhysicalRowID) ([]byte, error) {
	idx := sort.Search(len(s.offsets), func(i int) bool {
		return s.offsets[i] > physical
	}) - 1
	if idx < 0 || idx >= len(s.parts) {
		return nil, errors.Errorf("multipart store: physical id %d out of range", physical)
	}
	return s.parts[idx].Get(physical - s.offsets[idx])
}

func (s *MultiPartStore) NumDataRows() uint64 {
	if len(s.parts) == 0 {
		return 0
	}
	return s.offsets[len(s.offsets)-1] + s.parts[len(s.parts)-1].NumDataRows()
}

func (s *MultiPartStore) DataInflateSize() uint64 {
	var total uint64
	for _, p := range s.parts {
		total += p.DataInflateSize()
	}
	return total
}

func (s *MultiPartStore) DataStorageSize() uint64 {
	var total uint64
	for _, p := range s.parts {
		total += p.DataStorageSize()
	}
	return total
}

func (s *MultiPartStore) Kind() segmentindex.Kind { return segmentindex.KindMultiPart }

// Save writes each part under name.NNNN.<variant> so LoadColumnGroup can
// rediscover and re-assemble the parts later.
func (s *MultiPartStore) Save(dir, name string) error {
	for i, p := range s.parts {
		partName := fmt.Sprintf("%s.%04d", name, i)
		if err := p.Save(dir, partName); err != nil {
			return errors.Wrapf(err, "save multipart part %d", i)
		}
	}
	return nil
}

// partIndex parses the NNNN part index out of a colgroup-<name>.NNNN.<ext>
// file name. Returns ok=false for files that aren't part of a colgroup's
// part series (e.g. its -dict sidecar).
func partIndex(fileName, colgroupName string) (int, bool) {
	rest := strings.TrimPrefix(fileName, colgroupName+".")
	if rest == fileName {
		return 0, false
	}
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, false
	}
	numPart := rest[:dot]
	if strings.HasSuffix(numPart, "-dict") {
		return 0, false
	}
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DiscoverParts scans dir for files named colgroupName.NNNN.* and returns
// their part indices sorted, validating there are no gaps.
func DiscoverParts(entries []string, colgroupName string) ([]int, error) {
	seen := map[int]bool{}
	for _, e := range entries {
		base := filepath.Base(e)
		if n, ok := partIndex(base, colgroupName); ok {
			seen[n] = true
		}
	}
	if len(seen) == 0 {
		return nil, nil
	}

	parts := make([]int, 0, len(seen))
	for n := range seen {
		parts = append(parts, n)
	}
	sort.Ints(parts)

	for i, n := range parts {
		if n != i {
			return nil, errors.Wrapf(ErrOutOfOrderParts, "colgroup %q: missing part %04d", colgroupName, i)
		}
	}
	return parts, nil
}
