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
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/bitmap"
	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/contentreader"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

// NestLoudsTrieBlobStore is the one implementation backing what the source
// ships as three variants (IL / SE / SE_512), unified here into a single
// concatenated-blob store parameterized by RankSelectClass. The class only
// tags which superblock density the store was built for; this blob layout
// itself (offsets table + concatenated bytes) is shared across all three.
//
// A freshly built store keeps its blob resident (blob non-nil); a loaded
// one instead reads through a contentreader.ContentReader so a large
// on-disk trie store doesn't need its full byte range copied into the Go
// heap just to serve point reads.
type NestLoudsTrieBlobStore struct {
	rsClass bitmap.RankSelectClass
	blob    []byte
	reader  contentreader.ContentReader
	offsets []uint64 // offsets[i]..offsets[i+1] is record i's byte range
}

// NewNestLoudsTrieBlobStore concatenates records, recording a prefix-sum
// offsets table. class only affects the variant name persisted to disk.
func NewNestLoudsTrieBlobStore(records [][]byte, class bitmap.RankSelectClass) *NestLoudsTrieBlobStore {
	offsets := make([]uint64, len(records)+1)
	var total uint64
	for i, r := range records {
		offsets[i] = total
		total += uint64(len(r))
	}
	offsets[len(records)] = total

	blob := make([]byte, 0, total)
	for _, r := range records {
		blob = append(blob, r...)
	}

	return &NestLoudsTrieBlobStore{rsClass: class, blob: blob, offsets: offsets}
}

func (s *NestLoudsTrieBlobStore) Get(physical idspace.PhysicalRowID) ([]byte, error) {
	if physical+1 >= uint64(len(s.offsets)) {
		return nil, errors.Errorf("nestloudstrie store: physical id %d out of range (rows=%d)", physical, s.NumDataRows())
	}
	start, end := s.offsets[physical], s.offsets[physical+1]
	if s.reader != nil {
		v, _ := s.reader.ReadRange(start, end-start, nil)
		return v, nil
	}
	return s.blob[start:end], nil
}

// Close releases the backing mmap, if this store was opened via Load
// rather than built fresh. A no-op on a freshly built, not-yet-saved store.
func (s *NestLoudsTrieBlobStore) Close() error {
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}

func (s *NestLoudsTrieBlobStore) NumDataRows() uint64 {
	if len(s.offsets) == 0 {
		return 0
	}
	return uint64(len(s.offsets)) - 1
}

func (s *NestLoudsTrieBlobStore) blobLen() uint64 {
	if s.reader != nil {
		return s.reader.Length()
	}
	return uint64(len(s.blob))
}

func (s *NestLoudsTrieBlobStore) DataInflateSize() uint64 { return s.blobLen() }
func (s *NestLoudsTrieBlobStore) DataStorageSize() uint64 {
	return s.blobLen() + uint64(len(s.offsets))*8
}
func (s *NestLoudsTrieBlobStore) Kind() segmentindex.Kind { return segmentindex.KindNestLoudsTrie }

func (s *NestLoudsTrieBlobStore) variantSuffix() string {
	switch s.rsClass {
	case bitmap.RSClass256:
		return ".nlt256"
	case bitmap.RSClassPlus256:
		return ".nltp256"
	default:
		return ".nltp512"
	}
}

func (s *NestLoudsTrieBlobStore) Save(dir, name string) error {
	path := filepath.Join(dir, name+s.variantSuffix())
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "save nestloudstrie store %q", path)
	}
	defer f.Close()

	header := make([]byte, 8)
	binary.LittleEndian.PutUint64(header, uint64(len(s.offsets)))
	if _, err := f.Write(header); err != nil {
		return err
	}
	offsetBuf := make([]byte, len(s.offsets)*8)
	for i, off := range s.offsets {
		binary.LittleEndian.PutUint64(offsetBuf[i*8:], off)
	}
	if _, err := f.Write(offsetBuf); err != nil {
		return err
	}
	_, err = f.Write(s.blob)
	return err
}

func LoadNestLoudsTrieBlobStore(path string, class bitmap.RankSelectClass) (*NestLoudsTrieBlobStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open nestloudstrie store %q", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat nestloudstrie store %q", path)
	}

	reader := contentreader.NewPread(f, uint64(info.Size()))
	if reader.Length() < 8 {
		reader.Close()
		return nil, errors.Errorf("nestloudstrie store %q: truncated header", path)
	}

	header := make([]byte, 8)
	n64, _ := reader.ReadUint64(0, header)
	n := int(n64)
	offEnd := uint64(8 + n*8)
	if reader.Length() < offEnd {
		reader.Close()
		return nil, errors.Errorf("nestloudstrie store %q: truncated offsets table", path)
	}

	offsets := make([]uint64, n)
	tmp := make([]byte, 8)
	for i := 0; i < n; i++ {
		offsets[i], _ = reader.ReadUint64(uint64(8+i*8), tmp)
	}

	blobReader, err := reader.NewWithOffsetStart(offEnd)
	if err != nil {
		reader.Close()
		return nil, errors.Wrapf(err, "slice nestloudstrie blob %q", path)
	}

	return &NestLoudsTrieBlobStore{rsClass: class, reader: blobReader, offsets: offsets}, nil
}
