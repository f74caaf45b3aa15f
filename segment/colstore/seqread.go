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

	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

// SeqReadAppendonlyStore is the forward-only, append-only store Phase A
// streams rows into when a column group has no fixed row length: records
// are appended in physical-id order and only ever read back sequentially
// or by direct offset once closed for writing.
type SeqReadAppendonlyStore struct {
	records [][]byte
	inflate uint64
}

func NewSeqReadAppendonlyStore() *SeqReadAppendonlyStore {
	return &SeqReadAppendonlyStore{}
}

// Append adds one record, returning its physical id.
func (s *SeqReadAppendonlyStore) Append(record []byte) idspace.PhysicalRowID {
	id := idspace.PhysicalRowID(len(s.records))
	s.records = append(s.records, record)
	s.inflate += uint64(len(record))
	return id
}

// Records exposes the accumulated records in append order, for
// TempFileList.collectData and buildStore to consume without copying.
func (s *SeqReadAppendonlyStore) Records() [][]byte { return s.records }

func (s *SeqReadAppendonlyStore) Get(physical idspace.PhysicalRowID) ([]byte, error) {
	if physical >= uint64(len(s.records)) {
		return nil, errors.Errorf("seqread store: physical id %d out of range (rows=%d)", physical, len(s.records))
	}
	return s.records[physical], nil
}

func (s *SeqReadAppendonlyStore) NumDataRows() uint64     { return uint64(len(s.records)) }
func (s *SeqReadAppendonlyStore) DataInflateSize() uint64 { return s.inflate }

func (s *SeqReadAppendonlyStore) DataStorageSize() uint64 {
	return s.inflate + uint64(len(s.records))*8
}

func (s *SeqReadAppendonlyStore) Kind() segmentindex.Kind { return segmentindex.KindSeqReadAppendonly }

func (s *SeqReadAppendonlyStore) Save(dir, name string) error {
	path := filepath.Join(dir, name+".seq")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "save seqread store %q", path)
	}
	defer f.Close()

	header := make([]byte, 8)
	binary.LittleEndian.PutUint64(header, uint64(len(s.records)))
	if _, err := f.Write(header); err != nil {
		return err
	}
	for _, r := range s.records {
		lenBuf := make([]byte, 8)
		binary.LittleEndian.PutUint64(lenBuf, uint64(len(r)))
		if _, err := f.Write(lenBuf); err != nil {
			return err
		}
		if _, err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func LoadSeqReadAppendonlyStore(path string) (*SeqReadAppendonlyStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load seqread store %q", path)
	}
	if len(data) < 8 {
		return nil, errors.Errorf("seqread store %q: truncated header", path)
	}
	n := int(binary.LittleEndian.Uint64(data[0:8]))

	pos := 8
	out := &SeqReadAppendonlyStore{records: make([][]byte, n)}
	for i := 0; i < n; i++ {
		if pos+8 > len(data) {
			return nil, errors.Errorf("seqread store %q: truncated record %d length", path, i)
		}
		l := int(binary.LittleEndian.Uint64(data[pos:]))
		pos += 8
		if pos+l > len(data) {
			return nil, errors.Errorf("seqread store %q: truncated record %d body", path, i)
		}
		out.records[i] = data[pos : pos+l]
		out.inflate += uint64(l)
		pos += l
	}
	return out, nil
}
