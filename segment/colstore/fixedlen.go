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

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

// FixedLenStore is a dense byte array of fixedLen*rows bytes, mmap-backed
// once loaded, supporting in-place update of a single row's bytes.
type FixedLenStore struct {
	fixedLen int
	rows     uint64
	data     []byte // in-memory while building; mmap'd once loaded
	mm       mmap.MMap
	file     *os.File
}

// NewFixedLenStoreFromRows builds a FixedLenStore in memory from rows whose
// byte length must all equal fixedLen. Used by Phase A/C of the converter
// and by purgeColgroup's FixedLenStore branch.
func NewFixedLenStoreFromRows(fixedLen int, rows [][]byte) (*FixedLenStore, error) {
	buf := make([]byte, 0, fixedLen*len(rows))
	for i, r := range rows {
		if len(r) != fixedLen {
			return nil, errors.Errorf("fixedlen store: row %d has length %d, want %d", i, len(r), fixedLen)
		}
		buf = append(buf, r...)
	}
	return &FixedLenStore{fixedLen: fixedLen, rows: uint64(len(rows)), data: buf}, nil
}

func (s *FixedLenStore) Get(physical idspace.PhysicalRowID) ([]byte, error) {
	if physical >= s.rows {
		return nil, errors.Errorf("fixedlen store: physical id %d out of range (rows=%d)", physical, s.rows)
	}
	buf := s.bytes()
	start := int(physical) * s.fixedLen
	return buf[start : start+s.fixedLen], nil
}

func (s *FixedLenStore) bytes() []byte {
	if s.mm != nil {
		return s.mm
	}
	return s.data
}

func (s *FixedLenStore) NumDataRows() uint64       { return s.rows }
func (s *FixedLenStore) DataInflateSize() uint64   { return s.rows * uint64(s.fixedLen) }
func (s *FixedLenStore) DataStorageSize() uint64   { return s.rows * uint64(s.fixedLen) }
func (s *FixedLenStore) Kind() segmentindex.Kind   { return segmentindex.KindFixedLen }
func (s *FixedLenStore) RecordsBasePtr() []byte    { return s.bytes() }
func (s *FixedLenStore) FixedRowLen() int          { return s.fixedLen }

// SetAt overwrites one row's bytes in place. Only valid once the store is
// mmap-backed (i.e. after Load), matching the spec's "in-place updatable
// colgroup" semantics: only loaded, on-disk fixed-length stores can be
// updated without a rewrite.
func (s *FixedLenStore) SetAt(physical idspace.PhysicalRowID, value []byte) error {
	if len(value) != s.fixedLen {
		return errors.Errorf("fixedlen store: set value length %d, want %d", len(value), s.fixedLen)
	}
	if physical >= s.rows {
		return errors.Errorf("fixedlen store: physical id %d out of range (rows=%d)", physical, s.rows)
	}
	start := int(physical) * s.fixedLen
	copy(s.bytes()[start:start+s.fixedLen], value)
	return nil
}

func (s *FixedLenStore) Save(dir, name string) error {
	path := filepath.Join(dir, name+".fixlen")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "save fixedlen store %q", path)
	}
	defer f.Close()

	header := make([]byte, 16)
	leUint64(header[0:8], s.rows)
	leUint64(header[8:16], uint64(s.fixedLen))
	if _, err := f.Write(header); err != nil {
		return errors.Wrap(err, "write fixedlen header")
	}
	if _, err := f.Write(s.bytes()); err != nil {
		return errors.Wrap(err, "write fixedlen records")
	}
	return nil
}

// LoadFixedLenStore mmaps an on-disk .fixlen file, returning an
// InPlaceUpdatable store over it.
func LoadFixedLenStore(dir, name string) (*FixedLenStore, error) {
	path := filepath.Join(dir, name+".fixlen")
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "load fixedlen store %q", path)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap fixedlen store %q", path)
	}
	if len(m) < 16 {
		m.Unmap()
		f.Close()
		return nil, errors.Errorf("fixedlen store %q: truncated header", path)
	}

	rows := leGetUint64(m[0:8])
	fixedLen := int(leGetUint64(m[8:16]))

	return &FixedLenStore{fixedLen: fixedLen, rows: rows, mm: m[16:], file: f}, nil
}

func (s *FixedLenStore) Close() error {
	if s.mm != nil {
		if err := s.mm.Unmap(); err != nil {
			return err
		}
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func leUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func leGetUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
