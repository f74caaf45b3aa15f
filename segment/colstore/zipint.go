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
	"math/bits"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

// ZipIntStore packs a column of int64 values using a min-value offset and
// the minimum bit width that covers the observed range. No library in the
// pack targets bit-packed integer columns specifically (see DESIGN.md); the
// packing arithmetic below is the one piece of this module built directly
// against the standard library.
type ZipIntStore struct {
	min      int64
	bitWidth int
	rows     uint64
	packed   []byte
}

// NewZipIntStore packs values. Any int64 range fits in 64 bits, so the
// returned error is always nil; the error result is kept for symmetry with
// the other fallible constructors.
func NewZipIntStore(values []int64) (*ZipIntStore, error) {
	if len(values) == 0 {
		return &ZipIntStore{}, nil
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	span := uint64(max - min)
	width := bits.Len64(span)
	if width == 0 {
		width = 1
	}

	packed := make([]byte, (uint64(width)*uint64(len(values))+7)/8)
	for i, v := range values {
		writeBits(packed, uint64(i)*uint64(width), uint64(v-min), width)
	}

	return &ZipIntStore{min: min, bitWidth: width, rows: uint64(len(values)), packed: packed}, nil
}

func writeBits(buf []byte, bitOffset uint64, value uint64, width int) {
	for b := 0; b < width; b++ {
		if value&(1<<uint(b)) != 0 {
			pos := bitOffset + uint64(b)
			buf[pos/8] |= 1 << (pos % 8)
		}
	}
}

func readBits(buf []byte, bitOffset uint64, width int) uint64 {
	var v uint64
	for b := 0; b < width; b++ {
		pos := bitOffset + uint64(b)
		if buf[pos/8]&(1<<(pos%8)) != 0 {
			v |= 1 << uint(b)
		}
	}
	return v
}

func (s *ZipIntStore) Get(physical idspace.PhysicalRowID) ([]byte, error) {
	if physical >= s.rows {
		return nil, errors.Errorf("zipint store: physical id %d out of range (rows=%d)", physical, s.rows)
	}
	raw := readBits(s.packed, physical*uint64(s.bitWidth), s.bitWidth)
	v := s.min + int64(raw)
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, uint64(v))
	return out, nil
}

func (s *ZipIntStore) NumDataRows() uint64     { return s.rows }
func (s *ZipIntStore) DataInflateSize() uint64 { return s.rows * 8 }
func (s *ZipIntStore) DataStorageSize() uint64 { return uint64(len(s.packed)) + 16 }
func (s *ZipIntStore) Kind() segmentindex.Kind { return segmentindex.KindZipInt }

func (s *ZipIntStore) Save(dir, name string) error {
	path := filepath.Join(dir, name+".zint")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "save zipint store %q", path)
	}
	defer f.Close()

	header := make([]byte, 24)
	binary.LittleEndian.PutUint64(header[0:8], s.rows)
	binary.LittleEndian.PutUint64(header[8:16], uint64(s.min))
	binary.LittleEndian.PutUint64(header[16:24], uint64(s.bitWidth))
	if _, err := f.Write(header); err != nil {
		return err
	}
	_, err = f.Write(s.packed)
	return err
}

func LoadZipIntStore(dir, name string) (*ZipIntStore, error) {
	path := filepath.Join(dir, name+".zint")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load zipint store %q", path)
	}
	if len(data) < 24 {
		return nil, errors.Errorf("zipint store %q: truncated header", path)
	}

	rows := binary.LittleEndian.Uint64(data[0:8])
	min := int64(binary.LittleEndian.Uint64(data[8:16]))
	width := int(binary.LittleEndian.Uint64(data[16:24]))

	return &ZipIntStore{min: min, bitWidth: width, rows: rows, packed: data[24:]}, nil
}
