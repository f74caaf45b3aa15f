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

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

// FastZipBlobStore is a plain zstd store without a dictionary or local
// match: each record is zstd-compressed independently, so random point
// reads never have to decompress more than one record.
type FastZipBlobStore struct {
	compressed [][]byte
	inflated   uint64
}

// NewFastZipBlobStore compresses each record independently.
func NewFastZipBlobStore(records [][]byte) (*FastZipBlobStore, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create zstd encoder")
	}
	defer enc.Close()

	out := make([][]byte, len(records))
	var inflated uint64
	for i, r := range records {
		out[i] = enc.EncodeAll(r, nil)
		inflated += uint64(len(r))
	}

	return &FastZipBlobStore{compressed: out, inflated: inflated}, nil
}

func (s *FastZipBlobStore) Get(physical idspace.PhysicalRowID) ([]byte, error) {
	if physical >= uint64(len(s.compressed)) {
		return nil, errors.Errorf("fastzip store: physical id %d out of range (rows=%d)", physical, len(s.compressed))
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create zstd decoder")
	}
	defer dec.Close()

	out, err := dec.DecodeAll(s.compressed[physical], nil)
	if err != nil {
		return nil, errors.Wrapf(err, "decode fastzip record %d", physical)
	}
	return out, nil
}

func (s *FastZipBlobStore) NumDataRows() uint64     { return uint64(len(s.compressed)) }
func (s *FastZipBlobStore) DataInflateSize() uint64 { return s.inflated }

func (s *FastZipBlobStore) DataStorageSize() uint64 {
	var total uint64
	for _, c := range s.compressed {
		total += uint64(len(c))
	}
	return total + uint64(len(s.compressed))*8
}

func (s *FastZipBlobStore) Kind() segmentindex.Kind { return segmentindex.KindFastZip }

func (s *FastZipBlobStore) Save(dir, name string) error {
	path := filepath.Join(dir, name+".fastzip")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "save fastzip store %q", path)
	}
	defer f.Close()

	header := make([]byte, 8)
	binary.LittleEndian.PutUint64(header, uint64(len(s.compressed)))
	if _, err := f.Write(header); err != nil {
		return err
	}
	for _, c := range s.compressed {
		lenBuf := make([]byte, 8)
		binary.LittleEndian.PutUint64(lenBuf, uint64(len(c)))
		if _, err := f.Write(lenBuf); err != nil {
			return err
		}
		if _, err := f.Write(c); err != nil {
			return err
		}
	}
	return nil
}

func LoadFastZipBlobStore(path string) (*FastZipBlobStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load fastzip store %q", path)
	}
	if len(data) < 8 {
		return nil, errors.Errorf("fastzip store %q: truncated header", path)
	}
	n := int(binary.LittleEndian.Uint64(data[0:8]))

	pos := 8
	out := make([][]byte, n)
	var inflated uint64
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create zstd decoder")
	}
	defer dec.Close()

	for i := 0; i < n; i++ {
		if pos+8 > len(data) {
			return nil, errors.Errorf("fastzip store %q: truncated record %d length", path, i)
		}
		l := int(binary.LittleEndian.Uint64(data[pos:]))
		pos += 8
		if pos+l > len(data) {
			return nil, errors.Errorf("fastzip store %q: truncated record %d body", path, i)
		}
		out[i] = data[pos : pos+l]
		pos += l

		decoded, err := dec.DecodeAll(out[i], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "probe decode fastzip record %d", i)
		}
		inflated += uint64(len(decoded))
	}

	return &FastZipBlobStore{compressed: out, inflated: inflated}, nil
}
