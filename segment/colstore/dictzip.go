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

// DictZipBlobStore is the dictionary-zip backend: records are compressed
// against a shared dictionary trained from a sample of the source rows
// (the two-pass protocol in the converter), persisted as a "-dict"
// sidecar so Load can reconstruct a matching decoder.
type DictZipBlobStore struct {
	dict       []byte
	compressed [][]byte
	inflated   uint64
}

// dictZipDictID is the id the raw sample dictionary is registered under on
// both the encoder and the decoder side.
const dictZipDictID = 1

// NewDictZipBlobStore compresses records against dict (produced by the
// converter/purger's sampling pass). dict is raw sample bytes, not a
// zstd-format dictionary, so it is installed as raw history content.
func NewDictZipBlobStore(records [][]byte, dict []byte) (*DictZipBlobStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderDictRaw(dictZipDictID, dict))
	if err != nil {
		return nil, errors.Wrap(err, "create dict-zip encoder")
	}
	defer enc.Close()

	out := make([][]byte, len(records))
	var inflated uint64
	for i, r := range records {
		out[i] = enc.EncodeAll(r, nil)
		inflated += uint64(len(r))
	}

	return &DictZipBlobStore{dict: dict, compressed: out, inflated: inflated}, nil
}

func (s *DictZipBlobStore) Get(physical idspace.PhysicalRowID) ([]byte, error) {
	if physical >= uint64(len(s.compressed)) {
		return nil, errors.Errorf("dictzip store: physical id %d out of range (rows=%d)", physical, len(s.compressed))
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderDictRaw(dictZipDictID, s.dict))
	if err != nil {
		return nil, errors.Wrap(err, "create dict-zip decoder")
	}
	defer dec.Close()

	out, err := dec.DecodeAll(s.compressed[physical], nil)
	if err != nil {
		return nil, errors.Wrapf(err, "decode dict-zip record %d", physical)
	}
	return out, nil
}

func (s *DictZipBlobStore) NumDataRows() uint64     { return uint64(len(s.compressed)) }
func (s *DictZipBlobStore) DataInflateSize() uint64 { return s.inflated }

func (s *DictZipBlobStore) DataStorageSize() uint64 {
	var total uint64
	for _, c := range s.compressed {
		total += uint64(len(c))
	}
	return total + uint64(len(s.dict))
}

func (s *DictZipBlobStore) Kind() segmentindex.Kind { return segmentindex.KindDictZip }

func (s *DictZipBlobStore) Save(dir, name string) error {
	dictPath := filepath.Join(dir, name+"-dict")
	if err := os.WriteFile(dictPath, s.dict, 0o644); err != nil {
		return errors.Wrapf(err, "save dict-zip dictionary %q", dictPath)
	}

	path := filepath.Join(dir, name+".dictzip")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "save dict-zip store %q", path)
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

// LoadDictZipBlobStore reloads a store and its dictionary sidecar.
func LoadDictZipBlobStore(dir, name string) (*DictZipBlobStore, error) {
	dictPath := filepath.Join(dir, name+"-dict")
	dict, err := os.ReadFile(dictPath)
	if err != nil {
		return nil, errors.Wrapf(err, "load dict-zip dictionary %q", dictPath)
	}

	path := filepath.Join(dir, name+".dictzip")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load dict-zip store %q", path)
	}
	if len(data) < 8 {
		return nil, errors.Errorf("dict-zip store %q: truncated header", path)
	}
	n := int(binary.LittleEndian.Uint64(data[0:8]))

	pos := 8
	out := make([][]byte, n)
	var inflated uint64
	dec, err := zstd.NewReader(nil, zstd.WithDecoderDictRaw(dictZipDictID, dict))
	if err != nil {
		return nil, errors.Wrap(err, "create dict-zip decoder")
	}
	defer dec.Close()

	for i := 0; i < n; i++ {
		if pos+8 > len(data) {
			return nil, errors.Errorf("dict-zip store %q: truncated record %d length", path, i)
		}
		l := int(binary.LittleEndian.Uint64(data[pos:]))
		pos += 8
		if pos+l > len(data) {
			return nil, errors.Errorf("dict-zip store %q: truncated record %d body", path, i)
		}
		out[i] = data[pos : pos+l]
		pos += l

		decoded, err := dec.DecodeAll(out[i], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "probe decode dict-zip record %d", i)
		}
		inflated += uint64(len(decoded))
	}

	return &DictZipBlobStore{dict: dict, compressed: out, inflated: inflated}, nil
}

// ShouldUseDictZip implements the Phase C decision in §4.4: dict-zip only
// when the schema opts in, the sample ratio is non-negative, and either the
// ratio is positive or the average row length exceeds 100 bytes.
func ShouldUseDictZip(sc Schema, totalBytes uint64, rowCount uint64) bool {
	if !sc.DictZipLocalMatch || sc.DictZipSampleRatio < 0 {
		return false
	}
	if sc.DictZipSampleRatio > 0 {
		return true
	}
	if rowCount == 0 {
		return false
	}
	avg := totalBytes / rowCount
	return avg > 100
}
