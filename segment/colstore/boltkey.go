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
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/hangzhao/terark-db/idspace"
	"github.com/hangzhao/terark-db/segment/segmentindex"
)

var boltBucketName = []byte("idx")

// boltRecord is the msgpack-encoded value stored for every key: the
// physical row id(s) that carry it (plural to support non-unique indices).
type boltRecord struct {
	Physical []uint64 `msgpack:"p"`
}

// BoltKeyIndex is a go.etcd.io/bbolt-backed index used as the buildIndex
// fallback when a column group's keys are variable-length and neither the
// dict-zip nor trie thresholds are met.
type BoltKeyIndex struct {
	db   *bolt.DB
	path string
	rows uint64
}

// BuildBoltKeyIndex creates a new bbolt database at path and populates it
// from (key, physical) pairs. Non-unique keys accumulate multiple physical
// ids under boltRecord.Physical.
func BuildBoltKeyIndex(path string, keys [][]byte, physicalIDs []idspace.PhysicalRowID) (*BoltKeyIndex, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "create boltkeyindex %q", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(boltBucketName)
		if err != nil {
			return err
		}
		for i, key := range keys {
			existing := b.Get(key)
			var rec boltRecord
			if existing != nil {
				if err := msgpack.Unmarshal(existing, &rec); err != nil {
					return errors.Wrapf(err, "decode existing boltkeyindex record for key %x", key)
				}
			}
			rec.Physical = append(rec.Physical, physicalIDs[i])

			encoded, err := msgpack.Marshal(&rec)
			if err != nil {
				return errors.Wrap(err, "encode boltkeyindex record")
			}
			if err := b.Put(key, encoded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "populate boltkeyindex")
	}

	return &BoltKeyIndex{db: db, path: path, rows: uint64(len(keys))}, nil
}

// OpenBoltKeyIndex opens an existing on-disk bbolt index.
func OpenBoltKeyIndex(path string, rows uint64) (*BoltKeyIndex, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open boltkeyindex %q", path)
	}
	return &BoltKeyIndex{db: db, path: path, rows: rows}, nil
}

func (idx *BoltKeyIndex) SeekLowerBound(key []byte) ([]idspace.PhysicalRowID, error) {
	var out []idspace.PhysicalRowID
	err := idx.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucketName)
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v == nil {
			return nil
		}
		var rec boltRecord
		if err := msgpack.Unmarshal(v, &rec); err != nil {
			return errors.Wrap(err, "decode boltkeyindex record")
		}
		out = rec.Physical
		return nil
	})
	return out, err
}

func (idx *BoltKeyIndex) Get(physical idspace.PhysicalRowID) ([]byte, error) {
	return nil, errors.New("boltkeyindex: point read by physical id is not supported, use SeekLowerBound")
}

func (idx *BoltKeyIndex) AsReadableStore() ReadableStore { return idx }
func (idx *BoltKeyIndex) NumDataRows() uint64            { return idx.rows }
func (idx *BoltKeyIndex) DataInflateSize() uint64        { return idx.DataStorageSize() }

func (idx *BoltKeyIndex) DataStorageSize() uint64 {
	var size uint64
	idx.db.View(func(tx *bolt.Tx) error {
		size = uint64(tx.Size())
		return nil
	})
	return size
}

func (idx *BoltKeyIndex) Kind() segmentindex.Kind { return segmentindex.KindBoltKey }

// Save writes nothing: bbolt already persists every Update transaction to
// idx.path directly. It returns nil when idx.path is dir/index-<name>.bolt
// and an error when the index was built at any other path.
func (idx *BoltKeyIndex) Save(dir, name string) error {
	want := filepath.Join(dir, "index-"+name+".bolt")
	if idx.path == want {
		return nil
	}
	return errors.Errorf("boltkeyindex: built at %q, expected %q", idx.path, want)
}

func (idx *BoltKeyIndex) Close() error {
	return idx.db.Close()
}

func encodeUint64Key(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
