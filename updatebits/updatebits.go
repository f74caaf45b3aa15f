//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package updatebits wraps github.com/weaviate/sroar's compressed roaring
// bitmap as the escalation target for a segment's update-list (see
// segment.SegmentBase.addToUpdateList), whose ids the converter/purger's
// replay drains. Grounded on
// roaringset/layers.go's BitmapLayer and helpers.go's NewBitmap wrapper,
// generalized from tombstone tracking to row-id set tracking.
package updatebits

import "github.com/weaviate/sroar"

// Bits is a compressed, growable set of row ids.
type Bits struct {
	bm *sroar.Bitmap
}

// New returns an empty set.
func New() *Bits {
	return &Bits{bm: sroar.NewBitmap()}
}

// FromIDs builds a set containing exactly ids.
func FromIDs(ids []uint32) *Bits {
	b := New()
	for _, id := range ids {
		b.bm.Set(uint64(id))
	}
	return b
}

// FromBinary reconstructs a set previously serialized by MarshalBinary.
func FromBinary(data []byte) *Bits {
	return &Bits{bm: sroar.FromBuffer(data)}
}

func (b *Bits) Set(id uint64)           { b.bm.Set(id) }
func (b *Bits) Contains(id uint64) bool { return b.bm.Contains(id) }
func (b *Bits) Remove(id uint64)        { b.bm.Remove(id) }
func (b *Bits) Cardinality() int        { return b.bm.GetCardinality() }
func (b *Bits) ToArray() []uint64       { return b.bm.ToArray() }
func (b *Bits) Clone() *Bits            { return &Bits{bm: b.bm.Clone()} }

// MarshalBinary serializes the set into sroar's buffer form, which
// FromBinary reads back.
func (b *Bits) MarshalBinary() []byte { return b.bm.ToBuffer() }
