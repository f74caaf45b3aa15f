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

package bitmap

import "github.com/pkg/errors"

// RankSelectClass selects the block size used internally by a RankSelect
// cache. This is the one knob NestLoudsTrieBlobStore exposes (rs256 /
// rsPlus256 / rsPlus512); it only changes how densely superblock popcounts
// are sampled, never the bits themselves.
type RankSelectClass int

const (
	RSClass256 RankSelectClass = iota
	RSClassPlus256
	RSClassPlus512
)

func (c RankSelectClass) blockBits() uint64 {
	switch c {
	case RSClass256, RSClassPlus256:
		return 256
	case RSClassPlus512:
		return 512
	default:
		return 512
	}
}

// DefaultRankSelectClass is rsPlus512, matching the spec's stated default.
const DefaultRankSelectClass = RSClassPlus512

// RankSelect wraps a Bitmap with a superblock popcount index supporting
// rank0 (count of unset bits below a position) and select0 (position of the
// k-th unset bit). It is built once, after the underlying Bitmap is frozen
// (IsPurged never changes after a convert/purge completes), and is the
// vehicle through which ReadonlySegment translates between logical and
// physical row ids.
type RankSelect struct {
	bm         *Bitmap
	class      RankSelectClass
	blockBits  uint64
	// cum0[i] = number of unset bits in [0, i*blockBits)
	cum0 []uint64
}

// Build constructs a RankSelect cache over bm using class. Call after bm's
// contents are final.
func Build(bm *Bitmap, class RankSelectClass) *RankSelect {
	blockBits := class.blockBits()
	numBlocks := int(bm.Len()/blockBits) + 1

	rs := &RankSelect{
		bm:        bm,
		class:     class,
		blockBits: blockBits,
		cum0:      make([]uint64, numBlocks+1),
	}

	var running uint64
	var pos uint64
	for i := 0; i < numBlocks; i++ {
		rs.cum0[i] = running
		end := pos + blockBits
		if end > bm.Len() {
			end = bm.Len()
		}
		for ; pos < end; pos++ {
			if !bm.Get(pos) {
				running++
			}
		}
	}
	rs.cum0[numBlocks] = running

	return rs
}

// Rank0 returns the number of unset bits in [0, i).
func (rs *RankSelect) Rank0(i uint64) uint64 {
	if i > rs.bm.Len() {
		i = rs.bm.Len()
	}
	blockIdx := i / rs.blockBits
	count := rs.cum0[blockIdx]
	for p := blockIdx * rs.blockBits; p < i; p++ {
		if !rs.bm.Get(p) {
			count++
		}
	}
	return count
}

// Select0 returns the position of the k-th unset bit (0-indexed). Returns
// ErrOutOfRange if there are fewer than k+1 unset bits.
func (rs *RankSelect) Select0(k uint64) (uint64, error) {
	numBlocks := len(rs.cum0) - 1
	blockIdx := 0
	for blockIdx < numBlocks-1 && rs.cum0[blockIdx+1] <= k {
		blockIdx++
	}

	pos := uint64(blockIdx) * rs.blockBits
	remaining := k - rs.cum0[blockIdx]
	for pos < rs.bm.Len() {
		if !rs.bm.Get(pos) {
			if remaining == 0 {
				return pos, nil
			}
			remaining--
		}
		pos++
	}

	return 0, errors.Wrapf(ErrSelectOutOfRange, "select0(%d)", k)
}

// MaxRank1 returns the total number of set bits (rank1 at Len()).
func (rs *RankSelect) MaxRank1() uint64 {
	return rs.bm.Len() - rs.cum0[len(rs.cum0)-1]
}

var ErrSelectOutOfRange = errors.New("bitmap: select0 index out of range")
