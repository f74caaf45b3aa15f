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

// Package bitmap provides the mmap-backed, growable bit arrays behind a
// segment's IsDel and IsPurged.rs files, plus rank/select over them. A
// Bitmap is the only mutable on-disk structure a readonly segment is
// allowed to touch after it has been built: IsDel bits may only flip
// 0 -> 1, never back.
package bitmap

import (
	"encoding/binary"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// growChunk is the unit a backing file grows/shrinks by. The source
// distinguishes a 4 KiB debug chunk from a 1 MiB release chunk; we carry a
// single release-sized chunk since Go has no separate debug build mode in
// this corpus.
const growChunk = 1 << 20

const headerSize = 8 // u64 little-endian row count

// Bitmap is a growable, mmap-backed bit array with a row-count header.
// Bits beyond Len() but within the mmap'd capacity are always zero.
type Bitmap struct {
	path     string
	file     *os.File
	mm       mmap.MMap
	rowCount uint64
}

// Create allocates a new backing file at path with zero rows.
func Create(path string) (*Bitmap, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "create bitmap %q", path)
	}

	b := &Bitmap{path: path, file: f}
	if err := b.remap(growChunk); err != nil {
		f.Close()
		return nil, err
	}
	b.writeHeader()

	return b, nil
}

// Load opens an existing bitmap file, mmap'ing it for read-write access.
func Load(path string) (*Bitmap, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "load bitmap %q", path)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat bitmap %q", path)
	}
	if fi.Size() < headerSize {
		f.Close()
		return nil, errors.Wrapf(ErrCorruptHeader, "bitmap %q: file too small", path)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap bitmap %q", path)
	}

	b := &Bitmap{path: path, file: f, mm: m}
	b.rowCount = binary.LittleEndian.Uint64(b.mm[0:headerSize])

	if b.capacityBits() < b.rowCount {
		b.Close()
		return nil, errors.Wrapf(ErrCorruptHeader, "bitmap %q: header claims %d rows but capacity is %d", path, b.rowCount, b.capacityBits())
	}

	return b, nil
}

// ErrCorruptHeader is returned by Load when the row-count header doesn't
// match the file's actual capacity.
var ErrCorruptHeader = errors.New("bitmap: corrupt header")

func (b *Bitmap) capacityBits() uint64 {
	if len(b.mm) <= headerSize {
		return 0
	}
	return uint64(len(b.mm)-headerSize) * 8
}

// UnusedBits returns the number of bits already reserved in the mmap'd
// backing file beyond Len(). A caller holding no lock can safely read bits
// below Len() without racing a concurrent Push's remap as long as this
// margin stays positive: Push only remaps once capacity is exhausted, and
// existing bits never move within a single mapping.
func (b *Bitmap) UnusedBits() uint64 {
	cap := b.capacityBits()
	if cap <= b.rowCount {
		return 0
	}
	return cap - b.rowCount
}

func (b *Bitmap) remap(newSize int) error {
	if b.mm != nil {
		if err := b.mm.Unmap(); err != nil {
			return errors.Wrap(err, "unmap bitmap for grow")
		}
		b.mm = nil
	}
	if err := b.file.Truncate(int64(newSize)); err != nil {
		return errors.Wrap(err, "truncate bitmap")
	}
	m, err := mmap.Map(b.file, mmap.RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "remap bitmap")
	}
	b.mm = m
	return nil
}

func (b *Bitmap) writeHeader() {
	binary.LittleEndian.PutUint64(b.mm[0:headerSize], b.rowCount)
}

// Len returns the number of logical bits (rows) currently tracked.
func (b *Bitmap) Len() uint64 { return b.rowCount }

// Get returns the bit at logical position i.
func (b *Bitmap) Get(i uint64) bool {
	byteIdx := headerSize + i/8
	return b.mm[byteIdx]&(1<<(i%8)) != 0
}

// Set assigns the bit at logical position i. Growing the bitmap first via
// Push is the caller's responsibility; Set never grows.
func (b *Bitmap) Set(i uint64, v bool) {
	byteIdx := headerSize + i/8
	mask := byte(1 << (i % 8))
	if v {
		b.mm[byteIdx] |= mask
	} else {
		b.mm[byteIdx] &^= mask
	}
}

// Push appends one new bit (initialised to v), growing the backing file in
// growChunk increments when capacity is exhausted.
func (b *Bitmap) Push(v bool) error {
	needed := headerSize + int((b.rowCount+8)/8)
	if needed > len(b.mm) {
		newSize := len(b.mm)
		if newSize == 0 {
			newSize = growChunk
		}
		for newSize < needed {
			newSize += growChunk
		}
		if err := b.remap(newSize); err != nil {
			return err
		}
	}

	idx := b.rowCount
	b.rowCount++
	b.writeHeader()
	b.Set(idx, v)
	return nil
}

// Pop shrinks the logical length by one, without necessarily shrinking the
// backing file (capacity is only ever reclaimed on Close+reopen via a
// rebuild, mirroring the source's truncate-on-grow-only discipline).
func (b *Bitmap) Pop() error {
	if b.rowCount == 0 {
		return errors.New("bitmap: pop of empty bitmap")
	}
	b.Set(b.rowCount-1, false)
	b.rowCount--
	b.writeHeader()
	return nil
}

// Popcount returns the number of set bits among the first Len() bits.
func (b *Bitmap) Popcount() uint64 {
	var count uint64
	full := b.rowCount / 8
	for i := uint64(0); i < full; i++ {
		count += uint64(popcountByte(b.mm[headerSize+i]))
	}
	for i := full * 8; i < b.rowCount; i++ {
		if b.Get(i) {
			count++
		}
	}
	return count
}

func popcountByte(x byte) int {
	c := 0
	for x != 0 {
		c++
		x &= x - 1
	}
	return c
}

// Flush persists the header and dirty pages by re-writing the header word;
// mmap'd writes to the bit region are already visible to the kernel, this
// just guarantees the row-count word is current before an fsync/rename.
func (b *Bitmap) Flush() error {
	b.writeHeader()
	return b.mm.Flush()
}

// Close unmaps and closes the backing file.
func (b *Bitmap) Close() error {
	if b.mm != nil {
		if err := b.mm.Unmap(); err != nil {
			return errors.Wrap(err, "unmap bitmap on close")
		}
		b.mm = nil
	}
	return b.file.Close()
}

// ToArray returns the logical positions of every set bit, in order. Used by
// Converter/Purger passes that must walk IsDel's set bits.
func (b *Bitmap) ToArray() []uint64 {
	out := make([]uint64, 0, b.Popcount())
	for i := uint64(0); i < b.rowCount; i++ {
		if b.Get(i) {
			out = append(out, i)
		}
	}
	return out
}
