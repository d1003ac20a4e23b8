// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package firmware

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"
)

// MaxMemorySize is the size of the address space an Image can describe.
const MaxMemorySize = 0x100_0000

// Pad is the value of every byte that was not written.
const Pad = 0xff

const (
	pageShift = 12
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1
)

type page struct {
	data    [pageSize]byte
	written [pageSize / 64]uint64
}

func (pg *page) isWritten(off int) bool {
	return pg.written[off>>6]&(1<<(off&63)) != 0
}

// Image is a sparse firmware image. Every byte of the [0, MaxMemorySize)
// address space is either written, by a data record or an added binary, or
// reads as Pad.
type Image struct {
	pages map[int]*page

	// ByteCount is the total number of data bytes added to the image,
	// including bytes that overwrote already written ones.
	ByteCount int

	// EndRecord reports whether the Intel HEX end-of-file record was seen.
	EndRecord bool
}

var ErrAddressRange = errors.New("address out of range")

// NewImage returns an empty image.
func NewImage() *Image {
	return &Image{pages: make(map[int]*page)}
}

// AddBinary writes data at addr and marks the written bytes. It returns
// ErrAddressRange without modifying the image if addr+len(data) reaches
// MaxMemorySize.
func (m *Image) AddBinary(addr uint32, data []byte) error {
	if uint64(addr)+uint64(len(data)) >= MaxMemorySize {
		return fmt.Errorf(
			"%w: %#x+%d >= %#x", ErrAddressRange, addr, len(data), MaxMemorySize,
		)
	}
	a := int(addr)
	for len(data) != 0 {
		pg := m.pages[a>>pageShift]
		if pg == nil {
			pg = new(page)
			for i := range pg.data {
				pg.data[i] = Pad
			}
			m.pages[a>>pageShift] = pg
		}
		off := a & pageMask
		n := copy(pg.data[off:], data)
		for i := off; i < off+n; i++ {
			pg.written[i>>6] |= 1 << (i & 63)
		}
		data = data[n:]
		a += n
	}
	m.ByteCount += a - int(addr)
	return nil
}

// At returns the byte at addr and whether it was written.
func (m *Image) At(addr int) (b byte, written bool) {
	if addr < 0 || addr >= MaxMemorySize {
		return Pad, false
	}
	pg := m.pages[addr>>pageShift]
	if pg == nil || !pg.isWritten(addr&pageMask) {
		return Pad, false
	}
	return pg.data[addr&pageMask], true
}

// Read fills p with the content of the image starting at addr. Unwritten
// and out of range bytes read as Pad.
func (m *Image) Read(addr int, p []byte) {
	for i := range p {
		p[i], _ = m.At(addr + i)
	}
}

// Written reports whether any byte in [addr, addr+n) was written.
func (m *Image) Written(addr, n int) bool {
	if addr < 0 || n <= 0 || addr+n > MaxMemorySize {
		return false
	}
	for a := addr; a < addr+n; {
		end := min((a|pageMask)+1, addr+n)
		if pg := m.pages[a>>pageShift]; pg != nil {
			for i := a; i < end; i++ {
				if pg.isWritten(i & pageMask) {
					return true
				}
			}
		}
		a = end
	}
	return false
}

// Blank reports whether every written byte in [addr, addr+n) is equal to
// Pad. A range without written bytes is blank.
func (m *Image) Blank(addr, n int) bool {
	for a := max(addr, 0); a < addr+n && a < MaxMemorySize; a++ {
		if b, ok := m.At(a); ok && b != Pad {
			return false
		}
	}
	return true
}

// Segment is a contiguous run of written bytes.
type Segment struct {
	Addr uint32
	Data []byte
}

// Segments returns the contiguous runs of written bytes in ascending address
// order. The returned data does not alias the image.
func (m *Image) Segments() []Segment {
	keys := make([]int, 0, len(m.pages))
	for k := range m.pages {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var (
		segs []Segment
		cur  *Segment
	)
	for _, k := range keys {
		pg := m.pages[k]
		for off := range pageSize {
			if !pg.isWritten(off) {
				cur = nil
				continue
			}
			addr := uint32(k<<pageShift | off)
			if cur == nil || cur.Addr+uint32(len(cur.Data)) != addr {
				segs = append(segs, Segment{Addr: addr})
				cur = &segs[len(segs)-1]
			}
			cur.Data = append(cur.Data, pg.data[off])
		}
	}
	return segs
}

// WrittenCount returns the number of distinct written bytes.
func (m *Image) WrittenCount() int {
	n := 0
	for _, pg := range m.pages {
		for _, w := range pg.written {
			n += bits.OnesCount64(w)
		}
	}
	return n
}
