// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package halfkay

import (
	"fmt"
	"iter"
	"time"

	"github.com/embeddedgo/teensy/teensyload/internal/firmware"
	"github.com/embeddedgo/teensy/teensyload/internal/mcu"
)

const (
	// FirstBlockTimeout includes the time needed to erase the chip.
	FirstBlockTimeout = 5 * time.Second
	BlockTimeout      = 500 * time.Millisecond
	BootTimeout       = 500 * time.Millisecond
)

// HeaderFormat describes how the block address is encoded in the report.
type HeaderFormat uint8

const (
	// HeaderAddr16 is the 16-bit little-endian address (small AVR chips).
	HeaderAddr16 HeaderFormat = iota + 1

	// HeaderPage16 is the address bits 23:8 (AT90USB1286, 256-byte blocks).
	HeaderPage16

	// HeaderAddr24 is the 24-bit little-endian address padded to 64 bytes
	// with zeros (Kinetis and i.MX RT chips).
	HeaderAddr24
)

var formatStr = [...]string{
	HeaderAddr16: "addr16",
	HeaderPage16: "page16",
	HeaderAddr24: "addr24",
}

func (f HeaderFormat) String() string {
	if int(f) < len(formatStr) && formatStr[f] != "" {
		return formatStr[f]
	}
	return fmt.Sprintf("HeaderFormat(%d)", uint8(f))
}

// FormatFor returns the header format used by the chip with the given
// geometry.
func FormatFor(p mcu.Profile) (HeaderFormat, error) {
	switch bs := p.BlockSize; {
	case bs <= 256 && p.CodeSize < 0x10000:
		return HeaderAddr16, nil
	case bs == 256:
		return HeaderPage16, nil
	case bs == 512 || bs == 1024:
		return HeaderAddr24, nil
	}
	return 0, fmt.Errorf(
		"%w: %d/%d", ErrGeometry, p.CodeSize, p.BlockSize,
	)
}

// Len returns the size of the header.
func (f HeaderFormat) Len() int {
	if f == HeaderAddr24 {
		return 64
	}
	return 2
}

// Put encodes addr into the first f.Len() bytes of buf.
func (f HeaderFormat) Put(buf []byte, addr int) {
	switch f {
	case HeaderAddr16:
		buf[0] = byte(addr)
		buf[1] = byte(addr >> 8)
	case HeaderPage16:
		buf[0] = byte(addr >> 8)
		buf[1] = byte(addr >> 16)
	case HeaderAddr24:
		buf[0] = byte(addr)
		buf[1] = byte(addr >> 8)
		buf[2] = byte(addr >> 16)
		clear(buf[3:64])
	}
}

// WriteSize returns the size of the report carrying one block.
func (f HeaderFormat) WriteSize(blockSize int) int {
	return f.Len() + blockSize
}

// Block is a ready to send bootloader report.
type Block struct {
	Addr    int
	Data    []byte // header followed by the block content
	Timeout time.Duration
}

// Plan returns the sequence of blocks that programs img into the chip
// described by p. The first block is always sent because writing it erases
// the chip. Any other block is sent only if img contains written bytes in its
// range that are not all 0xff. Every iteration over the returned sequence
// produces the same blocks.
func Plan(img *firmware.Image, p mcu.Profile) (iter.Seq[Block], error) {
	f, err := FormatFor(p)
	if err != nil {
		return nil, err
	}
	bs := p.BlockSize
	return func(yield func(Block) bool) {
		for addr := 0; addr < p.CodeSize; addr += bs {
			first := addr == 0
			if !first && (!img.Written(addr, bs) || img.Blank(addr, bs)) {
				continue
			}
			buf := make([]byte, f.WriteSize(bs))
			f.Put(buf, addr)
			img.Read(addr, buf[f.Len():])
			blk := Block{Addr: addr, Data: buf, Timeout: BlockTimeout}
			if first {
				blk.Timeout = FirstBlockTimeout
			}
			if !yield(blk) {
				return
			}
		}
	}, nil
}

// BootBlock returns the report that starts the user program.
func BootBlock(f HeaderFormat, blockSize int) []byte {
	buf := make([]byte, f.WriteSize(blockSize))
	buf[0] = 0xff
	buf[1] = 0xff
	buf[2] = 0xff
	return buf
}
