// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package firmware

import (
	"bufio"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/embeddedgo/teensy/teensyload/internal/mcu"
)

// Intel HEX record types
const (
	recData           = 0x00
	recEOF            = 0x01
	recExtSegmentAddr = 0x02
	recStartSegAddr   = 0x03
	recExtLinearAddr  = 0x04
	recStartLinAddr   = 0x05
)

// MaxRecordData is the largest payload of a data record.
const MaxRecordData = 255

var (
	ErrSyntax        = errors.New("malformed line")
	ErrLength        = errors.New("record length does not match line length")
	ErrChecksum      = errors.New("checksum error")
	ErrRecordTooLong = errors.New("data record too long")
)

// ParseError describes an invalid line of an Intel HEX file.
type ParseError struct {
	File string // empty if the input was not read from a named file
	Line int    // 1-based
	Err  error
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Error() string {
	s := "hex parse error - line " + strconv.Itoa(e.Line)
	if e.File != "" {
		s += " in file \"" + e.File + "\""
	}
	return s + ": " + e.Err.Error()
}

// LoadHex reads the Intel HEX file. An error returned by os.Open is returned
// as is, any other error is a *ParseError.
func LoadHex(name string, p mcu.Profile) (*Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := ParseHex(f, p)
	if pe, ok := err.(*ParseError); ok {
		pe.File = name
	}
	return img, err
}

// ParseHex reads the Intel HEX records from r into a new Image. Reading
// stops at the end-of-file record or at the end of input. The p determines
// whether the FlexSPI addresses are translated to flash offsets.
func ParseHex(r io.Reader, p mcu.Profile) (*Image, error) {
	img := NewImage()
	ps := parser{img: img, profile: p}
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimRightFunc(sc.Text(), unicode.IsSpace)
		if line == "" {
			continue
		}
		if err := ps.parseLine(line); err != nil {
			return nil, &ParseError{Line: lineno, Err: err}
		}
		if img.EndRecord {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Line: lineno + 1, Err: err}
	}
	return img, nil
}

type parser struct {
	img     *Image
	profile mcu.Profile
	extAddr uint32
	buf     [5 + MaxRecordData]byte
}

// parseLine parses one record. Nothing is written to the image if an error
// is returned.
func (ps *parser) parseLine(line string) error {
	if line[0] != ':' || len(line) < 11 || len(line)%2 != 1 {
		return ErrSyntax
	}
	if hex.DecodedLen(len(line)-1) > len(ps.buf) {
		return ErrRecordTooLong
	}
	n, err := hex.Decode(ps.buf[:], []byte(line[1:]))
	if err != nil {
		return ErrSyntax
	}
	rec := ps.buf[:n]
	length := int(rec[0])
	if n != 5+length {
		return ErrLength
	}
	var sum byte
	for _, b := range rec {
		sum += b
	}
	if sum != 0 {
		return ErrChecksum
	}
	addr := uint32(rec[1])<<8 | uint32(rec[2])
	data := rec[4 : 4+length]

	switch rec[3] {
	case recData:
		return ps.img.AddBinary(addr+ps.extAddr, data)
	case recEOF:
		ps.img.EndRecord = true
	case recExtSegmentAddr:
		if length == 2 {
			ps.extAddr = (uint32(data[0])<<8 | uint32(data[1])) << 4
		}
	case recExtLinearAddr:
		if length == 2 {
			ps.extAddr = (uint32(data[0])<<8 | uint32(data[1])) << 16
			ps.extAddr = flexSPIToFlash(ps.extAddr, ps.profile)
		}
	}
	// Start address records (recStartSegAddr, recStartLinAddr) and unknown
	// types are ignored.
	return nil
}

// flexSPIToFlash translates the address in the FlexSPI window of the
// i.MX RT chips to the offset in flash.
func flexSPIToFlash(addr uint32, p mcu.Profile) uint32 {
	if p.RemapsFlexSPI() && addr >= mcu.FlexSPIBase &&
		addr < mcu.FlexSPIBase+uint32(p.CodeSize) {
		addr -= mcu.FlexSPIBase
	}
	return addr
}
