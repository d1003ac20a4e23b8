// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package firmware

import (
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/embeddedgo/teensy/teensyload/internal/mcu"
)

type Section struct {
	Name  string
	Paddr uint64 // physical location of the section in the Flash/ROM
	Data  []byte // section data
}

type Sections []*Section

// ReadELF reads the loadable sections of the program and returns them as
// a slice. The order of the returned sections is unspecified.
func ReadELF(name string) (Sections, error) {
	r, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ss := make(Sections, 0, 16)
	for _, s := range f.Sections {
		if s.Type != elf.SHT_PROGBITS || s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		paddr := s.Addr
		for _, p := range f.Progs {
			if p.Type != elf.PT_LOAD {
				continue
			}
			if p.Off <= s.Offset && s.Offset < p.Off+p.Filesz {
				paddr = p.Paddr + s.Offset - p.Off
				break
			}
		}
		ss = append(ss, &Section{s.Name, paddr, data})
	}
	return ss, nil
}

// ReadBins reads binary files acording to the BIN1:ADDR1[,BIN2:ADDR2...]
// description and returns them as a slice of sections.
func ReadBins(descr string) (Sections, error) {
	bins := strings.Split(descr, ",")
	ss := make(Sections, len(bins))
	for k, ba := range bins {
		i := strings.LastIndexByte(ba, ':')
		if i <= 0 {
			return nil, fmt.Errorf("bad '%s' in the binary list", ba)
		}
		bin, addr := ba[:i], ba[i+1:]
		s := &Section{Name: bin}
		var err error
		s.Paddr, err = strconv.ParseUint(addr, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("bad address in '%s': %s", addr, err)
		}
		s.Data, err = os.ReadFile(bin)
		if err != nil {
			return nil, err
		}
		ss[k] = s
	}
	return ss, nil
}

// SortByPaddr sorts sections according to the Paddr field.
func (ss Sections) SortByPaddr() {
	sort.Slice(
		ss,
		func(i, j int) bool {
			return ss[i].Paddr < ss[j].Paddr
		},
	)
}

// AddSections writes the sections to the image at their physical addresses.
// Addresses in the FlexSPI window are translated to flash offsets if p
// requires it.
func (m *Image) AddSections(ss Sections, p mcu.Profile) error {
	for _, s := range ss {
		if s.Paddr > 0xffff_ffff {
			return fmt.Errorf("section %s: %w: %#x", s.Name, ErrAddressRange, s.Paddr)
		}
		addr := flexSPIToFlash(uint32(s.Paddr), p)
		if err := m.AddBinary(addr, s.Data); err != nil {
			return fmt.Errorf("section %s: %w", s.Name, err)
		}
	}
	return nil
}

// LoadELF reads the loadable sections of the ELF file into a new Image.
func LoadELF(name string, p mcu.Profile) (*Image, error) {
	ss, err := ReadELF(name)
	if err != nil {
		return nil, err
	}
	img := NewImage()
	if err = img.AddSections(ss, p); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	img.EndRecord = true
	return img, nil
}

// Load reads the firmware file. Files with the .elf extension are read as
// ELF executables, all other as Intel HEX.
func Load(name string, p mcu.Profile) (*Image, error) {
	if strings.EqualFold(filepath.Ext(name), ".elf") {
		return LoadELF(name, p)
	}
	return LoadHex(name, p)
}
