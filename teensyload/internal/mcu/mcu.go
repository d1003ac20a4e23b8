// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mcu describes the flash geometry of the microcontrollers that can
// be programmed using the HalfKay bootloader.
package mcu

import (
	"errors"
	"fmt"
	"strings"
)

// Profile describes the flash geometry of a microcontroller.
type Profile struct {
	Name      string
	CodeSize  int // bytes of flash available to the program
	BlockSize int // bytes written by one bootloader transfer
}

// FlexSPIBase is the address at which the i.MX RT family maps the external
// QSPI flash. HEX files for these chips carry it in their extended linear
// address records.
const FlexSPIBase = 0x6000_0000

// RemapsFlexSPI reports whether the addresses in the FlexSPI window must be
// translated to flash offsets before they are sent to the bootloader.
func (p Profile) RemapsFlexSPI() bool {
	return p.CodeSize > 1024*1024 && p.BlockSize >= 1024
}

var ErrUnknown = errors.New("unknown mcu type")

var profiles = [...]Profile{
	// raw chip names
	{"at90usb162", 15872, 128},
	{"atmega32u4", 32256, 128},
	{"at90usb646", 64512, 256},
	{"at90usb1286", 130048, 256},
	{"mkl26z64", 63488, 512},
	{"mk20dx128", 131072, 1024},
	{"mk20dx256", 262144, 1024},
	{"mk66fx1m0", 1048576, 1024},
	{"mk64fx512", 524288, 1024},
	{"imxrt1062", 2031616, 1024},

	// board names
	{"TEENSY2", 32256, 128},
	{"TEENSY2PP", 130048, 256},
	{"TEENSYLC", 63488, 512},
	{"TEENSY30", 131072, 1024},
	{"TEENSY31", 262144, 1024},
	{"TEENSY32", 262144, 1024},
	{"TEENSY35", 524288, 1024},
	{"TEENSY36", 1048576, 1024},
	{"TEENSY40", 2031616, 1024},
	{"TEENSY41", 8126464, 1024},
	{"TEENSY_MICROMOD", 16515072, 1024},
}

// Lookup returns the profile of the named chip or board. The name is
// matched case-insensitively.
func Lookup(name string) (Profile, error) {
	for _, p := range profiles {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w %q", ErrUnknown, name)
}

// All returns all known profiles in the table order.
func All() []Profile {
	return append([]Profile(nil), profiles[:]...)
}
