// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package halfkay implements the host side of the HalfKay bootloader
// protocol used by the Teensy boards.
//
// HalfKay receives the firmware as HID output reports sent using USB control
// transfers. Every report carries one flash block preceded by a header that
// encodes the block address. The first report also erases the whole chip.
// A report with the address 0xffffff starts the user program.
package halfkay

import (
	"errors"
	"fmt"
	"time"

	usb "github.com/google/gousb"
)

// ID identifies a USB device.
type ID struct {
	Vendor, Product usb.ID
}

func (id ID) String() string {
	return fmt.Sprintf("%s:%s", id.Vendor, id.Product)
}

var (
	HalfKayID  = ID{0x16c0, 0x0478} // the bootloader
	RebootorID = ID{0x16c0, 0x0477} // the reset trigger board
	SerialID   = ID{0x16c0, 0x0483} // the USB serial of a running program
)

// Bus gives access to the USB devices.
type Bus interface {
	// Open opens the first device with the given id that can be claimed
	// for exclusive use. It returns ErrNotFound if there is no such device
	// and ErrBusy if all such devices are used by other drivers.
	Open(id ID) (Device, error)
}

// Device is an opened USB device with its interface 0 claimed.
type Device interface {
	// Control performs a control transfer on the default endpoint.
	Control(rType, request uint8, val, idx uint16, data []byte, timeout time.Duration) (int, error)

	// Close releases the interface and closes the device.
	Close() error
}

var (
	ErrNotFound     = errors.New("device not found")
	ErrBusy         = errors.New("device in use by another driver")
	ErrNotOpen      = errors.New("device not open")
	ErrWriteTimeout = errors.New("write timeout")
	ErrGeometry     = errors.New("unknown code/block size")
)

type Error struct {
	Op  string
	Err error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return "halfkay: " + e.Op + ": " + e.Err.Error()
}

func wrapErr(op string, err *error) {
	if *err != nil {
		*err = &Error{op, *err}
	}
}

// HID class request sending an output report.
const (
	reqTypeOut   = usb.ControlOut | usb.ControlClass | usb.ControlInterface
	hidSetReport = 0x09
	outputReport = 0x0200
)
