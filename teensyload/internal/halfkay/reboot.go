// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package halfkay

import (
	"time"

	"go.bug.st/serial"
)

const (
	hardRebootTimeout = 100 * time.Millisecond
	softRebootTimeout = 10 * time.Second
)

// CDC ACM SET_LINE_CODING. Setting the line speed to 134 baud requests the
// Teensy USB stack to jump to the bootloader.
const (
	cdcSetLineCoding = 0x20
	rebootBaudRate   = 134
)

// 134 baud, 1 stop bit, no parity, 8 data bits
var rebootLineCoding = [7]byte{0x86, 0x00, 0x00, 0x00, 0x00, 0x00, 0x08}

// HardReboot asks the rebootor board to reset the target into the
// bootloader.
func HardReboot(bus Bus) (err error) {
	defer wrapErr("HardReboot", &err)
	dev, err := bus.Open(RebootorID)
	if err != nil {
		return
	}
	_, err = dev.Control(
		reqTypeOut, hidSetReport, outputReport, 0, []byte("reboot"),
		hardRebootTimeout,
	)
	dev.Close()
	return
}

// SoftReboot asks the program running on the target to jump to the
// bootloader. It works only with programs that use the Teensy USB serial
// stack.
func SoftReboot(bus Bus) (err error) {
	defer wrapErr("SoftReboot", &err)
	dev, err := bus.Open(SerialID)
	if err != nil {
		return
	}
	lc := rebootLineCoding
	_, err = dev.Control(
		reqTypeOut, cdcSetLineCoding, 0, 0, lc[:], softRebootTimeout,
	)
	dev.Close()
	return
}

// SerialReboot does the same as SoftReboot but uses the operating system
// serial port driver. It can be used if the kernel does not let the CDC
// interface be claimed.
func SerialReboot(port string) (err error) {
	defer wrapErr("SerialReboot", &err)
	p, err := serial.Open(port, &serial.Mode{BaudRate: rebootBaudRate})
	if err != nil {
		return
	}
	return p.Close()
}
