// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package halfkaytest provides an in-memory halfkay.Bus for tests.
package halfkaytest

import (
	"errors"
	"sync"
	"time"

	"github.com/embeddedgo/teensy/teensyload/internal/halfkay"
)

var ErrTransfer = errors.New("transfer failed")

// Transfer is a recorded control transfer.
type Transfer struct {
	RType, Request uint8
	Val, Idx       uint16
	Data           []byte
	Timeout        time.Duration
}

// Device simulates one USB device.
type Device struct {
	// AppearAfter is the number of failed Open calls before the device
	// shows up on the bus.
	AppearAfter int

	// Busy makes Open report the device as used by another driver.
	Busy bool

	// FailFirst is the number of transfers that fail before the first
	// successful one. FailAll makes all transfers fail.
	FailFirst int
	FailAll   bool

	// OnControl, if not nil, is called after every successful transfer.
	OnControl func(t Transfer)

	mu        sync.Mutex
	transfers []Transfer
	attempts  int
	opens     int
	open      bool
}

// Transfers returns the successful transfers in order.
func (d *Device) Transfers() []Transfer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Transfer(nil), d.transfers...)
}

// Attempts returns the number of all transfer attempts.
func (d *Device) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// Opens returns the number of times the device was opened.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// IsOpen reports whether the device is currently opened.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *Device) Control(rType, request uint8, val, idx uint16, data []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	d.attempts++
	if d.FailAll || d.attempts <= d.FailFirst {
		d.mu.Unlock()
		return 0, ErrTransfer
	}
	t := Transfer{rType, request, val, idx, append([]byte(nil), data...), timeout}
	d.transfers = append(d.transfers, t)
	cb := d.OnControl
	d.mu.Unlock()
	if cb != nil {
		cb(t)
	}
	return len(data), nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errors.New("already closed")
	}
	d.open = false
	return nil
}

// Bus is a set of simulated devices indexed by their identity.
type Bus struct {
	mu      sync.Mutex
	devices map[halfkay.ID]*Device
}

func NewBus() *Bus {
	return &Bus{devices: make(map[halfkay.ID]*Device)}
}

// Attach adds the device to the bus and returns it.
func (b *Bus) Attach(id halfkay.ID, d *Device) *Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[id] = d
	return d
}

// Detach removes the device from the bus.
func (b *Bus) Detach(id halfkay.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.devices, id)
}

func (b *Bus) Open(id halfkay.ID) (halfkay.Device, error) {
	b.mu.Lock()
	d := b.devices[id]
	b.mu.Unlock()
	if d == nil {
		return nil, halfkay.ErrNotFound
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AppearAfter > 0 {
		d.AppearAfter--
		return nil, halfkay.ErrNotFound
	}
	if d.Busy {
		return nil, halfkay.ErrBusy
	}
	if d.open {
		return nil, halfkay.ErrBusy
	}
	d.open = true
	d.opens++
	return d, nil
}
