// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package halfkay

import (
	"errors"
	"strconv"
	"strings"
	"time"

	usb "github.com/google/gousb"
)

func parseBusAddr(busAddr string) (int, int) {
	s := strings.Split(busAddr, ":")
	if len(s) != 2 {
		return -1, -1
	}
	bus, err := strconv.ParseUint(s[0], 10, 8)
	if err != nil {
		return -1, -1
	}
	dev, err := strconv.ParseUint(s[1], 10, 8)
	if err != nil {
		return -1, -1
	}
	return int(bus), int(dev)
}

// USB is the Bus implemented using libusb.
type USB struct {
	ctx       *usb.Context
	bus, addr int
}

// NewUSB initializes libusb. You can restrict the bootloader search to the
// concrete device on the USB bus by providing BUS:DEV string where both BUS
// and DEV are decimal unsigned integers. The address filter does not apply to
// the rebootor and serial devices.
func NewUSB(busAddr string) (*USB, error) {
	bus, addr := parseBusAddr(busAddr)
	if busAddr != "" && bus < 0 {
		return nil, errors.New("bad USB device address: " + busAddr)
	}
	return &USB{ctx: usb.NewContext(), bus: bus, addr: addr}, nil
}

func (u *USB) Close() error {
	return u.ctx.Close()
}

func (u *USB) Open(id ID) (dev Device, err error) {
	devs, err := u.ctx.OpenDevices(func(desc *usb.DeviceDesc) bool {
		if id == HalfKayID && u.bus >= 0 &&
			(desc.Bus != u.bus || desc.Address != u.addr) {
			return false
		}
		return desc.Vendor == id.Vendor && desc.Product == id.Product
	})
	// OpenDevices returns the successfully opened devices even if some of
	// them could not be opened.
	if len(devs) == 0 {
		if err == nil {
			err = ErrNotFound
		}
		return nil, err
	}
	err = ErrNotFound
	for _, d := range devs {
		if dev != nil {
			d.Close()
			continue
		}
		var ud *usbDevice
		ud, err = claim(d)
		if err != nil {
			d.Close()
			if isBusy(err) {
				err = ErrBusy
			}
			continue
		}
		dev = ud
	}
	if dev != nil {
		err = nil
	}
	return dev, err
}

// isBusy reports whether the interface is claimed by another driver. gousb
// formats the claim error with %v so errors.Is alone is not enough.
func isBusy(err error) bool {
	return errors.Is(err, usb.ErrorBusy) ||
		strings.Contains(err.Error(), usb.ErrorBusy.Error())
}

func claim(d *usb.Device) (*usbDevice, error) {
	if err := d.SetAutoDetach(true); err != nil {
		return nil, err
	}
	cfg, err := d.Config(1)
	if err != nil {
		return nil, err
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return nil, err
	}
	return &usbDevice{d, cfg, intf}, nil
}

type usbDevice struct {
	dev  *usb.Device
	cfg  *usb.Config
	intf *usb.Interface
}

func (d *usbDevice) Control(rType, request uint8, val, idx uint16, data []byte, timeout time.Duration) (int, error) {
	d.dev.ControlTimeout = timeout
	return d.dev.Control(rType, request, val, idx, data)
}

func (d *usbDevice) Close() error {
	d.intf.Close()
	err := d.cfg.Close()
	if cerr := d.dev.Close(); err == nil {
		err = cerr
	}
	return err
}
