// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package halfkay_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/teensy/teensyload/internal/halfkay"
	"github.com/embeddedgo/teensy/teensyload/internal/halfkay/halfkaytest"
)

func newSession(bus halfkay.Bus) *halfkay.Session {
	return halfkay.NewSession(bus, zerolog.Nop())
}

func TestSessionOpenNotFound(t *testing.T) {
	s := newSession(halfkaytest.NewBus())
	err := s.Open()
	require.ErrorIs(t, err, halfkay.ErrNotFound)
	var he *halfkay.Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "Open", he.Op)
	assert.False(t, s.IsOpen())
}

func TestSessionOpenBusy(t *testing.T) {
	bus := halfkaytest.NewBus()
	bus.Attach(halfkay.HalfKayID, &halfkaytest.Device{Busy: true})
	s := newSession(bus)
	require.ErrorIs(t, s.Open(), halfkay.ErrBusy)
	assert.False(t, s.IsOpen())
}

func TestSessionReopenClosesPrevious(t *testing.T) {
	bus := halfkaytest.NewBus()
	dev := bus.Attach(halfkay.HalfKayID, &halfkaytest.Device{})
	s := newSession(bus)
	require.NoError(t, s.Open())
	require.NoError(t, s.Open())
	assert.Equal(t, 2, dev.Opens())
	assert.True(t, dev.IsOpen())
	require.NoError(t, s.Close())
	assert.False(t, dev.IsOpen())
}

func TestSessionCloseIdempotent(t *testing.T) {
	bus := halfkaytest.NewBus()
	bus.Attach(halfkay.HalfKayID, &halfkaytest.Device{})
	s := newSession(bus)
	require.NoError(t, s.Close())
	require.NoError(t, s.Open())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.IsOpen())
}

func TestSessionWrite(t *testing.T) {
	bus := halfkaytest.NewBus()
	dev := bus.Attach(halfkay.HalfKayID, &halfkaytest.Device{})
	s := newSession(bus)
	require.NoError(t, s.Open())
	defer s.Close()

	buf := []byte{1, 2, 3}
	require.NoError(t, s.Write(context.Background(), buf, time.Second))
	tr := dev.Transfers()
	require.Len(t, tr, 1)
	assert.Equal(t, halfkaytest.Transfer{
		RType: 0x21, Request: 9, Val: 0x0200, Idx: 0,
		Data: buf, Timeout: time.Second,
	}, tr[0])
}

func TestSessionWriteNotOpen(t *testing.T) {
	s := newSession(halfkaytest.NewBus())
	err := s.Write(context.Background(), []byte{0}, time.Second)
	assert.ErrorIs(t, err, halfkay.ErrNotOpen)
}

func TestSessionWriteRetries(t *testing.T) {
	bus := halfkaytest.NewBus()
	dev := bus.Attach(halfkay.HalfKayID, &halfkaytest.Device{FailFirst: 3})
	s := newSession(bus)
	require.NoError(t, s.Open())
	defer s.Close()

	require.NoError(t, s.Write(context.Background(), []byte{0}, 500*time.Millisecond))
	assert.Equal(t, 4, dev.Attempts())
	tr := dev.Transfers()
	require.Len(t, tr, 1)
	// The remaining budget is passed to the transfer.
	assert.Equal(t, 500*time.Millisecond-3*halfkay.RetryInterval, tr[0].Timeout)
}

func TestSessionWriteTimeout(t *testing.T) {
	bus := halfkaytest.NewBus()
	dev := bus.Attach(halfkay.HalfKayID, &halfkaytest.Device{FailAll: true})
	s := newSession(bus)
	require.NoError(t, s.Open())
	defer s.Close()

	err := s.Write(context.Background(), []byte{0}, 50*time.Millisecond)
	require.ErrorIs(t, err, halfkay.ErrWriteTimeout)
	require.ErrorIs(t, err, halfkaytest.ErrTransfer)
	assert.Equal(t, 5, dev.Attempts())
}

func TestSessionWriteCancel(t *testing.T) {
	bus := halfkaytest.NewBus()
	bus.Attach(halfkay.HalfKayID, &halfkaytest.Device{FailAll: true})
	s := newSession(bus)
	require.NoError(t, s.Open())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := s.Write(ctx, []byte{0}, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSessionBoot(t *testing.T) {
	bus := halfkaytest.NewBus()
	dev := bus.Attach(halfkay.HalfKayID, &halfkaytest.Device{})
	s := newSession(bus)
	require.NoError(t, s.Open())
	defer s.Close()

	require.NoError(t, s.Boot(context.Background(), halfkay.HeaderAddr24, 1024))
	tr := dev.Transfers()
	require.Len(t, tr, 1)
	assert.Len(t, tr[0].Data, 1088)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0}, tr[0].Data[:4])
	assert.Equal(t, halfkay.BootTimeout, tr[0].Timeout)
}

func TestHardReboot(t *testing.T) {
	bus := halfkaytest.NewBus()
	dev := bus.Attach(halfkay.RebootorID, &halfkaytest.Device{})
	require.NoError(t, halfkay.HardReboot(bus))
	tr := dev.Transfers()
	require.Len(t, tr, 1)
	assert.Equal(t, []byte("reboot"), tr[0].Data)
	assert.Equal(t, uint8(9), tr[0].Request)
	assert.Equal(t, 100*time.Millisecond, tr[0].Timeout)
	assert.False(t, dev.IsOpen())
}

func TestHardRebootFails(t *testing.T) {
	err := halfkay.HardReboot(halfkaytest.NewBus())
	require.ErrorIs(t, err, halfkay.ErrNotFound)

	bus := halfkaytest.NewBus()
	dev := bus.Attach(halfkay.RebootorID, &halfkaytest.Device{FailAll: true})
	err = halfkay.HardReboot(bus)
	require.ErrorIs(t, err, halfkaytest.ErrTransfer)
	assert.False(t, dev.IsOpen())
}

func TestSoftReboot(t *testing.T) {
	bus := halfkaytest.NewBus()
	dev := bus.Attach(halfkay.SerialID, &halfkaytest.Device{})
	require.NoError(t, halfkay.SoftReboot(bus))
	tr := dev.Transfers()
	require.Len(t, tr, 1)
	assert.Equal(t, halfkaytest.Transfer{
		RType: 0x21, Request: 0x20,
		Data:    []byte{0x86, 0, 0, 0, 0, 0, 0x08},
		Timeout: 10 * time.Second,
	}, tr[0])
	assert.False(t, dev.IsOpen())
}

func TestSoftRebootMissingDevice(t *testing.T) {
	bus := halfkaytest.NewBus()
	bus.Attach(halfkay.HalfKayID, &halfkaytest.Device{})
	err := halfkay.SoftReboot(bus)
	require.ErrorIs(t, err, halfkay.ErrNotFound)
	var he *halfkay.Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "SoftReboot", he.Op)
}

func TestSerialRebootMissingPort(t *testing.T) {
	err := halfkay.SerialReboot(filepath.Join(t.TempDir(), "ttyACM9"))
	require.Error(t, err)
	var he *halfkay.Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "SerialReboot", he.Op)
}
