// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package halfkay

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/embeddedgo/teensy/teensyload/internal/util"
)

// RetryInterval is the pause between two attempts to write a block.
const RetryInterval = 10 * time.Millisecond

// Session is a connection to the HalfKay bootloader. At most one device is
// held open at a time. The zero Session is not usable, use NewSession.
type Session struct {
	bus Bus
	dev Device
	log zerolog.Logger
}

func NewSession(bus Bus, log zerolog.Logger) *Session {
	return &Session{bus: bus, log: log}
}

// Open closes the currently held device, if any, and opens the first
// available HalfKay device.
func (s *Session) Open() (err error) {
	defer wrapErr("Open", &err)
	s.Close()
	s.dev, err = s.bus.Open(HalfKayID)
	if err != nil {
		s.dev = nil
	}
	return
}

// IsOpen reports whether the session holds an opened device.
func (s *Session) IsOpen() bool {
	return s.dev != nil
}

// Write sends buf to the bootloader. A failed transfer is retried every
// RetryInterval until it succeeds or the timeout budget is spent, in which
// case the returned error wraps ErrWriteTimeout and the last transfer error.
func (s *Session) Write(ctx context.Context, buf []byte, timeout time.Duration) (err error) {
	defer wrapErr("Write", &err)
	if s.dev == nil {
		return ErrNotOpen
	}
	var lastErr error
	for attempt := 1; timeout > 0; attempt++ {
		_, lastErr = s.dev.Control(
			reqTypeOut, hidSetReport, outputReport, 0, buf, timeout,
		)
		if lastErr == nil {
			return nil
		}
		s.log.Trace().Err(lastErr).Int("attempt", attempt).Msg("write failed")
		if err = util.Sleep(ctx, RetryInterval); err != nil {
			return err
		}
		timeout -= RetryInterval
	}
	if lastErr == nil {
		return ErrWriteTimeout
	}
	return fmt.Errorf("%w: %w", ErrWriteTimeout, lastErr)
}

// Boot sends the report that makes the bootloader start the user program.
func (s *Session) Boot(ctx context.Context, f HeaderFormat, blockSize int) error {
	s.log.Debug().Msg("booting")
	return s.Write(ctx, BootBlock(f, blockSize), BootTimeout)
}

// Close releases the held device. It does nothing if the session does not
// hold any device.
func (s *Session) Close() (err error) {
	if s.dev == nil {
		return nil
	}
	defer wrapErr("Close", &err)
	err = s.dev.Close()
	s.dev = nil
	return
}
