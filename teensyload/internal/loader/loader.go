// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader drives the whole programming session: it loads the
// firmware, waits for the HalfKay bootloader (rebooting the target into it
// if asked to), writes the planned blocks and starts the new program.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/embeddedgo/teensy/teensyload/internal/firmware"
	"github.com/embeddedgo/teensy/teensyload/internal/halfkay"
	"github.com/embeddedgo/teensy/teensyload/internal/mcu"
	"github.com/embeddedgo/teensy/teensyload/internal/util"
)

// DefaultPollInterval is the pause between two attempts to find the
// bootloader.
const DefaultPollInterval = 250 * time.Millisecond

var (
	ErrNoDevice   = errors.New("unable to open device (try -w option)")
	ErrNoRebootor = errors.New("unable to find rebootor")
	ErrNoFile     = errors.New("firmware file not specified")
)

type Config struct {
	Profile mcu.Profile
	File    string // Intel HEX or ELF, ignored if BootOnly

	Wait       bool   // wait for the device to appear
	HardReboot bool   // use the rebootor to enter the bootloader
	SoftReboot bool   // ask the running program to enter the bootloader
	SerialPort string // soft reboot through this serial port instead of USB
	NoReboot   bool   // do not start the program after programming
	BootOnly   bool   // only start the program already in flash

	PollInterval time.Duration // DefaultPollInterval if zero

	Log zerolog.Logger

	// Progress, if not nil, is called after every written block with the
	// number of the processed and the total number of bytes of flash.
	Progress func(done, total int)
}

type Loader struct {
	cfg    Config
	bus    halfkay.Bus
	sess   *halfkay.Session
	format halfkay.HeaderFormat
	log    zerolog.Logger
	state  State
	img    *firmware.Image
}

// New checks cfg and returns a loader that uses bus to talk to the device.
func New(bus halfkay.Bus, cfg Config) (*Loader, error) {
	f, err := halfkay.FormatFor(cfg.Profile)
	if err != nil {
		return nil, err
	}
	if !cfg.BootOnly && cfg.File == "" {
		return nil, ErrNoFile
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	log := cfg.Log.With().Str("mcu", cfg.Profile.Name).Logger()
	return &Loader{
		cfg:    cfg,
		bus:    bus,
		sess:   halfkay.NewSession(bus, log),
		format: f,
		log:    log,
	}, nil
}

// State returns the current stage of Run.
func (l *Loader) State() State {
	return l.state
}

func (l *Loader) setState(s State) {
	if l.state != s {
		l.log.Debug().Stringer("state", s).Msg("")
		l.state = s
	}
}

// Run performs the whole programming session. Any failure of the firmware
// file is reported before the first USB operation.
func (l *Loader) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			l.setState(Failed)
		}
	}()
	if !l.cfg.BootOnly {
		if err = l.load(); err != nil {
			return err
		}
	}
	waited, err := l.findDevice(ctx)
	if err != nil {
		return err
	}
	defer l.sess.Close()

	if l.cfg.BootOnly {
		l.boot(ctx)
		return l.finish()
	}
	if waited {
		// The file may have been rebuilt while we were waiting.
		if err = l.load(); err != nil {
			return err
		}
	}
	if err = l.program(ctx); err != nil {
		return err
	}
	if !l.cfg.NoReboot {
		l.boot(ctx)
	}
	return l.finish()
}

func (l *Loader) load() error {
	img, err := firmware.Load(l.cfg.File, l.cfg.Profile)
	if err != nil {
		return err
	}
	if !img.EndRecord {
		l.log.Warn().Str("file", l.cfg.File).Msg("no end-of-file record")
	}
	l.log.Info().
		Str("file", l.cfg.File).
		Int("bytes", img.ByteCount).
		Float64("usage", 100*float64(img.ByteCount)/float64(l.cfg.Profile.CodeSize)).
		Msg("firmware loaded")
	l.img = img
	return nil
}

// findDevice opens the bootloader. It reports whether it had to wait for
// the device.
func (l *Loader) findDevice(ctx context.Context) (waited bool, err error) {
	hard, soft, wait := l.cfg.HardReboot, l.cfg.SoftReboot, l.cfg.Wait
	l.setState(Searching)
	for {
		openErr := l.sess.Open()
		if openErr == nil {
			l.setState(Found)
			l.log.Info().Msg("found HalfKay bootloader")
			return waited, nil
		}
		l.log.Trace().Err(openErr).Msg("")
		if hard {
			l.setState(Rebooting)
			if err = halfkay.HardReboot(l.bus); err != nil {
				return waited, fmt.Errorf("%w: %w", ErrNoRebootor, err)
			}
			l.log.Info().Msg("hard reboot performed")
			hard = false
			wait = true
		}
		if soft {
			l.setState(Rebooting)
			if err = l.softReboot(); err != nil {
				l.log.Warn().Err(err).Msg("soft reboot failed")
			} else {
				l.log.Info().Msg("soft reboot performed")
			}
			soft = false
			wait = true
		}
		if !wait {
			return waited, fmt.Errorf("%w: %w", ErrNoDevice, openErr)
		}
		if !waited {
			l.setState(Waiting)
			l.log.Info().Msg("waiting for Teensy device (hint: press the reset button)")
			waited = true
		}
		if err = util.Sleep(ctx, l.cfg.PollInterval); err != nil {
			return waited, err
		}
	}
}

func (l *Loader) softReboot() error {
	if l.cfg.SerialPort != "" {
		return halfkay.SerialReboot(l.cfg.SerialPort)
	}
	return halfkay.SoftReboot(l.bus)
}

func (l *Loader) program(ctx context.Context) error {
	l.setState(Programming)
	blocks, err := halfkay.Plan(l.img, l.cfg.Profile)
	if err != nil {
		return err
	}
	total, bs := l.cfg.Profile.CodeSize, l.cfg.Profile.BlockSize
	n := 0
	for blk := range blocks {
		l.log.Debug().Int("addr", blk.Addr).Msg("write block")
		if err := l.sess.Write(ctx, blk.Data, blk.Timeout); err != nil {
			return fmt.Errorf("error writing to Teensy at %#x: %w", blk.Addr, err)
		}
		n++
		if l.cfg.Progress != nil {
			l.cfg.Progress(min(blk.Addr+bs, total), total)
		}
	}
	if l.cfg.Progress != nil {
		l.cfg.Progress(total, total)
	}
	l.log.Info().Int("blocks", n).Msg("programming done")
	return nil
}

// boot starts the program. The device resets while handling the request so
// a failed transfer is not treated as an error.
func (l *Loader) boot(ctx context.Context) {
	l.setState(Booting)
	if err := l.sess.Boot(ctx, l.format, l.cfg.Profile.BlockSize); err != nil {
		l.log.Warn().Err(err).Msg("boot request")
	}
}

func (l *Loader) finish() error {
	if err := l.sess.Close(); err != nil {
		return err
	}
	l.setState(Done)
	return nil
}
