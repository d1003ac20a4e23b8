// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package load

import (
	"errors"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/embeddedgo/teensy/teensyload/internal/cmd/mcus"
	"github.com/embeddedgo/teensy/teensyload/internal/halfkay"
	"github.com/embeddedgo/teensy/teensyload/internal/loader"
	"github.com/embeddedgo/teensy/teensyload/internal/mcu"
	"github.com/embeddedgo/teensy/teensyload/internal/util"
)

const Descr = "load the firmware onto the Teensy board using the HalfKay bootloader"

type options struct {
	mcu        string
	port       string
	busAddr    string
	wait       bool
	hardReboot bool
	softReboot bool
	noReboot   bool
	bootOnly   bool
	verbose    bool
	listMCUs   bool
}

// Command returns the command that programs the board. It is used as the
// root command of the teensyload program.
func Command() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "teensyload --mcu=MCU [OPTIONS] [FILE]",
		Short: Descr,
		Long: Descr + ".\n\n" +
			"FILE is an Intel HEX or ELF file. If omitted, the name of the current\n" +
			"module or directory with the .hex extension is used.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.listMCUs {
				return mcus.Print(cmd.OutOrStdout())
			}
			return o.run(cmd, append(args, "")[0])
		},
	}
	fs := cmd.Flags()
	fs.StringVar(
		&o.mcu, "mcu", os.Getenv("TEENSY_MCU"),
		"MCU or board name (default $TEENSY_MCU), see --list-mcus",
	)
	fs.BoolVarP(&o.wait, "wait", "w", false, "wait for the device to appear")
	fs.BoolVarP(&o.hardReboot, "hard", "r", false, "use hard reboot if the device is not online")
	fs.BoolVarP(&o.softReboot, "soft", "s", false, "use soft reboot if the device is not online")
	fs.BoolVarP(&o.noReboot, "no-reboot", "n", false, "do not reboot after programming")
	fs.BoolVarP(&o.bootOnly, "boot", "b", false, "boot only, do not program")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	fs.StringVar(&o.port, "port", "", "use the serial `TTY` for soft reboot")
	fs.StringVar(&o.busAddr, "usb", "", "select the USB device by `BUS:ADDR`")
	fs.BoolVar(&o.listMCUs, "list-mcus", false, "list the supported MCUs and exit")
	return cmd
}

func (o *options) config(file string) (cfg loader.Config, err error) {
	if o.mcu == "" {
		return cfg, errors.New("MCU type must be specified (--mcu or TEENSY_MCU)")
	}
	if cfg.Profile, err = mcu.Lookup(o.mcu); err != nil {
		return
	}
	if !o.bootOnly {
		if file, _, err = util.InOutFiles(file, ".hex", "", ""); err != nil {
			return
		}
	}
	cfg.File = file
	cfg.Wait = o.wait
	cfg.HardReboot = o.hardReboot
	cfg.SoftReboot = o.softReboot || o.port != ""
	cfg.SerialPort = o.port
	cfg.NoReboot = o.noReboot
	cfg.BootOnly = o.bootOnly
	cfg.Log = util.NewLogger(o.verbose)
	return
}

func (o *options) run(cmd *cobra.Command, file string) error {
	cfg, err := o.config(file)
	if err != nil {
		return err
	}
	if !o.verbose && !o.bootOnly && util.IsTerminal(os.Stderr) {
		bar := progressbar.NewOptions(
			cfg.Profile.CodeSize,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Programming"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		cfg.Progress = func(done, total int) {
			_ = bar.Set(done)
		}
	}
	bus, err := halfkay.NewUSB(o.busAddr)
	if err != nil {
		return err
	}
	defer bus.Close()
	l, err := loader.New(bus, cfg)
	if err != nil {
		return err
	}
	return l.Run(cmd.Context())
}
