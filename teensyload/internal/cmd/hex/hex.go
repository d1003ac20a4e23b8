// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/teensy/teensyload/internal/firmware"
	"github.com/embeddedgo/teensy/teensyload/internal/mcu"
	"github.com/embeddedgo/teensy/teensyload/internal/util"
)

const Descr = "convert an ELF or Intel HEX file to the Intel HEX file as seen by the loader"

func Command() *cobra.Command {
	var (
		mcuName string
		inc     string
		lineLen int
	)
	cmd := &cobra.Command{
		Use:   "hex --mcu=MCU [OPTIONS] [IN [OUT]]",
		Short: Descr,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			args = append(args, "", "")
			return run(mcuName, inc, lineLen, args[0], args[1])
		},
	}
	fs := cmd.Flags()
	fs.StringVar(
		&mcuName, "mcu", os.Getenv("TEENSY_MCU"),
		"MCU or board name, see the mcus command",
	)
	fs.StringVar(
		&inc, "inc", "",
		"binary files to be included BIN1:ADDR1[,BIN2:ADDR2[,...]]",
	)
	fs.IntVar(&lineLen, "line", 16, "number of data bytes per record (1..255)")
	return cmd
}

func run(mcuName, inc string, lineLen int, in, out string) error {
	if lineLen < 1 || lineLen > firmware.MaxRecordData {
		return fmt.Errorf("--line must be in the range 1..%d", firmware.MaxRecordData)
	}
	p, err := mcu.Lookup(mcuName)
	if err != nil {
		return err
	}
	inSuffix := ".elf"
	if in != "" {
		inSuffix = filepath.Ext(in)
	}
	in, out, err = util.InOutFiles(in, inSuffix, out, ".hex")
	if err != nil {
		return err
	}
	if filepath.Clean(in) == filepath.Clean(out) {
		return errors.New("the output file would overwrite the input one: " + out)
	}
	img, err := firmware.Load(in, p)
	if err != nil {
		return err
	}
	if inc != "" {
		ss, err := firmware.ReadBins(inc)
		if err != nil {
			return err
		}
		ss.SortByPaddr()
		if err = img.AddSections(ss, p); err != nil {
			return err
		}
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err = img.DumpHex(f, lineLen); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
