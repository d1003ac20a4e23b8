// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcus

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/teensy/teensyload/internal/mcu"
)

const Descr = "list the supported MCUs and boards"

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "mcus",
		Short: Descr,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Print(cmd.OutOrStdout())
		},
	}
}

// Print writes the table of supported MCUs to w.
func Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "NAME\tCODE SIZE\tBLOCK SIZE\t")
	for _, p := range mcu.All() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t\n", p.Name, p.CodeSize, p.BlockSize)
	}
	return tw.Flush()
}
