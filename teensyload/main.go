// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Teensyload programs Teensy boards using the HalfKay bootloader.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/embeddedgo/teensy/teensyload/internal/cmd/hex"
	"github.com/embeddedgo/teensy/teensyload/internal/cmd/load"
	"github.com/embeddedgo/teensy/teensyload/internal/cmd/mcus"
	"github.com/embeddedgo/teensy/teensyload/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := load.Command()
	root.AddCommand(hex.Command(), mcus.Command())
	err := root.ExecuteContext(ctx)
	stop()
	util.FatalErr("teensyload", err)
}
