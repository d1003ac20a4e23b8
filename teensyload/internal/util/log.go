// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewLogger returns the logger that writes human readable messages to
// stderr. Only warnings and errors are printed unless verbose is set.
func NewLogger(verbose bool) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:          os.Stderr,
		NoColor:      !IsTerminal(os.Stderr),
		PartsExclude: []string{zerolog.TimestampFieldName},
	}
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level)
}
