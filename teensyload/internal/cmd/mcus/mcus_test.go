// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/teensy/teensyload/internal/mcu"
)

func TestCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := Command()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, len(mcu.All())+1)
	assert.Equal(t, []string{"NAME", "CODE", "SIZE", "BLOCK", "SIZE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"at90usb162", "15872", "128"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"TEENSY_MICROMOD", "16515072", "1024"}, strings.Fields(lines[len(lines)-1]))
}
