// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/teensy/teensyload/internal/firmware"
	"github.com/embeddedgo/teensy/teensyload/internal/mcu"
)

const (
	inHex = ":0400100001020304E2\n" +
		":020000040001F9\n" +
		":01000000AA55\n" +
		":00000001FF\n"
)

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "fw.ihex")
	out := filepath.Join(dir, "out.hex")
	bin := filepath.Join(dir, "extra.bin")
	require.NoError(t, os.WriteFile(in, []byte(inHex), 0o644))
	require.NoError(t, os.WriteFile(bin, []byte{7, 8}, 0o644))

	cmd := Command()
	cmd.SetArgs([]string{"--mcu", "teensy31", "--inc", bin + ":0x20", in, out})
	require.NoError(t, cmd.Execute())

	p, err := mcu.Lookup("TEENSY31")
	require.NoError(t, err)
	img, err := firmware.LoadHex(out, p)
	require.NoError(t, err)
	assert.True(t, img.EndRecord)
	assert.Equal(t, []firmware.Segment{
		{Addr: 0x10, Data: []byte{1, 2, 3, 4}},
		{Addr: 0x20, Data: []byte{7, 8}},
		{Addr: 0x10000, Data: []byte{0xaa}},
	}, img.Segments())
}

func TestDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "fw.ihex")
	require.NoError(t, os.WriteFile(in, []byte(inHex), 0o644))
	require.NoError(t, run("teensy31", "", 16, in, ""))
	_, err := os.Stat(filepath.Join(dir, "fw.hex"))
	assert.NoError(t, err)
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "fw.hex")
	require.NoError(t, os.WriteFile(in, []byte(inHex), 0o644))

	assert.ErrorIs(t, run("teensy99", "", 16, in, ""), mcu.ErrUnknown)
	assert.ErrorContains(t, run("teensy31", "", 16, in, ""), "overwrite")
	assert.ErrorIs(t, run("teensy31", "", 16, filepath.Join(dir, "none.hex"), filepath.Join(dir, "o.hex")), os.ErrNotExist)
	assert.Error(t, run("teensy31", "nocolon", 16, in, filepath.Join(dir, "o.hex")))
}

func TestLineLength(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "fw.ihex")
	require.NoError(t, os.WriteFile(in, []byte(inHex), 0o644))
	for _, n := range []string{"0", "256", "-1"} {
		out := filepath.Join(dir, "out"+n+".hex")
		cmd := Command()
		cmd.SetArgs([]string{"--mcu", "teensy31", "--line", n, in, out})
		assert.ErrorContains(t, cmd.Execute(), "--line must be in the range 1..255", n)
		_, err := os.Stat(out)
		assert.ErrorIs(t, err, os.ErrNotExist, n)
	}

	out := filepath.Join(dir, "out255.hex")
	require.NoError(t, run("teensy31", "", 255, in, out))
	p, err := mcu.Lookup("teensy31")
	require.NoError(t, err)
	img, err := firmware.LoadHex(out, p)
	require.NoError(t, err)
	assert.Equal(t, 5, img.WrittenCount())
}
