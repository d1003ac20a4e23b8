// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package firmware

import (
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// DumpHex writes the written bytes of the image to w in the Intel HEX format
// using lineLen data bytes per record. The lineLen must be in the range
// 1..MaxRecordData.
func (m *Image) DumpHex(w io.Writer, lineLen int) error {
	if lineLen < 1 || lineLen > MaxRecordData {
		return fmt.Errorf("bad record length %d (must be 1..%d)", lineLen, MaxRecordData)
	}
	mem := gohex.NewMemory()
	for _, s := range m.Segments() {
		if err := mem.AddBinary(s.Addr, s.Data); err != nil {
			return err
		}
	}
	return mem.DumpIntelHex(w, byte(lineLen))
}
