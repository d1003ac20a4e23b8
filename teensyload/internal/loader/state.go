// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import "strconv"

// State is the stage of a Run.
type State uint8

const (
	Idle State = iota
	Searching
	Rebooting
	Waiting
	Found
	Programming
	Booting
	Done
	Failed
)

var stateStr = [...]string{
	Idle:        "idle",
	Searching:   "searching",
	Rebooting:   "rebooting",
	Waiting:     "waiting",
	Found:       "found",
	Programming: "programming",
	Booting:     "booting",
	Done:        "done",
	Failed:      "failed",
}

func (s State) String() string {
	if int(s) < len(stateStr) {
		return stateStr[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}
