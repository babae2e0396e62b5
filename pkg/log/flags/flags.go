// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package flags holds the routing bits of a log entry. Each sink decides from
// them whether an entry is its business.
package flags

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Flag int

// NA routes an entry to the diagnostic sinks only.
const NA Flag = 0

const (
	// EndUser entries reach the operator: screen, console and kmsg.
	EndUser Flag = 1 << iota
	Fatal
	// NotFile keeps an entry out of the session log.
	NotFile
	// NotUI keeps an EndUser entry off the screen, e.g. when the menu is
	// about to draw the same text itself.
	NotUI
)

var names = []struct {
	bit  Flag
	name string
}{
	{EndUser, "user"},
	{Fatal, "fatal"},
	{NotFile, "not file"},
	{NotUI, "not ui"},
}

// Has reports whether any bit of b is set in f.
func (f Flag) Has(b Flag) bool { return f&b != 0 }

func (f Flag) MarshalJSON() ([]byte, error) { return json.Marshal(f.String()) }

// String joins the names of the set bits with "|"; unnamed bits are shown
// in hex.
func (f Flag) String() string {
	var parts []string
	rest := f
	for _, n := range names {
		if f.Has(n.bit) {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", int(rest)))
	}
	return strings.Join(parts, "|")
}
