// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package menu

import "github.com/purecloudlabs/grecovery/pkg/recovery/keymap"

// Chosen values other than an item index.
const (
	ChosenNone = -1
	ChosenBack = -2
)

// State is a menu being browsed.
type State struct {
	Headers     []string
	Items       []string
	Highlighted int
	Chosen      int
}

func NewState(headers, items []string) *State {
	return &State{Headers: headers, Items: items, Chosen: ChosenNone}
}

// Apply updates the state for one action and reports whether the highlight
// moved. Movement wraps around at both ends.
func (s *State) Apply(a keymap.Action) (moved bool) {
	n := len(s.Items)
	switch a {
	case keymap.MoveUp, keymap.MoveDown:
		if n == 0 {
			return false
		}
		d := 1
		if a == keymap.MoveUp {
			d = -1
		}
		s.Highlighted = ((s.Highlighted+d)%n + n) % n
		return true
	case keymap.Select:
		if n > 0 {
			s.Chosen = s.Highlighted
		}
	case keymap.Back:
		s.Chosen = ChosenBack
	}
	return false
}

// Reset returns to the top with nothing chosen.
func (s *State) Reset() {
	s.Highlighted = 0
	s.Chosen = ChosenNone
}
