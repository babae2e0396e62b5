// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package keymap turns raw key codes into menu actions. Devices differ in
// which keys they have, so there is one Mapper per device family.
package keymap

import (
	"fmt"
	"sort"

	"github.com/purecloudlabs/grecovery/pkg/hw/input"
)

type Action int

const (
	None Action = iota
	MoveUp
	MoveDown
	Select
	Back
)

func (a Action) String() string {
	switch a {
	case MoveUp:
		return "up"
	case MoveDown:
		return "down"
	case Select:
		return "select"
	case Back:
		return "back"
	}
	return "none"
}

// Mapper is a device's key table.
type Mapper interface {
	// Action maps a key press. Navigation only happens while the menu is
	// visible.
	Action(key int, visible bool) Action
	// ConfirmKey is the one key that confirms a destructive action.
	ConfirmKey() int
	// ConfirmLabel names ConfirmKey for prompts.
	ConfirmLabel() string
}

// Pressed is the part of a key source Shortcuts needs.
type Pressed interface {
	Pressed(key int) bool
}

// Shortcut names an item to run directly from a key combination.
type Shortcut string

const (
	ShortcutNone    Shortcut = ""
	ShortcutReboot  Shortcut = "reboot"
	ShortcutWipe    Shortcut = "wipe"
	ShortcutSDCard  Shortcut = "sdcard"
	ShortcutAnyZip  Shortcut = "anyzip"
	ShortcutBackup  Shortcut = "backup"
	ShortcutRestore Shortcut = "restore"
)

// Shortcuts is implemented by mappers with chorded keys.
type Shortcuts interface {
	// Shortcut checks key, with the state of other keys from p.
	Shortcut(key int, p Pressed) Shortcut
	// ReleaseKeys lists keys to wait on before acting on s, so a chord
	// still held does not trigger a boot mode.
	ReleaseKeys(s Shortcut) []int
}

// table is the common key-set based mapper.
type table struct {
	up, down, sel, back []int
	confirm             int
	label               string
}

func in(k int, set []int) bool {
	for _, s := range set {
		if s == k {
			return true
		}
	}
	return false
}

func (t *table) Action(key int, visible bool) Action {
	if !visible {
		return None
	}
	switch {
	case in(key, t.up):
		return MoveUp
	case in(key, t.down):
		return MoveDown
	case in(key, t.sel):
		return Select
	case in(key, t.back):
		return Back
	}
	return None
}

func (t *table) ConfirmKey() int      { return t.confirm }
func (t *table) ConfirmLabel() string { return t.label }

// handset is the HTC/Samsung family: back+home reboots, alt+letter runs the
// common items.
type handset struct{ table }

var altLetters = map[int]Shortcut{
	input.KeyW: ShortcutWipe,
	input.KeyS: ShortcutSDCard,
	input.KeyA: ShortcutAnyZip,
	input.KeyB: ShortcutBackup,
	input.KeyR: ShortcutRestore,
}

func (h *handset) Shortcut(key int, p Pressed) Shortcut {
	if key == input.KeyBack && p.Pressed(input.KeyHome) {
		return ShortcutReboot
	}
	if p.Pressed(input.KeyLeftAlt) || p.Pressed(input.KeyRightAlt) {
		return altLetters[key]
	}
	return ShortcutNone
}

func (h *handset) ReleaseKeys(s Shortcut) []int {
	if s == ShortcutReboot {
		return []int{input.KeyBack, input.KeyHome}
	}
	return nil
}

var (
	updown = struct{ up, down []int }{
		up:   []int{input.KeyUp, input.KeyVolumeUp},
		down: []int{input.KeyDown, input.KeyVolumeDown},
	}
)

// Dream is the trackball handset: trackball click selects.
func Dream() Mapper {
	return &handset{table{
		up: updown.up, down: updown.down,
		sel:     []int{input.BtnMouse},
		back:    []int{input.KeyBack},
		confirm: input.KeyHome,
		label:   "HOME",
	}}
}

// Galaxy is the i7500: the centre key selects as well.
func Galaxy() Mapper {
	return &handset{table{
		up: updown.up, down: updown.down,
		sel:     []int{input.BtnMouse, input.KeyI7500Center},
		back:    []int{input.KeyBack},
		confirm: input.KeyHome,
		label:   "HOME",
	}}
}

// Console is a PC keyboard on a terminal.
func Console() Mapper {
	return &consoleMap{handset{table{
		up: updown.up, down: updown.down,
		sel:     []int{input.KeyEnter},
		back:    []int{input.KeyEsc, input.KeyBackspace},
		confirm: input.KeyY,
		label:   "Y",
	}}}
}

// consoleMap keeps the alt shortcuts; there is no back+home chord.
type consoleMap struct{ handset }

func (c *consoleMap) Shortcut(key int, p Pressed) Shortcut {
	if s := c.handset.Shortcut(key, p); s != ShortcutReboot {
		return s
	}
	return ShortcutNone
}

var variants = map[string]func() Mapper{
	"dream":   Dream,
	"galaxy":  Galaxy,
	"console": Console,
}

// Names lists the known variants.
func Names() []string {
	var n []string
	for k := range variants {
		n = append(n, k)
	}
	sort.Strings(n)
	return n
}

// ByName returns the named variant.
func ByName(name string) (Mapper, error) {
	f, ok := variants[name]
	if !ok {
		return nil, fmt.Errorf("unknown key map %q, want one of %v", name, Names())
	}
	return f(), nil
}
