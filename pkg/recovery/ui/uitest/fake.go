// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package uitest provides a scripted UI for tests.
package uitest

import (
	"io"
	"strings"
	"sync"

	"github.com/purecloudlabs/grecovery/pkg/recovery/ui"
)

type step struct {
	key  int
	held []int
}

// Fake plays back scripted key presses and records everything shown. When
// the script runs out, WaitKey returns io.EOF.
type Fake struct {
	mu      sync.Mutex
	script  []step
	held    map[int]bool
	visible bool
	text    strings.Builder

	Backgrounds []ui.Background
	// Items of each menu started, in order.
	Menus       [][]string
	Highlighted []int
	Dots        int
	Resets      int
	Clears      int
	InMenu      bool
}

var _ ui.UI = (*Fake)(nil)

func New(visible bool, keys ...int) *Fake {
	f := &Fake{visible: visible, held: map[int]bool{}}
	f.Keys(keys...)
	return f
}

// Keys appends plain presses to the script.
func (f *Fake) Keys(keys ...int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		f.script = append(f.script, step{key: k})
	}
	return f
}

// Chord appends a press of key made while held are down.
func (f *Fake) Chord(key int, held ...int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, step{key: key, held: held})
	return f
}

func (f *Fake) WaitKey() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = map[int]bool{}
	if len(f.script) == 0 {
		return 0, io.EOF
	}
	s := f.script[0]
	f.script = f.script[1:]
	for _, h := range s.held {
		f.held[h] = true
	}
	return s.key, nil
}

// ClearKeys counts calls; scripted keys stand for presses made after the
// clear, so none are dropped.
func (f *Fake) ClearKeys() {
	f.mu.Lock()
	f.Clears++
	f.mu.Unlock()
}

// Pressed reports keys held for the most recent press. They are released
// when it is read again.
func (f *Fake) Pressed(key int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		// one look is enough to see the chord; later polls see release
		delete(f.held, key)
		return true
	}
	return false
}

// Remaining is the number of unread scripted presses.
func (f *Fake) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.script)
}

func (f *Fake) Print(s string) {
	f.mu.Lock()
	f.text.WriteString(s)
	f.mu.Unlock()
}

// Text returns everything printed.
func (f *Fake) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text.String()
}

func (f *Fake) SetBackground(b ui.Background) {
	f.mu.Lock()
	f.Backgrounds = append(f.Backgrounds, b)
	f.mu.Unlock()
}

// LastBackground returns the most recent background, or BackgroundNone.
func (f *Fake) LastBackground() ui.Background {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Backgrounds) == 0 {
		return ui.BackgroundNone
	}
	return f.Backgrounds[len(f.Backgrounds)-1]
}

func (f *Fake) ShowIndeterminateProgress() {
	f.mu.Lock()
	f.Dots++
	f.mu.Unlock()
}

func (f *Fake) ResetProgress() {
	f.mu.Lock()
	f.Resets++
	f.mu.Unlock()
}

func (f *Fake) TextVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

func (f *Fake) SetTextVisible(v bool) {
	f.mu.Lock()
	f.visible = v
	f.mu.Unlock()
}

func (f *Fake) StartMenu(headers, items []string, initial int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Menus = append(f.Menus, append([]string(nil), items...))
	f.InMenu = true
	f.Highlighted = append(f.Highlighted, initial)
}

func (f *Fake) SelectMenu(sel int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Highlighted = append(f.Highlighted, sel)
	return sel
}

func (f *Fake) EndMenu() {
	f.mu.Lock()
	f.InMenu = false
	f.mu.Unlock()
}
