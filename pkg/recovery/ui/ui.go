// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package ui defines what recovery needs from a screen and a keypad, and
// provides a text implementation for a terminal or serial console.
package ui

// Background is the full-screen status image shown behind the text.
type Background int

const (
	BackgroundNone Background = iota
	BackgroundInstalling
	BackgroundError
)

func (b Background) String() string {
	switch b {
	case BackgroundInstalling:
		return "installing"
	case BackgroundError:
		return "error"
	}
	return "none"
}

// Screen shows progress, text and menus.
type Screen interface {
	// Print appends text to the scrolling log area.
	Print(s string)
	SetBackground(b Background)
	ShowIndeterminateProgress()
	ResetProgress()
	// TextVisible is true if the operator can see printed text.
	TextVisible() bool
	// StartMenu shows a menu, replacing the scrolling text until EndMenu.
	StartMenu(headers, items []string, initial int)
	// SelectMenu highlights item sel and returns the index actually
	// highlighted.
	SelectMenu(sel int) int
	EndMenu()
}

// Keys delivers key presses, using the codes in package input.
type Keys interface {
	// WaitKey blocks for the next press. An error means no more keys will
	// come.
	WaitKey() (int, error)
	// ClearKeys discards presses not yet read.
	ClearKeys()
	// Pressed reports whether a key is held down.
	Pressed(key int) bool
}

type UI interface {
	Screen
	Keys
}

type combined struct {
	Screen
	Keys
}

// Combine joins a screen with a key source.
func Combine(s Screen, k Keys) UI { return combined{s, k} }
