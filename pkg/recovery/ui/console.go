// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// TextScreen renders to a character terminal. Menus are redrawn in full on
// every change; the terminal's own scrollback holds older text.
type TextScreen struct {
	mu      sync.Mutex
	out     io.Writer
	visible bool
	bg      Background
	// Raw terminals need explicit carriage returns.
	crlf bool

	headers []string
	items   []string
	sel     int
	inMenu  bool
	dots    int
}

var _ Screen = (*TextScreen)(nil)

// NewTextScreen writes to out. visible is what TextVisible reports until
// changed with SetTextVisible.
func NewTextScreen(out io.Writer, visible bool) *TextScreen {
	return &TextScreen{out: out, visible: visible}
}

// SetRaw makes newlines go out as CRLF, for a terminal in raw mode.
func (t *TextScreen) SetRaw(raw bool) {
	t.mu.Lock()
	t.crlf = raw
	t.mu.Unlock()
}

func (t *TextScreen) write(s string) {
	if t.crlf {
		s = strings.ReplaceAll(s, "\n", "\r\n")
	}
	io.WriteString(t.out, s)
}

func (t *TextScreen) Print(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dots > 0 && !strings.HasPrefix(s, "\n") {
		t.write("\n")
	}
	t.dots = 0
	t.write(s)
}

func (t *TextScreen) SetBackground(b Background) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b == t.bg {
		return
	}
	t.bg = b
	if b != BackgroundNone {
		t.write(fmt.Sprintf("[%s]\n", b))
	}
}

// Background returns the current background.
func (t *TextScreen) Background() Background {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bg
}

// ShowIndeterminateProgress draws one more dot; call it repeatedly.
func (t *TextScreen) ShowIndeterminateProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dots++
	t.write(".")
}

func (t *TextScreen) ResetProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dots > 0 {
		t.write("\n")
	}
	t.dots = 0
}

func (t *TextScreen) TextVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

func (t *TextScreen) SetTextVisible(v bool) {
	t.mu.Lock()
	t.visible = v
	t.mu.Unlock()
}

func (t *TextScreen) StartMenu(headers, items []string, initial int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.headers = append([]string(nil), headers...)
	t.items = append([]string(nil), items...)
	t.inMenu = true
	t.sel = clamp(initial, len(t.items))
	t.draw()
}

func (t *TextScreen) SelectMenu(sel int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inMenu {
		return sel
	}
	sel = clamp(sel, len(t.items))
	if sel != t.sel {
		t.sel = sel
		t.draw()
	}
	return sel
}

func (t *TextScreen) EndMenu() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inMenu = false
}

func clamp(sel, n int) int {
	if sel >= n {
		sel = n - 1
	}
	if sel < 0 {
		sel = 0
	}
	return sel
}

func (t *TextScreen) draw() {
	var sb strings.Builder
	sb.WriteString("\n")
	for _, h := range t.headers {
		sb.WriteString(h + "\n")
	}
	for i, it := range t.items {
		mark := "  "
		if i == t.sel {
			mark = "> "
		}
		sb.WriteString(mark + it + "\n")
	}
	t.write(sb.String())
}
