// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/purecloudlabs/grecovery/pkg/hw/input"
)

func TestTextScreenMenu(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextScreen(&buf, true)
	s.StartMenu([]string{"Android system recovery"}, []string{"Reboot", "Wipe"}, 0)
	if got := s.SelectMenu(5); got != 1 {
		t.Errorf("want clamp to 1, got %d", got)
	}
	if got := s.SelectMenu(-1); got != 0 {
		t.Errorf("want clamp to 0, got %d", got)
	}
	s.EndMenu()
	want := "\nAndroid system recovery\n> Reboot\n  Wipe\n" +
		"\nAndroid system recovery\n  Reboot\n> Wipe\n" +
		"\nAndroid system recovery\n> Reboot\n  Wipe\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestTextScreenProgress(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextScreen(&buf, false)
	s.SetRaw(true)
	s.SetBackground(BackgroundInstalling)
	s.SetBackground(BackgroundInstalling)
	s.Print("Formatting DATA:...")
	s.ShowIndeterminateProgress()
	s.ShowIndeterminateProgress()
	s.Print("done\n")
	if s.TextVisible() {
		t.Error("text should start hidden")
	}
	if s.Background() != BackgroundInstalling {
		t.Errorf("want installing, got %s", s.Background())
	}
	want := "[installing]\r\nFormatting DATA:.....\r\ndone\r\n"
	if got := buf.String(); got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func TestTTYDecode(t *testing.T) {
	k := NewReaderKeys(strings.NewReader("\x1b[B\x1b[A\r\x7fYh\x1bw"))
	var got []int
	var altWithW bool
	for {
		key, err := k.WaitKey()
		if err != nil {
			break
		}
		got = append(got, key)
		if key == input.KeyW {
			altWithW = k.Pressed(input.KeyLeftAlt)
		}
	}
	want := []int{input.KeyDown, input.KeyUp, input.KeyEnter, input.KeyBackspace,
		input.KeyY, input.KeyHome, input.KeyLeftAlt, input.KeyW}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if !altWithW {
		t.Error("alt not held with W")
	}
	if k.Raw() {
		t.Error("reader is not a terminal")
	}
	if err := k.Close(); err != nil {
		t.Error(err)
	}
}

func TestCombine(t *testing.T) {
	s := NewTextScreen(&bytes.Buffer{}, true)
	q := input.NewQueue(1)
	q.Press(input.KeyEnter)
	u := Combine(s, q)
	if k, err := u.WaitKey(); err != nil || k != input.KeyEnter {
		t.Errorf("got %d, %v", k, err)
	}
	if !u.TextVisible() {
		t.Error("not visible")
	}
}
