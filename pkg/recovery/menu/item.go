// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package menu

import (
	"time"

	"github.com/purecloudlabs/grecovery/pkg/recovery/keymap"
)

// Kind is what selecting an item does.
type Kind string

const (
	// KindReboot leaves the menu.
	KindReboot Kind = "reboot"
	// KindInstall applies Package.
	KindInstall Kind = "install"
	// KindChoose lists Ext files in Dir and installs the one picked.
	KindChoose Kind = "choose"
	// KindRun performs Steps.
	KindRun Kind = "run"
)

// Item is one menu entry. Everything an entry does is described here, so
// a device's menu is data rather than code.
type Item struct {
	Label    string          `yaml:"label"`
	Kind     Kind            `yaml:"kind"`
	Shortcut keymap.Shortcut `yaml:"shortcut,omitempty"`
	// Confirm requires the confirm key before anything happens. Warning
	// lines are shown first.
	Confirm bool     `yaml:"confirm,omitempty"`
	Warning []string `yaml:"warning,omitempty"`
	// Require lists roots that must mount before anything runs.
	Require []string `yaml:"require,omitempty"`
	// Resume is the command line equivalent; it is checkpointed while the
	// item runs so an interrupted operation restarts after power loss.
	Resume []string `yaml:"resume,omitempty"`

	Package string `yaml:"package,omitempty"`

	Dir     string   `yaml:"dir,omitempty"`
	Ext     string   `yaml:"ext,omitempty"`
	Headers []string `yaml:"headers,omitempty"`
	// Pre runs before the listing; its outcome is not checked.
	Pre []Step `yaml:"pre,omitempty"`

	Steps []Step `yaml:"steps,omitempty"`

	Start   string `yaml:"start,omitempty"`
	Success string `yaml:"success,omitempty"`
	Failure string `yaml:"failure,omitempty"`
	Aborted string `yaml:"aborted,omitempty"`
	// ExitHidden leaves the menu after success if the operator cannot see
	// the text.
	ExitHidden bool `yaml:"exit_hidden,omitempty"`
}

// Step is one action of a KindRun item. Exactly one of Run, Write, Sleep,
// Sync or Format should be set.
type Step struct {
	// Run is a command line, split with shell quoting rules.
	Run string `yaml:"run,omitempty"`
	// Write puts Value into the file Write.
	Write string `yaml:"write,omitempty"`
	Value string `yaml:"value,omitempty"`
	Sleep time.Duration `yaml:"sleep,omitempty"`
	Sync  bool          `yaml:"sync,omitempty"`
	// Format erases a root.
	Format string `yaml:"format,omitempty"`
	// Ignore keeps the step's outcome out of the item's result.
	Ignore bool `yaml:"ignore,omitempty"`
}

func (s Step) String() string {
	switch {
	case s.Run != "":
		return "run " + s.Run
	case s.Write != "":
		return "write " + s.Write
	case s.Sleep > 0:
		return "sleep " + s.Sleep.String()
	case s.Sync:
		return "sync"
	case s.Format != "":
		return "format " + s.Format
	}
	return "nop"
}
