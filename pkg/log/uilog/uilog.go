// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package uilog is a StackableLogger that prints operator messages (log.Msgf)
// in the text area of the recovery screen. It does not open or own the
// screen; that is done separately.
package uilog

import (
	"errors"
	"strings"

	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

// Printer is the part of the screen this package needs.
type Printer interface {
	Print(text string)
}

var ENil = errors.New("nil screen")

// AddUILog pushes a sink printing entries that carry any of opts. Earlier
// entries are not replayed, since the operator would see stale messages.
func AddUILog(p Printer, opts flags.Flag) error {
	if p == nil {
		return ENil
	}
	return log.AddLogger(&UILog{opts: opts, p: p}, false)
}

type UILog struct {
	opts flags.Flag
	p    Printer
	next log.StackableLogger
}

var _ log.StackableLogger = (*UILog)(nil)

func (l *UILog) AddEntry(e log.LogEntry) {
	if e.Flags.Has(l.opts) && !e.Flags.Has(flags.NotUI) {
		txt := e.Text()
		if !strings.HasSuffix(txt, "\n") {
			txt += "\n"
		}
		l.p.Print(txt)
	}
	if l.next != nil {
		l.next.AddEntry(e)
	}
}

func (l *UILog) ForwardTo(sl log.StackableLogger) {
	if l.next == nil || sl == nil {
		l.next = sl
	} else {
		panic("next already set")
	}
}

const UILogIdent = "uiLog"

func (*UILog) Ident() string               { return UILogIdent }
func (l *UILog) Next() log.StackableLogger { return l.next }

func (l *UILog) Finalize() {
	if l.next != nil {
		l.next.Finalize()
	}
}
