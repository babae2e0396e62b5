// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package kmsglog is a StackableLogger that copies selected entries into the
// kernel ring buffer.
package kmsglog

import (
	"github.com/purecloudlabs/grecovery/pkg/hw/kmsg"
	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

// AddKmsgLog pushes a sink writing entries carrying any of opts. Fatal
// entries are always written, at critical severity. Entries already in
// memory are replayed.
func AddKmsgLog(opts flags.Flag) error {
	w, err := kmsg.Open(kmsg.FacUser, log.GetPrefix())
	if err != nil {
		return err
	}
	if err = log.AddLogger(&kmsgLog{w: w, opts: opts | flags.Fatal}, true); err != nil {
		w.Close()
		return err
	}
	return nil
}

type kmsgLog struct {
	w    *kmsg.Writer
	opts flags.Flag
	next log.StackableLogger
}

func (l *kmsgLog) AddEntry(e log.LogEntry) {
	if e.Flags&l.opts != 0 {
		sev := kmsg.SevNotice
		if e.Flags&flags.Fatal != 0 {
			sev = kmsg.SevCrit
		}
		//nowhere to report a failure
		_ = l.w.Printf(sev, "%s", e.Text())
	}
	if l.next != nil {
		l.next.AddEntry(e)
	}
}

func (l *kmsgLog) ForwardTo(sl log.StackableLogger) {
	if l.next == nil || sl == nil {
		l.next = sl
	} else {
		panic("next already set")
	}
}

const KmsgLogIdent = "kmsgLog"

func (*kmsgLog) Ident() string               { return KmsgLogIdent }
func (l *kmsgLog) Next() log.StackableLogger { return l.next }

func (l *kmsgLog) Finalize() {
	l.w.Close()
	if l.next != nil {
		l.next.Finalize()
	}
}
