// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"io"
	"os"

	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

// writerLog prints entries as text lines. On the device stderr is the
// serial console, which is where a session without a usable log file
// reports.
type writerLog struct {
	want flags.Flag
	out  io.Writer
	next StackableLogger
}

const ConsoleLogIdent = "consoleLog"

// AddConsoleLog pushes a sink writing to stderr. NA accepts every entry;
// otherwise only entries carrying one of want's bits are printed.
func AddConsoleLog(want flags.Flag) {
	_ = AddLogger(&writerLog{want: want, out: os.Stderr}, true)
}

// AddWriterLog is AddConsoleLog with another destination. Only one such sink
// may be on the stack at a time.
func AddWriterLog(want flags.Flag, w io.Writer) error {
	return AddLogger(&writerLog{want: want, out: w}, true)
}

var _ StackableLogger = (*writerLog)(nil)

func (l *writerLog) AddEntry(e LogEntry) {
	if l.want == flags.NA || e.Flags.Has(l.want) {
		fmt.Fprintln(l.out, e.String())
	}
	if l.next != nil {
		l.next.AddEntry(e)
	}
}

func (l *writerLog) ForwardTo(sl StackableLogger) {
	if l.next != nil && sl != nil {
		panic("next already set")
	}
	l.next = sl
}

func (*writerLog) Ident() string           { return ConsoleLogIdent }
func (l *writerLog) Next() StackableLogger { return l.next }

func (l *writerLog) Finalize() {
	if l.next != nil {
		l.next.Finalize()
	}
}
