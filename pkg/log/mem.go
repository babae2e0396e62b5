// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

// memLog is the default sink. It keeps entries in memory without displaying
// them, so that sinks attached later can be given the full history.
type memLog struct {
	entries []LogEntry
	next    StackableLogger
}

var _ StackableLogger = (*memLog)(nil)

// AddMemLog pushes a memory sink. Rarely needed since the stack starts with
// one.
func AddMemLog() error { return AddLogger(&memLog{}, false) }

func (ml *memLog) AddEntry(e LogEntry) {
	ml.entries = append(ml.entries, e)
	if ml.next != nil {
		ml.next.AddEntry(e)
	}
}

func (ml *memLog) ForwardTo(sl StackableLogger) {
	if ml.next == nil || sl == nil {
		ml.next = sl
	} else {
		panic("next already set")
	}
}

const MemLogIdent = "memLog"

func (ml *memLog) Ident() string         { return MemLogIdent }
func (ml *memLog) Next() StackableLogger { return ml.next }

func (ml *memLog) Finalize() {
	ml.entries = nil
	if ml.next != nil {
		ml.next.Finalize()
	}
}

func (ml *memLog) Entries() []LogEntry { return ml.entries }

// StoredEntries returns what the memory sink has retained, or nil if there is
// no memory sink.
func StoredEntries() []LogEntry {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	ml, ok := FindInStack(MemLogIdent).(*memLog)
	if !ok {
		return nil
	}
	out := make([]LogEntry, len(ml.entries))
	copy(out, ml.entries)
	return out
}

// FlushMemLog drops the memory sink once real sinks are attached.
func FlushMemLog() {
	RemoveLogger(MemLogIdent)
}
