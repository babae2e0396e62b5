// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"sync"
	"time"

	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

// StackableLogger is one sink in the chain. Each sink handles an entry and
// passes it along to the next.
//
// Code that merely logs never touches this; it calls Logf, Msgf, Fatalf etc.
type StackableLogger interface {
	// AddEntry handles e, then must pass it to Next() if non-nil.
	AddEntry(e LogEntry)

	// ForwardTo chains the next logger. Setting it twice (other than to nil)
	// is an error.
	ForwardTo(StackableLogger)

	// Ident names the sink type. Only one of each type may be in the stack.
	Ident() string

	// Next returns the chained logger or nil.
	Next() StackableLogger

	// Finalize flushes and releases resources, then must call Finalize on
	// Next() if non-nil.
	Finalize()
}

// Top of the stack. Guarded by logStackMtx.
var logStack StackableLogger = &memLog{}

var logStackMtx sync.Mutex

type stackErr struct {
	Id string
}

func (se *stackErr) Error() string {
	return fmt.Sprintf("logger %s is already in the stack", se.Id)
}

// Finalize flushes and closes every sink in the stack.
func Finalize() {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	logStack.Finalize()
}

// DefaultLogStack finalizes the current stack and replaces it with a lone
// memory sink.
func DefaultLogStack() { NewLogStack(&memLog{}) }

// NewLogStack finalizes the current stack and makes newLog the only sink.
func NewLogStack(newLog StackableLogger) {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	if logStack != nil {
		logStack.Finalize()
	}
	logStack = newLog
	fileName = ""
}

// AddLogger pushes sl on top of the stack. If addPrevious is true, entries
// retained by a memory sink are replayed into sl first.
//
// Prefer the AddXLog helpers (AddConsoleLog, AddSessionLog, uilog.AddUILog...);
// this is meant for them.
//
// The only error is a duplicate sink type.
func AddLogger(sl StackableLogger, addPrevious bool) error {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	if err := checkDuplicate(sl, logStack); err != nil {
		return err
	}
	if addPrevious {
		replay(sl)
	}
	sl.ForwardTo(logStack)
	logStack = sl
	return nil
}

func checkDuplicate(newLogger, sl StackableLogger) error {
	for ; sl != nil; sl = sl.Next() {
		if newLogger.Ident() == sl.Ident() {
			return &stackErr{Id: sl.Ident()}
		}
	}
	return nil
}

// RemoveLogger unlinks and finalizes the sink with the given id.
func RemoveLogger(id string) {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	var prev StackableLogger
	for l := logStack; l != nil; l = l.Next() {
		if l.Ident() != id {
			prev = l
			continue
		}
		next := l.Next()
		l.ForwardTo(nil)
		l.Finalize()
		if prev == nil {
			if next == nil {
				next = &memLog{}
			}
			logStack = next
		} else {
			prev.ForwardTo(nil)
			prev.ForwardTo(next)
		}
		return
	}
}

// LogEntry is what travels through the stack.
type LogEntry struct {
	Time  time.Time `json:"t"`
	Msg   string
	Args  []interface{} `json:",omitempty"`
	Flags flags.Flag    `json:",omitempty"`
}

// FlaggedLogf is the backend of Logf, Msgf and Fatalf.
func FlaggedLogf(opts flags.Flag, f string, va ...interface{}) {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	logStack.AddEntry(LogEntry{
		Time:  time.Now(),
		Flags: opts,
		Msg:   f,
		Args:  va,
	})
}

// Text returns the formatted message without decoration.
func (le *LogEntry) Text() string {
	if len(le.Args) == 0 {
		return le.Msg
	}
	return fmt.Sprintf(le.Msg, le.Args...)
}

// TimestampLayout is applied to entry times by the text sinks. The durable
// log separates sessions with a header line, so the date is omitted.
var TimestampLayout = "15:04:05.000"

func (le *LogEntry) String() string {
	var div string
	switch {
	case le.Flags&flags.Fatal != 0:
		div = "!! "
	case le.Flags&flags.EndUser != 0:
		div = "-- "
	case le.Flags&^(flags.NotFile|flags.NotUI) == 0:
		div = "*- "
	default:
		div = "?? "
	}
	return div + le.Time.Format(TimestampLayout) + " " + div + le.Text()
}

// replay copies entries retained in memory into a newly added sink.
func replay(newlog StackableLogger) {
	if _, isMem := newlog.(*memLog); isMem {
		return
	}
	if mem, ok := FindInStack(MemLogIdent).(*memLog); ok {
		for _, e := range mem.Entries() {
			newlog.AddEntry(e)
		}
	}
}

// InStack reports whether a sink with the given id is in the stack.
func InStack(id string) bool {
	return FindInStack(id) != nil
}

// FindInStack returns the sink with the given id, or nil.
func FindInStack(id string) StackableLogger {
	for l := logStack; l != nil; l = l.Next() {
		if l.Ident() == id {
			return l
		}
	}
	return nil
}
