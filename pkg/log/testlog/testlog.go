// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build !release

// Package testlog captures output of github.com/purecloudlabs/grecovery/pkg/log
// in tests. By default entries go through t.Logf; with bufferLog they are
// kept in a buffer for the test to inspect.
package testlog

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

// TstLog is a StackableLogger for tests. Construct with NewTestLog.
type TstLog struct {
	events        chan log.LogEntry
	t             *testing.T
	Buf           *bytes.Buffer //if non-nil, entries go here instead of t.Logf
	MsgCount      int           //number of Msgf entries
	LogCount      int           //number of Logf entries
	FatalCount    int           //number of Fatalf entries
	FatalIsNotErr bool          //if true, Fatalf does not fail the test
	freeze        bool
	stderr        bool
	mu            sync.RWMutex
	bgWg          sync.WaitGroup
}

// NewTestLog replaces the log stack with a TstLog. If bufferLog is true,
// entries are stored in Buf. Use one per test and call Freeze when done.
func NewTestLog(t *testing.T, bufferLog, stderr bool) (tlog *TstLog) {
	tlog = &TstLog{
		events: make(chan log.LogEntry, 1024),
		t:      t,
		stderr: stderr,
	}
	if bufferLog {
		tlog.Buf = new(bytes.Buffer)
	}
	tlog.bgWg.Add(1)
	go tlog.bgProc()
	log.NewLogStack(tlog)
	log.SetFatalAction(log.FailAction{Terminator: func() {}})
	return
}

var _ log.StackableLogger = (*TstLog)(nil)

func (tlog *TstLog) AddEntry(e log.LogEntry) {
	tlog.mu.RLock()
	freeze := tlog.freeze
	tlog.mu.RUnlock()
	if freeze {
		return
	}
	switch {
	case e.Flags&flags.Fatal != 0:
		e.Msg = ">>FATAL()<< " + e.Msg
	case e.Flags&flags.EndUser != 0:
		e.Msg = "MSG:" + e.Msg
	default:
		e.Msg = "LOG:" + e.Msg
	}
	tlog.events <- e
}

const TstLogIdent = "tstLog"

func (*TstLog) Ident() string                      { return TstLogIdent }
func (tl *TstLog) Next() log.StackableLogger       { return nil }
func (*TstLog) Finalize()                          {}
func (tl *TstLog) ForwardTo(_ log.StackableLogger) {}

func (tlog *TstLog) bgProc() {
	defer tlog.bgWg.Done()
	for evt := range tlog.events {
		tlog.handleEvt(evt)
	}
}

func (tlog *TstLog) handleEvt(evt log.LogEntry) {
	text := evt.Text()
	tlog.mu.Lock()
	defer tlog.mu.Unlock()
	switch {
	case evt.Flags&flags.Fatal != 0:
		tlog.FatalCount++
		if !tlog.FatalIsNotErr {
			tlog.t.Errorf("@%s: %s", evt.Time.Format(stampMilli), text)
			return
		}
	case evt.Flags&flags.EndUser != 0:
		tlog.MsgCount++
	default:
		tlog.LogCount++
	}
	if tlog.stderr {
		fmt.Fprintf(os.Stderr, "@%s: %s\n", evt.Time.Format(stampMilli), text)
	}
	if tlog.Buf != nil {
		// one entry per line, so multi-line messages are flattened
		fmt.Fprintln(tlog.Buf, strings.ReplaceAll(strings.TrimRight(text, "\n"), "\n", "\\n"))
	} else {
		tlog.t.Logf("@%s: %s", evt.Time.Format(stampMilli), text)
	}
}

const stampMilli = "15:04:05.000"

// Logf injects an entry directly, e.g. as a separator.
func (tlog *TstLog) Logf(f string, va ...interface{}) {
	tlog.AddEntry(log.LogEntry{
		Time: time.Now(),
		Msg:  f,
		Args: va,
	})
}

// Freeze waits for buffered entries to be handled and restores the default
// log stack. Call at the end of the test, before inspecting Buf.
func (tlog *TstLog) Freeze() {
	tlog.mu.Lock()
	if tlog.freeze {
		tlog.mu.Unlock()
		return
	}
	tlog.freeze = true
	tlog.mu.Unlock()

	log.DefaultLogStack()
	log.SetFatalAction(log.DefaultFatal)
	close(tlog.events)
	tlog.bgWg.Wait()
}

// LineFilterer returns true for lines to keep.
type LineFilterer func(in string) (match bool)

// FilterMsg passes only Msgf entries.
func FilterMsg() LineFilterer { return FilterPfx("MSG:") }

// FilterLog passes only Logf entries.
func FilterLog() LineFilterer { return FilterPfx("LOG:") }

// FilterPfx passes lines with the given prefix; note the MSG:/LOG: markers.
func FilterPfx(pfx string) LineFilterer {
	return func(in string) bool { return strings.HasPrefix(in, pfx) }
}

// FilterContains passes lines containing s.
func FilterContains(s string) LineFilterer {
	return func(in string) bool { return strings.Contains(in, s) }
}

// Filter returns buffered lines accepted by lf. Only valid after Freeze.
func (tlog *TstLog) Filter(lf LineFilterer) []string {
	tlog.mu.RLock()
	defer tlog.mu.RUnlock()
	if tlog.Buf == nil {
		tlog.t.Error("nil buffer")
		return nil
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(tlog.Buf.Bytes()))
	for scanner.Scan() {
		if lf(scanner.Text()) {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}

// Contains reports whether any buffered line contains s. Only valid after
// Freeze.
func (tlog *TstLog) Contains(s string) bool {
	return len(tlog.Filter(FilterContains(s))) > 0
}
