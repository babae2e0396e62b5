// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"os"
	fp "path/filepath"

	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

// fileLog appends entries to the temporary session log. The session
// finalizer later copies new bytes from that file into the durable log.
type fileLog struct {
	f    *os.File
	next StackableLogger
}

var _ StackableLogger = (*fileLog)(nil)

var ENoName = fmt.Errorf("session log file name is empty")

// name of the file used by the fileLog in the stack, if any
var fileName string

// AddSessionLog opens path for appending, creating it and its directory if
// needed, and pushes a fileLog onto the stack. Entries logged so far are
// written first.
func AddSessionLog(path string) error {
	if path == "" {
		return ENoName
	}
	if err := os.MkdirAll(fp.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if err = AddLogger(&fileLog{f: f}, true); err != nil {
		f.Close()
		return err
	}
	logStackMtx.Lock()
	fileName = path
	logStackMtx.Unlock()
	return nil
}

// FileName returns the path of the session log, or "" if none is attached.
func FileName() string {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	return fileName
}

func (fl *fileLog) AddEntry(e LogEntry) {
	if (e.Flags&flags.NotFile) == 0 && fl.f != nil {
		fmt.Fprintln(fl.f, e.String())
	}
	if fl.next != nil {
		fl.next.AddEntry(e)
	}
}

func (fl *fileLog) ForwardTo(sl StackableLogger) {
	if fl.next == nil || sl == nil {
		fl.next = sl
	} else {
		panic("next already set")
	}
}

const FileLogIdent = "fileLog"

func (fl *fileLog) Ident() string         { return FileLogIdent }
func (fl *fileLog) Next() StackableLogger { return fl.next }

func (fl *fileLog) Finalize() {
	if fl.f != nil {
		if err := fl.f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing session log: %s\n", err)
		}
		fl.f = nil
	}
	if fl.next != nil {
		fl.next.Finalize()
	}
}

func LoggingToFile() bool {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	return InStack(FileLogIdent)
}
