// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"os"
	"strings"

	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

// FatalFunc ends the process after a fatal entry: reboot, exit, hang...
type FatalFunc func()
type PreFunc func(f string, va ...interface{})

// FailAction describes what Fatalf does after logging.
type FailAction struct {
	// Prefix added to the message
	MsgPfx string
	// Pre runs while the log is still writable.
	Pre PreFunc
	// Terminator runs after the log is finalized.
	Terminator FatalFunc
}

var fatalAction = DefaultFatal

// SetFatalAction replaces the action taken by Fatalf.
func SetFatalAction(act FailAction) { fatalAction = act }

// DefaultFatal exits with status 1.
var DefaultFatal = FailAction{Terminator: DefaultFatalAction}

func DefaultFatalAction() {
	if strings.HasSuffix(os.Args[0], ".test") {
		panic("generic fatal called from test")
	}
	os.Exit(1)
}

// Fatalf logs and does not return. See FailAction.
func Fatalf(f string, va ...interface{}) {
	logStackMtx.Lock()
	unconfigured := logStack.Next() == nil && logStack.Ident() == MemLogIdent
	logStackMtx.Unlock()
	if unconfigured {
		AddConsoleLog(0)
		Log("Fatalf: logging unconfigured")
	}
	FlaggedLogf(flags.Fatal, fatalAction.MsgPfx+f, va...)
	if fatalAction.Pre != nil {
		fatalAction.Pre(fatalAction.MsgPfx+f, va...)
	}
	Finalize()
	fatalAction.Terminator()
}
