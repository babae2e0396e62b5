// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package log is the recovery session's logger. Entries pass through a stack
// of sinks: the temporary session log file, the console, the on-screen text
// area, and an optional structured mirror.
//
// Until a sink is attached, entries are retained in memory and replayed into
// each sink as it is added, so nothing logged during early startup is lost.
package log

import (
	"fmt"
	"os"

	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

var logPrefix string

// SetPrefix sets the name used to tag this process's log output.
func SetPrefix(pfx string) { logPrefix = pfx }

// GetPrefix returns the name set with SetPrefix.
func GetPrefix() string { return logPrefix }

// Msgf logs a message meant for the operator. It shows up on screen as well as
// in the log, so keep it short and readable.
func Msgf(f string, va ...interface{}) { FlaggedLogf(flags.EndUser, f, va...) }

// See Msgf
func Msgln(va ...interface{}) { Msgf("%s", fmt.Sprintln(va...)) }

// See Msgf
func Msg(message string) { Msgf("%s", message) }

// Logf logs diagnostic detail. Never shown on screen.
func Logf(f string, va ...interface{}) { FlaggedLogf(flags.NA, f, va...) }

// See Logf
func Logln(va ...interface{}) { Logf("%s", fmt.Sprintln(va...)) }

// See Logf
func Log(message string) { Logf("%s", message) }

// DumpStderr writes everything retained by the in-memory sink to stderr. No-op
// if there is no memory sink in the stack.
func DumpStderr() {
	for _, e := range StoredEntries() {
		fmt.Fprintln(os.Stderr, e.String())
	}
}
