// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package power reboots the device at the end of a recovery session, after
// running the housekeeping Preboot tasks.
//
// As a side effect of import, log.Fatalf is set to reboot via FailReboot.
package power

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/sys/unix"

	hk "github.com/purecloudlabs/grecovery/pkg/housekeeping"
	"github.com/purecloudlabs/grecovery/pkg/log"
)

// FatalAction reboots after a fatal error. Set as the log package's fatal
// action on import.
var FatalAction = log.FailAction{
	MsgPfx:     "ERROR, rebooting: ",
	Terminator: FailReboot,
}

// Simulate suppresses the actual reboot syscall; the process exits instead.
// Set automatically when not running as root.
var Simulate = os.Geteuid() != 0

// Delay before the reboot syscall, giving the operator time to read the
// screen.
var Delay = 2 * time.Second

func init() {
	log.SetFatalAction(FatalAction)
}

func FailReboot() {
	Reboot(false)
}

// Reboot runs the Preboot tasks and restarts the device. May be deferred; a
// pending panic is logged and the session is treated as failed.
func Reboot(success bool) {
	x := recover()
	if x != nil {
		log.Logf("panic() caught in Reboot(success=%t)", success)
		success = false
		log.Msgf("internal error: %s", x)
		stars := "***********************************************************"
		log.Logf("%s\nstack trace:\n%s\n%s", stars, debug.Stack(), stars)
	}

	hk.Preboots.Perform(success)
	if Simulate {
		fmt.Fprintln(os.Stderr, "would reboot here")
		os.Exit(0)
	}
	time.Sleep(Delay)
	err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reboot: %s\n", err)
		os.Exit(1)
	}
}
