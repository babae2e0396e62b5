// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package recovery

import (
	"github.com/purecloudlabs/grecovery/pkg/hw/power"
	"github.com/purecloudlabs/grecovery/pkg/log"
)

// RecFatal shows the error on screen and reboots. The control block is left
// alone, so an interrupted operation resumes on the next boot.
var RecFatal = log.FailAction{
	MsgPfx: "E:",
	Pre: func(f string, va ...interface{}) {
		if log.GetPrefix() == "test" {
			panic("Fatalf called from 'go test'")
		}
		log.Msg("Fatal error, rebooting...")
	},
	Terminator: func() {
		power.Reboot(false)
	},
}
