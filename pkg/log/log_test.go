// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log_test

import (
	"fmt"
	"os"
	fp "path/filepath"

	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

func Example() {
	log.AddConsoleLog(flags.NA) // NA -> everything is written to stderr
	log.Msg("Formatting CACHE:...")
	log.Log("this will show up on the console but not on screen")

	// entries logged above are replayed into the file
	path := fp.Join(os.TempDir(), "recovery-example.log")
	if err := log.AddSessionLog(path); err != nil {
		log.Fatalf("creating session log: %s", err)
	}
	log.Msgf("%d more events", 999)
	log.Finalize()
	f, _ := os.ReadFile(path)
	fmt.Printf("log contents\n............\n%s", string(f))
	os.Remove(path)

	/* output will be something like
	log contents
	............
	-- 10:16:02.117 -- Formatting CACHE:...
	*- 10:16:02.117 *- this will show up on the console but not on screen
	-- 10:16:02.118 -- 999 more events
	*/
}
