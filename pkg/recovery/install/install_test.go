// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package install

import (
	"context"
	"io"
	"os"
	fp "path/filepath"
	"testing"
	"time"

	"github.com/purecloudlabs/grecovery/pkg/log/testlog"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
	"github.com/purecloudlabs/grecovery/pkg/recovery/ui"
	"github.com/purecloudlabs/grecovery/pkg/recovery/ui/uitest"
)

func TestInstall(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(fp.Join(dir, "sdcard"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fp.Join(dir, "sdcard", "update.zip"), []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, td := range []struct {
		name    string
		pkg     string
		command string
		want    Result
	}{
		{"ok", "SDCARD:update.zip", `/bin/sh -c 'test -f "$0"' {package}`, Success},
		{"missing", "SDCARD:none.zip", "/bin/true", Corrupt},
		{"directory", "SDCARD:", "/bin/true", Corrupt},
		{"verify", "SDCARD:update.zip", "/bin/sh -c 'exit 2'", Corrupt},
		{"error", "SDCARD:update.zip", "/bin/sh -c 'exit 1'", Error},
		{"launch", "SDCARD:update.zip", "/nonexistent/updater {package}", Error},
	} {
		t.Run(td.name, func(t *testing.T) {
			tlog := testlog.NewTestLog(t, true, false)
			defer tlog.Freeze()
			screen := uitest.New(true)
			i := &Installer{
				Roots:   roots.Dir(dir),
				Runner:  &runner.Runner{Interval: 10 * time.Millisecond, Output: io.Discard},
				Screen:  screen,
				Command: td.command,
			}
			got, _ := i.Install(context.Background(), td.pkg)
			if got != td.want {
				t.Errorf("want %s, got %s", td.want, got)
			}
			if screen.LastBackground() != ui.BackgroundInstalling {
				t.Errorf("background not set")
			}
			tlog.Freeze()
			if len(tlog.Filter(testlog.FilterMsg())) == 0 {
				t.Error("no operator messages")
			}
		})
	}
}
