// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package recovery

import (
	"context"
	"errors"
	"os"
	fp "path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/purecloudlabs/grecovery/pkg/config"
	hk "github.com/purecloudlabs/grecovery/pkg/housekeeping"
	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/log/testlog"
	"github.com/purecloudlabs/grecovery/pkg/recovery/command"
	"github.com/purecloudlabs/grecovery/pkg/recovery/finish"
	"github.com/purecloudlabs/grecovery/pkg/recovery/firmware"
	"github.com/purecloudlabs/grecovery/pkg/recovery/history"
	"github.com/purecloudlabs/grecovery/pkg/recovery/install"
	"github.com/purecloudlabs/grecovery/pkg/recovery/menu"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
	"github.com/purecloudlabs/grecovery/pkg/recovery/ui"
	"github.com/purecloudlabs/grecovery/pkg/recovery/ui/uitest"
)

type fakeFinalizer struct {
	calls   []string
	intents []*string
}

func (f *fakeFinalizer) Finish(intent *string) {
	f.calls = append(f.calls, "finish")
	f.intents = append(f.intents, intent)
}

func (f *fakeFinalizer) FinishKeepingBlock(intent *string) {
	f.calls = append(f.calls, "keep")
	f.intents = append(f.intents, intent)
}

type fakeFirmware struct{ res firmware.Result }

func (f *fakeFirmware) Pending() (firmware.Stage, bool) { return firmware.Stage{}, f.res != firmware.NonePending }
func (f *fakeFirmware) MaybeInstall(context.Context, *string) firmware.Result {
	return f.res
}

type fakeInstaller struct {
	calls []string
	res   install.Result
}

func (f *fakeInstaller) Install(_ context.Context, rootPath string) (install.Result, runner.Outcome) {
	f.calls = append(f.calls, rootPath)
	if f.res != install.Success {
		return f.res, runner.Failed(2)
	}
	return install.Success, runner.Succeeded()
}

type fakeVolumes struct {
	roots.Dir
	formats []string
	fail    map[string]bool
}

func (v *fakeVolumes) Format(ctx context.Context, rootPath string) error {
	v.formats = append(v.formats, rootPath)
	if v.fail[rootPath] {
		return errors.New("format failed")
	}
	return v.Dir.Format(ctx, rootPath)
}

type fakeMenu struct{ runs int }

func (m *fakeMenu) Run(context.Context) error {
	m.runs++
	return nil
}

type fixture struct {
	s     *Session
	store *bcb.MemStore
	vols  *fakeVolumes
	fin   *fakeFinalizer
	menu  *fakeMenu
	inst  *fakeInstaller
	ui    *uitest.Fake
}

func newFixture(t *testing.T, visible bool) *fixture {
	fx := &fixture{
		store: bcb.NewMemStore(bcb.ControlBlock{}),
		vols:  &fakeVolumes{Dir: roots.Dir(t.TempDir()), fail: map[string]bool{}},
		fin:   &fakeFinalizer{},
		menu:  &fakeMenu{},
		inst:  &fakeInstaller{},
		ui:    uitest.New(visible),
	}
	fx.s = &Session{
		ID: "test",
		Resolver: &command.Resolver{
			Store:       fx.store,
			Roots:       fx.vols,
			CommandFile: "CACHE:recovery/command",
		},
		Finalizer: fx.fin,
		Roots:     fx.vols,
		Format:    fx.vols,
		Installer: fx.inst,
		Menu:      fx.menu,
		UI:        fx.ui,
	}
	return fx
}

func TestRun(t *testing.T) {
	for _, tc := range []struct {
		name     string
		args     []string
		visible  bool
		corrupt  bool
		fail     string
		formats  []string
		installs []string
		menu     bool
		msg      string
	}{
		{name: "install", args: []string{"recovery", "--update_package=SDCARD:u.zip"}, installs: []string{"SDCARD:u.zip"}},
		{name: "install watched", args: []string{"recovery", "--update_package=SDCARD:u.zip"}, visible: true,
			installs: []string{"SDCARD:u.zip"}, menu: true},
		{name: "install corrupt", args: []string{"recovery", "--update_package=SDCARD:u.zip"}, corrupt: true,
			installs: []string{"SDCARD:u.zip"}, menu: true, msg: "Installation aborted."},
		{name: "wipe data", args: []string{"recovery", "--wipe_data"}, formats: []string{DataRoot, CacheRoot}},
		{name: "wipe cache", args: []string{"recovery", "--wipe_cache"}, formats: []string{CacheRoot}},
		{name: "partial wipe", args: []string{"recovery", "--wipe_data"}, fail: DataRoot,
			formats: []string{DataRoot, CacheRoot}, menu: true, msg: "Data wipe failed."},
		{name: "no command", args: []string{"recovery"}, menu: true},
		{name: "intent only", args: []string{"recovery", "--send_intent=hi"}, menu: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tlog := testlog.NewTestLog(t, true, false)
			fx := newFixture(t, tc.visible)
			if tc.corrupt {
				fx.inst.res = install.Corrupt
			}
			if tc.fail != "" {
				fx.vols.fail[tc.fail] = true
			}
			if got := fx.s.Run(context.Background(), tc.args); got != 0 {
				t.Errorf("exit status: want 0, got %d", got)
			}
			tlog.Freeze()
			if diff := cmp.Diff(tc.formats, fx.vols.formats); diff != "" {
				t.Errorf("formats (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.installs, fx.inst.calls); diff != "" {
				t.Errorf("installs (-want +got):\n%s", diff)
			}
			if got := fx.menu.runs == 1; got != tc.menu {
				t.Errorf("menu: want %t, got %d runs", tc.menu, fx.menu.runs)
			}
			failed := tc.menu && !tc.visible
			if got := fx.ui.LastBackground() == ui.BackgroundError; got != failed {
				t.Errorf("error background: want %t, got %t", failed, got)
			}
			if diff := cmp.Diff([]string{"finish"}, fx.fin.calls); diff != "" {
				t.Errorf("finalize (-want +got):\n%s", diff)
			}
			if tc.msg != "" && !tlog.Contains(tc.msg) {
				t.Errorf("want %q in log", tc.msg)
			}
			// resolving always leaves a checkpoint
			cb := fx.store.Current()
			if got, _ := cb.CommandText(); got != command.BootRecovery {
				t.Errorf("command: want %q, got %q", command.BootRecovery, got)
			}
		})
	}
}

func TestIntentPassedToFinish(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	fx := newFixture(t, false)
	fx.s.Run(context.Background(), []string{"recovery", "--wipe_cache", "--send_intent=done"})
	if len(fx.fin.intents) != 1 || fx.fin.intents[0] == nil || *fx.fin.intents[0] != "done" {
		t.Errorf("intent not passed: %v", fx.fin.intents)
	}
}

func TestFirmwareHandoff(t *testing.T) {
	for _, tc := range []struct {
		res  firmware.Result
		want string
	}{
		{firmware.NonePending, "finish"},
		{firmware.Failed, "finish"},
		{firmware.HandedOff, "keep"},
	} {
		t.Run(tc.res.String(), func(t *testing.T) {
			tlog := testlog.NewTestLog(t, true, false)
			defer tlog.Freeze()
			fx := newFixture(t, false)
			fx.s.Firmware = &fakeFirmware{res: tc.res}
			fx.s.Run(context.Background(), []string{"recovery", "--wipe_cache"})
			if diff := cmp.Diff([]string{tc.want}, fx.fin.calls); diff != "" {
				t.Errorf("finalize (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReboot(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want bool
	}{
		{[]string{"recovery", "--wipe_cache"}, true},
		{[]string{"recovery"}, false},
	} {
		tlog := testlog.NewTestLog(t, true, false)
		fx := newFixture(t, false)
		var got []bool
		fx.s.DoReboot = true
		fx.s.Reboot = func(success bool) { got = append(got, success) }
		fx.s.Run(context.Background(), tc.args)
		tlog.Freeze()
		if diff := cmp.Diff([]bool{tc.want}, got); diff != "" {
			t.Errorf("%v: reboot (-want +got):\n%s", tc.args, diff)
		}
	}
}

func TestBootLoopGuard(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	path := fp.Join(t.TempDir(), "history.json")
	prev := history.New(path, 2)
	for i := 0; i < 2; i++ {
		if !prev.Begin("--wipe_cache", time.Now()) {
			t.Fatalf("attempt %d refused", i)
		}
	}

	fx := newFixture(t, false)
	h := history.New(path, 2)
	if !h.Load() {
		t.Fatal("load failed")
	}
	fx.s.History = h
	fx.s.Run(context.Background(), []string{"recovery", "--wipe_cache"})
	if len(fx.vols.formats) != 0 {
		t.Errorf("wipe ran again: %v", fx.vols.formats)
	}
	if fx.menu.runs != 1 {
		t.Errorf("want menu, got %d runs", fx.menu.runs)
	}

	// a different request still runs, and completes in the history
	fx = newFixture(t, false)
	fx.s.History = h
	fx.s.Run(context.Background(), []string{"recovery", "--wipe_data"})
	if len(fx.vols.formats) != 2 {
		t.Errorf("wipe did not run: %v", fx.vols.formats)
	}
	recs := h.Records()
	if len(recs) != 2 || recs[0].Command != "--wipe_data" || recs[0].Unfinished() != 0 {
		t.Errorf("unexpected history %+v", recs)
	}
}

func TestResumeArgs(t *testing.T) {
	store := bcb.NewMemStore(bcb.ControlBlock{})
	if got := ResumeArgs(store); got != nil {
		t.Errorf("want nil, got %q", got)
	}
	command.Checkpoint(store, bcb.ControlBlock{}, []string{"--wipe_data", "--send_intent=x"})
	want := []string{"--wipe_data", "--send_intent=x"}
	if diff := cmp.Diff(want, ResumeArgs(store)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestNewFromConfig(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	defer hk.Preboots.Clear()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.TempLog = fp.Join(dir, "tmp", "recovery.log")
	cfg.Reboot = false
	store := bcb.NewMemStore(bcb.ControlBlock{})
	vols := &fakeVolumes{Dir: roots.Dir(dir)}
	fake := uitest.New(false)

	s, err := New(cfg, fake, store, vols)
	if err != nil {
		t.Fatal(err)
	}
	if s.History == nil || s.Firmware == nil || s.Menu == nil {
		t.Fatalf("session not fully wired: %+v", s)
	}
	if diff := cmp.Diff([]string{"history"}, hk.Preboots.Names()); diff != "" {
		t.Errorf("preboots (-want +got):\n%s", diff)
	}
	s.Finalizer.(*finish.Finalizer).Sync = func() {}

	if err := os.MkdirAll(fp.Dir(cfg.TempLog), 0755); err != nil {
		t.Fatal(err)
	}
	if got := s.Run(context.Background(), []string{"recovery", "--wipe_cache"}); got != 0 {
		t.Errorf("exit status %d", got)
	}
	if diff := cmp.Diff([]string{CacheRoot}, vols.formats); diff != "" {
		t.Errorf("formats (-want +got):\n%s", diff)
	}
	if cb := store.Current(); !cb.IsZero() {
		t.Errorf("control block not cleared: %s", cb.String())
	}
	for _, f := range []string{"cache/recovery/history.json", "cache/recovery/metrics.prom"} {
		if _, err := os.Stat(fp.Join(dir, f)); err != nil {
			t.Errorf("%s: %s", f, err)
		}
	}
}

// powerLoss stops a session once its wipes are done but before they are
// recorded as complete.
type powerLoss struct{ *uitest.Fake }

func (powerLoss) ResetProgress() { panic("power lost") }

func runUntilPowerLoss(s *Session, args []string) (lost bool) {
	defer func() { lost = recover() != nil }()
	s.Run(context.Background(), args)
	return false
}

func TestWipeKeepsHistory(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	const histFile = "CACHE:recovery/history.json"
	dir := roots.Dir(t.TempDir())
	path, err := dir.Translate(histFile)
	if err != nil {
		t.Fatal(err)
	}
	boot := func() *fixture {
		fx := newFixture(t, false)
		fx.vols.Dir = dir
		h := history.New(path, 2)
		h.Load()
		fx.s.History, fx.s.HistoryFile = h, histFile
		return fx
	}
	for i := 1; i <= 2; i++ {
		fx := boot()
		fx.s.UI = powerLoss{fx.ui}
		if !runUntilPowerLoss(fx.s, []string{"recovery", "--wipe_data"}) {
			t.Fatalf("boot %d: session completed", i)
		}
		if diff := cmp.Diff([]string{DataRoot, CacheRoot}, fx.vols.formats); diff != "" {
			t.Errorf("boot %d: formats (-want +got):\n%s", i, diff)
		}
		after := history.New(path, 2)
		if !after.Load() {
			t.Fatalf("boot %d: history not readable", i)
		}
		recs := after.Records()
		if len(recs) != 1 || recs[0].Unfinished() != uint(i) {
			t.Fatalf("boot %d: want %d unfinished, got %+v", i, i, recs)
		}
	}

	fx := boot()
	fx.s.Run(context.Background(), []string{"recovery", "--wipe_data"})
	if len(fx.vols.formats) != 0 {
		t.Errorf("looping wipe ran again: %v", fx.vols.formats)
	}
	if fx.menu.runs != 1 {
		t.Errorf("want menu, got %d runs", fx.menu.runs)
	}
}

func TestMenuWipeResumesSameRoots(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	cfg := config.Default()
	var item *menu.Item
	for i := range cfg.Menu {
		if slices.Equal(cfg.Menu[i].Resume, []string{"--wipe_data"}) {
			item = &cfg.Menu[i]
		}
	}
	if item == nil {
		t.Fatal("no menu item resumes as --wipe_data")
	}

	fx := newFixture(t, false)
	fx.s.WipeData = cfg.WipeData
	fx.s.Run(context.Background(), append([]string{"recovery"}, item.Resume...))
	want := []string{DataRoot}
	for _, st := range item.Steps {
		if st.Format != "" {
			want = append(want, st.Format)
		}
	}
	for _, r := range want {
		if !slices.Contains(fx.vols.formats, r) {
			t.Errorf("resumed wipe skipped %s: %v", r, fx.vols.formats)
		}
	}
}
