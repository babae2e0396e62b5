// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package menu is the interactive part of recovery: a list of maintenance
// operations browsed with the device keys, each run through the operation
// runner once chosen, with destructive ones gated behind a confirm key.
package menu

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/purecloudlabs/grecovery/pkg/fileutil"
	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/recovery/command"
	"github.com/purecloudlabs/grecovery/pkg/recovery/install"
	"github.com/purecloudlabs/grecovery/pkg/recovery/keymap"
	"github.com/purecloudlabs/grecovery/pkg/recovery/metrics"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
	"github.com/purecloudlabs/grecovery/pkg/recovery/rerr"
	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
	"github.com/purecloudlabs/grecovery/pkg/recovery/ui"
)

// Installer applies update packages.
type Installer interface {
	Install(ctx context.Context, rootPath string) (install.Result, runner.Outcome)
}

// Prompt runs the menu. UI, Keys, Items and Roots are required.
type Prompt struct {
	UI      ui.UI
	Keys    keymap.Mapper
	Headers []string
	Items   []Item

	Roots     roots.Paths
	Format    roots.Formatter
	Runner    *runner.Runner
	Installer Installer
	// Store receives Resume checkpoints; may be nil.
	Store bcb.Store
	// Finish tidies up before each browse; may be nil.
	Finish func()
	// FirmwarePending reports an image waiting for the bootloader.
	FirmwarePending func() bool
	Metrics         *metrics.Recorder
	// Sync defaults to sync(2).
	Sync func()

	// how long to wait for a reboot chord to be released
	ReleaseTimeout time.Duration
}

// DefaultHeaders head the main menu.
var DefaultHeaders = []string{
	"Android system recovery",
	"     --- Galaxy Version ---",
	"",
	"Use up/down and OK to select",
	"",
}

var defaultChooserHeaders = []string{
	"Choose update ZIP file",
	"",
	"Use up/down to highlight;",
	"OK to select",
	"",
}

func (p *Prompt) labels() []string {
	l := make([]string, len(p.Items))
	for i, it := range p.Items {
		l[i] = it.Label
	}
	return l
}

func (p *Prompt) byShortcut(s keymap.Shortcut) int {
	if s == keymap.ShortcutReboot {
		for i, it := range p.Items {
			if it.Kind == KindReboot {
				return i
			}
		}
	}
	for i, it := range p.Items {
		if it.Shortcut == s {
			return i
		}
	}
	return ChosenNone
}

// Run shows the menu until an item asks to leave it. The error is non-nil
// only if the key source fails.
func (p *Prompt) Run(ctx context.Context) error {
	headers := p.Headers
	if headers == nil {
		headers = DefaultHeaders
	}
	st := NewState(headers, p.labels())
	p.UI.StartMenu(st.Headers, st.Items, 0)
	p.tidy()
	p.UI.ClearKeys()
	for {
		key, err := p.UI.WaitKey()
		if err != nil {
			p.UI.EndMenu()
			return err
		}
		visible := p.UI.TextVisible()
		if sc, ok := p.Keys.(keymap.Shortcuts); ok {
			if s := sc.Shortcut(key, p.UI); s != keymap.ShortcutNone {
				p.waitReleased(sc.ReleaseKeys(s))
				st.Chosen = p.byShortcut(s)
			}
		}
		if st.Chosen == ChosenNone {
			if st.Apply(p.Keys.Action(key, visible)) {
				st.Highlighted = p.UI.SelectMenu(st.Highlighted)
			}
		}
		if st.Chosen < 0 {
			// back has no meaning at the top level
			st.Chosen = ChosenNone
			continue
		}

		// let printed output scroll
		p.UI.EndMenu()
		it := p.Items[st.Chosen]
		log.Logf("menu: %s", it.Label)
		if p.perform(ctx, it) {
			return nil
		}

		st.Reset()
		p.UI.StartMenu(st.Headers, st.Items, 0)
		p.tidy()
		// drop keys pressed while the operation ran
		p.UI.ClearKeys()
	}
}

func (p *Prompt) tidy() {
	if p.Finish != nil {
		p.Finish()
	}
	p.UI.ResetProgress()
}

func (p *Prompt) waitReleased(keys []int) {
	timeout := p.ReleaseTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		held := false
		for _, k := range keys {
			held = held || p.UI.Pressed(k)
		}
		if !held {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// perform runs one item and reports whether to leave the menu.
func (p *Prompt) perform(ctx context.Context, it Item) (exit bool) {
	switch it.Kind {
	case KindReboot:
		return true
	case KindChoose:
		p.choose(ctx, it)
		return false
	}
	if it.Confirm && !p.confirm(it.Warning) {
		p.print(it.Aborted, "\nOperation aborted.\n")
		return false
	}
	for _, r := range it.Require {
		if err := p.Roots.EnsureMounted(r); err != nil {
			log.Logf("%s", err)
			p.UI.Print(fmt.Sprintf("\nCan't mount %s, aborting.\n", r))
			return false
		}
	}
	if len(it.Resume) > 0 && p.Store != nil {
		cb, err := p.Store.Load()
		if err != nil {
			cb = bcb.ControlBlock{}
		}
		command.Checkpoint(p.Store, cb, it.Resume)
	}
	p.print(it.Start, "")

	begin := time.Now()
	var o runner.Outcome
	switch it.Kind {
	case KindInstall:
		o = p.install(ctx, it, it.Package)
	case KindRun:
		o = p.runSteps(ctx, it.Steps)
		p.UI.ResetProgress()
		if o.OK() {
			p.print(it.Success, "\nDone.\n")
		} else {
			p.print(it.Failure, "\nOperation failed.\n")
		}
	default:
		log.Logf("menu: item %q has unknown kind %q", it.Label, it.Kind)
		return false
	}
	p.Metrics.Operation(it.Label, o, time.Since(begin))
	return o.OK() && it.ExitHidden && !p.UI.TextVisible()
}

func (p *Prompt) print(msg, fallback string) {
	if msg == "" {
		msg = fallback
	}
	if msg != "" {
		p.UI.Print(msg)
	}
}

// confirm shows warning and waits for one key. Only the confirm key
// proceeds.
func (p *Prompt) confirm(warning []string) bool {
	var sb strings.Builder
	for _, w := range warning {
		sb.WriteString("\n-- " + w)
	}
	sb.WriteString(fmt.Sprintf("\n-- Press %s to confirm, or\n-- any other key to abort..", p.Keys.ConfirmLabel()))
	p.UI.Print(sb.String())
	key, err := p.UI.WaitKey()
	return err == nil && key == p.Keys.ConfirmKey()
}

func (p *Prompt) install(ctx context.Context, it Item, pkg string) runner.Outcome {
	if p.Installer == nil {
		log.Logf("menu: no installer configured")
		return runner.Failed(runner.LaunchFailureCode)
	}
	res, o := p.Installer.Install(ctx, pkg)
	if res != install.Success {
		p.UI.SetBackground(ui.BackgroundError)
		p.print(it.Failure, "Installation aborted.\n")
		if o.OK() {
			o = runner.Failed(int(res))
		}
		return o
	}
	p.UI.SetBackground(ui.BackgroundNone)
	if p.FirmwarePending != nil && p.FirmwarePending() {
		p.UI.Print("\nReboot via menu\nto complete installation.\n")
	} else {
		p.print(it.Success, "\nInstall complete.\n")
	}
	return o
}

// runSteps performs every step; the first failure not ignored decides the
// outcome.
func (p *Prompt) runSteps(ctx context.Context, steps []Step) runner.Outcome {
	var tally runner.Tally
	for _, s := range steps {
		o := p.step(ctx, s)
		if !o.OK() {
			log.Logf("menu: %s: %s", s, o)
		}
		tally.Add(o, s.Ignore)
	}
	return tally.Result()
}

func (p *Prompt) step(ctx context.Context, s Step) runner.Outcome {
	switch {
	case s.Run != "":
		inv, err := runner.Parse(s.Run, nil)
		if err != nil {
			log.Logf("%s", err)
			return runner.Failed(runner.LaunchFailureCode)
		}
		return p.runner().Run(ctx, inv)
	case s.Write != "":
		if err := os.WriteFile(s.Write, []byte(s.Value), 0644); err != nil {
			log.Logf("%s", rerr.New(rerr.IOFailure, "write", s.Write, err))
			return runner.Failed(1)
		}
	case s.Sleep > 0:
		t := time.NewTimer(s.Sleep)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return runner.Failed(runner.LaunchFailureCode)
		}
	case s.Sync:
		if p.Sync != nil {
			p.Sync()
		} else {
			unix.Sync()
		}
	case s.Format != "":
		p.UI.SetBackground(ui.BackgroundInstalling)
		p.UI.ShowIndeterminateProgress()
		log.Msgf("Formatting %s...", s.Format)
		if p.Format == nil {
			log.Logf("menu: no formatter for %s", s.Format)
			return runner.Failed(runner.LaunchFailureCode)
		}
		if err := p.Format.Format(ctx, s.Format); err != nil {
			log.Logf("%s", err)
			return runner.Failed(1)
		}
	}
	return runner.Succeeded()
}

func (p *Prompt) runner() *runner.Runner {
	if p.Runner != nil {
		return p.Runner
	}
	return &runner.Runner{}
}

// choose lists matching files, lets the operator pick one and installs it.
// It always returns to the main menu afterwards.
func (p *Prompt) choose(ctx context.Context, it Item) {
	if len(it.Pre) > 0 {
		p.print(it.Start, "")
		p.runSteps(ctx, it.Pre)
		p.UI.ResetProgress()
		p.UI.Print("OK\n")
	}
	for _, r := range append(append([]string(nil), it.Require...), it.Dir) {
		if err := p.Roots.EnsureMounted(r); err != nil {
			log.Logf("Can't mount %s: %s", r, err)
			return
		}
	}
	dir, err := p.Roots.Translate(it.Dir)
	if err != nil {
		log.Logf("Bad path %s: %s", it.Dir, err)
		return
	}
	ext := it.Ext
	if ext == "" {
		ext = ".zip"
	}
	files, err := fileutil.ListByExt(dir, ext)
	if err != nil {
		log.Logf("Couldn't open directory %s: %s", dir, err)
		return
	}
	headers := it.Headers
	if headers == nil {
		headers = defaultChooserHeaders
	}
	st := NewState(headers, files)
	p.UI.StartMenu(st.Headers, st.Items, 0)
	p.tidy()
	for st.Chosen == ChosenNone {
		key, err := p.UI.WaitKey()
		if err != nil {
			p.UI.EndMenu()
			return
		}
		if st.Apply(p.Keys.Action(key, p.UI.TextVisible())) {
			st.Highlighted = p.UI.SelectMenu(st.Highlighted)
		}
	}
	p.UI.EndMenu()
	if st.Chosen == ChosenBack {
		return
	}
	pkg := joinRoot(it.Dir, files[st.Chosen])
	if !p.confirm(it.Warning) {
		p.print(it.Aborted, "\nInstallation aborted.\n")
		return
	}
	p.UI.Print("\nInstalling from sdcard...\n")
	begin := time.Now()
	o := p.install(ctx, it, pkg)
	p.Metrics.Operation(it.Label, o, time.Since(begin))
}

// joinRoot appends name to a root path, which may or may not end in '/'.
func joinRoot(dir, name string) string {
	if strings.HasSuffix(dir, ":") || strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
