// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package recovery drives one recovery session: it works out what was asked
// for, performs it, falls back to the menu when something went wrong or the
// operator is watching, then tidies up and reboots.
//
// Session flow
//
//	* resolve arguments (process, control block, command file) and
//	  checkpoint them so a reboot resumes the same request
//	* install a package and/or wipe roots
//	* on failure, or with the text visible, run the menu
//	* stage pending firmware for the bootloader
//	* finalize: intent, log, clear the control block, remove the command file
//	* reboot
package recovery

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/recovery/command"
	"github.com/purecloudlabs/grecovery/pkg/recovery/firmware"
	"github.com/purecloudlabs/grecovery/pkg/recovery/history"
	"github.com/purecloudlabs/grecovery/pkg/recovery/install"
	"github.com/purecloudlabs/grecovery/pkg/recovery/metrics"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
	"github.com/purecloudlabs/grecovery/pkg/recovery/ui"
)

// Finalizer persists the session's results.
type Finalizer interface {
	Finish(intent *string)
	FinishKeepingBlock(intent *string)
}

// Firmware stages images the bootloader must flash.
type Firmware interface {
	Pending() (firmware.Stage, bool)
	MaybeInstall(ctx context.Context, intent *string) firmware.Result
}

// Installer applies an update package.
type Installer interface {
	Install(ctx context.Context, rootPath string) (install.Result, runner.Outcome)
}

// Menu is the interactive fallback.
type Menu interface {
	Run(ctx context.Context) error
}

// Session holds everything one run of recovery needs. Resolver, Finalizer,
// Roots, Format and UI are required.
type Session struct {
	ID string

	Resolver  *command.Resolver
	Finalizer Finalizer
	Roots     roots.Paths
	Format    roots.Formatter
	Installer Installer
	Firmware  Firmware
	Menu      Menu
	History   *history.History
	Metrics   *metrics.Recorder
	UI        ui.UI

	// HistoryFile is the root path of History, remounted before the history
	// is rewritten after a wipe.
	HistoryFile string
	// WipeData are the roots a data wipe erases before the cache. Empty
	// means DataRoot alone.
	WipeData []string

	// Intent is handed to the main system at the end of the session.
	Intent *string
	// DoReboot restarts the device when done; otherwise Run returns.
	DoReboot bool
	Reboot   func(success bool)
}

// Data and cache roots erased by the wipe requests.
const (
	DataRoot  = "DATA:"
	CacheRoot = "CACHE:"
)

// NewID returns a fresh session id.
func NewID() string { return uuid.New().String() }

// Run performs the session. args are the process arguments, args[0] being
// the program name. The return value is the process exit status, used only
// when DoReboot is false.
func (s *Session) Run(ctx context.Context, args []string) int {
	if s.ID == "" {
		s.ID = NewID()
	}
	log.Logf("Session %s", s.ID)
	resolved, src := s.Resolver.Resolve(args)
	log.Logf("Command: %q (from %s)", resolved, src)
	s.Metrics.SetSource(s.ID, src.String())

	req := command.ParseRequest(resolved)
	s.Intent = req.Intent
	if req.PreviousRuns > 0 {
		log.Logf("previous runs: %d", req.PreviousRuns)
	}

	o := s.dispatch(ctx, req)
	success := o.OK()
	if !success {
		s.UI.SetBackground(ui.BackgroundError)
	}
	if !success || s.UI.TextVisible() {
		if s.Menu == nil {
			log.Logf("no menu; continuing")
		} else if err := s.Menu.Run(ctx); err != nil {
			log.Logf("menu: %s", err)
		}
	}

	handedOff := false
	if s.Firmware != nil {
		handedOff = s.Firmware.MaybeInstall(ctx, s.Intent) == firmware.HandedOff
	}
	if handedOff {
		s.Finalizer.FinishKeepingBlock(s.Intent)
	} else {
		s.Finalizer.Finish(s.Intent)
	}

	if s.DoReboot {
		log.Msgf("Rebooting...")
		if s.Reboot != nil {
			s.Reboot(success)
		}
	}
	return 0
}

// dispatch performs the requested operation, guarded by the history.
func (s *Session) dispatch(ctx context.Context, req command.Request) runner.Outcome {
	switch req.Op {
	case command.NoCommand, command.Interactive:
		log.Logf("no operation requested")
		return runner.Failed(1)
	}
	line := strings.Join(req.Options(), " ")
	if s.History != nil {
		s.History.Session = s.ID
		if !s.History.Begin(line, time.Now()) {
			log.Msgf("Not retrying %s.", req.Op)
			return runner.Failed(1)
		}
	}

	begin := time.Now()
	var o runner.Outcome
	switch req.Op {
	case command.InstallPackage:
		o = s.install(ctx, req.Package)
	case command.WipeData:
		o = s.wipe(ctx, s.dataRoots()...)
	case command.WipeCache:
		o = s.wipe(ctx, CacheRoot)
	case command.WipeBoth:
		o = s.wipe(ctx, append(s.dataRoots(), CacheRoot)...)
	}
	s.Metrics.Operation(req.Op.String(), o, time.Since(begin))
	if s.History != nil {
		s.History.Complete(o.OK(), time.Now())
	}
	return o
}

func (s *Session) install(ctx context.Context, pkg string) runner.Outcome {
	if s.Installer == nil {
		log.Logf("no installer")
		log.Msgf("Installation aborted.")
		return runner.Failed(runner.LaunchFailureCode)
	}
	res, o := s.Installer.Install(ctx, pkg)
	if res != install.Success {
		log.Msgf("Installation aborted.")
		if o.OK() {
			o = runner.Failed(int(res))
		}
		return o
	}
	return runner.Succeeded()
}

// wipe erases every root given, even after one fails.
func (s *Session) wipe(ctx context.Context, rootPaths ...string) runner.Outcome {
	var tally runner.Tally
	for _, r := range rootPaths {
		s.UI.SetBackground(ui.BackgroundInstalling)
		s.UI.ShowIndeterminateProgress()
		log.Msgf("Formatting %s...", r)
		if err := s.Format.Format(ctx, r); err != nil {
			log.Logf("%s", err)
			tally.Add(runner.Failed(1), false)
		}
		s.persistHistory()
	}
	s.UI.ResetProgress()
	o := tally.Result()
	if !o.OK() {
		log.Msgf("Data wipe failed.")
	}
	return o
}

func (s *Session) dataRoots() []string {
	if len(s.WipeData) == 0 {
		return []string{DataRoot}
	}
	return append([]string(nil), s.WipeData...)
}

// persistHistory puts the history back on its root, which a wipe may just
// have erased.
func (s *Session) persistHistory() {
	if s.History == nil {
		return
	}
	if s.HistoryFile != "" {
		if err := s.Roots.EnsureMounted(s.HistoryFile); err != nil {
			log.Logf("history: %s", err)
			return
		}
	}
	s.History.Persist()
}

// ResumeArgs returns the arguments currently checkpointed in store, without
// program identity, or nil.
func ResumeArgs(store bcb.Store) []string {
	cb, err := store.Load()
	if err != nil {
		return nil
	}
	if c, ok := cb.CommandText(); !ok || c != command.BootRecovery {
		return nil
	}
	text, ok := cb.RecoveryText()
	if !ok {
		return nil
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 || lines[0] != command.Marker {
		return nil
	}
	return lines[1:]
}
