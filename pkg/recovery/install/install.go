// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package install applies an update package by handing it to the updater
// tool and reducing the tool's exit status to a Result.
package install

import (
	"context"
	"os"

	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/recovery/rerr"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
	"github.com/purecloudlabs/grecovery/pkg/recovery/ui"
)

type Result int

const (
	Success Result = iota
	Error
	// Corrupt: the package could not be read or failed verification.
	Corrupt
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Corrupt:
		return "corrupt package"
	}
	return "error"
}

// DefaultCommand is the updater invocation; {package} is replaced by the
// package's filesystem path.
const DefaultCommand = "/sbin/updater {package}"

// DefaultCorruptStatus is the updater exit status for a bad package.
const DefaultCorruptStatus = 2

type Installer struct {
	Roots  roots.Paths
	Runner *runner.Runner
	Screen ui.Screen
	// Command defaults to DefaultCommand.
	Command string
	// CorruptStatus defaults to DefaultCorruptStatus.
	CorruptStatus int
}

// Install applies the package at rootPath. The outcome of the updater run,
// if there was one, is returned too.
func (i *Installer) Install(ctx context.Context, rootPath string) (Result, runner.Outcome) {
	if i.Screen != nil {
		i.Screen.SetBackground(ui.BackgroundInstalling)
	}
	log.Msgf("Finding update package...")
	if err := i.Roots.EnsureMounted(rootPath); err != nil {
		log.Logf("Can't mount %s: %s", rootPath, err)
		return Corrupt, runner.Failed(runner.LaunchFailureCode)
	}
	path, err := i.Roots.Translate(rootPath)
	if err != nil {
		log.Logf("Bad path %s: %s", rootPath, err)
		return Corrupt, runner.Failed(runner.LaunchFailureCode)
	}
	log.Msgf("Opening update package...")
	if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
		if err == nil {
			err = rerr.Errorf(rerr.IOFailure, "install", rootPath, "not a regular file")
		}
		log.Logf("Can't open %s: %s", rootPath, err)
		return Corrupt, runner.Failed(runner.LaunchFailureCode)
	}
	cmdline := i.Command
	if cmdline == "" {
		cmdline = DefaultCommand
	}
	inv, err := runner.Parse(cmdline, map[string]string{"package": path})
	if err != nil {
		log.Logf("%s", err)
		return Error, runner.Failed(runner.LaunchFailureCode)
	}
	log.Msgf("Installing update...")
	if i.Screen != nil {
		i.Screen.ShowIndeterminateProgress()
	}
	r := i.Runner
	if r == nil {
		r = &runner.Runner{}
	}
	o := r.Run(ctx, inv)
	if i.Screen != nil {
		i.Screen.ResetProgress()
	}
	corrupt := i.CorruptStatus
	if corrupt == 0 {
		corrupt = DefaultCorruptStatus
	}
	switch {
	case o.OK():
		log.Logf("Installed %s", rootPath)
		return Success, o
	case o.Kind == runner.Failure && o.Code == corrupt:
		log.Logf("%s: package is corrupt", rootPath)
		return Corrupt, o
	}
	log.Logf("%s: updater %s", rootPath, o)
	return Error, o
}
