// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package firmware hands radio and bootloader images over to the bootloader.
//
// An update package that carries such an image cannot flash it from
// recovery. Instead it leaves a stage file naming the image type and
// location; after the rest of the session, the image is written where the
// bootloader expects it and the control block is set to "update-<type>".
// The bootloader flashes it on the next boot and then returns to recovery
// with the arguments left in the control block, which wipe cache.
package firmware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/recovery/command"
	"github.com/purecloudlabs/grecovery/pkg/recovery/rerr"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
)

// Result of MaybeInstall.
type Result int

const (
	// NonePending: nothing to do.
	NonePending Result = iota
	// HandedOff: the control block now tells the bootloader to flash. The
	// caller must not clear it, and must reboot.
	HandedOff
	// Failed: the image could not be staged. Cache has been erased.
	Failed
)

func (r Result) String() string {
	switch r {
	case HandedOff:
		return "handed off"
	case Failed:
		return "failed"
	}
	return "none pending"
}

// Types the bootloader knows how to flash.
var Types = []string{"radio", "hboot"}

// Stage is the content of the stage file: the image type on the first line
// and its root path on the second.
type Stage struct {
	Type  string
	Image string
}

type Updater struct {
	Store  bcb.Store
	Roots  roots.Paths
	Format roots.Formatter
	Runner *runner.Runner
	// StageFile is a root path.
	StageFile string
	// Flash writes the image for the bootloader. {type} and {image} (a
	// filesystem path) are substituted.
	Flash string
	// CacheRoot is erased when staging fails.
	CacheRoot string
}

// Pending reads the stage file. A missing file means nothing is pending; a
// malformed one is logged and removed.
func (u *Updater) Pending() (Stage, bool) {
	if u.StageFile == "" {
		return Stage{}, false
	}
	f, err := roots.OpenFile(u.Roots, u.StageFile, os.O_RDONLY, 0)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Logf("%s", err)
		}
		return Stage{}, false
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for len(lines) < 2 && sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	st := Stage{}
	if len(lines) == 2 {
		st = Stage{Type: lines[0], Image: lines[1]}
	}
	if !known(st.Type) || st.Image == "" {
		log.Logf("%s", rerr.Errorf(rerr.MalformedState, "firmware", u.StageFile, "bad stage file %q", lines))
		u.removeStage()
		return Stage{}, false
	}
	return st, true
}

func known(t string) bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// MaybeInstall stages a pending firmware image, if any. intent is carried
// into the arguments recovery will be resumed with.
func (u *Updater) MaybeInstall(ctx context.Context, intent *string) Result {
	st, ok := u.Pending()
	if !ok {
		return NonePending
	}
	log.Msgf("Writing %s image...", st.Type)

	// resume point in case power is lost while staging
	args := []string{"--wipe_cache"}
	if intent != nil {
		args = append(args, "--send_intent="+*intent)
	}
	cb, err := u.Store.Load()
	if err != nil {
		log.Logf("reading control block: %s", err)
		cb = bcb.ControlBlock{}
	}
	command.Checkpoint(u.Store, cb, args)

	if err = u.stage(ctx, st); err != nil {
		log.Logf("%s", err)
		log.Msgf("Failed to write %s image.", st.Type)
		u.removeStage()
		if u.Format != nil && u.CacheRoot != "" {
			if ferr := u.Format.Format(ctx, u.CacheRoot); ferr != nil {
				log.Logf("formatting %s: %s", u.CacheRoot, ferr)
			}
		}
		return Failed
	}
	cb, err = u.Store.Load()
	if err != nil {
		log.Logf("reading control block: %s", err)
	}
	cb.SetCommand("update-" + st.Type)
	if err = u.Store.Save(cb); err != nil {
		log.Logf("writing control block: %s", err)
		return Failed
	}
	u.removeStage()
	log.Msgf("Firmware update ready. Rebooting...")
	return HandedOff
}

func (u *Updater) stage(ctx context.Context, st Stage) error {
	if err := u.Roots.EnsureMounted(st.Image); err != nil {
		return err
	}
	img, err := u.Roots.Translate(st.Image)
	if err != nil {
		return err
	}
	if _, err = os.Stat(img); err != nil {
		return rerr.New(rerr.IOFailure, "firmware", st.Image, err)
	}
	inv, err := runner.Parse(u.Flash, map[string]string{"type": st.Type, "image": img})
	if err != nil {
		return err
	}
	r := u.Runner
	if r == nil {
		r = &runner.Runner{}
	}
	if o := r.Run(ctx, inv); !o.OK() {
		kind := rerr.OperationFailure
		if o.LaunchFailed() {
			kind = rerr.LaunchFailure
		}
		return rerr.Errorf(kind, "firmware", st.Image, "%s: %s", inv, o)
	}
	return nil
}

func (u *Updater) removeStage() {
	path, err := u.Roots.Translate(u.StageFile)
	if err == nil {
		err = os.Remove(path)
	}
	if err != nil && !os.IsNotExist(err) {
		log.Logf("removing %s: %s", u.StageFile, err)
	}
}

// WriteStage records st for a later MaybeInstall. Used by the bcb tool and
// tests; update packages normally write the file themselves.
func WriteStage(p roots.Paths, stageFile string, st Stage) error {
	if !known(st.Type) {
		return fmt.Errorf("unknown firmware type %q", st.Type)
	}
	f, err := roots.OpenFile(p, stageFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(f, "%s\n%s\n", st.Type, st.Image); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
