// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package command

import (
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/purecloudlabs/grecovery/pkg/log"
)

// Operation is the main thing a session was asked to do.
type Operation int

const (
	// NoCommand: no options at all.
	NoCommand Operation = iota
	// Interactive: options present, none naming an operation.
	Interactive
	InstallPackage
	// WipeData erases only the data root. The command line cannot request
	// it; --wipe_data means WipeBoth.
	WipeData
	WipeCache
	WipeBoth
)

func (o Operation) String() string {
	switch o {
	case Interactive:
		return "interactive"
	case InstallPackage:
		return "install package"
	case WipeData:
		return "wipe data"
	case WipeCache:
		return "wipe cache"
	case WipeBoth:
		return "wipe data and cache"
	}
	return "no command"
}

// Request is the parsed form of the session arguments.
type Request struct {
	Op Operation
	// Package is a root path, set for InstallPackage.
	Package string
	// Intent is echoed back to the main system when recovery completes.
	Intent *string
	// PreviousRuns is informational; the main system counts its own
	// attempts to reach recovery.
	PreviousRuns int
}

const (
	optIntent   = "send_intent"
	optPackage  = "update_package"
	optWipeData = "wipe_data"
	optWipeCach = "wipe_cache"
	optPrevious = "previous_runs"
)

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String(optIntent, "", "text to hand back to the main system")
	fs.String(optPackage, "", "root path of an update package to install")
	fs.Bool(optWipeData, false, "erase user data and cache")
	fs.Bool(optWipeCach, false, "erase cache")
	fs.Int(optPrevious, 0, "number of earlier attempts")
	return fs
}

// ParseRequest interprets args, args[0] being the program identity. Unknown
// or malformed options are logged and skipped.
func ParseRequest(args []string) (req Request) {
	if len(args) <= 1 {
		return
	}
	fs := newFlagSet(args[0])
	var known []string
	for _, a := range args[1:] {
		if !strings.HasPrefix(a, "--") {
			log.Logf("invalid command argument %q", a)
			continue
		}
		name := strings.TrimPrefix(a, "--")
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		if fs.Lookup(name) == nil {
			log.Logf("invalid command argument %q", a)
			continue
		}
		known = append(known, a)
	}
	for len(known) > 0 {
		err := fs.Parse(known)
		if err == nil {
			break
		}
		// drop the offending option and carry on with the rest
		log.Logf("invalid command argument: %s", err)
		known = dropFirstBad(known, err)
	}

	req.Op = Interactive
	if fs.Changed(optIntent) {
		s, _ := fs.GetString(optIntent)
		req.Intent = &s
	}
	req.PreviousRuns, _ = fs.GetInt(optPrevious)
	wipeData, _ := fs.GetBool(optWipeData)
	wipeCache, _ := fs.GetBool(optWipeCach)
	switch {
	case fs.Changed(optPackage):
		req.Op = InstallPackage
		req.Package, _ = fs.GetString(optPackage)
	case wipeData:
		req.Op = WipeBoth
	case wipeCache:
		req.Op = WipeCache
	}
	return
}

// dropFirstBad removes the first argument mentioned in a parse error. If
// none can be identified, parsing is abandoned.
func dropFirstBad(args []string, err error) []string {
	msg := err.Error()
	for i, a := range args {
		name := strings.TrimPrefix(a, "--")
		if j := strings.IndexByte(name, '='); j >= 0 {
			name = name[:j]
		}
		if strings.Contains(msg, "--"+name) || strings.Contains(msg, "\""+name+"\"") {
			return append(args[:i:i], args[i+1:]...)
		}
	}
	return nil
}

// Options returns the command line form of req, without program identity.
func (req Request) Options() (opts []string) {
	switch req.Op {
	case InstallPackage:
		opts = append(opts, "--"+optPackage+"="+req.Package)
	case WipeBoth, WipeData:
		opts = append(opts, "--"+optWipeData)
	case WipeCache:
		opts = append(opts, "--"+optWipeCach)
	}
	if req.Intent != nil {
		opts = append(opts, "--"+optIntent+"="+*req.Intent)
	}
	if req.PreviousRuns > 0 {
		opts = append(opts, "--"+optPrevious+"="+strconv.Itoa(req.PreviousRuns))
	}
	return
}
