// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package command works out what a recovery session was asked to do.
//
// Arguments come from, in decreasing precedence: the process command line,
// the recovery field of the bootloader control block (one per line after a
// "recovery" marker), and the command file left on the cache partition. As
// soon as they are known they are written back to the control block, so that
// losing power at any later point brings the device back into recovery with
// the same arguments.
package command

import (
	"bufio"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
)

const (
	DefaultMaxArgs      = 100
	DefaultMaxArgLength = 4096
	// BootRecovery in the command field makes the bootloader start recovery.
	BootRecovery = "boot-recovery"
	// Marker is the first line of a recovery field carrying arguments.
	Marker = "recovery"
)

// Source tells where the arguments were found.
type Source int

const (
	SourceNone Source = iota
	SourceProcess
	SourceControlBlock
	SourceCommandFile
)

func (s Source) String() string {
	switch s {
	case SourceProcess:
		return "command line"
	case SourceControlBlock:
		return "boot message"
	case SourceCommandFile:
		return "command file"
	}
	return "nowhere"
}

// Resolver finds the session arguments.
type Resolver struct {
	Store       bcb.Store
	Roots       roots.Paths
	CommandFile string
	// Total argument count, including program identity.
	MaxArgs      int
	MaxArgLength int
}

func (r *Resolver) maxArgs() int {
	if r.MaxArgs > 1 {
		return r.MaxArgs
	}
	return DefaultMaxArgs
}

func (r *Resolver) maxArgLength() int {
	if r.MaxArgLength > 0 {
		return r.MaxArgLength
	}
	return DefaultMaxArgLength
}

// Resolve returns the session arguments, args[0] being the program identity,
// and checkpoints them into the control block before returning.
func (r *Resolver) Resolve(processArgs []string) ([]string, Source) {
	identity := "recovery"
	if len(processArgs) > 0 {
		identity = processArgs[0]
	}
	cb, err := r.Store.Load()
	if err != nil {
		log.Logf("reading control block: %s", err)
		cb = bcb.ControlBlock{}
	}
	if c, set := cb.CommandText(); set {
		log.Logf("Boot command: %s", c)
	}
	if s, set := cb.StatusText(); set {
		log.Logf("Boot status: %s", s)
	}

	args, src := processArgs, SourceProcess
	if len(args) <= 1 {
		args, src = nil, SourceNone
		if opts := r.fromControlBlock(&cb); len(opts) > 0 {
			args, src = append([]string{identity}, opts...), SourceControlBlock
			log.Logf("Got arguments from boot message")
		} else if opts := r.fromCommandFile(); len(opts) > 0 {
			args, src = append([]string{identity}, opts...), SourceCommandFile
			log.Logf("Got arguments from %s", r.CommandFile)
		} else {
			args = []string{identity}
		}
	}
	Checkpoint(r.Store, cb, args[1:])
	return args, src
}

// fromControlBlock returns the options stored after the marker line, or nil
// if the field is unset, lacks the marker or holds something other than
// text.
func (r *Resolver) fromControlBlock(cb *bcb.ControlBlock) []string {
	text, set := cb.RecoveryText()
	if !set {
		return nil
	}
	lines := splitLines(text)
	if len(lines) == 0 || lines[0] != Marker {
		show := text
		if len(show) > 20 {
			show = show[:20]
		}
		log.Logf("Bad boot message %q", show)
		return nil
	}
	opts := lines[1:]
	if max := r.maxArgs() - 1; len(opts) > max {
		opts = opts[:max]
	}
	for _, o := range opts {
		if !isText(o) {
			log.Logf("Bad boot message: non-text argument %q", o)
			return nil
		}
	}
	return opts
}

// splitLines splits on newlines, dropping empty lines like strtok.
func splitLines(s string) (out []string) {
	for _, l := range strings.Split(s, "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return
}

func isText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, c := range s {
		if c < 0x20 && c != '\t' {
			return false
		}
	}
	return true
}

// fromCommandFile reads one option per line from the command file. Line
// endings are stripped, blank lines skipped and overlong lines truncated.
func (r *Resolver) fromCommandFile() []string {
	if r.Roots == nil || r.CommandFile == "" {
		return nil
	}
	f, err := roots.OpenFile(r.Roots, r.CommandFile, os.O_RDONLY, 0)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Logf("%s", err)
		}
		return nil
	}
	defer f.Close()
	var opts []string
	max := r.maxArgs() - 1
	rd := bufio.NewReaderSize(f, r.maxArgLength())
	for len(opts) < max {
		line, err := readLine(rd, r.maxArgLength())
		if line != "" {
			opts = append(opts, line)
		}
		if err != nil {
			break
		}
	}
	return opts
}

// readLine returns the next line without its terminator, cut to maxLen
// bytes; the rest of an overlong line is discarded.
func readLine(rd *bufio.Reader, maxLen int) (string, error) {
	var sb strings.Builder
	for {
		frag, isPrefix, err := rd.ReadLine()
		if room := maxLen - 1 - sb.Len(); room > 0 {
			if len(frag) > room {
				frag = frag[:room]
			}
			sb.Write(frag)
		}
		if err != nil || !isPrefix {
			return strings.TrimRight(sb.String(), "\r"), err
		}
	}
}

// Checkpoint writes args into the control block so the bootloader restarts
// recovery with them. Other fields of cb, such as status, are kept. Text
// beyond the field's capacity is silently dropped. Failure is logged only.
func Checkpoint(store bcb.Store, cb bcb.ControlBlock, args []string) {
	cb.SetCommand(BootRecovery)
	cb.SetRecovery(Marker + "\n")
	for _, a := range args {
		cb.AppendRecovery(a)
		cb.AppendRecovery("\n")
	}
	if err := store.Save(cb); err != nil {
		log.Logf("writing control block: %s", err)
	}
}
