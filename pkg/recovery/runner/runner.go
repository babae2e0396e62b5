// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package runner launches external maintenance tools one at a time, shows
// the operator a liveness indicator while they run, and reduces the result to
// an Outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/shlex"

	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/recovery/rerr"
)

type Kind int

const (
	Success Kind = iota
	Failure
	Aborted
)

// LaunchFailureCode is reported when the tool could not be started at all.
// Real exit statuses are never negative.
const LaunchFailureCode = -1

// Outcome of one operation.
type Outcome struct {
	Kind   Kind
	Code   int            //exit status, for Failure
	Signal syscall.Signal //for Aborted
}

func Succeeded() Outcome             { return Outcome{Kind: Success} }
func Failed(code int) Outcome        { return Outcome{Kind: Failure, Code: code} }
func Killed(s syscall.Signal) Outcome { return Outcome{Kind: Aborted, Signal: s} }

func (o Outcome) OK() bool { return o.Kind == Success }

// LaunchFailed reports whether the tool never ran.
func (o Outcome) LaunchFailed() bool { return o.Kind == Failure && o.Code == LaunchFailureCode }

func (o Outcome) String() string {
	switch o.Kind {
	case Success:
		return "success"
	case Aborted:
		return fmt.Sprintf("aborted by signal %d (%s)", int(o.Signal), o.Signal)
	}
	if o.LaunchFailed() {
		return "failed to launch"
	}
	return fmt.Sprintf("failed with status %d", o.Code)
}

// Invocation names a tool and its argument vector. Args[0] is passed as the
// program name, which need not equal Path (busybox applets).
type Invocation struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Cmd builds an Invocation where argv[0] is the path itself.
func Cmd(path string, args ...string) Invocation {
	return Invocation{Path: path, Args: append([]string{path}, args...)}
}

func (inv Invocation) String() string {
	if len(inv.Args) == 0 {
		return inv.Path
	}
	return inv.Path + " [" + strings.Join(inv.Args, " ") + "]"
}

// Runner runs invocations. The zero value polls once a second, emits no
// liveness indicator and appends tool output to the session log.
type Runner struct {
	// Interval between polls of the running child.
	Interval time.Duration
	// Tick is called once per poll while the child runs.
	Tick func()
	// Output receives the child's stdout and stderr.
	Output io.Writer
}

// DefaultInterval between polls.
const DefaultInterval = time.Second

// Run launches inv and blocks until it exits. ctx is only consulted before
// launch; a running tool is never interrupted.
func (r *Runner) Run(ctx context.Context, inv Invocation) Outcome {
	if err := ctx.Err(); err != nil {
		log.Logf("not running %s: %s", inv, err)
		return Failed(LaunchFailureCode)
	}
	args := inv.Args
	if len(args) == 0 {
		args = []string{inv.Path}
	}
	path := inv.Path
	if !strings.Contains(path, "/") {
		lp, err := exec.LookPath(path)
		if err != nil {
			log.Logf("%s", rerr.New(rerr.LaunchFailure, "run", path, err))
			return Failed(LaunchFailureCode)
		}
		path = lp
	}
	cmd := &exec.Cmd{
		Path: path,
		Args: args,
		Dir:  inv.Dir,
		Env:  inv.Env,
	}
	out, closeOut := r.output()
	defer closeOut()
	cmd.Stdout = out
	cmd.Stderr = out

	log.Logf("Running %s...", inv)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		log.Logf("%s", rerr.New(rerr.LaunchFailure, "run", inv.Path, err))
		return Failed(LaunchFailureCode)
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			o := classify(err)
			log.Logf("%s: %s after %s", inv.Path, o, time.Since(start).Round(time.Millisecond))
			return o
		case <-ticker.C:
			if r.Tick != nil {
				r.Tick()
			}
		}
	}
}

func classify(err error) Outcome {
	if err == nil {
		return Succeeded()
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		log.Logf("waiting for child: %s", err)
		return Failed(LaunchFailureCode)
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Killed(ws.Signal())
	}
	return Failed(exitErr.ExitCode())
}

// output picks where tool output goes: Output if set, else the session log
// file (opened separately in append mode), else stderr.
func (r *Runner) output() (io.Writer, func()) {
	if r.Output != nil {
		return r.Output, func() {}
	}
	if name := log.FileName(); name != "" {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND, 0)
		if err == nil {
			return f, func() { f.Close() }
		}
		log.Logf("opening %s for tool output: %s", name, err)
	}
	return os.Stderr, func() {}
}

// Tally folds the outcomes of a list of steps that all run regardless of
// earlier failures. The first failure among steps not ignored is kept.
type Tally struct {
	failed bool
	first  Outcome
}

func (t *Tally) Add(o Outcome, ignore bool) {
	if !o.OK() && !ignore && !t.failed {
		t.failed = true
		t.first = o
	}
}

// Result is the first counted failure, or success.
func (t *Tally) Result() Outcome {
	if t.failed {
		return t.first
	}
	return Succeeded()
}

// Parse splits a configured command line with shell quoting rules and
// replaces each {name} with vars[name] in every word. The first word is both
// path and argv[0].
func Parse(cmdline string, vars map[string]string) (Invocation, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return Invocation{}, rerr.Errorf(rerr.MalformedState, "parse", cmdline, "%s", err)
	}
	if len(argv) == 0 {
		return Invocation{}, rerr.Errorf(rerr.MalformedState, "parse", cmdline, "empty command")
	}
	if len(vars) > 0 {
		var pairs []string
		for k, v := range vars {
			pairs = append(pairs, "{"+k+"}", v)
		}
		rp := strings.NewReplacer(pairs...)
		for i := range argv {
			argv[i] = rp.Replace(argv[i])
		}
	}
	return Invocation{Path: argv[0], Args: argv}, nil
}
