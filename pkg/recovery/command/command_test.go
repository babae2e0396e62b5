// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package command

import (
	"os"
	fp "path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/log/testlog"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
)

const cmdFile = "CACHE:recovery/command"

func newResolver(t *testing.T, cb bcb.ControlBlock) (*Resolver, *bcb.MemStore, string) {
	dir := t.TempDir()
	store := bcb.NewMemStore(cb)
	return &Resolver{Store: store, Roots: roots.Dir(dir), CommandFile: cmdFile}, store, dir
}

func writeCommandFile(t *testing.T, dir, content string) {
	p := fp.Join(dir, "cache", "recovery", "command")
	if err := os.MkdirAll(fp.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func blockWith(recovery string) (cb bcb.ControlBlock) {
	cb.SetCommand(BootRecovery)
	cb.SetRecovery(recovery)
	return
}

func TestResolvePrecedence(t *testing.T) {
	for _, td := range []struct {
		name    string
		process []string
		block   string
		file    string
		want    []string
		src     Source
	}{
		{
			name:    "process wins",
			process: []string{"/sbin/recovery", "--wipe_cache"},
			block:   "recovery\n--wipe_data\n",
			file:    "--update_package=SDCARD:a.zip\n",
			want:    []string{"/sbin/recovery", "--wipe_cache"},
			src:     SourceProcess,
		},
		{
			name:    "block over file",
			process: []string{"/sbin/recovery"},
			block:   "recovery\n--wipe_data\n",
			file:    "--update_package=SDCARD:a.zip\n",
			want:    []string{"/sbin/recovery", "--wipe_data"},
			src:     SourceControlBlock,
		},
		{
			name:    "file when block lacks marker",
			process: []string{"/sbin/recovery"},
			block:   "garbage\n--wipe_data\n",
			file:    "--update_package=SDCARD:a.zip\r\n\n--send_intent=done\n",
			want:    []string{"/sbin/recovery", "--update_package=SDCARD:a.zip", "--send_intent=done"},
			src:     SourceCommandFile,
		},
		{
			name:    "marker only",
			process: []string{"/sbin/recovery"},
			block:   "recovery",
			file:    "--wipe_cache",
			want:    []string{"/sbin/recovery", "--wipe_cache"},
			src:     SourceCommandFile,
		},
		{
			name:    "non-text block",
			process: []string{"/sbin/recovery"},
			block:   "recovery\n--wipe\x01data\n",
			want:    []string{"/sbin/recovery"},
			src:     SourceNone,
		},
		{
			name:    "nothing",
			process: []string{"/sbin/recovery"},
			want:    []string{"/sbin/recovery"},
			src:     SourceNone,
		},
		{
			name: "no identity",
			want: []string{"recovery"},
			src:  SourceNone,
		},
	} {
		t.Run(td.name, func(t *testing.T) {
			tlog := testlog.NewTestLog(t, true, false)
			defer tlog.Freeze()
			var cb bcb.ControlBlock
			if td.block != "" {
				cb = blockWith(td.block)
			}
			r, _, dir := newResolver(t, cb)
			if td.file != "" {
				writeCommandFile(t, dir, td.file)
			}
			got, src := r.Resolve(td.process)
			if diff := cmp.Diff(td.want, got); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
			if src != td.src {
				t.Errorf("want source %s, got %s", td.src, src)
			}
		})
	}
}

func TestCheckpointAlwaysWritten(t *testing.T) {
	var cb bcb.ControlBlock
	cb.SetStatus("OKAY")
	r, store, _ := newResolver(t, cb)
	r.Resolve([]string{"recovery", "--wipe_cache", "--send_intent=x"})
	got := store.Current()
	if c, _ := got.CommandText(); c != BootRecovery {
		t.Errorf("want command %q, got %q", BootRecovery, c)
	}
	if rec, _ := got.RecoveryText(); rec != "recovery\n--wipe_cache\n--send_intent=x\n" {
		t.Errorf("unexpected recovery field %q", rec)
	}
	if s, _ := got.StatusText(); s != "OKAY" {
		t.Errorf("status not preserved: %q", s)
	}

	// nothing resolved still leaves a bare marker
	r, store, _ = newResolver(t, bcb.ControlBlock{})
	r.Resolve([]string{"recovery"})
	got = store.Current()
	if rec, _ := got.RecoveryText(); rec != "recovery\n" {
		t.Errorf("want bare marker, got %q", rec)
	}
}

func TestLoadFailure(t *testing.T) {
	r, store, dir := newResolver(t, blockWith("recovery\n--wipe_data\n"))
	store.LoadErr = os.ErrPermission
	writeCommandFile(t, dir, "--wipe_cache\n")
	got, src := r.Resolve([]string{"recovery"})
	if src != SourceCommandFile || len(got) != 2 || got[1] != "--wipe_cache" {
		t.Errorf("want command file fallback, got %v from %s", got, src)
	}
}

func TestTruncationBoundary(t *testing.T) {
	long := strings.Repeat("x", 2000)
	r, store, _ := newResolver(t, bcb.ControlBlock{})
	r.Resolve([]string{"recovery", "--send_intent=" + long})

	r2 := &Resolver{Store: store}
	got, src := r2.Resolve([]string{"recovery"})
	if src != SourceControlBlock {
		t.Fatalf("want block source, got %s", src)
	}
	want := ("--send_intent=" + long)[:bcb.RecoverySize-1-len(Marker+"\n")]
	if len(got) != 2 || got[1] != want {
		t.Errorf("want single truncated arg of %d bytes, got %d args", len(want), len(got))
	}

	// command file lines are capped too
	r, _, dir := newResolver(t, bcb.ControlBlock{})
	r.MaxArgLength = 16
	writeCommandFile(t, dir, "--wipe_cache_and_then_some\n--wipe_data\n")
	got, _ = r.Resolve([]string{"recovery"})
	if diff := cmp.Diff([]string{"recovery", "--wipe_cache_an", "--wipe_data"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMaxArgs(t *testing.T) {
	r, _, dir := newResolver(t, bcb.ControlBlock{})
	r.MaxArgs = 3
	writeCommandFile(t, dir, "a\nb\nc\nd\n")
	got, _ := r.Resolve([]string{"recovery"})
	if diff := cmp.Diff([]string{"recovery", "a", "b"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRequest(t *testing.T) {
	intent := func(s string) *string { return &s }
	for _, td := range []struct {
		args []string
		want Request
	}{
		{args: []string{"r"}, want: Request{Op: NoCommand}},
		{args: []string{"r", "--wipe_data"}, want: Request{Op: WipeBoth}},
		{args: []string{"r", "--wipe_cache"}, want: Request{Op: WipeCache}},
		{args: []string{"r", "--wipe_cache", "--wipe_data"}, want: Request{Op: WipeBoth}},
		{
			args: []string{"r", "--wipe_data", "--update_package=SDCARD:u.zip", "--send_intent=hi there"},
			want: Request{Op: InstallPackage, Package: "SDCARD:u.zip", Intent: intent("hi there")},
		},
		{args: []string{"r", "--send_intent="}, want: Request{Op: Interactive, Intent: intent("")}},
		{args: []string{"r", "--bogus", "stray", "--wipe_cache"}, want: Request{Op: WipeCache}},
		{args: []string{"r", "--previous_runs=3"}, want: Request{Op: Interactive, PreviousRuns: 3}},
		{args: []string{"r", "--previous_runs=many", "--wipe_cache"}, want: Request{Op: WipeCache}},
	} {
		t.Run(strings.Join(td.args[1:], " "), func(t *testing.T) {
			tlog := testlog.NewTestLog(t, true, false)
			defer tlog.Freeze()
			got := ParseRequest(td.args)
			if diff := cmp.Diff(td.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInvalidArgumentLogged(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	ParseRequest([]string{"r", "--bogus"})
	tlog.Freeze()
	if !tlog.Contains("invalid command argument") {
		t.Errorf("missing log line in\n%s", tlog.Buf.String())
	}
}

// A request survives a restart: resolving with options, then resolving again
// with none, parses to the same request.
func TestCheckpointRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("re-resolved request matches", prop.ForAll(
		func(op int, pkg string, withIntent bool, intent string, runs int) bool {
			req := Request{Op: []Operation{InstallPackage, WipeCache, WipeBoth, Interactive}[op], PreviousRuns: runs}
			if req.Op == InstallPackage {
				req.Package = "SDCARD:" + pkg
			}
			if withIntent {
				req.Intent = &intent
			}
			if len(req.Options()) == 0 {
				req.Op = NoCommand
			}
			store := bcb.NewMemStore(bcb.ControlBlock{})
			first := &Resolver{Store: store}
			args, _ := first.Resolve(append([]string{"recovery"}, req.Options()...))
			if !cmp.Equal(ParseRequest(args), req) {
				return false
			}
			again, src := (&Resolver{Store: store}).Resolve([]string{"recovery"})
			if len(req.Options()) > 0 && src != SourceControlBlock {
				return false
			}
			return cmp.Equal(ParseRequest(again), ParseRequest(args))
		},
		gen.IntRange(0, 3),
		gen.AlphaString(),
		gen.Bool(),
		gen.AlphaString(),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
