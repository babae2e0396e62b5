// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package history

import (
	"os"
	fp "path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/purecloudlabs/grecovery/pkg/log/testlog"
)

//func (rl *RecordList) moveOrAddFront(item *Record)
func TestMoaf(t *testing.T) {
	results := RecordList{
		&Record{Command: "cmd1"},
		&Record{Command: "cmd2"},
	}
	r := &Record{Command: "cmd3"}

	results.moveOrAddFront(r)
	dumpResults(t, results)
	if len(results) != 3 {
		t.Fatalf("bad len %d", len(results))
	}
	if results[0].Command != "cmd3" {
		t.Errorf("expected cmd3 at index 0, got %s", results[0].Command)
	}
	results.moveOrAddFront(results[2])
	dumpResults(t, results)
	if len(results) != 3 {
		t.Errorf("bad len %d", len(results))
	}
	if results[0].Command != "cmd2" {
		t.Errorf("expected cmd2 at index 0, got %s", results[0].Command)
	}
}

func TestBootLoop(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	path := fp.Join(t.TempDir(), "recovery", "history.json")
	ti := time.Now()
	const wipe = "--wipe_data"

	// a completed run does not count against the command
	h := New(path, 3)
	h.Load()
	if !h.Begin(wipe, ti) {
		t.Fatal("first start refused")
	}
	h.RebootHook(true)
	checkCounts(t, h, wipe, 1, 1)

	// each reboot mid-operation is a fresh process
	for i := 0; i < 3; i++ {
		h = New(path, 3)
		h.Load()
		if !h.Begin(wipe, ti) {
			t.Fatalf("start %d refused", i)
		}
	}
	checkCounts(t, h, wipe, 4, 1)
	h = New(path, 3)
	h.Load()
	if h.Begin(wipe, ti) {
		t.Error("fourth unfinished start allowed")
	}
	checkCounts(t, h, wipe, 4, 1)
	if !h.Begin("--wipe_cache", ti) {
		t.Error("other command refused")
	}
	if h.Records()[0].Command != "--wipe_cache" {
		t.Errorf("latest command not first")
	}
	tlog.Freeze()
	if !tlog.Contains("without completing") {
		t.Errorf("refusal not logged:\n%s", tlog.Buf.String())
	}
}

func TestCorruptFile(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	dir := t.TempDir()
	path := fp.Join(dir, "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	h := New(path, 0)
	if h.Load() {
		t.Error("corrupt file loaded")
	}
	if h.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("want default max %d, got %d", DefaultMaxAttempts, h.MaxAttempts)
	}
	if !h.Begin("x", time.Now()) {
		t.Error("start refused after corrupt history")
	}
	entries, _ := os.ReadDir(dir)
	var bad int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "history.json_bad") {
			bad++
		}
	}
	if bad != 1 {
		t.Errorf("want corrupt file kept aside, got %v", entries)
	}
}

func TestNotesCapped(t *testing.T) {
	h := New(fp.Join(t.TempDir(), "h.json"), 100)
	for i := 0; i < 20; i++ {
		h.Begin("x", time.Now())
		h.Complete(true, time.Now())
	}
	if n := len(h.Records()[0].Notes); n != maxNotes {
		t.Errorf("want %d notes, got %d", maxNotes, n)
	}
}

func checkCounts(t *testing.T, h *History, cmd string, att, done uint) {
	t.Helper()
	r := h.find(cmd)
	if r == nil {
		t.Fatalf("no record for %s", cmd)
	}
	if r.Attempts != att {
		t.Errorf("%s: expected %d attempts, got %d", cmd, att, r.Attempts)
	}
	if r.Completions != done {
		t.Errorf("%s: expected %d completions, got %d", cmd, done, r.Completions)
	}
}

func dumpResults(t *testing.T, results RecordList) {
	t.Helper()
	for i := range results {
		t.Logf("results[%d] == %#v\n", i, results[i])
	}
}

func TestPersistAfterErase(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	dir := fp.Join(t.TempDir(), "recovery")
	path := fp.Join(dir, "history.json")
	h := New(path, 3)
	h.Load()
	if !h.Begin("--wipe_cache", time.Now()) {
		t.Fatal("start refused")
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	h.Persist()

	again := New(path, 3)
	if !again.Load() {
		t.Fatal("load failed")
	}
	checkCounts(t, again, "--wipe_cache", 1, 0)
}
