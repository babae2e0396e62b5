// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package kmsg

import (
	"os"
	fp "path/filepath"
	"strings"
	"testing"
)

func fakeKmsg(t *testing.T) string {
	t.Helper()
	orig := Path
	Path = fp.Join(t.TempDir(), "kmsg")
	t.Cleanup(func() { Path = orig })
	if err := os.WriteFile(Path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	return Path
}

func TestPrintf(t *testing.T) {
	p := fakeKmsg(t)
	w, err := Open(FacUser, "recovery")
	if err != nil {
		t.Fatal(err)
	}
	if err = w.Printf(SevNotice, "Formatting %s...\n\nDone.", "DATA:"); err != nil {
		t.Fatal(err)
	}
	if err = w.Printf(SevCrit, "%s", strings.Repeat("x", maxRecord+5)); err != nil {
		t.Fatal(err)
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
	if err = w.Printf(SevNotice, "late"); err != os.ErrClosed {
		t.Errorf("want ErrClosed, got %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	want := []string{
		"<13>recovery: Formatting DATA:...",
		"<13>recovery: Done.",
		"<10>recovery: " + strings.Repeat("x", maxRecord),
		"<10>recovery: xxxxx",
	}
	if len(lines) != len(want) {
		t.Fatalf("want %d records, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("%d: want %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestOpenErrors(t *testing.T) {
	fakeKmsg(t)
	if _, err := Open(0, ""); err == nil {
		t.Error("want error for facility 0")
	}
	Path = fp.Join(t.TempDir(), "missing", "kmsg")
	if _, err := Open(FacUser, ""); err == nil {
		t.Error("want error for missing device")
	}
}
