// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package paths

import (
	"os"
	fp "path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileList(t *testing.T) {
	orig := RepoRoot
	defer func() { RepoRoot = orig }()
	RepoRoot = t.TempDir()
	dir := fp.Join(RepoRoot, "build", "ramdisk_files")
	for _, f := range []string{"sbin/busybox", "etc/fstab"} {
		p := fp.Join(dir, f)
		if err := os.MkdirAll(fp.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := FileList("ramdisk_files")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)
	want := []string{
		fp.Join(dir, "etc/fstab") + ":etc/fstab",
		fp.Join(dir, "sbin/busybox") + ":sbin/busybox",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if _, err := FileList("missing"); !os.IsNotExist(err) {
		t.Errorf("want not-exist error, got %v", err)
	}
}

func TestRepoRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(fp.Join(root, "go.mod"), []byte("module x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := fp.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(RepoEnv, "")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(sub); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	got, err := repoRoot()
	if err != nil {
		t.Fatal(err)
	}
	want, err := fp.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}
	if gotReal, _ := fp.EvalSymlinks(got); gotReal != want {
		t.Errorf("want %s, got %s", want, got)
	}
	if env := os.Getenv(RepoEnv); env != got {
		t.Errorf("env not updated: %q", env)
	}

	t.Setenv(RepoEnv, "/elsewhere")
	if got, _ = repoRoot(); got != "/elsewhere" {
		t.Errorf("env override ignored, got %s", got)
	}
}
