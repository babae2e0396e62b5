// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package paths locates the repository and the build outputs for mage.
// It must not import packages containing generated code, or mage could not
// compile the targets that generate it.
package paths

import (
	"io/fs"
	"os"
	fp "path/filepath"
	"strings"
)

const (
	// RepoEnv overrides the repository root.
	RepoEnv = "RECOVERY_REPO"
	// WorkEnv overrides the directory holding build outputs.
	WorkEnv = "RECOVERY_WORKDIR"
)

// FileList returns the files below build/<d> as "src:dst" lines, dst being
// the path relative to that dir. ramdisk.Spec.AddList takes this format.
func FileList(d string) ([]string, error) {
	root := fp.Join(RepoRoot, "build", d)
	var flist []string
	err := fp.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil || de.IsDir() {
			return err
		}
		flist = append(flist, path+":"+strings.TrimPrefix(path, root+"/"))
		return nil
	})
	return flist, err
}

// fromEnv returns env's value, or computes it and exports it so child
// processes (go test, nested mage) agree on it.
func fromEnv(env string, compute func() (string, error)) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return "", err
	}
	return v, os.Setenv(env, v)
}

// repoRoot is the nearest directory at or above the working dir holding
// go.mod.
func repoRoot() (string, error) {
	return fromEnv(RepoEnv, func() (string, error) {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		for {
			if _, err := os.Stat(fp.Join(wd, "go.mod")); err == nil {
				return wd, nil
			}
			up := fp.Dir(wd)
			if up == wd {
				return "", os.ErrNotExist
			}
			wd = up
		}
	})
}

// workDir sits beside the repo rather than in it, keeping ./... patterns
// out of the ramdisk staging tree.
func workDir() (string, error) {
	return fromEnv(WorkEnv, func() (string, error) {
		return fp.Join(fp.Dir(RepoRoot), fp.Base(RepoRoot)+"_work"), nil
	})
}
