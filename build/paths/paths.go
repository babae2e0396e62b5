// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// not for production use

//go:build !release

package paths

import (
	"os/exec"
	fp "path/filepath"
	"strings"

	"github.com/magefile/mage/sh"

	"github.com/purecloudlabs/grecovery/pkg/log"
)

//paths shared by build targets, as well as path-related utilty functions

var (
	RepoRoot, ImportPath, WorkDir, ArtifactDir string

	// GoDirs - dirs containing code; limit go test to specific paths, else
	// it will scan the work dir and the example trees.
	GoDirs []string

	// LintDirs - like GoDirs, in the form golangci-lint expects
	LintDirs []string

	//recovery binary
	RecoveryBin string

	//host tools, pattern(s) suitable for 'go list'
	ToolCmds []string

	//ramdisk, plain and compressed
	RamdiskCpio, RamdiskXz string
)

func init() {
	var err error
	RepoRoot, err = repoRoot()
	if err != nil {
		log.Logf("Cannot determine repo root.")
	}
	WorkDir, err = workDir()
	if err != nil {
		log.Logf("Cannot determine workdir.")
	}

	cmd := exec.Command("go", "list", "-m")
	cmd.Dir = RepoRoot
	out, err := cmd.Output()
	if err != nil {
		log.Logf("Cannot determine import path.")
	}
	ImportPath = strings.TrimSpace(string(out))

	ArtifactDir = fp.Join(WorkDir, "artifacts")

	GoDirs = []string{
		ImportPath + "/build/paths",
		ImportPath + "/build/ramdisk",
		ImportPath + "/cmd/...",
		ImportPath + "/pkg/...",
	}
	LintDirs = []string{"./build/...", "./cmd/...", "./pkg/..."}

	RecoveryBin = fp.Join(WorkDir, "recovery")
	ToolCmds = []string{ImportPath + "/cmd/bcbtool"}

	RamdiskCpio = fp.Join(WorkDir, "ramdisk-recovery.cpio")
	RamdiskXz = RamdiskCpio + ".xz"
}

//expands pattern via go list - note that pattern isn't a shell glob
func Pkglist(patterns ...string) ([]string, error) {
	args := []string{"list"}
	args = append(args, patterns...)
	out, err := sh.Output("go", args...)
	if err != nil {
		return nil, err
	}
	return strings.Split(out, "\n"), nil
}
