// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build mage

/*
 build file for mage build system
 list tgts with
go run magerunner.go -d build -l

 build tgt with
go run magerunner.go -d build tgt
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	fp "path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"

	"github.com/purecloudlabs/grecovery/build/paths"
)

func BuildAll(ctx context.Context) error {
	fmt.Println("mage running")
	mg.CtxDeps(ctx, Bins.Recovery, Bins.Tools, Ramdisk.Xz)
	return nil
}

type Bins mg.Namespace

// static recovery binary, for the target device. Set GOARCH to cross-compile.
func (Bins) Recovery(ctx context.Context) error {
	pkg := paths.ImportPath + "/cmd/recovery"
	deps, err := depDirs(ctx, pkg, nil)
	if err != nil {
		return err
	}
	//check if anything is newer than tgt (if it exists)
	rebuild, err := target.Dir(paths.RecoveryBin, deps...)
	if err != nil {
		return err
	}
	if !rebuild {
		fmt.Println("skipping build of", pkg)
		return nil
	}
	mg.CtxDeps(ctx, workdir)
	env := make(map[string]string)
	env["CGO_ENABLED"] = "0"
	if arch := os.Getenv("GOARCH"); arch != "" {
		env["GOARCH"] = arch
	}
	return build(env, "-o", paths.RecoveryBin, pkg)
}

// host-side utilities, such as bcbtool
func (Bins) Tools(ctx context.Context) error {
	mg.CtxDeps(ctx, workdir)
	apps, err := paths.Pkglist(paths.ToolCmds...)
	if err != nil {
		return err
	}
	env := make(map[string]string)
	env["CGO_ENABLED"] = "0"
	return buildeach(env, nil, apps...)
}

//build go code with desired flags
var build func(env map[string]string, args ...string) error

func init() {
	var args []string
	for _, a := range []string{
		"build",
		"-trimpath",
		"-gcflags", "all=-dwarf=false",
		"-ldflags", "-X 'main.buildId=${BUILD_INFO}' -s -w",
	} {
		args = append(args, os.ExpandEnv(a))
	}
	build = RunWCmd(nil, "go", args...)
}

//sh.RunCmd modified to call RunWith
func RunWCmd(env map[string]string, cmd string, args ...string) func(env2 map[string]string, args ...string) error {
	return func(env2 map[string]string, args2 ...string) error {
		var cenv map[string]string
		if env == nil {
			cenv = env2
		} else {
			cenv = env
			for k, v := range env2 {
				cenv[k] = v
			}
		}
		return sh.RunWith(cenv, cmd, append(args, args2...)...)
	}
}

//like build, but outputs to work dir
func buildeach(env map[string]string, tags []string, args ...string) error {
	for k, v := range env {
		fmt.Printf("%s=%s\n", k, v)
	}
	for _, a := range args {
		if a == "" {
			continue
		}
		var cmdArgs []string
		if len(tags) > 0 {
			//tags takes a _space_ separated list
			cmdArgs = []string{"-tags", strings.Join(tags, " ")}
		}
		out := fp.Join(paths.WorkDir, fp.Base(a))
		cmdArgs = append(cmdArgs, "-o", out, a)
		err := build(env, cmdArgs...)
		if err != nil {
			return err
		}
	}
	return nil
}

func workdir() {
	//ignore errors
	_ = os.Mkdir(paths.WorkDir, 0755)
}

//return paths to pkgs imported by given package.
func depDirs(ctx context.Context, pkg string, tags []string) ([]string, error) {
	args := []string{"list", "-f", "{{range .Deps}}{{.}}\n{{end}}"}
	if len(tags) > 0 {
		args = append(args, "-tags", strings.Join(tags, " "))
	}
	list := exec.CommandContext(ctx, "go", append(args, pkg)...)
	list.Dir = paths.RepoRoot
	out, err := list.CombinedOutput()
	if err != nil {
		return nil, err
	}
	//only our own pkgs; third-party code changes only with go.mod
	deps := []string{fp.Join(paths.RepoRoot, "go.mod")}
	for _, l := range strings.Split(string(out), "\n") {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, paths.ImportPath+"/") {
			deps = append(deps, strings.Replace(l, paths.ImportPath, paths.RepoRoot, 1))
		}
	}
	return deps, nil
}
