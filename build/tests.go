// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build mage

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/magefile/mage/mg"

	"github.com/purecloudlabs/grecovery/build/paths"
)

/* Env vars
RUN - passed to go test -run. Only tests that match the given regex will run.
COUNT - passed to go test -count. Use 1 to bypass test result caching, and
    higher values to repeat tests.
RUN and COUNT are used in testArgs() function.
*/

type Tests mg.Namespace

//runs unit tests
func (Tests) Unit(ctx context.Context) error {
	args, err := testArgs(ctx, nil, "")
	if err != nil {
		return err
	}
	return gotest(ctx, nil, args...)
}

//unit tests with the race detector
func (Tests) Race(ctx context.Context) error {
	args, err := testArgs(ctx, nil, "")
	if err != nil {
		return err
	}
	return gotest(ctx, []string{"CGO_ENABLED=1"}, append([]string{"-race"}, args...)...)
}

//args for 'go test': pkg, -run, -count, -timeout
func testArgs(ctx context.Context, pkgs []string, onlyRun string) ([]string, error) {
	if len(pkgs) == 0 {
		pkgs = paths.GoDirs
	}
	var args []string
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		//less time than the exact deadline so go test can print out message about what test it's on
		dur := time.Until(deadline) - 20*time.Second
		if dur < 0 {
			return nil, mg.Fatal(1, "deadline exceeded")
		}
		args = append(args, "-timeout", dur.String())
	}
	args = append(args, pkgs...)

	if onlyRun != "" {
		args = append(args, "-run", onlyRun)
	} else if run := os.Getenv("RUN"); run != "" {
		args = append(args, "-run", run)
	}

	if count := os.Getenv("COUNT"); count != "" {
		c, err := strconv.Atoi(count)
		if err != nil {
			return nil, mg.Fatalf(3, "COUNT must be unset or numeric: %s", err)
		}
		if c > 0 {
			args = append(args, "-count", count)
		}
	}
	return args, nil
}

type junitKey struct{}

func gotest(ctx context.Context, env []string, args ...string) error {
	env = append(env, os.Environ()...)

	//if this is set, run gotestsum and write output to the named file
	if jout, ok := ctx.Value(junitKey{}).(string); ok {
		gts := exec.CommandContext(ctx, "gotestsum", "--junitfile", jout, "--")
		gts.Args = append(gts.Args, args...)
		gts.Dir = paths.RepoRoot
		gts.Env = env
		fmt.Printf("running %v...\n", gts.Args)
		out, err := gts.CombinedOutput()
		if err == nil {
			return nil
		}
		fmt.Printf("%v exited with error %q. output:\n%s\n", gts.Args, err, string(out))
		if fi, serr := os.Stat(jout); serr == nil && fi.Size() > 100 {
			// report exists; ci parses it for details
			return mg.Fatal(4, err)
		}
		fmt.Println("running 'go test' directly for a more informative error...")
	}
	tst := exec.CommandContext(ctx, "go", append([]string{"test"}, args...)...)
	tst.Dir = paths.RepoRoot
	tst.Env = env
	fmt.Printf("running %v...\n", tst.Args)
	out, err := tst.CombinedOutput()
	if err != nil {
		fmt.Printf("'go test' output:\n%s\n", string(out))
		return mg.Fatal(5, "go test error:", err)
	}
	fmt.Println("'go test' passes")
	if mg.Verbose() {
		fmt.Println(strings.TrimSpace(string(out)))
	}
	return nil
}

func (Tests) Lint(ctx context.Context) error {
	lp, err := exec.LookPath("golangci-lint")
	if err != nil {
		fmt.Println("golangci-lint not present, skipping")
		return nil
	}
	args := append([]string{"run"}, paths.LintDirs...)
	lint := exec.CommandContext(ctx, lp, args...)
	lint.Dir = paths.RepoRoot
	lint.Stdout = os.Stdout
	lint.Stderr = os.Stderr
	return lint.Run()
}
