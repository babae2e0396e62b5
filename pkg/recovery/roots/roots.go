// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package roots maps logical root paths such as "CACHE:recovery/command" to
// filesystem paths, mounting the backing volume on demand.
package roots

import (
	"bufio"
	"context"
	"os"
	fp "path/filepath"
	"sort"
	"strings"

	"github.com/u-root/u-root/pkg/mount"
	"golang.org/x/sys/unix"

	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/recovery/rerr"
	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
)

// Root describes one logical root. Name includes the trailing colon.
//
// A root without Device is a plain directory, always available.
type Root struct {
	Name       string `yaml:"name"`
	Device     string `yaml:"device,omitempty"`
	MountPoint string `yaml:"mount_point"`
	FSType     string `yaml:"fs_type,omitempty"`
	Options    string `yaml:"options,omitempty"`
	// Format is the formatter command line. {device} and {mount} are
	// substituted. If empty, formatting removes the contents of MountPoint.
	Format string `yaml:"format,omitempty"`
}

// Formatter erases the volume behind a root.
type Formatter interface {
	Format(ctx context.Context, rootPath string) error
}

var _ Formatter = (*Table)(nil)

// Paths is what most of recovery needs from the root table.
type Paths interface {
	EnsureMounted(rootPath string) error
	Translate(rootPath string) (string, error)
}

// Mounter performs the actual mount syscalls.
type Mounter interface {
	Mount(dev, target, fstype, data string, flags uintptr) error
	Unmount(target string) error
	Mounted(target string) bool
}

// Table is the set of configured roots.
type Table struct {
	roots   map[string]Root
	Mounter Mounter
	Runner  *runner.Runner
}

var _ Paths = (*Table)(nil)

// NewTable builds a table using the system mounter.
func NewTable(list []Root, r *runner.Runner) *Table {
	t := &Table{
		roots:   make(map[string]Root, len(list)),
		Mounter: SysMounter{},
		Runner:  r,
	}
	for _, rt := range list {
		if !strings.HasSuffix(rt.Name, ":") {
			rt.Name += ":"
		}
		t.roots[rt.Name] = rt
	}
	return t
}

// split returns the root and the remainder of a root path.
func (t *Table) split(rootPath string) (Root, string, error) {
	i := strings.IndexByte(rootPath, ':')
	if i < 0 {
		return Root{}, "", rerr.Errorf(rerr.TranslationFailure, "translate", rootPath, "no root name")
	}
	rt, ok := t.roots[rootPath[:i+1]]
	if !ok {
		return Root{}, "", rerr.Errorf(rerr.TranslationFailure, "translate", rootPath, "unknown root %s", rootPath[:i+1])
	}
	return rt, rootPath[i+1:], nil
}

// Lookup returns the root named in rootPath.
func (t *Table) Lookup(rootPath string) (Root, bool) {
	rt, _, err := t.split(rootPath)
	return rt, err == nil
}

// Names lists the configured roots in sorted order.
func (t *Table) Names() (names []string) {
	for n := range t.roots {
		names = append(names, n)
	}
	sort.Strings(names)
	return
}

// Translate turns "ROOT:rest" into a filesystem path. It does not mount.
func (t *Table) Translate(rootPath string) (string, error) {
	rt, rest, err := t.split(rootPath)
	if err != nil {
		return "", err
	}
	return fp.Join(rt.MountPoint, rest), nil
}

// EnsureMounted mounts the root named in rootPath if it is not already.
func (t *Table) EnsureMounted(rootPath string) error {
	rt, _, err := t.split(rootPath)
	if err != nil {
		return err
	}
	if rt.Device == "" {
		if err := os.MkdirAll(rt.MountPoint, 0755); err != nil {
			return rerr.New(rerr.MountFailure, "mkdir", rt.MountPoint, err)
		}
		return nil
	}
	if t.Mounter.Mounted(rt.MountPoint) {
		return nil
	}
	if err := os.MkdirAll(rt.MountPoint, 0755); err != nil {
		return rerr.New(rerr.MountFailure, "mkdir", rt.MountPoint, err)
	}
	if err := t.Mounter.Mount(rt.Device, rt.MountPoint, rt.FSType, rt.Options, unix.MS_NOATIME|unix.MS_NODEV); err != nil {
		return rerr.New(rerr.MountFailure, "mount", rt.Name, err)
	}
	log.Logf("mounted %s (%s) on %s", rt.Name, rt.Device, rt.MountPoint)
	return nil
}

// EnsureUnmounted unmounts the root named in rootPath if it is mounted.
func (t *Table) EnsureUnmounted(rootPath string) error {
	rt, _, err := t.split(rootPath)
	if err != nil {
		return err
	}
	if rt.Device == "" || !t.Mounter.Mounted(rt.MountPoint) {
		return nil
	}
	if err := t.Mounter.Unmount(rt.MountPoint); err != nil {
		return rerr.New(rerr.MountFailure, "umount", rt.Name, err)
	}
	return nil
}

// UnmountAll unmounts every root that is mounted. Suitable for the Preboot
// housekeeping list.
func (t *Table) UnmountAll(_ bool) {
	for _, n := range t.Names() {
		if err := t.EnsureUnmounted(n); err != nil {
			log.Logf("%s", err)
		}
	}
}

// Format erases the volume behind a root.
func (t *Table) Format(ctx context.Context, rootPath string) error {
	rt, _, err := t.split(rootPath)
	if err != nil {
		return err
	}
	if rt.Format == "" {
		return t.clear(rt)
	}
	if err = t.EnsureUnmounted(rootPath); err != nil {
		return err
	}
	inv, err := runner.Parse(rt.Format, map[string]string{"device": rt.Device, "mount": rt.MountPoint})
	if err != nil {
		return err
	}
	r := t.Runner
	if r == nil {
		r = &runner.Runner{}
	}
	if o := r.Run(ctx, inv); !o.OK() {
		return rerr.Errorf(rerr.OperationFailure, "format", rt.Name, "%s", o)
	}
	return nil
}

// clear removes everything below the root's mount point.
func (t *Table) clear(rt Root) error {
	if err := t.EnsureMounted(rt.Name); err != nil {
		return err
	}
	ents, err := os.ReadDir(rt.MountPoint)
	if err != nil {
		return rerr.New(rerr.IOFailure, "format", rt.Name, err)
	}
	var first error
	for _, e := range ents {
		if err := os.RemoveAll(fp.Join(rt.MountPoint, e.Name())); err != nil && first == nil {
			first = rerr.New(rerr.IOFailure, "format", rt.Name, err)
		}
	}
	return first
}

// OpenFile opens a file given as a root path, mounting as needed. When
// writing, missing parent directories are created.
func OpenFile(p Paths, rootPath string, flag int, perm os.FileMode) (*os.File, error) {
	if err := p.EnsureMounted(rootPath); err != nil {
		return nil, err
	}
	path, err := p.Translate(rootPath)
	if err != nil {
		return nil, err
	}
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE) != 0 {
		if err := os.MkdirAll(fp.Dir(path), 0777); err != nil {
			return nil, rerr.New(rerr.IOFailure, "mkdir", fp.Dir(path), err)
		}
	}
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, rerr.New(rerr.IOFailure, "open", rootPath, err)
	}
	return f, nil
}

// Dir maps every root to a subdirectory named after it, lowercased, below
// the given directory. Nothing is ever mounted. Used for development on a
// host and in tests.
type Dir string

var _ Paths = Dir("")

func (d Dir) EnsureMounted(rootPath string) error {
	p, err := d.Translate(rootPath)
	if err != nil {
		return err
	}
	return os.MkdirAll(fp.Join(string(d), rootDir(p, string(d))), 0777)
}

func (d Dir) Translate(rootPath string) (string, error) {
	i := strings.IndexByte(rootPath, ':')
	if i <= 0 {
		return "", rerr.Errorf(rerr.TranslationFailure, "translate", rootPath, "no root in path")
	}
	name := strings.ToLower(rootPath[:i])
	return fp.Join(string(d), name, rootPath[i+1:]), nil
}

// rootDir returns the first element of p below base.
func rootDir(p, base string) string {
	rel, err := fp.Rel(base, p)
	if err != nil {
		return ""
	}
	return strings.SplitN(rel, string(fp.Separator), 2)[0]
}

// SysMounter uses the mount syscalls via u-root.
type SysMounter struct{}

func (SysMounter) Mount(dev, target, fstype, data string, flags uintptr) error {
	_, err := mount.Mount(dev, target, fstype, data, flags)
	return err
}

func (SysMounter) Unmount(target string) error {
	return mount.Unmount(target, false, true)
}

// Mounted checks /proc/self/mounts for target.
func (SysMounter) Mounted(target string) bool {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return false
	}
	defer f.Close()
	target = fp.Clean(target)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		elems := strings.Fields(scanner.Text())
		if len(elems) > 1 && elems[1] == target {
			return true
		}
	}
	return false
}

var _ Formatter = Dir("")

// Format empties the root's directory.
func (d Dir) Format(_ context.Context, rootPath string) error {
	p, err := d.Translate(rootPath)
	if err != nil {
		return err
	}
	if err = os.RemoveAll(p); err != nil {
		return rerr.New(rerr.IOFailure, "format", rootPath, err)
	}
	return os.MkdirAll(p, 0777)
}
