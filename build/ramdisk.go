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
	"io"
	"os"
	fp "path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"

	"github.com/purecloudlabs/grecovery/build/paths"
	"github.com/purecloudlabs/grecovery/build/ramdisk"
	"github.com/purecloudlabs/grecovery/pkg/config"
)

type Ramdisk mg.Namespace

//uncompressed recovery ramdisk: binary, default config, mount points
func (Ramdisk) Cpio(ctx context.Context) error {
	mg.CtxDeps(ctx, Bins.Recovery)
	srcs := []string{paths.RecoveryBin, fp.Join(paths.RepoRoot, "pkg/config")}
	if extra := fp.Join(paths.RepoRoot, "build/ramdisk_files"); exists(extra) {
		srcs = append(srcs, extra)
	}
	update, err := target.Dir(paths.RamdiskCpio, srcs...)
	if err != nil {
		return err
	}
	if !update {
		fmt.Println("skipping build of recovery cpio")
		return nil
	}
	spec, err := ramdiskSpec()
	if err != nil {
		return err
	}
	return writeAtomic(paths.RamdiskCpio, spec.WriteCpio)
}

//xz-compressed ramdisk, suitable for mkbootimg
func (Ramdisk) Xz(ctx context.Context) error {
	mg.CtxDeps(ctx, Ramdisk.Cpio)
	update, err := target.Path(paths.RamdiskXz, paths.RamdiskCpio)
	if err != nil {
		return err
	}
	if !update {
		return nil
	}
	spec, err := ramdiskSpec()
	if err != nil {
		return err
	}
	return writeAtomic(paths.RamdiskXz, spec.WriteXz)
}

func ramdiskSpec() (*ramdisk.Spec, error) {
	cfg := config.Default()
	yml, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	if err = config.ValidateDocument(yml); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	spec := &ramdisk.Spec{Dirs: []string{"tmp", "dev", "proc", "sys", "etc"}}
	for _, r := range cfg.Roots {
		spec.Dirs = append(spec.Dirs, r.MountPoint)
	}
	if err = spec.AddFile(paths.RecoveryBin, "sbin/recovery", 0755); err != nil {
		return nil, err
	}
	spec.Files = append(spec.Files, ramdisk.File{Name: config.DefaultPath, Data: yml, Perm: 0644})
	//extra files, such as busybox and RECTOOLS, override the above
	extra, err := paths.FileList("ramdisk_files")
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err = spec.AddList(extra); err != nil {
		return nil, err
	}
	return spec, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeAtomic(out string, write func(w io.Writer) error) (err error) {
	tmp := out + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	if err = write(f); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, out)
}
