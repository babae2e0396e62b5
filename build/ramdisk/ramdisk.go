// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package ramdisk assembles the recovery ramdisk: a newc cpio archive,
// optionally xz-compressed for the kernel's initramfs loader.
package ramdisk

import (
	"fmt"
	"io"
	"os"
	fp "path/filepath"
	"sort"
	"strings"

	"github.com/u-root/u-root/pkg/cpio"
	"github.com/ulikunitz/xz"
)

// File is one regular file in the archive. Name is relative to the archive
// root.
type File struct {
	Name string
	Data []byte
	Perm uint64
}

// Spec describes ramdisk contents.
type Spec struct {
	Dirs  []string
	Files []File
}

// AddFile reads src from disk and adds it as dst.
func (s *Spec) AddFile(src, dst string, perm uint64) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	s.Files = append(s.Files, File{Name: dst, Data: data, Perm: perm})
	return nil
}

// AddList adds entries in 'path/to/src:path/to/dest' form.
func (s *Spec) AddList(list []string) error {
	for _, l := range list {
		src, dst, ok := strings.Cut(l, ":")
		if !ok {
			return fmt.Errorf("ramdisk: bad entry %q", l)
		}
		fi, err := os.Stat(src)
		if err != nil {
			return err
		}
		if err = s.AddFile(src, dst, uint64(fi.Mode().Perm())); err != nil {
			return err
		}
	}
	return nil
}

// records returns directories first, parents before children, including
// every parent of every file.
func (s *Spec) records() []cpio.Record {
	dirs := make(map[string]bool)
	var add func(d string)
	add = func(d string) {
		d = clean(d)
		if d == "" || d == "." || dirs[d] {
			return
		}
		dirs[d] = true
		add(fp.Dir(d))
	}
	for _, d := range s.Dirs {
		add(d)
	}
	for _, f := range s.Files {
		add(fp.Dir(clean(f.Name)))
	}
	var dl []string
	for d := range dirs {
		dl = append(dl, d)
	}
	sort.Strings(dl)
	var recs []cpio.Record
	for _, d := range dl {
		recs = append(recs, cpio.Directory(d, 0755))
	}
	for _, f := range s.Files {
		recs = append(recs, cpio.StaticFile(clean(f.Name), string(f.Data), f.Perm))
	}
	return recs
}

func clean(name string) string {
	return strings.TrimPrefix(fp.Clean("/"+name), "/")
}

// WriteCpio writes the uncompressed archive.
func (s *Spec) WriteCpio(w io.Writer) error {
	rw := cpio.Newc.Writer(w)
	for _, r := range s.records() {
		if err := rw.WriteRecord(r); err != nil {
			return err
		}
	}
	return cpio.WriteTrailer(rw)
}

// WriteXz writes the archive compressed with xz. The kernel only accepts
// crc32 checksums.
func (s *Spec) WriteXz(w io.Writer) error {
	xw, err := xz.WriterConfig{CheckSum: xz.CRC32}.NewWriter(w)
	if err != nil {
		return err
	}
	if err = s.WriteCpio(xw); err != nil {
		xw.Close()
		return err
	}
	return xw.Close()
}
