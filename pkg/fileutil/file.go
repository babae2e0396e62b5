// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package fileutil holds small file helpers shared by recovery packages.
package fileutil

import (
	"bytes"
	"io"
	"os"
	fp "path/filepath"
	"sort"
	"strings"

	"github.com/purecloudlabs/grecovery/pkg/log"
)

var (
	xzId = [6]byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00} // fd 37 7a 58 5a 00 -> xz archive
)

//return n bytes from beginning of file
func ReadHeader(fname string, n int64) (head []byte, err error) {
	f, err := os.Open(fname)
	if err != nil {
		return
	}
	defer f.Close()
	head, err = io.ReadAll(io.LimitReader(f, n))
	if int64(len(head)) < n {
		return nil, io.ErrUnexpectedEOF
	}
	return
}

//checks for XZ header
func IsXZ(fname string) bool {
	head, err := ReadHeader(fname, int64(len(xzId)))
	if err != nil {
		log.Logf("failed to read head bytes from %s: %s", fname, err)
		return false
	}
	return bytes.Equal(head, xzId[:])
}

// RenameUnique moves old aside in the same dir, named newPfx plus a random
// suffix. If no unique name can be had, old is deleted instead.
func RenameUnique(old, newPfx string) (success bool) {
	f, err := os.CreateTemp(fp.Dir(old), newPfx)
	if err != nil {
		log.Logf("error %s creating temp file to replace %s", err, old)
		if err = os.Remove(old); err != nil {
			log.Logf("error %s deleting %s", err, old)
		}
		return false
	}
	newname := f.Name()
	f.Close()
	if err = os.Remove(newname); err != nil {
		log.Logf("error %s deleting temp file %s", err, newname)
	}
	if err = os.Rename(old, newname); err != nil {
		log.Logf("error %s renaming %s to %s", err, old, newname)
	}
	return err == nil
}

// ListByExt returns the names of regular files in dir whose extension
// matches ext, ignoring case, sorted. Hidden files are skipped.
func ListByExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || !e.Type().IsRegular() {
			continue
		}
		if len(name) <= len(ext) || !strings.EqualFold(name[len(name)-len(ext):], ext) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
