// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package kmsg writes records to the kernel ring buffer, so that recovery
// messages survive in dmesg and last_kmsg after a reboot. Process must run
// as root.
package kmsg

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Path is the kernel log device. Var for tests.
var Path = "/dev/kmsg"

// maxRecord is a bit under the kernel's per-record limit, leaving room for
// the priority and prefix.
const maxRecord = 960

type Priority uint

//Convert facility/severity into priority
func Prio(f Facility, s Severity) Priority {
	return Priority(f*8) + Priority(s)
}

//Facility values a la RFC5424. Incomplete list.
type Facility uint

const (
	FacUser   Facility = 1
	FacSys    Facility = 3
	FacLocal0 Facility = 16
)

//Severity values a la RFC5424. Incomplete list.
type Severity uint

const (
	SevEmerg Severity = iota
	SevAlert
	SevCrit
	SevError
	SevWarn
	SevNotice
	SevInfo
)

// Writer emits prefixed records at a given facility.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	fac Facility
	pfx string
}

// Open opens the kernel log for writing.
func Open(fac Facility, pfx string) (*Writer, error) {
	if fac == 0 {
		return nil, fmt.Errorf("kmsg: cannot use facility 0")
	}
	f, err := os.OpenFile(Path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, fac: fac, pfx: pfx}, nil
}

// Printf writes one record per non-empty line of the formatted message.
// Long lines are split.
func (w *Writer) Printf(sev Severity, f string, va ...interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return os.ErrClosed
	}
	hdr := fmt.Sprintf("<%d>", Prio(w.fac, sev))
	if w.pfx != "" {
		hdr += w.pfx + ": "
	}
	for _, line := range strings.Split(fmt.Sprintf(f, va...), "\n") {
		line = strings.TrimRight(line, "\r ")
		for len(line) > 0 {
			chunk := line
			if len(chunk) > maxRecord {
				chunk = chunk[:maxRecord]
			}
			line = line[len(chunk):]
			//each write is a separate record
			if _, err := w.f.WriteString(hdr + chunk + "\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
