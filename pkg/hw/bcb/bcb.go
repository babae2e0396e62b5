// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package bcb reads and writes the bootloader control block: a fixed-layout
// record on the misc partition that the bootloader consults at power-on and
// that recovery uses to make its work resumable.
//
// Layout (bootloader_message):
//
//	command  [32]byte   "boot-recovery", "update-radio", ...
//	status   [32]byte   written by the bootloader
//	recovery [1024]byte "recovery\n" followed by one argument per line
//
// Fields are NUL terminated. Erased flash reads as 0xFF; a field starting
// with 0x00 or 0xFF is unset.
package bcb

import (
	"bytes"
	"fmt"
)

const (
	CommandSize  = 32
	StatusSize   = 32
	RecoverySize = 1024
	Size         = CommandSize + StatusSize + RecoverySize
)

// ControlBlock is the in-memory copy of the record. The zero value is the
// cleared block.
type ControlBlock struct {
	Command  [CommandSize]byte
	Status   [StatusSize]byte
	Recovery [RecoverySize]byte
}

// IsZero is true for a cleared block.
func (cb *ControlBlock) IsZero() bool { return *cb == ControlBlock{} }

// field returns the text of b up to the first NUL, and whether it is set.
func field(b []byte) (string, bool) {
	if len(b) == 0 || b[0] == 0 || b[0] == 0xff {
		return "", false
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), true
}

// CommandText returns the command field and whether it is set.
func (cb *ControlBlock) CommandText() (string, bool) { return field(cb.Command[:]) }

// StatusText returns the status field and whether it is set.
func (cb *ControlBlock) StatusText() (string, bool) { return field(cb.Status[:]) }

// RecoveryText returns the recovery field and whether it is set. The last
// byte is never part of the text, so an unterminated field is cut short.
func (cb *ControlBlock) RecoveryText() (string, bool) {
	return field(cb.Recovery[:RecoverySize-1])
}

// setField copies s into dst, truncating so a NUL always fits, and zeroes the
// remainder.
func setField(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// appendField appends s after the existing text of dst, truncating at
// capacity. Returns false if anything was cut.
func appendField(dst []byte, s string) bool {
	cur := bytes.IndexByte(dst, 0)
	switch {
	case dst[0] == 0xff:
		cur = 0
	case cur < 0:
		// no terminator: already full
		return len(s) == 0
	}
	n := copy(dst[cur:len(dst)-1], s)
	dst[cur+n] = 0
	return n == len(s)
}

func (cb *ControlBlock) SetCommand(s string)  { setField(cb.Command[:], s) }
func (cb *ControlBlock) SetStatus(s string)   { setField(cb.Status[:], s) }
func (cb *ControlBlock) SetRecovery(s string) { setField(cb.Recovery[:], s) }

// AppendRecovery appends to the recovery field like strlcat, returning false
// on truncation.
func (cb *ControlBlock) AppendRecovery(s string) bool { return appendField(cb.Recovery[:], s) }

// Marshal returns the on-disk representation.
func (cb *ControlBlock) Marshal() []byte {
	out := make([]byte, 0, Size)
	out = append(out, cb.Command[:]...)
	out = append(out, cb.Status[:]...)
	return append(out, cb.Recovery[:]...)
}

// Unmarshal fills cb from the on-disk representation.
func (cb *ControlBlock) Unmarshal(b []byte) error {
	if len(b) < Size {
		return fmt.Errorf("control block: short read, %d of %d bytes", len(b), Size)
	}
	copy(cb.Command[:], b[:CommandSize])
	copy(cb.Status[:], b[CommandSize:CommandSize+StatusSize])
	copy(cb.Recovery[:], b[CommandSize+StatusSize:Size])
	return nil
}

func (cb *ControlBlock) String() string {
	show := func(s string, set bool) string {
		if !set {
			return "<unset>"
		}
		return fmt.Sprintf("%q", s)
	}
	c, cs := cb.CommandText()
	s, ss := cb.StatusText()
	r, rs := cb.RecoveryText()
	return fmt.Sprintf("command=%s status=%s recovery=%s", show(c, cs), show(s, ss), show(r, rs))
}

// Store persists the control block. Callers treat failures as non-fatal:
// a failed Load is handled as a cleared block, a failed Save is logged.
type Store interface {
	Load() (ControlBlock, error)
	Save(cb ControlBlock) error
}
