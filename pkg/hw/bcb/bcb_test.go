// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package bcb

import (
	"bytes"
	"os"
	fp "path/filepath"
	"strings"
	"testing"
)

func TestFieldUnset(t *testing.T) {
	var cb ControlBlock
	if _, set := cb.CommandText(); set {
		t.Error("zero command reported set")
	}
	for i := range cb.Recovery {
		cb.Recovery[i] = 0xff
	}
	if _, set := cb.RecoveryText(); set {
		t.Error("erased recovery reported set")
	}
	cb.SetStatus("")
	if s, set := cb.StatusText(); set || s != "" {
		t.Errorf("empty status: got %q, %t", s, set)
	}
}

func TestSetFieldTruncates(t *testing.T) {
	var cb ControlBlock
	long := strings.Repeat("x", 40)
	cb.SetCommand(long)
	got, set := cb.CommandText()
	if !set || got != long[:CommandSize-1] {
		t.Errorf("got %q", got)
	}
	cb.SetCommand("boot-recovery")
	got, _ = cb.CommandText()
	if got != "boot-recovery" {
		t.Errorf("shorter value must clear the tail, got %q", got)
	}
}

func TestAppendRecovery(t *testing.T) {
	var cb ControlBlock
	for i := range cb.Recovery {
		cb.Recovery[i] = 0xff
	}
	cb.SetRecovery("recovery\n")
	if !cb.AppendRecovery("--wipe_data\n") {
		t.Error("unexpected truncation")
	}
	got, _ := cb.RecoveryText()
	if got != "recovery\n--wipe_data\n" {
		t.Errorf("got %q", got)
	}

	// fill up to exactly one byte short of capacity
	cb.SetRecovery("")
	if !cb.AppendRecovery(strings.Repeat("a", RecoverySize-1)) {
		t.Error("value that fits reported truncated")
	}
	if cb.AppendRecovery("b") {
		t.Error("overflow not reported")
	}
	got, _ = cb.RecoveryText()
	if len(got) != RecoverySize-1 || strings.Contains(got, "b") {
		t.Errorf("len %d", len(got))
	}
	if cb.Recovery[RecoverySize-1] != 0 {
		t.Error("field not terminated")
	}
}

func TestUnterminatedRecovery(t *testing.T) {
	var cb ControlBlock
	for i := range cb.Recovery {
		cb.Recovery[i] = 'r'
	}
	got, set := cb.RecoveryText()
	if !set || len(got) != RecoverySize-1 {
		t.Errorf("set=%t len=%d", set, len(got))
	}
}

func TestMarshal(t *testing.T) {
	var cb ControlBlock
	cb.SetCommand("boot-recovery")
	cb.SetStatus("OKAY")
	cb.SetRecovery("recovery\n--wipe_cache\n")
	raw := cb.Marshal()
	if len(raw) != Size {
		t.Fatalf("size %d", len(raw))
	}
	if !bytes.HasPrefix(raw[CommandSize+StatusSize:], []byte("recovery\n")) {
		t.Error("recovery field misplaced")
	}
	var back ControlBlock
	if err := back.Unmarshal(raw); err != nil {
		t.Fatal(err)
	}
	if back != cb {
		t.Errorf("round trip mismatch: %s vs %s", back.String(), cb.String())
	}
	if err := back.Unmarshal(raw[:10]); err == nil {
		t.Error("short buffer accepted")
	}
}

func TestDeviceStore(t *testing.T) {
	path := fp.Join(t.TempDir(), "misc")
	// pretend partition: erased flash
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xff}, 4096), 0600); err != nil {
		t.Fatal(err)
	}
	ds := &DeviceStore{Path: path, Offset: 2048}
	cb, err := ds.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, set := cb.CommandText(); set {
		t.Error("erased block has command")
	}
	cb.SetCommand("boot-recovery")
	cb.SetRecovery("recovery\n--update_package=CACHE:ota.zip\n")
	if err = ds.Save(cb); err != nil {
		t.Fatal(err)
	}
	back, err := ds.Load()
	if err != nil {
		t.Fatal(err)
	}
	if back != cb {
		t.Errorf("want %s, got %s", cb.String(), back.String())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 4096 || raw[0] != 0xff || raw[2047] != 0xff {
		t.Error("bytes outside the block were modified")
	}
	if err = ds.Save(ControlBlock{}); err != nil {
		t.Fatal(err)
	}
	back, _ = ds.Load()
	if !back.IsZero() {
		t.Error("cleared block not zero")
	}
}

func TestDeviceStoreMissing(t *testing.T) {
	ds := &DeviceStore{Path: fp.Join(t.TempDir(), "nope", "misc")}
	if _, err := ds.Load(); err == nil {
		t.Error("missing device loaded")
	}
}
