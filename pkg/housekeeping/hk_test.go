// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package housekeeping

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPerformOrder(t *testing.T) {
	var hl HkList
	var ran []string
	add := func(name string) {
		hl.Add(&HkTask{Name: name, Func: func(bool) { ran = append(ran, name) }})
	}
	add("first")
	add("second")
	hl.AddFirst(&HkTask{Name: "last", Func: func(bool) { ran = append(ran, "last") }})
	if diff := cmp.Diff([]string{"second", "first", "last"}, hl.Names()); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
	hl.Perform(true)
	if diff := cmp.Diff([]string{"second", "first", "last"}, ran); diff != "" {
		t.Errorf("run order (-want +got):\n%s", diff)
	}
	if hl.Len() != 0 {
		t.Errorf("%d tasks left", hl.Len())
	}
}

func TestPrebootDefaults(t *testing.T) {
	Preboots.Clear()
	defer Preboots.Clear()
	Preboots.Add(&HkTask{Name: "history", Func: func(bool) {}})
	AddPrebootDefaults(nil)
	AddPrebootDefaults(nil) //must not duplicate
	want := []string{"history", "log.Finalize", "umount", "sync"}
	if diff := cmp.Diff(want, Preboots.Names()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	RemovePrebootDefaults()
	if diff := cmp.Diff([]string{"history"}, Preboots.Names()); diff != "" {
		t.Errorf("after remove (-want +got):\n%s", diff)
	}
}
