// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package housekeeping keeps lists of tasks to run later, such as just
// before reboot. Like defer, lists run last-in first-out. Each task gets a
// bool telling it whether the session succeeded; most ignore it, the history
// hook does not.
package housekeeping

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/purecloudlabs/grecovery/pkg/log"
)

type HkFun func(success bool)

type HkTask struct {
	Name string
	Func HkFun
}

type HkList struct{ tasks []*HkTask }

type HkFilter func(t *HkTask) bool

// Filter returns the tasks for which filter is true.
func (hl *HkList) Filter(filter HkFilter) HkList {
	var out HkList
	for _, entry := range hl.tasks {
		if filter(entry) {
			out.tasks = append(out.tasks, entry)
		}
	}
	return out
}

// FilterOut returns the tasks for which filter is false.
func (hl *HkList) FilterOut(filter HkFilter) HkList {
	return hl.Filter(func(t *HkTask) bool { return !filter(t) })
}

// Perform runs and removes every task, newest first.
func (hl *HkList) Perform(success bool) {
	for len(hl.tasks) > 0 {
		l := len(hl.tasks)
		task := hl.tasks[l-1]
		hl.tasks = hl.tasks[:l-1]
		task.Func(success)
	}
}

func (hl *HkList) Clear()   { hl.tasks = nil }
func (hl *HkList) Len() int { return len(hl.tasks) }

func (hl *HkList) Add(t *HkTask) {
	hl.tasks = append(hl.tasks, t)
}

func (hl *HkList) AddFirst(t *HkTask) {
	hl.tasks = append([]*HkTask{t}, hl.tasks...)
}

// Names lists task names in the order they would run.
func (hl *HkList) Names() (names []string) {
	for i := len(hl.tasks) - 1; i >= 0; i-- {
		names = append(names, hl.tasks[i].Name)
	}
	return
}

// AddPrebootDefaults queues tasks to finish the log, unmount logical roots
// and sync disks. They go at the start of the list, so they run last, in that
// order. unmountFunc is passed in to avoid an import cycle with roots.
func AddPrebootDefaults(unmountFunc func(bool)) {
	RemovePrebootDefaults()
	Preboots.AddFirst(&HkTask{Name: "log.Finalize", Func: func(_ bool) { log.Finalize() }})
	Preboots.AddFirst(&HkTask{Name: "umount", Func: func(success bool) {
		if unmountFunc != nil {
			unmountFunc(success)
		}
	}})
	Preboots.AddFirst(&HkTask{Name: "sync", Func: func(_ bool) {
		ss := time.Now()
		unix.Sync()
		fmt.Printf("sync: %s\n", time.Since(ss))
	}})
}

func RemovePrebootDefaults() {
	Preboots = Preboots.FilterOut(func(t *HkTask) bool {
		switch t.Name {
		case "umount", "sync", "log.Finalize":
			return true
		}
		return false
	})
}

// Preboots run right before the recovery session reboots the device.
var Preboots HkList
