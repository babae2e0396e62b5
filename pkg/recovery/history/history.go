// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

/* Package history guards against boot loops.

Every command line that recovery starts working on is counted, and counted
again when it runs to completion, successful or not. A command that keeps
being started without ever completing is what a power-cycling or crashing
device looks like; once MaxAttempts such starts pile up, the command is
refused and the operator gets the menu instead.

The file lives on the cache partition next to the durable log. When used in
recovery, add RebootHook to the preboot housekeeping so an in-flight command
is completed on the way out.
*/
package history

import (
	"encoding/json"
	"fmt"
	"os"
	fp "path/filepath"
	"time"

	futil "github.com/purecloudlabs/grecovery/pkg/fileutil"
	"github.com/purecloudlabs/grecovery/pkg/log"
)

const (
	DefaultMaxAttempts uint = 5
	// notes kept per record
	maxNotes = 10
)

type Record struct {
	Command     string
	Attempts    uint     `json:",omitempty"`
	Completions uint     `json:",omitempty"`
	Notes       []string `json:",omitempty"` //timestamp, session and result of each start/completion
}

// Unfinished is the count of starts not matched by a completion.
func (r *Record) Unfinished() uint {
	if r.Completions >= r.Attempts {
		return 0
	}
	return r.Attempts - r.Completions
}

type RecordList []*Record

//makes the json look nice
type serializationFmt struct {
	Commands RecordList
}

type History struct {
	path        string
	MaxAttempts uint
	Session     string
	records     RecordList
	current     *Record
}

// New returns a history backed by the file at path, which need not exist.
func New(path string, maxAttempts uint) *History {
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &History{path: path, MaxAttempts: maxAttempts}
}

// Load reads the history file. A missing file is an empty history; an
// unreadable one is moved aside and also treated as empty.
func (h *History) Load() (ok bool) {
	h.records = nil
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Logf("%s does not exist, starting new history", h.path)
			return true
		}
		log.Logf("error %s reading %s", err, h.path)
		return false
	}
	var content serializationFmt
	if err = json.Unmarshal(data, &content); err != nil {
		log.Logf("Error %s loading recovery history", err)
		futil.RenameUnique(h.path, fp.Base(h.path)+"_bad")
		return false
	}
	h.records = content.Commands
	return true
}

// Records returns the loaded records, most recent first.
func (h *History) Records() RecordList { return h.records }

func (h *History) find(cmd string) *Record {
	for _, r := range h.records {
		if r.Command == cmd {
			return r
		}
	}
	return nil
}

// Check returns false if cmd has been started too often without completing.
func (h *History) Check(cmd string) (ok bool) {
	if r := h.find(cmd); r != nil {
		return r.Unfinished() < h.MaxAttempts
	}
	return true
}

// Begin records a start of cmd and reports whether it may run. A refused
// command is not counted.
func (h *History) Begin(cmd string, at time.Time) (ok bool) {
	if !h.Check(cmd) {
		r := h.find(cmd)
		log.Logf("%q started %d times without completing; not running it again", cmd, r.Unfinished())
		return false
	}
	r := h.find(cmd)
	if r == nil {
		r = &Record{Command: cmd}
	}
	r.Attempts++
	r.note(fmt.Sprintf("Start @ %s, session %s", at.Format(time.RFC3339), h.Session))
	h.records.moveOrAddFront(r)
	h.current = r
	h.write()
	return true
}

// Complete records that the command passed to the last Begin ran to the end.
// Calling it without a pending command does nothing.
func (h *History) Complete(success bool, at time.Time) {
	r := h.current
	if r == nil {
		return
	}
	h.current = nil
	r.Completions++
	r.note(fmt.Sprintf("Done @ %s, session %s, success: %t", at.Format(time.RFC3339), h.Session, success))
	h.records.moveOrAddFront(r)
	h.write()
}

// Persist writes the history file again. Call it after erasing the
// filesystem the file lives on, so an attempt in flight stays counted.
func (h *History) Persist() { h.write() }

// RebootHook completes any pending command. Suitable for the preboot
// housekeeping list.
func (h *History) RebootHook(success bool) {
	if h.current != nil {
		log.Logf("Adding to history file: cmd=%q success=%t", h.current.Command, success)
	}
	h.Complete(success, time.Now())
}

func (r *Record) note(n string) {
	r.Notes = append(r.Notes, n)
	if len(r.Notes) > maxNotes {
		r.Notes = append([]string(nil), r.Notes[len(r.Notes)-maxNotes:]...)
	}
}

func (h *History) write() {
	content := serializationFmt{Commands: h.records}
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		log.Logf("error %s marshalling json for %v", err, content)
		return
	}
	if err = os.MkdirAll(fp.Dir(h.path), 0777); err != nil {
		log.Logf("error %s creating dir for %s", err, h.path)
		return
	}
	tmp := h.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0644); err == nil {
		err = os.Rename(tmp, h.path)
	}
	if err != nil {
		log.Logf("error %s writing data to %s", err, h.path)
	}
}

//if item exists in list, make it the first item. otherwise insert as first item.
func (rl *RecordList) moveOrAddFront(item *Record) {
	for i := range *rl {
		if (*rl)[i] == item {
			//it exists. delete, preserving order (and allowing GC of unused element)
			copy((*rl)[i:], (*rl)[i+1:])
			(*rl)[len(*rl)-1] = nil
			(*rl) = (*rl)[:len(*rl)-1]
			break
		}
	}
	//insert at front
	l := &RecordList{item}
	*rl = append(*l, (*rl)...)
}
