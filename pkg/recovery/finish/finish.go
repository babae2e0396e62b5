// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package finish tidies up before leaving recovery: it hands the intent back
// to the main system, keeps the session log, clears the control block so the
// bootloader boots normally, and removes the command file.
//
// Finish may be called any number of times. Each call only copies log bytes
// written since the previous one.
package finish

import (
	"errors"
	"io"
	"os"
	fp "path/filepath"
	"time"

	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"

	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/recovery/metrics"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
)

// RotateSuffix is appended to the durable log's name for its compressed
// predecessor.
const RotateSuffix = ".1.xz"

type Finalizer struct {
	Store bcb.Store
	Roots roots.Paths
	// TempLog is a plain filesystem path; the others are root paths.
	TempLog     string
	LogFile     string
	IntentFile  string
	CommandFile string
	// MetricsFile is optional.
	MetricsFile string
	// When LogFile grows beyond this it is compressed and restarted. Zero
	// disables rotation.
	LogRotateBytes int64
	Metrics        *metrics.Recorder
	// Sync defaults to sync(2).
	Sync func()

	offset int64
}

// Offset is how much of the temporary log has been copied so far.
func (f *Finalizer) Offset() int64 { return f.offset }

// Finish runs every step. Failures are logged and the remaining steps still
// run.
func (f *Finalizer) Finish(intent *string) { f.finish(intent, true) }

// FinishKeepingBlock is Finish without clearing the control block, for when
// a later stage has already written the block it needs.
func (f *Finalizer) FinishKeepingBlock(intent *string) { f.finish(intent, false) }

func (f *Finalizer) finish(intent *string, clearBlock bool) {
	if intent != nil {
		if err := f.writeIntent(*intent); err != nil {
			log.Logf("writing intent: %s", err)
		}
	}
	if f.LogRotateBytes > 0 {
		if err := f.rotate(); err != nil {
			log.Logf("rotating %s: %s", f.LogFile, err)
		}
	}
	n, err := f.copyLog()
	if err != nil {
		log.Logf("copying log: %s", err)
	}
	f.Metrics.Finished(n, time.Now())
	if f.MetricsFile != "" && f.Metrics != nil {
		if err := f.writeMetrics(); err != nil {
			log.Logf("writing metrics: %s", err)
		}
	}
	if clearBlock {
		if err := f.Store.Save(bcb.ControlBlock{}); err != nil {
			log.Logf("clearing control block: %s", err)
		}
	}
	if err := f.removeCommand(); err != nil {
		log.Logf("removing %s: %s", f.CommandFile, err)
	}
	if f.Sync != nil {
		f.Sync()
	} else {
		unix.Sync()
	}
}

func (f *Finalizer) writeIntent(intent string) error {
	out, err := roots.OpenFile(f.Roots, f.IntentFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err = io.WriteString(out, intent); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyLog appends the unsaved tail of the temporary log to the durable one,
// and advances the offset by what was written.
func (f *Finalizer) copyLog() (int64, error) {
	in, err := os.Open(f.TempLog)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	if fi, err := in.Stat(); err == nil && fi.Size() < f.offset {
		log.Logf("%s shrank from %d to %d bytes, copying from start", f.TempLog, f.offset, fi.Size())
		f.offset = 0
	}
	if _, err = in.Seek(f.offset, io.SeekStart); err != nil {
		return 0, err
	}
	out, err := roots.OpenFile(f.Roots, f.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	f.offset += n
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// rotate compresses the durable log into its .1.xz sibling, replacing any
// previous one, once the log exceeds LogRotateBytes.
func (f *Finalizer) rotate() error {
	if err := f.Roots.EnsureMounted(f.LogFile); err != nil {
		return err
	}
	path, err := f.Roots.Translate(f.LogFile)
	if err != nil {
		return err
	}
	fi, err := os.Stat(path)
	if err != nil || fi.Size() <= f.LogRotateBytes {
		if os.IsNotExist(err) {
			err = nil
		}
		return err
	}
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := path + RotateSuffix + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	xw, err := xz.NewWriter(out)
	if err == nil {
		_, err = io.Copy(xw, in)
		if cerr := xw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err = os.Rename(tmp, path+RotateSuffix); err != nil {
		return err
	}
	log.Logf("rotated %s (%d bytes)", f.LogFile, fi.Size())
	return os.Truncate(path, 0)
}

func (f *Finalizer) writeMetrics() error {
	if err := f.Roots.EnsureMounted(f.MetricsFile); err != nil {
		return err
	}
	path, err := f.Roots.Translate(f.MetricsFile)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(fp.Dir(path), 0755); err != nil {
		return err
	}
	return f.Metrics.WriteTextfile(path)
}

func (f *Finalizer) removeCommand() error {
	if f.CommandFile == "" {
		return nil
	}
	if err := f.Roots.EnsureMounted(f.CommandFile); err != nil {
		return err
	}
	path, err := f.Roots.Translate(f.CommandFile)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
