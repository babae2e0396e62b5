// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package recovery

import (
	"github.com/purecloudlabs/grecovery/pkg/config"
	hk "github.com/purecloudlabs/grecovery/pkg/housekeeping"
	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/recovery/command"
	"github.com/purecloudlabs/grecovery/pkg/recovery/finish"
	"github.com/purecloudlabs/grecovery/pkg/recovery/firmware"
	"github.com/purecloudlabs/grecovery/pkg/recovery/history"
	"github.com/purecloudlabs/grecovery/pkg/recovery/install"
	"github.com/purecloudlabs/grecovery/pkg/recovery/keymap"
	"github.com/purecloudlabs/grecovery/pkg/recovery/menu"
	"github.com/purecloudlabs/grecovery/pkg/recovery/metrics"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
	"github.com/purecloudlabs/grecovery/pkg/recovery/ui"
)

// Volumes is what a session needs from the root table.
type Volumes interface {
	roots.Paths
	roots.Formatter
}

// StoreFor returns the control block store cfg names.
func StoreFor(cfg *config.Config) bcb.Store {
	if cfg.ControlBlock.Device == "" {
		return bcb.NewMemStore(bcb.ControlBlock{})
	}
	return &bcb.DeviceStore{Path: cfg.ControlBlock.Device, Offset: cfg.ControlBlock.Offset}
}

// New assembles a session from cfg. The history, if configured and
// reachable, is loaded and its completion hook queued for reboot.
func New(cfg *config.Config, u ui.UI, store bcb.Store, vols Volumes) (*Session, error) {
	keys, err := keymap.ByName(cfg.Input.KeyMap)
	if err != nil {
		return nil, err
	}
	id := NewID()
	rec := metrics.New(id)
	run := &runner.Runner{
		Interval: cfg.PollInterval,
		Tick:     u.ShowIndeterminateProgress,
	}
	if t, ok := vols.(*roots.Table); ok && t.Runner == nil {
		t.Runner = run
	}

	fin := &finish.Finalizer{
		Store:          store,
		Roots:          vols,
		TempLog:        cfg.TempLog,
		LogFile:        cfg.LogFile,
		IntentFile:     cfg.IntentFile,
		CommandFile:    cfg.CommandFile,
		MetricsFile:    cfg.MetricsFile,
		LogRotateBytes: cfg.LogRotateBytes,
		Metrics:        rec,
	}
	inst := &install.Installer{
		Roots:         vols,
		Runner:        run,
		Screen:        u,
		Command:       cfg.Installer.Command,
		CorruptStatus: cfg.Installer.CorruptStatus,
	}
	var fw *firmware.Updater
	if cfg.Firmware.StageFile != "" {
		fw = &firmware.Updater{
			Store:     store,
			Roots:     vols,
			Format:    vols,
			Runner:    run,
			StageFile: cfg.Firmware.StageFile,
			Flash:     cfg.Firmware.Flash,
			CacheRoot: CacheRoot,
		}
	}
	s := &Session{
		ID: id,
		Resolver: &command.Resolver{
			Store:        store,
			Roots:        vols,
			CommandFile:  cfg.CommandFile,
			MaxArgs:      cfg.MaxArgs,
			MaxArgLength: cfg.MaxArgLength,
		},
		Finalizer: fin,
		Roots:     vols,
		Format:    vols,
		Installer: inst,
		Metrics:   rec,
		UI:        u,
		WipeData:  cfg.WipeData,
		DoReboot:  cfg.Reboot,
	}
	pending := func() bool { return false }
	if fw != nil {
		s.Firmware = fw
		pending = func() bool {
			_, ok := fw.Pending()
			return ok
		}
	}
	s.Menu = &menu.Prompt{
		UI:              u,
		Keys:            keys,
		Headers:         cfg.Headers,
		Items:           cfg.Menu,
		Roots:           vols,
		Format:          vols,
		Runner:          run,
		Installer:       inst,
		Store:           store,
		Finish:          func() { fin.Finish(nil) },
		FirmwarePending: pending,
		Metrics:         rec,
	}
	if cfg.History.File != "" {
		path, err := vols.Translate(cfg.History.File)
		if err == nil {
			err = vols.EnsureMounted(cfg.History.File)
		}
		if err != nil {
			log.Logf("history disabled: %s", err)
			return s, nil
		}
		h := history.New(path, cfg.History.MaxAttempts)
		h.Session = id
		h.Load()
		hk.Preboots.Add(&hk.HkTask{Name: "history", Func: h.RebootHook})
		s.History = h
		s.HistoryFile = cfg.History.File
	}
	return s, nil
}
