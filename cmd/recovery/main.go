// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command recovery is the recovery session controller. It is started by the
// recovery image's init with the bootloader's arguments, if any, performs the
// requested operation or shows the menu, and reboots.
//
// Environment:
//
//	RECOVERY_CONFIG    configuration file, default /etc/recovery.yaml
//	RECOVERY_ROOT_DIR  map every logical root below this directory instead of
//	                   mounting devices; for development on a host
package main

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/purecloudlabs/grecovery/pkg/config"
	hk "github.com/purecloudlabs/grecovery/pkg/housekeeping"
	"github.com/purecloudlabs/grecovery/pkg/hw/input"
	"github.com/purecloudlabs/grecovery/pkg/hw/power"
	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/log/flags"
	"github.com/purecloudlabs/grecovery/pkg/log/kmsglog"
	"github.com/purecloudlabs/grecovery/pkg/log/uilog"
	"github.com/purecloudlabs/grecovery/pkg/log/zlog"
	"github.com/purecloudlabs/grecovery/pkg/recovery"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
	"github.com/purecloudlabs/grecovery/pkg/recovery/ui"
)

//in any binary with main.buildId string, it is set at compile time to $BUILD_INFO
var buildId string

func main() {
	start := time.Now()
	log.SetPrefix("recovery")

	cfgPath := os.Getenv("RECOVERY_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Logf("%s; using defaults", err)
		cfg = config.Default()
	}
	if err = log.AddSessionLog(cfg.TempLog); err != nil {
		log.AddConsoleLog(0)
		log.Logf("session log %s: %s", cfg.TempLog, err)
	}
	if cfg.Kmsg {
		if err = kmsglog.AddKmsgLog(flags.EndUser); err != nil {
			log.Logf("kmsg: %s", err)
		}
	}
	log.AdaptStdlog(nil, 0)
	log.Logf("Starting recovery on %s", start.Format(time.ANSIC))
	log.Logf("buildId: %s", buildId)

	log.SetFatalAction(recovery.RecFatal)
	u, closeUI := openUI(cfg)
	if err = uilog.AddUILog(u, flags.EndUser); err != nil {
		log.Logf("%s", err)
	}

	var vols recovery.Volumes
	if dir := os.Getenv("RECOVERY_ROOT_DIR"); dir != "" {
		vols = roots.Dir(dir)
		power.Simulate = true
	} else {
		t := roots.NewTable(cfg.Roots, nil)
		hk.AddPrebootDefaults(t.UnmountAll)
		vols = t
	}
	for _, r := range cfg.Prepare {
		if err := vols.EnsureMounted(r); err != nil {
			log.Logf("preparing %s: %s", r, err)
		}
	}

	version := buildId
	if version == "" {
		version = "not set"
	}
	log.Msg(strings.ReplaceAll(cfg.Banner, "{version}", version))

	s, err := recovery.New(cfg, u, recovery.StoreFor(cfg), vols)
	if err != nil {
		log.Fatalf("%s", err)
	}
	if cfg.ZapLog != "" {
		if err := zlog.AddZapLog(cfg.ZapLog, zap.String("session", s.ID), zap.String("build", buildId)); err != nil {
			log.Logf("zap log %s: %s", cfg.ZapLog, err)
		}
	}
	s.Reboot = power.Reboot
	status := s.Run(context.Background(), os.Args)
	closeUI()
	log.Finalize()
	os.Exit(status)
}

// openUI sets up the screen and a key source: the configured console, else
// the evdev nodes, else the controlling terminal.
func openUI(cfg *config.Config) (ui.UI, func()) {
	if cfg.Input.Console != "" {
		u, closeFn, err := openConsole(cfg.Input.Console, cfg.TextVisible)
		if err == nil {
			return u, closeFn
		}
		log.Logf("console %s: %s", cfg.Input.Console, err)
	}
	screen := ui.NewTextScreen(os.Stdout, cfg.TextVisible)
	dev, err := input.Open(cfg.Input.Devices...)
	if err == nil {
		return ui.Combine(screen, dev), func() { dev.Close() }
	}
	log.Logf("%s", err)
	keys, err := ui.OpenTTY(os.Stdin)
	if err != nil {
		log.Logf("stdin: %s", err)
		keys = ui.NewReaderKeys(os.Stdin)
	}
	screen.SetRaw(keys.Raw())
	return ui.Combine(screen, keys), func() { keys.Close() }
}

func openConsole(path string, visible bool) (ui.UI, func(), error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	keys, err := ui.OpenTTY(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	screen := ui.NewTextScreen(f, visible)
	screen.SetRaw(keys.Raw())
	return ui.Combine(screen, keys), func() { keys.Close(); f.Close() }, nil
}
