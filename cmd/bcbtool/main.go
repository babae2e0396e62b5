// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command bcbtool is the main system's side of recovery: it inspects the
// bootloader control block and queues requests for the next recovery boot.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/purecloudlabs/grecovery/pkg/config"
	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/recovery"
	"github.com/purecloudlabs/grecovery/pkg/recovery/command"
	"github.com/purecloudlabs/grecovery/pkg/recovery/firmware"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
)

type options struct {
	config  string
	device  string
	offset  int64
	rootDir string
}

type env struct {
	cfg   *config.Config
	store bcb.Store
	paths roots.Paths
}

func (o *options) env(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(o.config)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("device") {
		cfg.ControlBlock.Device = o.device
	}
	if cmd.Flags().Changed("offset") {
		cfg.ControlBlock.Offset = o.offset
	}
	e := &env{cfg: cfg, store: recovery.StoreFor(cfg)}
	if o.rootDir != "" {
		e.paths = roots.Dir(o.rootDir)
	} else {
		e.paths = roots.NewTable(cfg.Roots, nil)
	}
	return e, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:          "bcbtool",
		Short:        "Inspect and queue recovery requests",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.config, "config", config.DefaultPath, "recovery configuration file")
	pf.StringVar(&o.device, "device", bcb.DefaultDevice, "control block device, overriding the configuration")
	pf.Int64Var(&o.offset, "offset", 0, "offset of the control block within the device")
	pf.StringVar(&o.rootDir, "root-dir", "", "map logical roots below this directory instead of mounting")

	root.AddCommand(newShowCmd(o), newRequestCmd(o), newClearCmd(o), newConfigCmd(o))
	return root
}

func newShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the control block and any queued request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := o.env(cmd)
			if err != nil {
				return err
			}
			return show(cmd.OutOrStdout(), e)
		},
	}
}

func show(w io.Writer, e *env) error {
	cb, err := e.store.Load()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "control block: %s\n", cb.String())
	if args := recovery.ResumeArgs(e.store); args != nil {
		fmt.Fprintf(w, "resume: %s\n", strings.Join(args, " "))
	}
	if data, err := readRoot(e.paths, e.cfg.CommandFile); err == nil {
		fmt.Fprintf(w, "command file: %s\n", strings.Join(strings.Fields(string(data)), " "))
	}
	if e.cfg.Firmware.StageFile != "" {
		if data, err := readRoot(e.paths, e.cfg.Firmware.StageFile); err == nil {
			fmt.Fprintf(w, "firmware: %s\n", strings.Join(strings.Fields(string(data)), " "))
		}
	}
	return nil
}

func readRoot(p roots.Paths, rootPath string) ([]byte, error) {
	if err := p.EnsureMounted(rootPath); err != nil {
		return nil, err
	}
	path, err := p.Translate(rootPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

type requestOpts struct {
	pkg       string
	wipeData  bool
	wipeCache bool
	intent    string
	via       string
	fwType    string
	fwImage   string
}

const (
	viaBlock = "bcb"
	viaFile  = "file"
	viaBoth  = "both"
)

func newRequestCmd(o *options) *cobra.Command {
	r := &requestOpts{}
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Queue an operation for the next recovery boot",
		Long: `Queue an operation for the next recovery boot.

The request is written to the control block (--via=bcb), to the command
file on the cache partition (--via=file), or both. A firmware image may be
staged for the bootloader with --firmware_type and --firmware_image.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := o.env(cmd)
			if err != nil {
				return err
			}
			req, err := r.request(cmd)
			if err != nil {
				return err
			}
			return queue(cmd.OutOrStdout(), e, req, r)
		},
	}
	f := cmd.Flags()
	f.StringVar(&r.pkg, "update_package", "", "root path of the package to install")
	f.BoolVar(&r.wipeData, "wipe_data", false, "erase user data and cache")
	f.BoolVar(&r.wipeCache, "wipe_cache", false, "erase cache")
	f.StringVar(&r.intent, "send_intent", "", "text handed back to the main system")
	f.StringVar(&r.via, "via", viaBlock, "where to write the request: bcb, file or both")
	f.StringVar(&r.fwType, "firmware_type", "", "type of firmware image to stage ("+strings.Join(firmware.Types, ", ")+")")
	f.StringVar(&r.fwImage, "firmware_image", "", "root path of the firmware image to stage")
	return cmd
}

func (r *requestOpts) request(cmd *cobra.Command) (command.Request, error) {
	var req command.Request
	switch {
	case r.pkg != "":
		req.Op = command.InstallPackage
		req.Package = r.pkg
	case r.wipeData:
		req.Op = command.WipeBoth
	case r.wipeCache:
		req.Op = command.WipeCache
	default:
		req.Op = command.Interactive
	}
	if cmd.Flags().Changed("send_intent") {
		req.Intent = &r.intent
	}
	switch r.via {
	case viaBlock, viaFile, viaBoth:
	default:
		return req, fmt.Errorf("--via must be one of %s, %s, %s", viaBlock, viaFile, viaBoth)
	}
	if (r.fwType == "") != (r.fwImage == "") {
		return req, errors.New("--firmware_type and --firmware_image go together")
	}
	return req, nil
}

func queue(w io.Writer, e *env, req command.Request, r *requestOpts) error {
	opts := req.Options()
	if r.via == viaBlock || r.via == viaBoth {
		cb, err := e.store.Load()
		if err != nil {
			cb = bcb.ControlBlock{}
		}
		command.Checkpoint(e.store, cb, opts)
		if got := recovery.ResumeArgs(e.store); strings.Join(got, " ") != strings.Join(opts, " ") {
			return fmt.Errorf("control block holds %q, wanted %q", got, opts)
		}
	}
	if r.via == viaFile || r.via == viaBoth {
		f, err := roots.OpenFile(e.paths, e.cfg.CommandFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		for _, a := range opts {
			fmt.Fprintln(f, a)
		}
		if err = f.Close(); err != nil {
			return err
		}
	}
	if r.fwType != "" {
		st := firmware.Stage{Type: r.fwType, Image: r.fwImage}
		if err := firmware.WriteStage(e.paths, e.cfg.Firmware.StageFile, st); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "queued: %s\n", strings.Join(opts, " "))
	return nil
}

func newClearCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Zero the control block and remove the command file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := o.env(cmd)
			if err != nil {
				return err
			}
			if err = e.store.Save(bcb.ControlBlock{}); err != nil {
				return err
			}
			if err = e.paths.EnsureMounted(e.cfg.CommandFile); err != nil {
				return err
			}
			path, err := e.paths.Translate(e.cfg.CommandFile)
			if err != nil {
				return err
			}
			if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	}
}

func newConfigCmd(o *options) *cobra.Command {
	var schema bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective recovery configuration as YAML",
		Long: `Print the effective recovery configuration as YAML.

With --schema, print the JSON schema the configuration file is checked
against instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var data []byte
			var err error
			if schema {
				data, err = json.MarshalIndent(config.Schema(), "", "  ")
				data = append(data, '\n')
			} else {
				var cfg *config.Config
				if cfg, err = config.Load(o.config); err != nil {
					return err
				}
				data, err = cfg.Marshal()
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&schema, "schema", false, "print the JSON schema of the configuration file")
	return cmd
}
