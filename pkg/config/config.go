// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package config holds the settings of a recovery session. Every field has a
// default matching the Galaxy build; a YAML file may override any of them.
//
// The file is checked against Schema before it is decoded. Root names end in
// a colon, so in YAML they must be quoted ("CACHE:"); unquoted they read as
// the start of a mapping.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/purecloudlabs/grecovery/pkg/hw/bcb"
	"github.com/purecloudlabs/grecovery/pkg/hw/input"
	"github.com/purecloudlabs/grecovery/pkg/recovery/command"
	"github.com/purecloudlabs/grecovery/pkg/recovery/history"
	"github.com/purecloudlabs/grecovery/pkg/recovery/install"
	"github.com/purecloudlabs/grecovery/pkg/recovery/keymap"
	"github.com/purecloudlabs/grecovery/pkg/recovery/menu"
	"github.com/purecloudlabs/grecovery/pkg/recovery/roots"
)

// DefaultPath is where the recovery image keeps its configuration.
const DefaultPath = "/etc/recovery.yaml"

type ControlBlock struct {
	// Device holding the block. Empty keeps it in memory only.
	Device string `yaml:"device"`
	Offset int64  `yaml:"offset"`
}

type Installer struct {
	Command       string `yaml:"command"`
	CorruptStatus int    `yaml:"corrupt_status"`
}

type Firmware struct {
	// StageFile is a root path; empty disables firmware handoff.
	StageFile string `yaml:"stage_file"`
	Flash     string `yaml:"flash"`
}

type History struct {
	// File is a root path; empty disables the boot-loop guard.
	File        string `yaml:"file"`
	MaxAttempts uint   `yaml:"max_attempts"`
}

type Input struct {
	// KeyMap is one of keymap.Names().
	KeyMap string `yaml:"key_map"`
	// Devices are globs of evdev nodes. Ignored if Console is set.
	Devices []string `yaml:"devices"`
	// Console reads keys from a terminal instead of evdev.
	Console string `yaml:"console,omitempty"`
}

type Config struct {
	// TempLog is a filesystem path, the rest are root paths.
	TempLog     string `yaml:"temp_log"`
	CommandFile string `yaml:"command_file"`
	IntentFile  string `yaml:"intent_file"`
	LogFile     string `yaml:"log_file"`
	MetricsFile string `yaml:"metrics_file,omitempty"`

	// LogRotateBytes is the size past which the durable log is compressed
	// aside. Zero disables rotation.
	LogRotateBytes int64 `yaml:"log_rotate_bytes"`
	MaxArgs        int   `yaml:"max_args"`
	MaxArgLength   int   `yaml:"max_arg_length"`
	// PollInterval between liveness dots while a tool runs.
	PollInterval time.Duration `yaml:"poll_interval"`

	ControlBlock ControlBlock `yaml:"control_block"`
	Roots        []roots.Root `yaml:"roots"`
	// Prepare lists roots created at startup.
	Prepare []string `yaml:"prepare"`
	// WipeData lists the roots a data wipe erases, in order, before the
	// cache. It matches what the menu's wipe item erases, since that item
	// checkpoints itself as --wipe_data.
	WipeData  []string  `yaml:"wipe_data"`
	Installer Installer `yaml:"installer"`
	Firmware  Firmware  `yaml:"firmware"`
	History   History   `yaml:"history"`
	Input     Input     `yaml:"input"`

	TextVisible bool        `yaml:"text_visible"`
	Banner      string      `yaml:"banner"`
	Headers     []string    `yaml:"headers"`
	Menu        []menu.Item `yaml:"menu"`

	// Kmsg copies operator messages into the kernel ring buffer.
	Kmsg bool `yaml:"kmsg"`
	// ZapLog mirrors the session log as JSON. Empty disables it.
	ZapLog string `yaml:"zap_log,omitempty"`
	// Reboot at the end of the session. When false the process exits.
	Reboot bool `yaml:"reboot"`
}

// DefaultRoots is the Galaxy partition layout.
func DefaultRoots() []roots.Root {
	return []roots.Root{
		{Name: "SYSTEM:", Device: menu.SystemPart, MountPoint: "/system", FSType: "yaffs2"},
		{Name: "CACHE:", Device: "/dev/block/mtdblock2", MountPoint: "/cache", FSType: "yaffs2"},
		{Name: "DATA:", Device: menu.DataPart, MountPoint: "/data", FSType: "ext3", Format: menu.Tools + "/mke2fs -j {device}"},
		{Name: "INTERNAL:", Device: "/dev/block/mtdblock3", MountPoint: "/internal", FSType: "yaffs2"},
		{Name: "SDCARD:", Device: "/dev/block/mmcblk0p2", MountPoint: "/sdcard", FSType: "vfat"},
		{Name: "THEMES:", MountPoint: "/sdcard/themes"},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TempLog:        "/tmp/recovery.log",
		CommandFile:    "CACHE:recovery/command",
		IntentFile:     "CACHE:recovery/intent",
		LogFile:        "CACHE:recovery/log",
		MetricsFile:    "CACHE:recovery/metrics.prom",
		LogRotateBytes: 1 << 20,
		MaxArgs:        command.DefaultMaxArgs,
		MaxArgLength:   command.DefaultMaxArgLength,
		PollInterval:   time.Second,
		ControlBlock:   ControlBlock{Device: bcb.DefaultDevice},
		Roots:          DefaultRoots(),
		Prepare:        []string{"SDCARD:", "THEMES:"},
		WipeData:       []string{"DATA:", "INTERNAL:"},
		Installer:      Installer{Command: install.DefaultCommand, CorruptStatus: install.DefaultCorruptStatus},
		Firmware: Firmware{
			StageFile: "CACHE:recovery/firmware",
			Flash:     "/sbin/flash_image {type} {image}",
		},
		History: History{File: "CACHE:recovery/history.json", MaxAttempts: history.DefaultMaxAttempts},
		Input:   Input{KeyMap: "galaxy", Devices: []string{input.DefaultGlob}},
		Headers: menu.DefaultHeaders,
		Menu:    menu.Defaults(),
		Banner:  "Build: {version}\nBy drakaz\n",
		Kmsg:    true,
		Reboot:  true,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes YAML over the defaults. Lists in the document replace the
// default lists rather than extending them.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err = ValidateDocument(data); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.MaxArgs < 2 {
		return fmt.Errorf("config: max_args %d too small", c.MaxArgs)
	}
	if c.MaxArgLength < 2 {
		return fmt.Errorf("config: max_arg_length %d too small", c.MaxArgLength)
	}
	if _, err := keymap.ByName(c.Input.KeyMap); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, it := range c.Menu {
		switch it.Kind {
		case menu.KindReboot, menu.KindInstall, menu.KindChoose, menu.KindRun:
		default:
			return fmt.Errorf("config: menu item %q: unknown kind %q", it.Label, it.Kind)
		}
	}
	seen := map[string]bool{}
	for _, rt := range c.Roots {
		if rt.Name == "" || rt.MountPoint == "" {
			return fmt.Errorf("config: root %+v needs a name and a mount point", rt)
		}
		if seen[rt.Name] {
			return fmt.Errorf("config: root %s listed twice", rt.Name)
		}
		seen[rt.Name] = true
	}
	for _, w := range c.WipeData {
		if !seen[w] {
			return fmt.Errorf("config: wipe_data root %s not in roots", w)
		}
	}
	return nil
}

// Marshal renders the configuration as YAML, for use as a starting point.
// Multi-line strings are double quoted; as block scalars their leading
// newlines would be lost.
func (c *Config) Marshal() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(c); err != nil {
		return nil, err
	}
	quoteMultiline(&doc)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func quoteMultiline(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && strings.Contains(n.Value, "\n") {
		n.Style = yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		quoteMultiline(c)
	}
}
