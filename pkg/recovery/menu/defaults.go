// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package menu

import (
	"time"

	"github.com/purecloudlabs/grecovery/pkg/recovery/keymap"
)

// Tool locations on the Galaxy ramdisk.
const (
	Tools       = "/tmp/RECTOOLS"
	Busybox     = "/sbin/busybox"
	Nandroid    = Tools + "/nandroid-mobile.sh"
	SDTools     = Tools + "/sdtools.sh"
	E2fsck      = Tools + "/e2fsck"
	FixPerms    = Tools + "/fix_permissions.sh"
	SystemPart  = "/dev/block/mtdblock1"
	DataPart    = "/dev/block/mmcblk0p1"
	massStorage = "/sys/devices/platform/usb_mass_storage/"
)

const notDone = "\nOperation complete!\n\n"

var (
	mountSystemRW = []Step{
		{Run: Busybox + " mount /system", Ignore: true},
		{Run: Busybox + " mount -o remount,rw " + SystemPart + " /system", Ignore: true},
	}
	mountSystemRO = Step{Run: Busybox + " mount -o remount,ro " + SystemPart + " /system", Ignore: true}
	unplugLUNs    = []Step{
		{Write: massStorage + "lun0/file", Value: " "},
		{Write: massStorage + "lun1/file", Value: " "},
	}
)

func steps(groups ...[]Step) (all []Step) {
	for _, g := range groups {
		all = append(all, g...)
	}
	return
}

// Defaults is the Galaxy menu.
func Defaults() []Item {
	return []Item{
		{Label: "Reboot system now", Kind: KindReboot, Shortcut: keymap.ShortcutReboot},
		{
			Label:      "Apply sdcard:update.zip",
			Kind:       KindInstall,
			Shortcut:   keymap.ShortcutSDCard,
			Confirm:    true,
			Warning:    []string{"Installing new image!"},
			Package:    "SDCARD:update.zip",
			Start:      "\n-- Install from sdcard...\n",
			Success:    "\nInstall from sdcard complete.\n",
			Failure:    "Installation aborted.\n",
			Aborted:    "\nInstallation aborted.\n",
			ExitHidden: true,
		},
		{
			Label:    "Apply any zip from sd",
			Kind:     KindChoose,
			Shortcut: keymap.ShortcutAnyZip,
			Warning:  []string{"Installing new image!"},
			Dir:      "SDCARD:",
			Ext:      ".zip",
			Success:  "\nInstall from sdcard complete\n",
			Failure:  "Installation failed\n",
			Aborted:  "\nInstallation failed\n",
		},
		{
			Label:   "Apply a theme from sd",
			Kind:    KindChoose,
			Warning: []string{"Installing new theme!"},
			Dir:     "THEMES:",
			Ext:     ".zip",
			Headers: []string{
				"Choose theme ZIP file",
				"",
				"Use up/down to highlight;",
				"click OK to select.",
				"",
			},
			Pre:     mountSystemRW,
			Start:   "\nRemounting system partition in rw..",
			Success: "\nInstall new theme from sdcard complete.\n",
			Failure: "Installation aborted.\n",
			Aborted: "\nInstallation aborted.\n",
		},
		{
			Label:      "Restore G.Apps",
			Kind:       KindRun,
			Confirm:    true,
			Warning:    []string{"Restoring Google apps"},
			Steps:      []Step{{Run: "/sbin/sh " + Tools + "/gfiles.sh oneinall"}, {Sync: true}},
			Start:      "\n-- Restore started...\n",
			Success:    "\nRestore completed\n",
			Failure:    "\nRestore aborted : see /sdcard/recovery.log\n",
			Aborted:    "\n",
			ExitHidden: true,
		},
		{
			Label: "Mount SD(s) on PC",
			Kind:  KindRun,
			Steps: steps(unplugLUNs, []Step{
				{Sleep: 5 * time.Second},
				{Write: massStorage + "lun0/file", Value: "/dev/block/mmcblk0p2"},
				{Write: massStorage + "lun1/file", Value: "/dev/block/mmcblk1"},
			}),
			Start:      "\nMounting SD(s)...",
			Success:    "SD(s) mounted !\n\n",
			Failure:    "\nCan't share SD(s) !\n\n",
			ExitHidden: true,
		},
		{
			Label:      "Umount SD(s) from PC",
			Kind:       KindRun,
			Steps:      unplugLUNs,
			Start:      "\nUnmounting SD(s)...",
			Success:    "SD(s) unmounted !\n\n",
			Failure:    "\nCan't release SD(s) !\n\n",
			ExitHidden: true,
		},
		{
			Label:    "Nandroid backup",
			Kind:     KindRun,
			Shortcut: keymap.ShortcutBackup,
			Require:  []string{"SDCARD:"},
			Steps:    []Step{{Run: "/sbin/sh " + Nandroid + " -b"}},
			Start:    "\nPerforming backup",
			Success:  "\nBackup complete!\n\n",
			Failure:  "\nError running nandroid backup. Backup not performed.\n\n",
		},
		{
			Label:      "Restore latest backup",
			Kind:       KindRun,
			Shortcut:   keymap.ShortcutRestore,
			Confirm:    true,
			Warning:    []string{"Restore latest Nandroid backup"},
			Require:    []string{"SDCARD:"},
			Steps:      []Step{{Run: "/sbin/sh " + Nandroid + " --restore --defaultinput"}},
			Start:      "\nRestoring latest backup",
			Success:    "\nRestore complete!\n\n",
			Failure:    "\nError performing restore!  Try running 'nandroid-mobile.sh --restore' from console.\n\n",
			Aborted:    "\nRestore complete!\n\n",
			ExitHidden: true,
		},
		{
			Label:   "Enable root (su)",
			Kind:    KindRun,
			Confirm: true,
			Warning: []string{"Enable su-root on current rom", "Custom rom have already su-root"},
			Steps: steps(mountSystemRW, []Step{
				{Run: Busybox + " cp " + Tools + "/su /system/bin/su"},
				{Run: Busybox + " cp " + Tools + "/su /system/xbin/su"},
				{Run: Busybox + " chmod 4755 /system/bin/su"},
				{Run: Busybox + " chmod 4755 /system/xbin/su"},
				{Run: Busybox + " cp " + Tools + "/Superuser.apk /system/app/Superuser.apk"},
				mountSystemRO,
			}),
			Start:      "\nEnabling su..",
			Success:    "\nSu is now enabled !\n\n",
			Failure:    "\nError enabling su !\n\n",
			Aborted:    notDone,
			ExitHidden: true,
		},
		{
			Label:   "Disable root (su)",
			Kind:    KindRun,
			Confirm: true,
			Warning: []string{"Disable su-root on current rom"},
			Steps: steps(mountSystemRW, []Step{
				{Run: Busybox + " rm /system/bin/su"},
				{Run: Busybox + " rm /system/xbin/su"},
				{Run: Busybox + " rm /system/app/Superuser.apk"},
				mountSystemRO,
			}),
			Start:      "\nDisabling su..",
			Success:    "\nSu is now disabled !\n\n",
			Failure:    "\nError disabling su !\n\n",
			Aborted:    notDone,
			ExitHidden: true,
		},
		{
			Label:    "Wipe data/factory reset",
			Kind:     KindRun,
			Shortcut: keymap.ShortcutWipe,
			Confirm:  true,
			Warning:  []string{"This will ERASE your data!"},
			Resume:   []string{"--wipe_data"},
			Steps: []Step{
				{Format: "CACHE:"},
				{Format: "INTERNAL:"},
				{Run: Busybox + " mount -rw /data", Ignore: true},
				{Run: "/system/bin/rm -rf /data/", Ignore: true},
				{Sync: true},
				{Run: Busybox + " umount /data", Ignore: true},
				{Sync: true},
			},
			Start:      "\n-- Wiping data...\n",
			Success:    "\nData wipe complete.\n",
			Failure:    "\nData wipe failed.\n",
			Aborted:    "\n",
			ExitHidden: true,
		},
		{
			Label: "Check ext3 filesystem on /data",
			Kind:  KindRun,
			Steps: []Step{
				{Run: Busybox + " umount /data", Ignore: true},
				{Run: E2fsck + " -y " + DataPart},
				{Run: Busybox + " mount " + DataPart + " /data", Ignore: true},
			},
			Start:   "Checking ext3 /data filesystem",
			Success: "\nFilesystem checked and repaired.\n\n",
			Failure: "\nError checking filesystem! Run e2fsck manually from console.\n\n",
		},
		{
			Label:   "Format ext. SD : swap+fat32",
			Kind:    KindRun,
			Confirm: true,
			Warning: []string{
				"Format SD 32Mb swap and remaining in fat32",
				"BE CARREFULL, THIS WILL ERASE ALL THE DATA ON EXTERNAL SDCARD",
			},
			Steps:      []Step{{Run: "/sbin/sh " + SDTools + " -s"}},
			Start:      "\nFormatting SD..",
			Success:    "\nExternal SD is now splited (fat32+swap) !\n\n",
			Failure:    "\nError formatting external SD !\n\n",
			Aborted:    notDone,
			ExitHidden: true,
		},
		{
			Label:   "Format ext. SD : fat32",
			Kind:    KindRun,
			Confirm: true,
			Warning: []string{
				"Format external SD in fat32",
				"BE CARREFULL, THIS WILL ERASE ALL THE DATA ON EXTERNAL SDCARD",
			},
			Steps:   []Step{{Run: "/sbin/sh " + SDTools + " -c"}},
			Start:   "\nFormatting internal SDCARD..",
			Success: "\nExternal SD is now restored (fat32) !\n\n",
			Failure: "\nError formatting external SD !\n\n",
			Aborted: notDone,
		},
		{
			Label:      "Fix packages permissions",
			Kind:       KindRun,
			Confirm:    true,
			Warning:    []string{"Fix permissions on /data", "Usefull after an upgrade"},
			Steps:      []Step{{Run: "/sbin/sh " + FixPerms}},
			Start:      "\nFixing permissions...",
			Success:    "\nPermissions fixed !\n\n",
			Failure:    "\nError fixing permissions !\n\n",
			Aborted:    notDone,
			ExitHidden: true,
		},
	}
}
