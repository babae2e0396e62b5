// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Subpackages contain the recovery session controller that runs from the
// recovery ramdisk, and host tools for preparing requests for it.
//
// A session:
//
//    - reads the request from the process arguments, the bootloader control
//      block, or the command file on the cache volume, in that order, and
//      records it in the control block so an interrupted operation resumes
//      on the next boot.
//    - performs the requested install or wipe, or presents the interactive
//      menu when nothing was requested, something failed, or text is shown.
//    - finalizes: copies the log to the cache volume, hands any intent to
//      the main system, clears the control block and reboots.
//
// Binaries:
//
//    - cmd/recovery: the session controller.
//    - cmd/bcbtool: inspects and queues control-block requests.
//
// Use `mage` to build these targets, and the ramdisk containing them. See
// build/build.go.
//
package grecovery
