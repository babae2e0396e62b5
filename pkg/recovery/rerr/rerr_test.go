// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package rerr

import (
	"fmt"
	"os"
	"testing"
)

func TestIs(t *testing.T) {
	base := New(MountFailure, "mount", "CACHE:", os.ErrPermission)
	wrapped := fmt.Errorf("opening command file: %w", base)
	if !Is(wrapped, MountFailure) {
		t.Error("kind lost through wrapping")
	}
	if Is(wrapped, IOFailure) {
		t.Error("wrong kind matched")
	}
	nested := New(IOFailure, "append", "CACHE:recovery/log", base)
	if !Is(nested, MountFailure) || !Is(nested, IOFailure) {
		t.Error("nested kinds not found")
	}
	if Is(nil, MountFailure) {
		t.Error("nil matched")
	}
	want := "mount: mount failure CACHE:: permission denied"
	if base.Error() != want {
		t.Errorf("want %q, got %q", want, base.Error())
	}
}
