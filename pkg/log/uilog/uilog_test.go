// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package uilog

import (
	"testing"

	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

type printer []string

func (p *printer) Print(s string) { *p = append(*p, s) }

func TestUILog(t *testing.T) {
	log.DefaultLogStack()
	defer log.DefaultLogStack()
	log.Msg("before")
	var p printer
	if err := AddUILog(&p, flags.EndUser); err != nil {
		t.Fatal(err)
	}
	log.Msgf("Formatting %s...", "DATA:")
	log.Log("technical detail")
	log.FlaggedLogf(flags.EndUser|flags.NotUI, "file only")
	log.Msg("Installation aborted.\n")
	want := []string{"Formatting DATA:...\n", "Installation aborted.\n"}
	if len(p) != len(want) {
		t.Fatalf("want %q, got %q", want, p)
	}
	for i := range want {
		if p[i] != want[i] {
			t.Errorf("%d: want %q, got %q", i, want[i], p[i])
		}
	}
	if err := AddUILog(nil, flags.EndUser); err != ENil {
		t.Errorf("want ENil, got %v", err)
	}
}
