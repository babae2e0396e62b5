// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package zlog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/purecloudlabs/grecovery/pkg/log"
)

func TestZapLog(t *testing.T) {
	log.DefaultLogStack()
	defer log.DefaultLogStack()
	log.Log("replayed")
	core, logs := observer.New(zapcore.DebugLevel)
	if err := AddLogger(zap.New(core)); err != nil {
		t.Fatal(err)
	}
	log.Msgf("Formatting %s...", "CACHE:")

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "replayed" || entries[0].Level != zapcore.DebugLevel {
		t.Errorf("first entry: %+v", entries[0].Entry)
	}
	if entries[1].Message != "Formatting CACHE:..." || entries[1].Level != zapcore.InfoLevel {
		t.Errorf("second entry: %+v", entries[1].Entry)
	}
	if got := entries[1].ContextMap()["flags"]; got != "user" {
		t.Errorf("flags field: want user, got %v", got)
	}
}
