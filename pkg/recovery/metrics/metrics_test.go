// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package metrics

import (
	"os"
	fp "path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
)

func textfile(t *testing.T, r *Recorder) string {
	t.Helper()
	path := fp.Join(t.TempDir(), "recovery.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestOperations(t *testing.T) {
	r := New("abc")
	r.Operation("wipe", runner.Succeeded(), time.Second)
	r.Operation("wipe", runner.Failed(3), time.Second)
	r.Operation("install", runner.Killed(9), 2*time.Second)
	data := textfile(t, r)
	for _, want := range []string{
		`recovery_operations_total{operation="wipe",outcome="success"} 1`,
		`recovery_operations_total{operation="wipe",outcome="failure"} 1`,
		`recovery_operations_total{operation="install",outcome="aborted"} 1`,
		`recovery_operation_duration_seconds_sum{operation="install"} 2`,
	} {
		if !strings.Contains(data, want) {
			t.Errorf("missing %q in\n%s", want, data)
		}
	}
	if strings.Contains(data, `operation="install",outcome="success"`) {
		t.Errorf("unexpected series in\n%s", data)
	}
}

func TestTextfile(t *testing.T) {
	r := New("abc")
	r.SetSource("abc", "command file")
	r.Finished(120, time.Unix(1000, 0))
	data := textfile(t, r)
	for _, want := range []string{
		`recovery_session_info{session="abc",source="command file"} 1`,
		"recovery_log_bytes_copied_total 120",
		"recovery_last_finish_timestamp_seconds 1000",
	} {
		if !strings.Contains(data, want) {
			t.Errorf("missing %q in\n%s", want, data)
		}
	}
}
func TestNil(t *testing.T) {
	var r *Recorder
	r.Operation("x", runner.Succeeded(), 0)
	r.Finished(1, time.Now())
	r.SetSource("a", "b")
	if err := r.WriteTextfile("/nonexistent/x"); err != nil {
		t.Error(err)
	}
}
