// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"log"
	"strings"

	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

// AdaptStdlog sends output of the standard library logger (nil) or of the
// given *log.Logger through this package, stripping its own timestamps.
func AdaptStdlog(logger *log.Logger, level flags.Flag) {
	sa := &stdAdapter{level: level}
	if logger == nil {
		log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime | log.Lmicroseconds))
		log.SetOutput(sa)
		return
	}
	logger.SetFlags(logger.Flags() &^ (log.Ldate | log.Ltime | log.Lmicroseconds))
	logger.SetOutput(sa)
}

type stdAdapter struct {
	level flags.Flag
}

func (sa *stdAdapter) Write(b []byte) (int, error) {
	FlaggedLogf(sa.level, "%s", strings.TrimSuffix(string(b), "\n"))
	return len(b), nil
}
