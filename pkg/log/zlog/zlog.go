// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package zlog mirrors the log stack into a zap logger, producing one JSON
// object per entry. Used for the machine-readable copy of the session log.
package zlog

import (
	"os"
	fp "path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/purecloudlabs/grecovery/pkg/log"
	"github.com/purecloudlabs/grecovery/pkg/log/flags"
)

// AddZapLog opens path for appending and pushes a sink writing JSON lines to
// it. Fields common to every entry (session id...) can be passed in fields.
func AddZapLog(path string, fields ...zap.Field) error {
	if err := os.MkdirAll(fp.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "t"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), zap.DebugLevel)
	zl := zap.New(core).With(fields...)
	if err = AddLogger(zl); err != nil {
		f.Close()
	}
	return err
}

// AddLogger pushes a sink forwarding to an existing zap logger.
func AddLogger(zl *zap.Logger) error {
	return log.AddLogger(&ZapLog{zl: zl}, true)
}

type ZapLog struct {
	zl   *zap.Logger
	next log.StackableLogger
}

var _ log.StackableLogger = (*ZapLog)(nil)

func (l *ZapLog) AddEntry(e log.LogEntry) {
	if l.zl != nil {
		lvl := zapcore.DebugLevel
		switch {
		case e.Flags&flags.Fatal != 0:
			lvl = zapcore.ErrorLevel
		case e.Flags&flags.EndUser != 0:
			lvl = zapcore.InfoLevel
		}
		if ce := l.zl.Check(lvl, e.Text()); ce != nil {
			ce.Time = e.Time
			ce.Write(zap.Stringer("flags", e.Flags))
		}
	}
	if l.next != nil {
		l.next.AddEntry(e)
	}
}

func (l *ZapLog) ForwardTo(sl log.StackableLogger) {
	if l.next == nil || sl == nil {
		l.next = sl
	} else {
		panic("next already set")
	}
}

const ZapLogIdent = "zapLog"

func (*ZapLog) Ident() string               { return ZapLogIdent }
func (l *ZapLog) Next() log.StackableLogger { return l.next }

func (l *ZapLog) Finalize() {
	if l.zl != nil {
		_ = l.zl.Sync()
		l.zl = nil
	}
	if l.next != nil {
		l.next.Finalize()
	}
}
