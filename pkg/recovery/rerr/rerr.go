// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package rerr classifies failures of recovery collaborators. None of them
// end the session: the failing step is logged and skipped.
package rerr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	MountFailure
	TranslationFailure
	IOFailure
	LaunchFailure
	OperationFailure
	MalformedState
)

func (k Kind) String() string {
	switch k {
	case MountFailure:
		return "mount failure"
	case TranslationFailure:
		return "bad root path"
	case IOFailure:
		return "i/o failure"
	case LaunchFailure:
		return "launch failure"
	case OperationFailure:
		return "operation failed"
	case MalformedState:
		return "malformed state"
	}
	return "unknown failure"
}

// Error carries a Kind along with the operation and path involved.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Path != "" {
		s += " " + e.Path
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error.
func New(k Kind, op, path string, err error) error {
	return &Error{Kind: k, Op: op, Path: path, Err: err}
}

// Errorf returns an *Error with a formatted cause.
func Errorf(k Kind, op, path, f string, va ...interface{}) error {
	return &Error{Kind: k, Op: op, Path: path, Err: fmt.Errorf(f, va...)}
}

// Is reports whether err or anything it wraps is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == k {
			return true
		}
		err = e.Err
	}
	return false
}
