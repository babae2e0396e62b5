// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package ui

import (
	"errors"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/purecloudlabs/grecovery/pkg/hw/input"
	"github.com/purecloudlabs/grecovery/pkg/log"
)

// TTYKeys turns keyboard input on a terminal into key presses. Arrow keys,
// Enter, Escape, Backspace and letters are translated; Alt+letter arrives as
// ESC followed by the letter and is reported with left alt held.
type TTYKeys struct {
	*input.Queue
	in      io.Reader
	fd      int
	restore *term.State
	altHeld bool
}

// OpenTTY puts f into raw mode, if it is a terminal, and starts reading it.
func OpenTTY(f *os.File) (*TTYKeys, error) {
	k := &TTYKeys{Queue: input.NewQueue(64), in: f, fd: int(f.Fd())}
	if term.IsTerminal(k.fd) {
		st, err := term.MakeRaw(k.fd)
		if err != nil {
			return nil, err
		}
		k.restore = st
	}
	go k.read()
	return k, nil
}

// NewReaderKeys reads key bytes from r, with no terminal handling.
func NewReaderKeys(r io.Reader) *TTYKeys {
	k := &TTYKeys{Queue: input.NewQueue(64), in: r, fd: -1}
	go k.read()
	return k
}

// Raw reports whether the terminal was switched to raw mode.
func (k *TTYKeys) Raw() bool { return k.restore != nil }

func (k *TTYKeys) read() {
	defer k.Queue.Close()
	buf := make([]byte, 16)
	for {
		n, err := k.in.Read(buf)
		if n > 0 {
			k.decode(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Logf("tty: read: %s", err)
			}
			return
		}
	}
}

var letters = map[byte]int{
	'w': input.KeyW, 'r': input.KeyR, 'y': input.KeyY,
	'a': input.KeyA, 's': input.KeyS, 'b': input.KeyB,
	'h': input.KeyHome,
}

// decode handles one read's worth of bytes. Escape sequences are assumed
// not to be split across reads.
func (k *TTYKeys) decode(b []byte) {
	for len(b) > 0 {
		switch {
		case len(b) >= 3 && b[0] == 0x1b && (b[1] == '[' || b[1] == 'O'):
			switch b[2] {
			case 'A':
				k.tap(input.KeyUp)
			case 'B':
				k.tap(input.KeyDown)
			case 'H':
				k.tap(input.KeyHome)
			}
			b = b[3:]
		case len(b) >= 2 && b[0] == 0x1b:
			if code, ok := letters[lower(b[1])]; ok {
				// held until the next key, so the chord is visible to
				// whoever reads this press
				k.releaseAlt()
				k.Press(input.KeyLeftAlt)
				k.altHeld = true
				k.Press(code)
				k.Release(code)
				b = b[2:]
				continue
			}
			k.tap(input.KeyEsc)
			b = b[1:]
		default:
			switch c := b[0]; c {
			case 0x1b:
				k.tap(input.KeyEsc)
			case '\r', '\n':
				k.tap(input.KeyEnter)
			case 0x7f, 0x08:
				k.tap(input.KeyBackspace)
			case 0x03:
				// ctrl-c; raw mode swallows the signal
				log.Logf("tty: interrupt ignored")
			default:
				if code, ok := letters[lower(c)]; ok {
					k.tap(code)
				}
			}
			b = b[1:]
		}
	}
}

func (k *TTYKeys) tap(code int) {
	k.releaseAlt()
	k.Press(code)
	k.Release(code)
}

func (k *TTYKeys) releaseAlt() {
	if k.altHeld {
		k.Release(input.KeyLeftAlt)
		k.altHeld = false
	}
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// Close restores the terminal and wakes WaitKey callers. The reader
// goroutine ends when the input does.
func (k *TTYKeys) Close() error {
	k.Queue.Close()
	if k.restore != nil {
		return term.Restore(k.fd, k.restore)
	}
	return nil
}
