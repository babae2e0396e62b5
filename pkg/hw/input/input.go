// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package input reads key events from Linux evdev devices
// (/dev/input/event*) and queues key presses for the recovery UI, while
// tracking which keys are currently held down.
package input

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	fp "path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/purecloudlabs/grecovery/pkg/log"
)

// Key codes from linux/input-event-codes.h, plus board-specific ones.
const (
	KeyEsc          = 1
	KeyBackspace    = 14
	KeyW            = 17
	KeyR            = 19
	KeyY            = 21
	KeyEnter        = 28
	KeyA            = 30
	KeyS            = 31
	KeyB            = 48
	KeyLeftAlt      = 56
	KeyRightAlt     = 100
	KeyHome         = 102
	KeyUp           = 103
	KeyDown         = 108
	KeyVolumeDown   = 114
	KeyVolumeUp     = 115
	KeyBack         = 158
	KeyI7500Center  = 232
	BtnMouse        = 0x110
	KeyMax          = 0x2ff
	evKey    uint16 = 0x01
)

// Event is one struct input_event.
type Event struct {
	Sec, Usec int64
	Type      uint16
	Code      uint16
	Value     int32
}

// size of struct input_event on this platform
var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

// decodeEvent parses one input_event in native byte order.
func decodeEvent(b []byte) (ev Event) {
	tv := len(b) - 8
	if tv == 16 {
		ev.Sec = int64(binary.NativeEndian.Uint64(b[:8]))
		ev.Usec = int64(binary.NativeEndian.Uint64(b[8:16]))
	} else {
		ev.Sec = int64(int32(binary.NativeEndian.Uint32(b[:4])))
		ev.Usec = int64(int32(binary.NativeEndian.Uint32(b[4:8])))
	}
	ev.Type = binary.NativeEndian.Uint16(b[tv:])
	ev.Code = binary.NativeEndian.Uint16(b[tv+2:])
	ev.Value = int32(binary.NativeEndian.Uint32(b[tv+4:]))
	return
}

var EClosed = errors.New("input closed")

// Queue holds pending key presses and the held-down state. Devices feed it;
// the UI consumes it.
type Queue struct {
	keys    chan int
	mu      sync.Mutex
	pressed [KeyMax + 1]bool
	done    chan struct{}
	once    sync.Once
}

// NewQueue returns a queue holding at most depth unread presses; further
// presses are dropped.
func NewQueue(depth int) *Queue {
	return &Queue{
		keys: make(chan int, depth),
		done: make(chan struct{}),
	}
}

// Feed handles one event. Only EV_KEY events matter; press and autorepeat
// are queued.
func (q *Queue) Feed(ev Event) {
	if ev.Type != evKey || int(ev.Code) > KeyMax {
		return
	}
	q.mu.Lock()
	q.pressed[ev.Code] = ev.Value > 0
	q.mu.Unlock()
	if ev.Value == 0 {
		return
	}
	select {
	case q.keys <- int(ev.Code):
	default:
		log.Logf("input: key queue full, dropping %d", ev.Code)
	}
}

// Press and Release feed synthetic key events, for sources other than evdev.
func (q *Queue) Press(code int)   { q.Feed(Event{Type: evKey, Code: uint16(code), Value: 1}) }
func (q *Queue) Release(code int) { q.Feed(Event{Type: evKey, Code: uint16(code), Value: 0}) }

// WaitKey blocks until a key is pressed or the queue is closed. Presses
// queued before Close are still delivered.
func (q *Queue) WaitKey() (int, error) {
	select {
	case k := <-q.keys:
		return k, nil
	default:
	}
	select {
	case k := <-q.keys:
		return k, nil
	case <-q.done:
		select {
		case k := <-q.keys:
			return k, nil
		default:
			return 0, EClosed
		}
	}
}

// ClearKeys discards presses not yet read.
func (q *Queue) ClearKeys() {
	for {
		select {
		case <-q.keys:
		default:
			return
		}
	}
}

// Pressed reports whether key is held down right now.
func (q *Queue) Pressed(key int) bool {
	if key < 0 || key > KeyMax {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pressed[key]
}

// Close wakes any WaitKey caller with EClosed.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

// Device reads events from evdev nodes into a Queue.
type Device struct {
	*Queue
	files []*os.File
	wg    sync.WaitGroup
}

// DefaultGlob matches every event node.
const DefaultGlob = "/dev/input/event*"

// Open opens all nodes matching the globs and starts reading them. Nodes
// that cannot be opened are logged and skipped; it is an error only if none
// can be opened.
func Open(globs ...string) (*Device, error) {
	if len(globs) == 0 {
		globs = []string{DefaultGlob}
	}
	d := &Device{Queue: NewQueue(256)}
	for _, g := range globs {
		matches, err := fp.Glob(g)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			f, err := os.Open(m)
			if err != nil {
				log.Logf("input: %s", err)
				continue
			}
			d.files = append(d.files, f)
		}
	}
	if len(d.files) == 0 {
		return nil, fmt.Errorf("input: no usable devices matching %v", globs)
	}
	for _, f := range d.files {
		d.wg.Add(1)
		go d.read(f)
	}
	return d, nil
}

func (d *Device) read(r io.Reader) {
	defer d.wg.Done()
	buf := make([]byte, eventSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, os.ErrClosed) {
				log.Logf("input: read: %s", err)
			}
			return
		}
		d.Feed(decodeEvent(buf))
	}
}

// Close stops the readers and wakes waiters.
func (d *Device) Close() error {
	var firstErr error
	for _, f := range d.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.wg.Wait()
	d.Queue.Close()
	return firstErr
}
