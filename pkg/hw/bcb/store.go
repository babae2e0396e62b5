// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package bcb

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultDevice is the misc partition on devices using by-name links.
const DefaultDevice = "/dev/block/by-name/misc"

// DeviceStore keeps the block at Offset within a raw partition or a file.
type DeviceStore struct {
	Path   string
	Offset int64
}

var _ Store = (*DeviceStore)(nil)

func (d *DeviceStore) Load() (cb ControlBlock, err error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return
	}
	defer f.Close()
	buf := make([]byte, Size)
	n, err := f.ReadAt(buf, d.Offset)
	if err != nil && n < Size {
		return ControlBlock{}, fmt.Errorf("reading control block from %s: %w", d.Path, err)
	}
	err = cb.Unmarshal(buf)
	return
}

// Save writes the whole record and waits for it to reach the device.
func (d *DeviceStore) Save(cb ControlBlock) error {
	f, err := os.OpenFile(d.Path, os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	buf := cb.Marshal()
	fd := int(f.Fd())
	for off := 0; off < len(buf); {
		n, err := unix.Pwrite(fd, buf[off:], d.Offset+int64(off))
		if err != nil {
			return fmt.Errorf("writing control block to %s: %w", d.Path, err)
		}
		off += n
	}
	if err = unix.Fdatasync(fd); err != nil {
		return fmt.Errorf("syncing control block on %s: %w", d.Path, err)
	}
	return nil
}

// MemStore keeps the block in memory. Used in tests and when no misc
// partition is configured.
type MemStore struct {
	mu      sync.Mutex
	cb      ControlBlock
	Saves   int
	LoadErr error
	SaveErr error
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns a store holding cb.
func NewMemStore(cb ControlBlock) *MemStore { return &MemStore{cb: cb} }

func (m *MemStore) Load() (ControlBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return ControlBlock{}, m.LoadErr
	}
	return m.cb, nil
}

func (m *MemStore) Save(cb ControlBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saves++
	m.cb = cb
	return nil
}

// Current returns the stored block regardless of LoadErr.
func (m *MemStore) Current() ControlBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cb
}
