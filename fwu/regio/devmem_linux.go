/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package regio

import (
	"os"
	"sync/atomic"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"mynewt.apache.org/fwu/util"
)

const (
	DEV_MEM_PATH  = "/dev/mem"
	DEV_PORT_PATH = "/dev/port"
)

// DevMem accesses registers through /dev/mem and I/O ports through
// /dev/port.  Every access maps and unmaps the page it touches.
type DevMem struct {
	MemPath  string
	PortPath string
}

func NewDevMem() *DevMem {
	return &DevMem{
		MemPath:  DEV_MEM_PATH,
		PortPath: DEV_PORT_PATH,
	}
}

func (d *DevMem) withRegister(addr uint64, fn func(reg *uint32)) error {
	if addr%4 != 0 {
		return util.KindError(util.ErrInvalidParameter,
			"unaligned register address 0x%x", addr)
	}

	f, err := os.OpenFile(d.MemPath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	pageSize := uint64(os.Getpagesize())
	pageBase := addr &^ (pageSize - 1)

	mem, err := unix.Mmap(int(f.Fd()), int64(pageBase), int(pageSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	defer unix.Munmap(mem)

	fn((*uint32)(unsafe.Pointer(&mem[addr-pageBase])))
	return nil
}

func (d *DevMem) ReadRegister(addr uint64) (uint32, error) {
	var val uint32
	err := d.withRegister(addr, func(reg *uint32) {
		val = atomic.LoadUint32(reg)
	})
	if err != nil {
		return 0, util.ChildFwuError(regErr("read", addr, err))
	}

	log.Debugf("mmio read 0x%08x = 0x%08x", addr, val)
	return val, nil
}

func (d *DevMem) WriteRegister(addr uint64, val uint32) error {
	err := d.withRegister(addr, func(reg *uint32) {
		atomic.StoreUint32(reg, val)
	})
	if err != nil {
		return util.ChildFwuError(regErr("write", addr, err))
	}

	log.Debugf("mmio write 0x%08x = 0x%08x", addr, val)
	return nil
}

func (d *DevMem) ReadPort(port uint16) (uint8, error) {
	f, err := os.OpenFile(d.PortPath, os.O_RDONLY, 0)
	if err != nil {
		return 0, util.ChildFwuError(portErr("read", port, err))
	}
	defer f.Close()

	buf := make([]byte, 1)
	if _, err := unix.Pread(int(f.Fd()), buf, int64(port)); err != nil {
		return 0, util.ChildFwuError(portErr("read", port, err))
	}

	return buf[0], nil
}

func (d *DevMem) WritePort(port uint16, val uint8) error {
	f, err := os.OpenFile(d.PortPath, os.O_WRONLY, 0)
	if err != nil {
		return util.ChildFwuError(portErr("write", port, err))
	}
	defer f.Close()

	if _, err := unix.Pwrite(int(f.Fd()), []byte{val}, int64(port)); err != nil {
		return util.ChildFwuError(portErr("write", port, err))
	}

	return nil
}
