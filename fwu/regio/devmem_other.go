//go:build !linux

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
	"mynewt.apache.org/fwu/util"
)

type DevMem struct{}

func NewDevMem() *DevMem {
	return &DevMem{}
}

func unsupported() error {
	return util.KindError(util.ErrDevice,
		"direct register access is only supported on linux")
}

func (d *DevMem) ReadRegister(addr uint64) (uint32, error) {
	return 0, unsupported()
}

func (d *DevMem) WriteRegister(addr uint64, val uint32) error {
	return unsupported()
}

func (d *DevMem) ReadPort(port uint16) (uint8, error) {
	return 0, unsupported()
}

func (d *DevMem) WritePort(port uint16, val uint8) error {
	return unsupported()
}
