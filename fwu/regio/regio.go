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

// Package regio provides raw access to memory-mapped registers and I/O
// ports.
package regio

import (
	"fmt"
)

// CMOS index/data port pair.
const (
	CMOS_ADDREG  uint16 = 0x70
	CMOS_DATAREG uint16 = 0x71
)

type Registers interface {
	ReadRegister(addr uint64) (uint32, error)
	WriteRegister(addr uint64, val uint32) error
}

type Ports interface {
	ReadPort(port uint16) (uint8, error)
	WritePort(port uint16, val uint8) error
}

// Bus provides both kinds of access.
type Bus interface {
	Registers
	Ports
}

func regErr(op string, addr uint64, err error) error {
	return fmt.Errorf("%s register 0x%08x: %w", op, addr, err)
}

func portErr(op string, port uint16, err error) error {
	return fmt.Errorf("%s port 0x%04x: %w", op, port, err)
}
