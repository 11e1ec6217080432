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

// Package bootpart switches the boot partition by toggling the top swap
// bit.  With top swap set, the chipset boots from the backup copy of the
// top swap region.
package bootpart

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/fwu/fwu/regio"
	"mynewt.apache.org/fwu/util"
)

type Partition int

const (
	Primary Partition = iota
	Backup
)

func (p Partition) String() string {
	switch p {
	case Primary:
		return "primary"
	case Backup:
		return "backup"
	default:
		return fmt.Sprintf("partition(%d)", int(p))
	}
}

func ParsePartition(s string) (Partition, error) {
	switch strings.ToLower(s) {
	case "primary", "a":
		return Primary, nil
	case "backup", "b":
		return Backup, nil
	default:
		return Primary, util.KindError(util.ErrInvalidParameter,
			"invalid partition \"%s\"; must be one of: primary, backup", s)
	}
}

// Default location of the top swap control: the RTC backed-up control
// register (BUC) in the PCH private configuration space.
const (
	PCH_PCR_BASE_ADDRESS uint64 = 0xFD000000
	PID_RTC_HOST         uint64 = 0xC3
	R_RTC_PCR_BUC        uint64 = 0x3414

	TOP_SWAP_BIT uint32 = 0x1
)

func PchPcrAddress(pid uint64, offset uint64) uint64 {
	return PCH_PCR_BASE_ADDRESS | pid<<16 | offset
}

const TOP_SWAP_REG_DFLT = PCH_PCR_BASE_ADDRESS | PID_RTC_HOST<<16 | R_RTC_PCR_BUC

type Switch struct {
	regs regio.Registers
	reg  uint64
}

func New(regs regio.Registers, reg uint64) *Switch {
	return &Switch{
		regs: regs,
		reg:  reg,
	}
}

// Select sets top swap for the backup partition and clears it for the
// primary.  The register is read back after the write; if the bit did not
// take, a verification error is returned.  Nothing is retried or rolled
// back.
func (s *Switch) Select(p Partition) error {
	if p != Primary && p != Backup {
		return util.KindError(util.ErrInvalidParameter,
			"invalid partition: %s", p)
	}

	val, err := s.regs.ReadRegister(s.reg)
	if err != nil {
		return util.FmtKindChildError(util.ErrDevice, err,
			"cannot read top swap register: %s", err.Error())
	}
	log.Debugf("TopSwapReg=0x%x, Data32=0x%x", s.reg, val)

	if p == Backup {
		val |= TOP_SWAP_BIT
	} else {
		val &^= TOP_SWAP_BIT
	}

	if err := s.regs.WriteRegister(s.reg, val); err != nil {
		return util.FmtKindChildError(util.ErrDevice, err,
			"cannot write top swap register: %s", err.Error())
	}
	log.Debugf("write Data32=0x%x", val)

	readBack, err := s.regs.ReadRegister(s.reg)
	if err != nil {
		return util.FmtKindChildError(util.ErrDevice, err,
			"cannot read back top swap register: %s", err.Error())
	}
	log.Debugf("read back Data32=0x%x", readBack)

	if readBack&TOP_SWAP_BIT != val&TOP_SWAP_BIT {
		return util.KindError(util.ErrVerificationFailed,
			"top swap register did not accept %s selection; "+
				"wrote 0x%x, read 0x%x", p, val, readBack)
	}

	return nil
}

// Active returns the partition currently selected for boot.
func (s *Switch) Active() (Partition, error) {
	val, err := s.regs.ReadRegister(s.reg)
	if err != nil {
		return Primary, util.FmtKindChildError(util.ErrDevice, err,
			"cannot read top swap register: %s", err.Error())
	}

	if val&TOP_SWAP_BIT != 0 {
		return Backup, nil
	}
	return Primary, nil
}
