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

// Package fwuflag manages the non-volatile firmware update trigger byte.
// The bootloader enters its update flow while the byte is non-zero.
package fwuflag

import (
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/fwu/fwu/regio"
	"mynewt.apache.org/fwu/util"
)

const (
	FWU_BOOT_MODE_OFFSET uint8 = 0x40
	FWU_BOOT_MODE_VALUE  uint8 = 0x5A
)

// Store reads and writes the flag through the CMOS index/data port pair.
type Store struct {
	ports regio.Ports
	index uint8
}

func New(ports regio.Ports) *Store {
	return NewAt(ports, FWU_BOOT_MODE_OFFSET)
}

func NewAt(ports regio.Ports, index uint8) *Store {
	return &Store{
		ports: ports,
		index: index,
	}
}

func devErr(err error) error {
	return util.FmtKindChildError(util.ErrDevice, err,
		"update flag access failed: %s", err.Error())
}

func (s *Store) Get() (uint8, error) {
	if err := s.ports.WritePort(regio.CMOS_ADDREG, s.index); err != nil {
		return 0, devErr(err)
	}

	val, err := s.ports.ReadPort(regio.CMOS_DATAREG)
	if err != nil {
		return 0, devErr(err)
	}

	return val, nil
}

func (s *Store) Set(val uint8) error {
	if err := s.ports.WritePort(regio.CMOS_ADDREG, s.index); err != nil {
		return devErr(err)
	}
	if err := s.ports.WritePort(regio.CMOS_DATAREG, val); err != nil {
		return devErr(err)
	}

	log.Debugf("update flag set to 0x%x", val)
	return nil
}

// Trigger arms the flag so that the next boot enters the update flow.
func (s *Store) Trigger() error {
	return s.Set(FWU_BOOT_MODE_VALUE)
}

// ClearIfSet zeroes the flag so that the next boot takes the normal path.
// It does not write anything when the flag is already clear.
func (s *Store) ClearIfSet() error {
	val, err := s.Get()
	if err != nil {
		return err
	}

	if val == 0 {
		log.Debugf("update flag already clear")
		return nil
	}

	if err := s.Set(0); err != nil {
		return err
	}

	after, err := s.ports.ReadPort(regio.CMOS_DATAREG)
	if err != nil {
		return devErr(err)
	}
	log.Debugf("Fw Update trigger status=0x%x, cleared (now 0x%x)", val, after)

	return nil
}
