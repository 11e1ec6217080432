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

package bootpart_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/fwu/fwu/bootpart"
	"mynewt.apache.org/fwu/fwu/regio"
	"mynewt.apache.org/fwu/util"
)

// stuckRegs ignores writes to the top swap bit, like a register whose
// lock bit is set.
type stuckRegs struct {
	*regio.Sim
}

func (s stuckRegs) WriteRegister(addr uint64, val uint32) error {
	cur, _ := s.Sim.ReadRegister(addr)
	val = val&^bootpart.TOP_SWAP_BIT | cur&bootpart.TOP_SWAP_BIT
	return s.Sim.WriteRegister(addr, val)
}

type failRegs struct{}

func (failRegs) ReadRegister(addr uint64) (uint32, error) {
	return 0, errors.New("bus error")
}

func (failRegs) WriteRegister(addr uint64, val uint32) error {
	return errors.New("bus error")
}

func TestDefaultRegister(t *testing.T) {
	assert.Equal(t, uint64(0xFDC33414), bootpart.TOP_SWAP_REG_DFLT)
	assert.Equal(t, bootpart.TOP_SWAP_REG_DFLT,
		bootpart.PchPcrAddress(bootpart.PID_RTC_HOST, bootpart.R_RTC_PCR_BUC))
}

func TestSelect(t *testing.T) {
	sim := regio.NewSim()
	sim.Registers[bootpart.TOP_SWAP_REG_DFLT] = 0xf0

	sw := bootpart.New(sim, bootpart.TOP_SWAP_REG_DFLT)

	require.NoError(t, sw.Select(bootpart.Backup))
	assert.Equal(t, uint32(0xf1), sim.Registers[bootpart.TOP_SWAP_REG_DFLT])

	p, err := sw.Active()
	require.NoError(t, err)
	assert.Equal(t, bootpart.Backup, p)

	require.NoError(t, sw.Select(bootpart.Primary))
	assert.Equal(t, uint32(0xf0), sim.Registers[bootpart.TOP_SWAP_REG_DFLT])

	p, err = sw.Active()
	require.NoError(t, err)
	assert.Equal(t, bootpart.Primary, p)
}

func TestSelectVerificationFailed(t *testing.T) {
	sw := bootpart.New(stuckRegs{regio.NewSim()}, bootpart.TOP_SWAP_REG_DFLT)

	err := sw.Select(bootpart.Backup)
	assert.True(t, errors.Is(err, util.ErrVerificationFailed))

	// Selecting the partition already in effect succeeds.
	assert.NoError(t, sw.Select(bootpart.Primary))
}

func TestSelectDeviceError(t *testing.T) {
	sw := bootpart.New(failRegs{}, bootpart.TOP_SWAP_REG_DFLT)

	err := sw.Select(bootpart.Backup)
	assert.True(t, errors.Is(err, util.ErrDevice))

	_, err = sw.Active()
	assert.True(t, errors.Is(err, util.ErrDevice))
}

func TestSelectInvalid(t *testing.T) {
	sw := bootpart.New(regio.NewSim(), bootpart.TOP_SWAP_REG_DFLT)

	err := sw.Select(bootpart.Partition(7))
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))
}

func TestParsePartition(t *testing.T) {
	p, err := bootpart.ParsePartition("Backup")
	require.NoError(t, err)
	assert.Equal(t, bootpart.Backup, p)

	p, err = bootpart.ParsePartition("a")
	require.NoError(t, err)
	assert.Equal(t, bootpart.Primary, p)

	_, err = bootpart.ParsePartition("c")
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))
}
