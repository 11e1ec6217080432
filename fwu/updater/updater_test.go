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

package updater_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/fwu/artifact/capsule"
	"mynewt.apache.org/fwu/fwu/bootpart"
	"mynewt.apache.org/fwu/fwu/flashmap"
	"mynewt.apache.org/fwu/fwu/fwuflag"
	"mynewt.apache.org/fwu/fwu/hooks"
	"mynewt.apache.org/fwu/fwu/planner"
	"mynewt.apache.org/fwu/fwu/regio"
	"mynewt.apache.org/fwu/fwu/updater"
	"mynewt.apache.org/fwu/util"
)

const romSize = 0x10000

type memMedia struct {
	data    []byte
	ops     []string
	failAt  int
	corrupt bool
	onWrite func()
}

func newMemMedia() *memMedia {
	return &memMedia{
		data:   make([]byte, romSize),
		failAt: -1,
	}
}

func (m *memMedia) op(name string) error {
	if m.failAt == len(m.ops) {
		return util.KindError(util.ErrDevice, "%s failed", name)
	}
	m.ops = append(m.ops, name)
	return nil
}

func (m *memMedia) Read(off uint32, length uint32) ([]byte, error) {
	if err := m.op("read"); err != nil {
		return nil, err
	}
	return append([]byte(nil), m.data[off:off+length]...), nil
}

func (m *memMedia) Write(off uint32, data []byte) error {
	if err := m.op("write"); err != nil {
		return err
	}
	if m.onWrite != nil {
		m.onWrite()
	}
	copy(m.data[off:], data)
	if m.corrupt {
		m.data[off] ^= 0xff
	}
	return nil
}

func (m *memMedia) Erase(off uint32, length uint32) error {
	if err := m.op("erase"); err != nil {
		return err
	}
	for i := off; i < off+length; i++ {
		m.data[i] = 0xff
	}
	return nil
}

type recSwitch struct {
	selected []bootpart.Partition
}

func (s *recSwitch) Select(p bootpart.Partition) error {
	s.selected = append(s.selected, p)
	return nil
}

type recHooks struct {
	calls  []string
	preErr error
}

func (h *recHooks) BeforeRegionWrites(plan *planner.Plan) error {
	h.calls = append(h.calls, "before")
	return h.preErr
}

func (h *recHooks) AfterAllRegionWrites() error {
	h.calls = append(h.calls, "after")
	return nil
}

func testFlashMap() *flashmap.FlashMap {
	rc := flashmap.RegionTopSwap
	return &flashmap.FlashMap{
		RomSize: romSize,
		RegionSizes: map[flashmap.RegionClass]uint32{
			flashmap.RegionTopSwap:      0x1000,
			flashmap.RegionRedundant:    0x2000,
			flashmap.RegionNonRedundant: 0x4000,
		},
		Entries: []flashmap.Entry{
			{
				Name:      "stage1a",
				Signature: flashmap.SIG_STAGE1A,
				Offset:    0xf000,
				Size:      0x1000,
				Class:     &rc,
			},
		},
	}
}

func testImage(t *testing.T) *capsule.Image {
	payload := make([]byte, romSize)
	for i := range payload {
		payload[i] = byte(i>>8) + 1
	}

	img, err := capsule.New(capsule.Build(capsule.Header{}, payload))
	require.NoError(t, err)
	return img
}

func newUpdater(media *memMedia, opts updater.Options) (*updater.Updater,
	*recSwitch, *recHooks) {

	sw := &recSwitch{}
	hooks := &recHooks{}
	u := updater.New(updater.Services{
		FlashMap: testFlashMap(),
		Media:    media,
		Switch:   sw,
		Hooks:    hooks,
	}, opts)

	return u, sw, hooks
}

func TestRun(t *testing.T) {
	media := newMemMedia()
	u, sw, hooks := newUpdater(media, updater.Options{})
	img := testImage(t)

	policy := planner.Policy{Target: planner.CopyA, Stage: planner.StagePartA}
	require.NoError(t, u.Run(img, policy))

	assert.Equal(t, updater.StateDone, u.State())
	assert.Equal(t, []string{"before", "after"}, hooks.calls)
	assert.Empty(t, sw.selected)
	assert.Equal(t, []string{"erase", "write", "erase", "write",
		"erase", "write"}, media.ops)

	plan, got := u.Plan()
	assert.Equal(t, policy, got)
	for _, r := range plan.Regions() {
		want, err := img.Slice(r.SourceOffset, r.Length)
		require.NoError(t, err)
		assert.Equal(t, want, media.data[r.DestOffset:r.DestOffset+r.Length])
	}

	// Copy B of the redundant regions was not touched.
	assert.Equal(t, make([]byte, 0x2000), media.data[0xa000:0xc000])
	assert.Equal(t, make([]byte, 0x1000), media.data[0xe000:0xf000])
}

type deadFlag struct{}

func (deadFlag) Trigger() error {
	return errors.New("cmos not responding")
}

func TestUpdateFlagArmedDuringWrites(t *testing.T) {
	store := fwuflag.New(regio.NewSim())
	media := newMemMedia()

	var seen []uint8
	media.onWrite = func() {
		val, err := store.Get()
		require.NoError(t, err)
		seen = append(seen, val)
	}

	u := updater.New(updater.Services{
		FlashMap: testFlashMap(),
		Media:    media,
		Flag:     store,
		Hooks:    &hooks.Hooks{Flag: store},
	}, updater.Options{})

	require.NoError(t, u.Run(testImage(t),
		planner.Policy{Target: planner.CopyA, Stage: planner.StagePartA}))
	assert.Equal(t, updater.StateDone, u.State())

	assert.Equal(t, []uint8{fwuflag.FWU_BOOT_MODE_VALUE,
		fwuflag.FWU_BOOT_MODE_VALUE, fwuflag.FWU_BOOT_MODE_VALUE}, seen)

	val, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), val)
}

func TestUpdateFlagFailureStopsWrites(t *testing.T) {
	media := newMemMedia()
	u := updater.New(updater.Services{
		FlashMap: testFlashMap(),
		Media:    media,
		Flag:     deadFlag{},
	}, updater.Options{})

	err := u.Run(testImage(t), planner.Policy{})
	assert.True(t, errors.Is(err, util.ErrDevice))
	assert.Equal(t, updater.StateBeforeHookRun, u.State())
	assert.Empty(t, media.ops)
}

func TestFailedPlanResetsSequence(t *testing.T) {
	u, _, _ := newUpdater(newMemMedia(), updater.Options{})
	img := testImage(t)

	_, err := u.ComputeUpdatePlan(img, planner.Policy{})
	require.NoError(t, err)

	short, err := capsule.New(capsule.Build(capsule.Header{},
		make([]byte, romSize/2)))
	require.NoError(t, err)

	_, err = u.ComputeUpdatePlan(short, planner.Policy{})
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))
	assert.Equal(t, updater.StateIdle, u.State())

	plan, _ := u.Plan()
	assert.Nil(t, plan)
}

func TestForeignPlanRejected(t *testing.T) {
	media := newMemMedia()
	u, _, hooks := newUpdater(media, updater.Options{})
	img := testImage(t)

	other, _, _ := newUpdater(newMemMedia(), updater.Options{})
	foreign, err := other.ComputeUpdatePlan(img,
		planner.Policy{Stage: planner.StagePartA})
	require.NoError(t, err)

	plan, err := u.ComputeUpdatePlan(img, planner.Policy{})
	require.NoError(t, err)

	err = u.RunPreUpdateHook(foreign)
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))
	assert.Empty(t, hooks.calls)

	require.NoError(t, u.RunPreUpdateHook(plan))

	err = u.WriteRegions(foreign, img)
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))
	assert.Empty(t, media.ops)
	assert.Equal(t, updater.StateBeforeHookRun, u.State())

	require.NoError(t, u.WriteRegions(plan, img))
	assert.Equal(t, updater.StateRegionsWritten, u.State())
}

func TestRunSafeSwitch(t *testing.T) {
	u, sw, _ := newUpdater(newMemMedia(), updater.Options{SafeSwitch: true})

	require.NoError(t, u.Run(testImage(t),
		planner.Policy{Target: planner.CopyB, Stage: planner.StageOther}))

	assert.Equal(t,
		[]bootpart.Partition{bootpart.Primary, bootpart.Backup}, sw.selected)
}

func TestStepsOutOfOrder(t *testing.T) {
	u, _, hooks := newUpdater(newMemMedia(), updater.Options{})
	img := testImage(t)

	err := u.RunPreUpdateHook(nil)
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))

	err = u.RunPostUpdateHook()
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))
	assert.Equal(t, updater.StateIdle, u.State())

	plan, err := u.ComputeUpdatePlan(img, planner.Policy{})
	require.NoError(t, err)
	assert.Equal(t, updater.StatePlanned, u.State())

	err = u.WriteRegions(plan, img)
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))
	assert.Equal(t, updater.StatePlanned, u.State())
	assert.Empty(t, hooks.calls)
}

func TestPreHookFailureStops(t *testing.T) {
	media := newMemMedia()
	u, _, hooks := newUpdater(media, updater.Options{})
	hooks.preErr = util.NewFwuError("hook failed")

	err := u.Run(testImage(t), planner.Policy{})
	assert.Error(t, err)
	assert.Equal(t, updater.StatePlanned, u.State())
	assert.Empty(t, media.ops)
}

func TestWriteFailureAborts(t *testing.T) {
	media := newMemMedia()
	media.failAt = 3
	u, _, hooks := newUpdater(media, updater.Options{})

	err := u.Run(testImage(t),
		planner.Policy{Target: planner.CopyA, Stage: planner.StagePartA})
	assert.True(t, errors.Is(err, util.ErrDevice))

	assert.Equal(t, updater.StateBeforeHookRun, u.State())
	assert.Equal(t, []string{"erase", "write", "erase"}, media.ops)
	assert.Equal(t, []string{"before"}, hooks.calls)
}

func TestSkipUnchanged(t *testing.T) {
	media := newMemMedia()
	img := testImage(t)
	copy(media.data, img.Payload())

	u, _, _ := newUpdater(media, updater.Options{SkipUnchanged: true})
	require.NoError(t, u.Run(img, planner.Policy{Stage: planner.StagePartB}))

	assert.Equal(t, []string{"read", "read", "read"}, media.ops)
	assert.Equal(t, updater.StateDone, u.State())
}

func TestVerify(t *testing.T) {
	media := newMemMedia()
	u, _, _ := newUpdater(media, updater.Options{Verify: true})
	require.NoError(t, u.Run(testImage(t), planner.Policy{}))
	assert.Equal(t, []string{"erase", "write", "read",
		"erase", "write", "read"}, media.ops)

	media = newMemMedia()
	media.corrupt = true
	u, _, _ = newUpdater(media, updater.Options{Verify: true})
	err := u.Run(testImage(t), planner.Policy{})
	assert.True(t, errors.Is(err, util.ErrVerificationFailed))
	assert.Equal(t, updater.StateBeforeHookRun, u.State())
}

func TestResolveComponentOffset(t *testing.T) {
	u, _, _ := newUpdater(newMemMedia(), updater.Options{})
	img := testImage(t)

	off, size, err := u.ResolveComponentOffset(img, flashmap.SIG_STAGE1A, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(capsule.HeaderSize+0xf000), off)
	assert.Equal(t, uint32(0x1000), size)
	assert.True(t, bytes.Equal(img.Bytes()[off:off+size],
		img.Payload()[0xf000:]))

	_, _, err = u.ResolveComponentOffset(img, flashmap.SIG_PAYLOAD, false)
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestSessionIds(t *testing.T) {
	u1, _, _ := newUpdater(newMemMedia(), updater.Options{})
	u2, _, _ := newUpdater(newMemMedia(), updater.Options{})

	assert.NotEqual(t, u1.Session(), u2.Session())
}
