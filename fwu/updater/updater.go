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

// Package updater drives a complete A/B firmware update: plan, pre-update
// hook, region writes, post-update hook.  Each step only runs after the
// previous one succeeded; any failure stops the sequence before further
// flash writes.
package updater

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/fwu/artifact/capsule"
	"mynewt.apache.org/fwu/fwu/bootmedia"
	"mynewt.apache.org/fwu/fwu/bootpart"
	"mynewt.apache.org/fwu/fwu/flashmap"
	"mynewt.apache.org/fwu/fwu/locator"
	"mynewt.apache.org/fwu/fwu/planner"
	"mynewt.apache.org/fwu/util"
)

type State int

const (
	StateIdle State = iota
	StatePlanned
	StateBeforeHookRun
	StateRegionsWritten
	StateAfterHookRun
	StateDone
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StatePlanned:        "planned",
	StateBeforeHookRun:  "before-hook-run",
	StateRegionsWritten: "regions-written",
	StateAfterHookRun:   "after-hook-run",
	StateDone:           "done",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type PartitionSelector interface {
	Select(p bootpart.Partition) error
}

// UpdateFlag is armed before the first region write so that an
// interrupted update resumes on the next boot.
type UpdateFlag interface {
	Trigger() error
}

type HookRunner interface {
	BeforeRegionWrites(plan *planner.Plan) error
	AfterAllRegionWrites() error
}

// Services are the collaborators of one update sequence.  Switch, Flag
// and Hooks may be nil.
type Services struct {
	FlashMap flashmap.Source
	Media    bootmedia.Media
	Switch   PartitionSelector
	Flag     UpdateFlag
	Hooks    HookRunner
}

type Options struct {
	// Skip regions whose flash contents already match the capsule.
	SkipUnchanged bool

	// Read every region back after writing it.
	Verify bool

	// Boot from the copy not being written while the regions are written,
	// then select the freshly written copy once all writes succeed.
	SafeSwitch bool
}

type Updater struct {
	svcs    Services
	opts    Options
	locator *locator.Locator
	state   State
	session uuid.UUID
	log     *log.Entry
	plan    *planner.Plan
	policy  planner.Policy
}

func New(svcs Services, opts Options) *Updater {
	session := uuid.New()

	return &Updater{
		svcs:    svcs,
		opts:    opts,
		locator: locator.New(svcs.FlashMap),
		session: session,
		log:     log.WithField("session", session.String()),
	}
}

func (u *Updater) State() State {
	return u.state
}

func (u *Updater) Session() uuid.UUID {
	return u.session
}

// Plan returns the most recently computed plan and its policy.
func (u *Updater) Plan() (*planner.Plan, planner.Policy) {
	return u.plan, u.policy
}

func (u *Updater) expect(s State) error {
	if u.state != s {
		return util.KindError(util.ErrInvalidParameter,
			"update step out of order: in state %s, expected %s",
			u.state, s)
	}
	return nil
}

func (u *Updater) advance(from State, to State) error {
	if err := u.expect(from); err != nil {
		return err
	}

	u.log.Debugf("update state %s -> %s", from, to)
	u.state = to
	return nil
}

// PartitionFor maps a target copy to the partition that boots it.
func PartitionFor(c planner.TargetCopy) bootpart.Partition {
	if c == planner.CopyB {
		return bootpart.Backup
	}
	return bootpart.Primary
}

func otherPartition(p bootpart.Partition) bootpart.Partition {
	if p == bootpart.Backup {
		return bootpart.Primary
	}
	return bootpart.Backup
}

// ComputeUpdatePlan computes the plan for a capsule and resets the
// sequence to the planned state.
func (u *Updater) ComputeUpdatePlan(img *capsule.Image,
	policy planner.Policy) (*planner.Plan, error) {

	plan, err := planner.ComputeFromSource(u.svcs.FlashMap, policy, img)
	if err != nil {
		u.plan = nil
		u.state = StateIdle
		return nil, err
	}

	u.plan = plan
	u.policy = policy
	u.state = StatePlanned
	u.log.Debugf("planned %d regions (%s)", plan.Len(), policy)

	return plan, nil
}

// ResolveComponentOffset returns the offset and size of a component's new
// contents inside the capsule.
func (u *Updater) ResolveComponentOffset(img *capsule.Image, sig string,
	preferBackup bool) (uint32, uint32, error) {

	c, err := u.locator.ResolveInCapsule(img, sig, preferBackup)
	if err != nil {
		return 0, 0, err
	}

	return c.Offset, c.Size, nil
}

func (u *Updater) SwitchBootPartition(p bootpart.Partition) error {
	if u.svcs.Switch == nil {
		return util.KindError(util.ErrNotFound,
			"no partition switch available")
	}

	u.log.Debugf("selecting %s boot partition", p)
	return u.svcs.Switch.Select(p)
}

// checkPlan rejects any plan other than the one computed for this
// sequence.
func (u *Updater) checkPlan(plan *planner.Plan) error {
	if plan == nil || plan != u.plan {
		return util.KindError(util.ErrInvalidParameter,
			"plan was not computed by this update sequence")
	}
	return nil
}

func (u *Updater) RunPreUpdateHook(plan *planner.Plan) error {
	if err := u.expect(StatePlanned); err != nil {
		return err
	}
	if err := u.checkPlan(plan); err != nil {
		return err
	}

	if u.svcs.Hooks != nil {
		if err := u.svcs.Hooks.BeforeRegionWrites(plan); err != nil {
			return err
		}
	}

	return u.advance(StatePlanned, StateBeforeHookRun)
}

func (u *Updater) writeRegion(i int, r planner.Region,
	img *capsule.Image) error {

	src, err := img.Slice(r.SourceOffset, r.Length)
	if err != nil {
		return err
	}

	media := u.svcs.Media

	if u.opts.SkipUnchanged {
		cur, err := media.Read(r.DestOffset, r.Length)
		if err != nil {
			return err
		}
		if bytes.Equal(cur, src) {
			util.StatusMessage(util.VERBOSITY_DEFAULT,
				"Region %d (%s) unchanged; skipping\n", i, r.Class)
			return nil
		}
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Writing region %d (%s): offset=0x%08x size=0x%x\n",
		i, r.Class, r.DestOffset, r.Length)

	if err := media.Erase(r.DestOffset, r.Length); err != nil {
		return err
	}
	if err := media.Write(r.DestOffset, src); err != nil {
		return err
	}

	if u.opts.Verify {
		readBack, err := media.Read(r.DestOffset, r.Length)
		if err != nil {
			return err
		}
		if !bytes.Equal(readBack, src) {
			return util.KindError(util.ErrVerificationFailed,
				"region %d (%s) at 0x%08x does not match capsule after write",
				i, r.Class, r.DestOffset)
		}
	}

	return nil
}

// WriteRegions arms the update flag, then writes every region of the plan
// in order.  The first failure aborts the remaining writes.
func (u *Updater) WriteRegions(plan *planner.Plan, img *capsule.Image) error {
	if err := u.expect(StateBeforeHookRun); err != nil {
		return err
	}
	if err := u.checkPlan(plan); err != nil {
		return err
	}
	if img == nil {
		return util.KindError(util.ErrInvalidParameter, "nil capsule")
	}
	if u.svcs.Media == nil {
		return util.KindError(util.ErrNotFound, "no boot media available")
	}

	if u.svcs.Flag != nil {
		if err := u.svcs.Flag.Trigger(); err != nil {
			return util.FmtKindChildError(util.ErrDevice, err,
				"cannot arm update flag: %s", err.Error())
		}
		u.log.Debugf("update flag armed")
	}

	for i, r := range plan.Regions() {
		if err := u.writeRegion(i, r, img); err != nil {
			u.log.Debugf("region %d write failed: %s", i, err.Error())
			return err
		}
	}

	return u.advance(StateBeforeHookRun, StateRegionsWritten)
}

// RunPostUpdateHook runs the platform post-update hook, which clears the
// update flag, and completes the sequence.
func (u *Updater) RunPostUpdateHook() error {
	if err := u.expect(StateRegionsWritten); err != nil {
		return err
	}

	if u.svcs.Hooks != nil {
		if err := u.svcs.Hooks.AfterAllRegionWrites(); err != nil {
			return err
		}
	}

	if err := u.advance(StateRegionsWritten, StateAfterHookRun); err != nil {
		return err
	}
	return u.advance(StateAfterHookRun, StateDone)
}

// Run performs the whole sequence for one capsule.
func (u *Updater) Run(img *capsule.Image, policy planner.Policy) error {
	u.log.Infof("starting firmware update (%s)", policy)

	plan, err := u.ComputeUpdatePlan(img, policy)
	if err != nil {
		return err
	}

	target := PartitionFor(policy.Target)
	if u.opts.SafeSwitch {
		if err := u.SwitchBootPartition(otherPartition(target)); err != nil {
			return err
		}
	}

	if err := u.RunPreUpdateHook(plan); err != nil {
		return err
	}

	if err := u.WriteRegions(plan, img); err != nil {
		return err
	}

	if u.opts.SafeSwitch {
		if err := u.SwitchBootPartition(target); err != nil {
			return err
		}
	}

	if err := u.RunPostUpdateHook(); err != nil {
		return err
	}

	u.log.Infof("firmware update complete")
	return nil
}
