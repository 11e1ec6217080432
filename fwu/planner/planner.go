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

// Package planner computes the set of flash regions an A/B firmware update
// must write and where each region's new contents live in the capsule.
package planner

import (
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/fwu/artifact/capsule"
	"mynewt.apache.org/fwu/fwu/flashmap"
	"mynewt.apache.org/fwu/util"
)

// MaxUpdateRegions bounds the number of regions in one plan: top swap,
// redundant and non-redundant.
const MaxUpdateRegions = 3

type Region struct {
	Class flashmap.RegionClass

	// Offset within the BIOS region.
	DestOffset uint32
	Length     uint32

	// Offset within the capsule buffer.
	SourceOffset uint32
}

// Plan is an ordered, bounded list of regions.  The order is the order in
// which the regions must be written.
type Plan struct {
	regions [MaxUpdateRegions]Region
	count   int
}

func (p *Plan) add(r Region) error {
	if p.count >= len(p.regions) {
		return util.KindError(util.ErrAllocation,
			"update plan full; cannot add %s region (max %d)",
			r.Class, MaxUpdateRegions)
	}

	p.regions[p.count] = r
	p.count++
	return nil
}

func (p *Plan) Len() int {
	return p.count
}

// Regions returns a copy of the plan's regions in write order.
func (p *Plan) Regions() []Region {
	regions := make([]Region, p.count)
	copy(regions, p.regions[:p.count])
	return regions
}

// Offsets holds the destination of each region class for one policy.
type Offsets struct {
	TopSwap      uint32
	Redundant    uint32
	NonRedundant uint32
}

// ComputeOffsets performs the layout arithmetic.  The layout is validated
// first so that none of the subtractions can wrap.
func ComputeOffsets(layout flashmap.Layout, target TargetCopy) (Offsets, error) {
	if err := layout.Validate(); err != nil {
		return Offsets{}, err
	}

	rom := layout.RomSize
	ts := uint64(layout.Size(flashmap.RegionTopSwap))
	red := uint64(layout.Size(flashmap.RegionRedundant))
	nonRed := uint64(layout.Size(flashmap.RegionNonRedundant))

	nonRedOff := rom - (ts+red)*2 - nonRed
	tsOff := rom - ts
	redOff := tsOff - ts - red

	if target == CopyB {
		tsOff -= ts
		redOff -= red
	}

	return Offsets{
		TopSwap:      uint32(tsOff),
		Redundant:    uint32(redOff),
		NonRedundant: uint32(nonRedOff),
	}, nil
}

func newRegion(class flashmap.RegionClass, dest uint32, length uint32,
	img *capsule.Image) (Region, error) {

	src, err := capsule.SourceOffset(dest)
	if err != nil {
		return Region{}, err
	}

	if !img.Contains(src, length) {
		return Region{}, util.KindError(util.ErrInvalidParameter,
			"capsule too short for %s region; need 0x%x bytes, have 0x%x",
			class, uint64(src)+uint64(length), img.PayloadEnd())
	}

	return Region{
		Class:        class,
		DestOffset:   dest,
		Length:       length,
		SourceOffset: src,
	}, nil
}

// Compute builds the update plan for a layout, policy and capsule.  The top
// swap and redundant regions are always included; the non-redundant region
// only during the part A / part B stages.  Compute has no side effects.
func Compute(layout flashmap.Layout, policy Policy,
	img *capsule.Image) (*Plan, error) {

	if img == nil {
		return nil, util.KindError(util.ErrInvalidParameter,
			"nil capsule image")
	}

	offs, err := ComputeOffsets(layout, policy.Target)
	if err != nil {
		return nil, err
	}

	log.Debugf("TopSwapRegion      Offset/Size = 0x%08X/0x%X",
		offs.TopSwap, layout.Size(flashmap.RegionTopSwap))
	log.Debugf("RedundantRegion    Offset/Size = 0x%08X/0x%X",
		offs.Redundant, layout.Size(flashmap.RegionRedundant))
	log.Debugf("NonRedundantRegion Offset/Size = 0x%08X/0x%X",
		offs.NonRedundant, layout.Size(flashmap.RegionNonRedundant))

	type candidate struct {
		class flashmap.RegionClass
		dest  uint32
	}
	candidates := []candidate{
		{flashmap.RegionTopSwap, offs.TopSwap},
		{flashmap.RegionRedundant, offs.Redundant},
	}
	if policy.UpdatesNonRedundant() {
		candidates = append(candidates,
			candidate{flashmap.RegionNonRedundant, offs.NonRedundant})
	}

	plan := &Plan{}
	for _, c := range candidates {
		r, err := newRegion(c.class, c.dest, layout.Size(c.class), img)
		if err != nil {
			return nil, err
		}
		if err := plan.add(r); err != nil {
			return nil, err
		}
	}

	for i, r := range plan.Regions() {
		log.Debugf("Region %d (%s): dest=0x%08x size=0x%08x src=0x%08x",
			i, r.Class, r.DestOffset, r.Length, r.SourceOffset)
	}

	return plan, nil
}

// ComputeFromSource reads the layout from a flash map service and computes
// the plan.
func ComputeFromSource(src flashmap.Source, policy Policy,
	img *capsule.Image) (*Plan, error) {

	if src == nil {
		return nil, util.KindError(util.ErrNotFound, "flash map unavailable")
	}

	layout, err := src.Layout()
	if err != nil {
		return nil, err
	}

	return Compute(layout, policy, img)
}
