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

package flashmap

import (
	"fmt"

	"github.com/apache/mynewt-artifact/flash"

	"mynewt.apache.org/fwu/util"
)

// The BIOS region layout is as below.  Offsets grow downward in the
// picture; copy A of each redundant region sits nearest the top of flash.
//
//  +-------------------------+ RomSize
//  +        Top Swap         +
//  +-------------------------+
//  +     Top Swap Backup     +
//  +-------------------------+
//  +    Redundant Region     +
//  +-------------------------+
//  + Redundant Region Backup +
//  +-------------------------+
//  +  Non Redundant Region   +
//  +-------------------------+
//  +         (other)         +
//  +-------------------------+ 0

type RegionClass int

const (
	RegionTopSwap RegionClass = iota
	RegionRedundant
	RegionNonRedundant
)

var regionClassNames = map[RegionClass]string{
	RegionTopSwap:      "top_swap",
	RegionRedundant:    "redundant",
	RegionNonRedundant: "non_redundant",
}

func (rc RegionClass) String() string {
	if s, ok := regionClassNames[rc]; ok {
		return s
	}
	return fmt.Sprintf("region(%d)", int(rc))
}

// Instances is the number of physical copies of the region class.
func (rc RegionClass) Instances() int {
	if rc == RegionNonRedundant {
		return 1
	}
	return 2
}

func RegionClasses() []RegionClass {
	return []RegionClass{RegionTopSwap, RegionRedundant, RegionNonRedundant}
}

// Layout describes the BIOS region: its total size and the size of one
// instance of each region class.
type Layout struct {
	RomSize     uint64
	RegionSizes map[RegionClass]uint32
}

func NewLayout(romSize uint64, topSwap uint32, redundant uint32,
	nonRedundant uint32) Layout {

	return Layout{
		RomSize: romSize,
		RegionSizes: map[RegionClass]uint32{
			RegionTopSwap:      topSwap,
			RegionRedundant:    redundant,
			RegionNonRedundant: nonRedundant,
		},
	}
}

func (l Layout) Size(rc RegionClass) uint32 {
	return l.RegionSizes[rc]
}

// Footprint is the number of bytes occupied by all region instances.
func (l Layout) Footprint() uint64 {
	var total uint64
	for _, rc := range RegionClasses() {
		total += uint64(rc.Instances()) * uint64(l.Size(rc))
	}
	return total
}

// Validate checks that every region instance fits inside the ROM and that
// all offsets are representable in 32 bits.
func (l Layout) Validate() error {
	if l.RomSize == 0 {
		return util.KindError(util.ErrInvalidParameter, "rom size is zero")
	}
	if l.RomSize > 0x100000000 {
		return util.KindError(util.ErrInvalidParameter,
			"rom size 0x%x exceeds 4 GiB", l.RomSize)
	}
	if l.Footprint() > l.RomSize {
		return util.KindError(util.ErrInvalidParameter,
			"flash regions (0x%x bytes) do not fit in rom (0x%x bytes)",
			l.Footprint(), l.RomSize)
	}

	return nil
}

// Area describes one physical region instance.
type Area struct {
	Label  string
	Class  RegionClass
	Backup bool
	Offset uint32
	Size   uint32
}

func (a Area) Name() string {
	if a.Label != "" {
		return a.Label
	}
	if a.Backup {
		return a.Class.String() + "_backup"
	}
	return a.Class.String()
}

// Areas lists every region instance from the top of flash downward.  The
// layout must be valid.
func (l Layout) Areas() []Area {
	ts := uint64(l.Size(RegionTopSwap))
	red := uint64(l.Size(RegionRedundant))
	nonRed := uint64(l.Size(RegionNonRedundant))

	tsA := l.RomSize - ts
	tsB := tsA - ts
	redA := tsB - red
	redB := redA - red
	nr := redB - nonRed

	return []Area{
		{Class: RegionTopSwap, Offset: uint32(tsA), Size: uint32(ts)},
		{Class: RegionTopSwap, Backup: true, Offset: uint32(tsB), Size: uint32(ts)},
		{Class: RegionRedundant, Offset: uint32(redA), Size: uint32(red)},
		{Class: RegionRedundant, Backup: true, Offset: uint32(redB), Size: uint32(red)},
		{Class: RegionNonRedundant, Offset: uint32(nr), Size: uint32(nonRed)},
	}
}

// Area returns the instance of a region class.  The non-redundant region
// has no backup instance.
func (l Layout) Area(rc RegionClass, backup bool) (Area, bool) {
	for _, a := range l.Areas() {
		if a.Class == rc && a.Backup == backup {
			return a, true
		}
	}
	return Area{}, false
}

// CheckOverlaps reports overlapping region instances.
func CheckOverlaps(areas []Area) error {
	fas := make([]flash.FlashArea, 0, len(areas))
	for i, a := range areas {
		if a.Size == 0 {
			continue
		}
		fas = append(fas, flash.FlashArea{
			Name:   a.Name(),
			Id:     i,
			Offset: int(a.Offset),
			Size:   int(a.Size),
		})
	}

	overlaps, _ := flash.DetectErrors(fas)
	if len(overlaps) > 0 {
		return util.KindError(util.ErrInvalidParameter,
			"%s", flash.ErrorText(overlaps, nil))
	}

	return nil
}
