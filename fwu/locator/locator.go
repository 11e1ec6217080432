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

// Package locator resolves firmware components inside the flash map and
// inside a capsule image.
package locator

import (
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/fwu/artifact/capsule"
	"mynewt.apache.org/fwu/fwu/flashmap"
	"mynewt.apache.org/fwu/util"
)

type Locator struct {
	fm flashmap.Source
}

func New(fm flashmap.Source) *Locator {
	return &Locator{
		fm: fm,
	}
}

// ToRegionOffset converts an absolute base address, expressed with the ROM
// ending at the 4 GiB boundary, into an offset relative to the start of the
// BIOS region:
//
//	offset = romSize - (4 GiB - base)
func ToRegionOffset(romSize uint64, base uint64) (uint32, error) {
	if romSize == 0 || romSize > flashmap.WrapAddressSpace {
		return 0, util.KindError(util.ErrInvalidParameter,
			"invalid rom size: 0x%x", romSize)
	}

	romBase := flashmap.WrapAddressSpace - romSize
	if base < romBase || base >= flashmap.WrapAddressSpace {
		return 0, util.KindError(util.ErrInvalidParameter,
			"address 0x%x outside rom window [0x%x, 0x%x)",
			base, romBase, flashmap.WrapAddressSpace)
	}

	return uint32(romSize - (flashmap.WrapAddressSpace - base)), nil
}

// Locate looks up a component.  A request for the backup copy falls back
// to the primary entry when the map has no backup.
func (l *Locator) Locate(sig string,
	preferBackup bool) (flashmap.ComponentInfo, error) {

	info, err := l.fm.ComponentBySignature(sig, preferBackup)
	if preferBackup && util.ErrorKind(err) == util.ErrNotFound {
		log.Debugf("no backup copy of %s; using primary", sig)
		info, err = l.fm.ComponentBySignature(sig, false)
	}
	if err != nil {
		log.Debugf("could not get component %s from flash map: %s",
			sig, err.Error())
		return flashmap.ComponentInfo{}, err
	}

	return info, nil
}

// RegionOffset locates a component and returns its offset within the BIOS
// region.
func (l *Locator) RegionOffset(sig string,
	preferBackup bool) (uint32, uint32, error) {

	layout, err := l.fm.Layout()
	if err != nil {
		return 0, 0, err
	}

	info, err := l.Locate(sig, preferBackup)
	if err != nil {
		return 0, 0, err
	}

	off, err := ToRegionOffset(layout.RomSize, info.Base)
	if err != nil {
		return 0, 0, err
	}

	return off, info.Size, nil
}

// Component is a component's location inside a capsule image.
type Component struct {
	// Offset of the component's first byte in the capsule buffer.
	Offset uint32
	Size   uint32
	Data   []byte
}

// ResolveInCapsule locates a component and returns the slice of the capsule
// that holds its new contents.
func (l *Locator) ResolveInCapsule(img *capsule.Image, sig string,
	preferBackup bool) (Component, error) {

	if img == nil {
		return Component{}, util.KindError(util.ErrInvalidParameter,
			"nil capsule image")
	}

	regionOff, size, err := l.RegionOffset(sig, preferBackup)
	if err != nil {
		return Component{}, err
	}

	srcOff, err := capsule.SourceOffset(regionOff)
	if err != nil {
		return Component{}, err
	}

	data, err := img.Slice(srcOff, size)
	if err != nil {
		return Component{}, util.PreFwuError(err,
			"component %s not contained in capsule", sig)
	}

	log.Debugf("component %s: region_off=0x%08x capsule_off=0x%08x size=0x%x",
		sig, regionOff, srcOff, size)

	return Component{
		Offset: srcOff,
		Size:   size,
		Data:   data,
	}, nil
}
