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

// Package flashmap describes the BIOS region of the boot flash: the sizes
// of its redundant and non-redundant regions and the named firmware
// components that live inside them.
package flashmap

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"mynewt.apache.org/fwu/util"
)

// Well known component signatures.
const (
	SIG_STAGE1A  = "SG1A"
	SIG_STAGE1B  = "SG1B"
	SIG_STAGE2   = "SG02"
	SIG_PAYLOAD  = "PYLD"
	SIG_FWUPDATE = "FWUP"
	SIG_CONFIG   = "CNFG"
)

// WrapAddressSpace is the size of the 32-bit address space.  The ROM is
// mapped so that it ends at this address; component bases are expressed in
// that convention.
const WrapAddressSpace uint64 = 0x100000000

const (
	FLAG_TOP_SWAP      = "top_swap"
	FLAG_REDUNDANT     = "redundant"
	FLAG_NON_REDUNDANT = "non_redundant"
	FLAG_BACKUP        = "backup"
)

// Entry is one component of the flash map.  Offset is relative to the start
// of the BIOS region.
type Entry struct {
	Name      string
	Signature string
	Offset    uint32
	Size      uint32
	Class     *RegionClass
	Backup    bool
}

// ComponentInfo locates a component by absolute (top of 4 GiB) address.
type ComponentInfo struct {
	Base uint64
	Size uint32
}

// Source is the flash map service consumed by the planner and the
// component locator.
type Source interface {
	Layout() (Layout, error)
	ComponentBySignature(sig string, backup bool) (ComponentInfo, error)
}

type FlashMap struct {
	RomSize uint64
	Entries []Entry

	// Explicit region sizes; when nil they are summed from the entries.
	RegionSizes map[RegionClass]uint32
}

func errUnavailable() error {
	return util.KindError(util.ErrNotFound, "flash map unavailable")
}

func entryErr(name string, format string, args ...interface{}) error {
	return util.KindError(util.ErrInvalidParameter,
		"failure while parsing flash map entry \""+name+"\": "+format,
		args...)
}

func parseU32(name string, field string, v string) (uint32, error) {
	num, err := util.ParseSize(v)
	if err != nil || num < 0 || num > 0xffffffff {
		return 0, entryErr(name, "invalid %s: %s", field, v)
	}
	return uint32(num), nil
}

func parseClass(flag string) (RegionClass, bool) {
	for rc, s := range regionClassNames {
		if s == flag {
			return rc, true
		}
	}
	return 0, false
}

func parseEntry(name string, ymlFields map[string]interface{}) (Entry, error) {
	entry := Entry{
		Name: name,
	}

	sigPresent := false
	offsetPresent := false
	sizePresent := false

	var err error
	for k, v := range ymlFields {
		switch k {
		case "signature":
			entry.Signature = cast.ToString(v)
			if len(entry.Signature) != 4 {
				return entry, entryErr(name,
					"signature must be 4 characters: \"%s\"", entry.Signature)
			}
			sigPresent = true

		case "offset":
			entry.Offset, err = parseU32(name, "offset", cast.ToString(v))
			if err != nil {
				return entry, err
			}
			offsetPresent = true

		case "size":
			entry.Size, err = parseU32(name, "size", cast.ToString(v))
			if err != nil {
				return entry, err
			}
			sizePresent = true

		case "flags":
			for _, flag := range cast.ToStringSlice(v) {
				flag = strings.ToLower(strings.TrimSpace(flag))
				if flag == FLAG_BACKUP {
					entry.Backup = true
					continue
				}
				rc, ok := parseClass(flag)
				if !ok {
					return entry, entryErr(name, "unknown flag: %s", flag)
				}
				if entry.Class != nil && *entry.Class != rc {
					return entry, entryErr(name,
						"conflicting region flags: %s, %s", *entry.Class, rc)
				}
				entry.Class = &rc
			}

		default:
			util.StatusMessage(util.VERBOSITY_QUIET,
				"Warning: flash map entry \"%s\" contains unrecognized "+
					"field: %s\n", name, k)
		}
	}

	if !sigPresent {
		return entry, entryErr(name, "required field \"signature\" missing")
	}
	if !offsetPresent {
		return entry, entryErr(name, "required field \"offset\" missing")
	}
	if !sizePresent {
		return entry, entryErr(name, "required field \"size\" missing")
	}

	return entry, nil
}

func parseRegions(ymlRegions map[string]interface{}) (
	map[RegionClass]uint32, error) {

	sizes := map[RegionClass]uint32{}
	for k, v := range ymlRegions {
		rc, ok := parseClass(k)
		if !ok {
			return nil, util.KindError(util.ErrInvalidParameter,
				"unknown region class: %s", k)
		}
		size, err := parseU32(k, "size", cast.ToString(v))
		if err != nil {
			return nil, err
		}
		sizes[rc] = size
	}

	return sizes, nil
}

// Read builds a flash map from a decoded YAML document of the form:
//
//	rom_size: 16mb
//	regions:            # optional
//	    top_swap: 64kb
//	components:
//	    stage1a:
//	        signature: SG1A
//	        offset: 0xff0000
//	        size: 64kb
//	        flags: [top_swap]
func Read(ymlFlashMap map[string]interface{}) (*FlashMap, error) {
	fm := &FlashMap{}

	ymlRomSize := ymlFlashMap["rom_size"]
	if ymlRomSize == nil {
		return nil, util.KindError(util.ErrInvalidParameter,
			"\"rom_size\" missing from flash map definition")
	}
	romSize, err := util.ParseSize(cast.ToString(ymlRomSize))
	if err != nil || romSize <= 0 {
		return nil, util.KindError(util.ErrInvalidParameter,
			"invalid rom_size: %v", ymlRomSize)
	}
	fm.RomSize = uint64(romSize)

	if ymlRegions := ymlFlashMap["regions"]; ymlRegions != nil {
		fm.RegionSizes, err = parseRegions(cast.ToStringMap(ymlRegions))
		if err != nil {
			return nil, err
		}
	}

	compMap := cast.ToStringMap(ymlFlashMap["components"])
	names := make([]string, 0, len(compMap))
	for k := range compMap {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		entry, err := parseEntry(name, cast.ToStringMap(compMap[name]))
		if err != nil {
			return nil, err
		}
		fm.Entries = append(fm.Entries, entry)
	}

	if fm.RegionSizes == nil && len(fm.Entries) == 0 {
		return nil, util.KindError(util.ErrInvalidParameter,
			"flash map defines neither \"regions\" nor \"components\"")
	}

	if err := fm.Validate(); err != nil {
		return nil, err
	}

	return fm, nil
}

// Load reads a flash map description file.  Any format viper understands
// is accepted.
func Load(path string) (*FlashMap, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, util.FmtChildFwuError(err,
			"cannot read flash map \"%s\": %s", path, err.Error())
	}

	fm, err := Read(v.AllSettings())
	if err != nil {
		return nil, util.PreFwuError(err, "flash map \"%s\"", path)
	}

	log.Debugf("loaded flash map %s: rom_size=0x%x entries=%d",
		path, fm.RomSize, len(fm.Entries))

	return fm, nil
}

// Validate checks that every entry lies inside the ROM, that no two
// entries overlap, that the derived layout is consistent and that every
// region entry lies inside its region instance.
func (fm *FlashMap) Validate() error {
	areas := make([]Area, 0, len(fm.Entries))
	for _, e := range fm.Entries {
		if uint64(e.Offset)+uint64(e.Size) > fm.RomSize {
			return entryErr(e.Name,
				"extends beyond end of rom; offset=0x%x size=0x%x rom=0x%x",
				e.Offset, e.Size, fm.RomSize)
		}

		areas = append(areas, Area{
			Label:  e.Name,
			Offset: e.Offset,
			Size:   e.Size,
		})
	}

	if err := CheckOverlaps(areas); err != nil {
		return err
	}

	layout, err := fm.Layout()
	if err != nil {
		return err
	}

	if err := layout.Validate(); err != nil {
		return err
	}

	for _, e := range fm.Entries {
		if err := checkContainment(layout, e); err != nil {
			return err
		}
	}

	return nil
}

// checkContainment verifies that a region entry lies inside the region
// instance the planner writes for it: copy A for primary entries, copy B
// for backup entries.
func checkContainment(layout Layout, e Entry) error {
	if e.Class == nil {
		return nil
	}

	area, ok := layout.Area(*e.Class, e.Backup)
	if !ok {
		return entryErr(e.Name, "%s region has no backup copy", *e.Class)
	}

	if e.Offset < area.Offset ||
		uint64(e.Offset)+uint64(e.Size) > uint64(area.Offset)+uint64(area.Size) {

		return entryErr(e.Name,
			"%s entry at 0x%x-0x%x lies outside %s (0x%x-0x%x)",
			*e.Class, e.Offset, uint64(e.Offset)+uint64(e.Size),
			area.Name(), area.Offset,
			uint64(area.Offset)+uint64(area.Size))
	}

	return nil
}

// Layout returns the BIOS region layout.  Region sizes are the explicit
// "regions" mapping if present, otherwise the sum of the primary entries
// of each region class.
func (fm *FlashMap) Layout() (Layout, error) {
	if fm == nil {
		return Layout{}, errUnavailable()
	}

	layout := Layout{
		RomSize:     fm.RomSize,
		RegionSizes: map[RegionClass]uint32{},
	}

	if fm.RegionSizes != nil {
		for rc, size := range fm.RegionSizes {
			layout.RegionSizes[rc] = size
		}
		return layout, nil
	}

	for _, e := range fm.Entries {
		if e.Class == nil || e.Backup {
			continue
		}
		layout.RegionSizes[*e.Class] += e.Size
	}

	return layout, nil
}

// ComponentBySignature finds the primary or backup copy of a component and
// returns its absolute base address.
func (fm *FlashMap) ComponentBySignature(sig string,
	backup bool) (ComponentInfo, error) {

	if fm == nil {
		return ComponentInfo{}, errUnavailable()
	}

	for _, e := range fm.Entries {
		if e.Signature != sig || e.Backup != backup {
			continue
		}

		return ComponentInfo{
			Base: WrapAddressSpace - fm.RomSize + uint64(e.Offset),
			Size: e.Size,
		}, nil
	}

	copyName := "primary"
	if backup {
		copyName = "backup"
	}
	return ComponentInfo{}, util.KindError(util.ErrNotFound,
		"no %s entry for component \"%s\" in flash map", copyName, sig)
}
