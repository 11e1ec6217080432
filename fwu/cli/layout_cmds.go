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

package cli

import (
	"github.com/spf13/cobra"

	"mynewt.apache.org/fwu/fwu/flashmap"
	"mynewt.apache.org/fwu/fwu/planner"
	"mynewt.apache.org/fwu/util"
)

func layoutRunCmd(cmd *cobra.Command, args []string) {
	fm, err := loadFlashMap()
	if err != nil {
		FwuUsage(nil, err)
	}

	layout, err := fm.Layout()
	if err != nil {
		FwuUsage(nil, err)
	}
	if err := layout.Validate(); err != nil {
		FwuUsage(nil, err)
	}

	util.StatusMessage(util.VERBOSITY_QUIET, "rom size: 0x%x\n",
		layout.RomSize)
	for _, rc := range flashmap.RegionClasses() {
		util.StatusMessage(util.VERBOSITY_QUIET, "%-14s size=0x%x\n",
			rc.String()+":", layout.Size(rc))
	}

	util.StatusMessage(util.VERBOSITY_QUIET, "\nareas:\n")
	for _, a := range layout.Areas() {
		util.StatusMessage(util.VERBOSITY_QUIET,
			"    %-22s 0x%08x-0x%08x\n",
			a.Name(), a.Offset, uint64(a.Offset)+uint64(a.Size))
	}

	for _, c := range []planner.TargetCopy{planner.CopyA, planner.CopyB} {
		offs, err := planner.ComputeOffsets(layout, c)
		if err != nil {
			FwuUsage(nil, err)
		}
		util.StatusMessage(util.VERBOSITY_QUIET,
			"\ncopy %s: top_swap=0x%08x redundant=0x%08x "+
				"non_redundant=0x%08x\n",
			c, offs.TopSwap, offs.Redundant, offs.NonRedundant)
	}

	if len(fm.Entries) > 0 {
		util.StatusMessage(util.VERBOSITY_QUIET, "\ncomponents:\n")
		for _, e := range fm.Entries {
			class := "-"
			if e.Class != nil {
				class = e.Class.String()
			}
			backup := ""
			if e.Backup {
				backup = " (backup)"
			}
			util.StatusMessage(util.VERBOSITY_QUIET,
				"    %-12s %s off=0x%08x size=0x%-8x %s%s\n",
				e.Name, e.Signature, e.Offset, e.Size, class, backup)
		}
	}
}

func AddLayoutCommands(cmd *cobra.Command) {
	layoutHelpText := FormatHelp(`Display the BIOS region layout described
		by the flash map: region sizes, the position of every region
		instance and the update offsets of both redundant copies.`)

	layoutCmd := &cobra.Command{
		Use:     "layout",
		Short:   "Display the flash layout",
		Long:    layoutHelpText,
		Example: "  fwu layout\n  fwu layout --flash-map board/flashmap.yml",
		Run:     layoutRunCmd,
	}

	cmd.AddCommand(layoutCmd)
}
