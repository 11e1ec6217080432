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

	"mynewt.apache.org/fwu/fwu/bootpart"
	"mynewt.apache.org/fwu/fwu/fwuflag"
	"mynewt.apache.org/fwu/util"
)

func openSwitch() *bootpart.Switch {
	bus, err := openBus()
	if err != nil {
		FwuUsage(nil, err)
	}

	return bootpart.New(bus, fwuCfg.TopSwapReg)
}

func openFlagStore() *fwuflag.Store {
	bus, err := openBus()
	if err != nil {
		FwuUsage(nil, err)
	}

	return fwuflag.NewAt(bus, fwuCfg.FlagIndex)
}

func switchRunCmd(cmd *cobra.Command, args []string) {
	sw := openSwitch()

	if len(args) == 0 {
		p, err := sw.Active()
		if err != nil {
			FwuUsage(nil, err)
		}
		util.StatusMessage(util.VERBOSITY_QUIET, "%s\n", p)
		return
	}

	p, err := bootpart.ParsePartition(args[0])
	if err != nil {
		FwuUsage(cmd, err)
	}

	if err := sw.Select(p); err != nil {
		FwuUsage(nil, err)
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Boot partition set to %s\n", p)
}

func flagGetRunCmd(cmd *cobra.Command, args []string) {
	val, err := openFlagStore().Get()
	if err != nil {
		FwuUsage(nil, err)
	}

	util.StatusMessage(util.VERBOSITY_QUIET, "0x%02x\n", val)
}

func flagSetRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		FwuUsage(cmd, util.NewFwuError("Must specify a flag value"))
	}

	val, err := util.AtoiNoOct(args[0])
	if err != nil || val < 0 || val > 0xff {
		FwuUsage(cmd, util.KindError(util.ErrInvalidParameter,
			"invalid flag value \"%s\"", args[0]))
	}

	if err := openFlagStore().Set(uint8(val)); err != nil {
		FwuUsage(nil, err)
	}
}

func flagTriggerRunCmd(cmd *cobra.Command, args []string) {
	if err := openFlagStore().Trigger(); err != nil {
		FwuUsage(nil, err)
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Update flag armed; the next boot enters firmware update mode\n")
}

func flagClearRunCmd(cmd *cobra.Command, args []string) {
	if err := openFlagStore().ClearIfSet(); err != nil {
		FwuUsage(nil, err)
	}
}

func AddDeviceCommands(cmd *cobra.Command) {
	switchHelpText := FormatHelp(`Select the redundant copy the platform
		boots from by setting or clearing the top swap bit.  With no
		argument, print the currently selected copy.`)

	switchCmd := &cobra.Command{
		Use:       "switch [primary|backup]",
		Short:     "Select or display the boot partition",
		Long:      switchHelpText,
		Example:   "  fwu switch\n  fwu switch backup",
		ValidArgs: []string{"primary", "backup"},
		Run:       switchRunCmd,
	}
	cmd.AddCommand(switchCmd)

	flagHelpText := FormatHelp(`Inspect or change the non-volatile firmware
		update flag.`)

	flagCmd := &cobra.Command{
		Use:   "flag",
		Short: "Manage the firmware update flag",
		Long:  flagHelpText,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(flagCmd)

	flagCmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the update flag",
		Run:   flagGetRunCmd,
	})

	flagCmd.AddCommand(&cobra.Command{
		Use:     "set <value>",
		Short:   "Write a raw update flag value",
		Example: "  fwu flag set 0x5a",
		Run:     flagSetRunCmd,
	})

	flagCmd.AddCommand(&cobra.Command{
		Use:   "trigger",
		Short: "Arm the update flag for the next boot",
		Run:   flagTriggerRunCmd,
	})

	flagCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the update flag if it is set",
		Run:   flagClearRunCmd,
	})
}
