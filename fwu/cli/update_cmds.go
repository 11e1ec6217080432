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

	"mynewt.apache.org/fwu/artifact/capsule"
	"mynewt.apache.org/fwu/fwu/bootpart"
	"mynewt.apache.org/fwu/fwu/fwuflag"
	"mynewt.apache.org/fwu/fwu/fwuutil"
	"mynewt.apache.org/fwu/fwu/hooks"
	"mynewt.apache.org/fwu/fwu/updater"
	"mynewt.apache.org/fwu/util"
)

var updateCopy string
var updateStage string
var updateSwitch bool
var updateVerify bool
var updateSkipUnchanged bool
var updateBackupImage string

func updateRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		FwuUsage(cmd, util.NewFwuError("Must specify a capsule file"))
	}

	if !fwuutil.FwuForce {
		running, err := fwuutil.OtherUpdateRunning()
		if err != nil {
			FwuUsage(nil, err)
		}
		if running {
			FwuUsage(nil, util.NewFwuError(
				"another firmware update is in progress; use -f to override"))
		}
	}

	policy, err := parsePolicy(updateCopy, updateStage)
	if err != nil {
		FwuUsage(cmd, err)
	}

	img, err := capsule.Load(args[0])
	if err != nil {
		FwuUsage(nil, err)
	}

	fm, err := loadFlashMap()
	if err != nil {
		FwuUsage(nil, err)
	}
	if err := fm.Validate(); err != nil {
		FwuUsage(nil, err)
	}

	layout, err := fm.Layout()
	if err != nil {
		FwuUsage(nil, err)
	}

	media, err := openMedia(layout)
	if err != nil {
		FwuUsage(nil, err)
	}

	backup := updateBackupImage
	if backup == "" {
		backup = fwuCfg.BackupImage
	}
	if backup != "" {
		util.StatusMessage(util.VERBOSITY_DEFAULT,
			"Saving flash image to %s\n", backup)
		if err := media.Backup(backup); err != nil {
			FwuUsage(nil, err)
		}
	}

	bus, err := openBus()
	if err != nil {
		FwuUsage(nil, err)
	}

	flag := fwuflag.NewAt(bus, fwuCfg.FlagIndex)
	svcs := updater.Services{
		FlashMap: fm,
		Media:    media,
		Switch:   bootpart.New(bus, fwuCfg.TopSwapReg),
		Flag:     flag,
		Hooks: &hooks.Hooks{
			PreCmd:  fwuCfg.PreUpdate,
			PostCmd: fwuCfg.PostUpdate,
			Flag:    flag,
		},
	}

	u := updater.New(svcs, updater.Options{
		SkipUnchanged: updateSkipUnchanged,
		Verify:        updateVerify,
		SafeSwitch:    updateSwitch,
	})

	util.StatusMessage(util.VERBOSITY_VERBOSE, "Update session %s\n",
		u.Session())

	if err := u.Run(img, policy); err != nil {
		util.ErrorMessage(util.VERBOSITY_QUIET,
			"Update stopped in state %s\n", u.State())
		FwuUsage(nil, err)
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Firmware update of copy %s complete\n", policy.Target)
}

func AddUpdateCommands(cmd *cobra.Command) {
	updateHelpText := FormatHelp(`Update the boot firmware from <capsule>.
		The update plan is computed, the pre-update hook is run, the
		update flag is armed, every planned region is erased and written,
		and the post-update hook clears the update flag.  The sequence stops at the first
		failure.`)
	updateHelpText += "\n\n" + FormatHelp(`With --switch, the platform is
		made to boot from the other copy while the target copy is being
		written, and switched to the target copy once all writes
		succeeded.`)

	updateHelpEx := "  fwu update fw.cap\n"
	updateHelpEx += "  fwu update fw.cap --copy b --switch --verify\n"
	updateHelpEx += "  fwu update fw.cap --stage other --skip-unchanged"

	updateCmd := &cobra.Command{
		Use:     "update <capsule>",
		Short:   "Update the boot firmware",
		Long:    updateHelpText,
		Example: updateHelpEx,
		Run:     updateRunCmd,
	}

	addPolicyFlags(updateCmd, &updateCopy, &updateStage)
	updateCmd.Flags().BoolVar(&updateSwitch, "switch", false,
		"Boot from the other copy while writing the target copy")
	updateCmd.Flags().BoolVar(&updateVerify, "verify", false,
		"Read back and compare every region after writing it")
	updateCmd.Flags().BoolVar(&updateSkipUnchanged, "skip-unchanged", false,
		"Do not rewrite regions whose contents already match")
	updateCmd.Flags().StringVar(&updateBackupImage, "backup-image", "",
		"Copy the flash image to this file before writing")
	updateCmd.Flags().BoolVarP(&fwuutil.FwuForce, "force", "f", false,
		"Run even if another update appears to be in progress")

	cmd.AddCommand(updateCmd)
}
