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

// Package hooks implements the platform hook points that bracket the
// region writes of a firmware update.
package hooks

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/fwu/fwu/planner"
	"mynewt.apache.org/fwu/util"
)

// FlagClearer is the terminal step of the post-update hook.
type FlagClearer interface {
	ClearIfSet() error
}

// Hooks runs an optional platform command at each hook point.  With no
// commands configured both hooks only do their built-in work.
type Hooks struct {
	PreCmd  string
	PostCmd string
	Flag    FlagClearer
}

func planEnv(plan *planner.Plan) map[string]string {
	env := map[string]string{}
	if plan == nil {
		return env
	}

	regions := plan.Regions()
	env["FWU_REGION_COUNT"] = fmt.Sprintf("%d", len(regions))
	for i, r := range regions {
		pfx := fmt.Sprintf("FWU_REGION_%d_", i)
		env[pfx+"CLASS"] = r.Class.String()
		env[pfx+"DEST"] = fmt.Sprintf("0x%08x", r.DestOffset)
		env[pfx+"LEN"] = fmt.Sprintf("0x%x", r.Length)
		env[pfx+"SRC"] = fmt.Sprintf("0x%08x", r.SourceOffset)
	}

	return env
}

func runCmd(hook string, cmdStr string, env map[string]string) error {
	if cmdStr == "" {
		return nil
	}

	toks, err := shellquote.Split(cmdStr)
	if err != nil {
		return util.KindError(util.ErrInvalidParameter,
			"invalid %s hook command: \"%s\": %s", hook, cmdStr, err.Error())
	}
	if len(toks) == 0 {
		return nil
	}

	// Replace environment variables in command string.
	for i, tok := range toks {
		toks[i] = os.ExpandEnv(tok)
	}

	// If the command is in the user's PATH, expand it to its real location.
	if cmd, err := exec.LookPath(toks[0]); err == nil {
		toks[0] = cmd
	}

	env["FWU_HOOK"] = hook

	util.StatusMessage(util.VERBOSITY_VERBOSE, "Executing %s hook: %s\n",
		hook, cmdStr)
	if _, err := util.ShellCommand(toks, env); err != nil {
		return util.PreFwuError(err, "%s hook failed", hook)
	}

	return nil
}

// BeforeRegionWrites runs before the first byte of the plan is written.
func (h *Hooks) BeforeRegionWrites(plan *planner.Plan) error {
	log.Debugf("running pre-update hook")
	return runCmd("pre-update", h.PreCmd, planEnv(plan))
}

// AfterAllRegionWrites runs once every region has been written.  It ends
// by clearing the update flag so that the next boot is a normal one.
func (h *Hooks) AfterAllRegionWrites() error {
	log.Debugf("running post-update hook")
	if err := runCmd("post-update", h.PostCmd, map[string]string{}); err != nil {
		return err
	}

	if h.Flag == nil {
		return nil
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Firmware update done; clearing update flag\n")
	return h.Flag.ClearIfSet()
}
