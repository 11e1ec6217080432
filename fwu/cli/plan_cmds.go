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
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mynewt.apache.org/fwu/artifact/capsule"
	"mynewt.apache.org/fwu/fwu/locator"
	"mynewt.apache.org/fwu/fwu/planner"
	"mynewt.apache.org/fwu/util"
)

var planCopy string
var planStage string
var planYaml bool
var locateBackup bool

type yamlRegion struct {
	Class  string `yaml:"class"`
	Dest   string `yaml:"dest"`
	Length string `yaml:"length"`
	Source string `yaml:"source"`
}

type yamlPlan struct {
	Copy    string       `yaml:"copy"`
	Stage   string       `yaml:"stage"`
	Policy  string       `yaml:"policy"`
	Regions []yamlRegion `yaml:"regions"`
}

func planToYaml(plan *planner.Plan, policy planner.Policy) ([]byte, error) {
	yp := yamlPlan{
		Copy:   policy.Target.String(),
		Stage:  policy.Stage.String(),
		Policy: fmt.Sprintf("0x%08x", policy.Encode()),
	}
	for _, r := range plan.Regions() {
		yp.Regions = append(yp.Regions, yamlRegion{
			Class:  r.Class.String(),
			Dest:   fmt.Sprintf("0x%08x", r.DestOffset),
			Length: fmt.Sprintf("0x%x", r.Length),
			Source: fmt.Sprintf("0x%08x", r.SourceOffset),
		})
	}

	b, err := yaml.Marshal(yp)
	if err != nil {
		return nil, util.ChildFwuError(err)
	}
	return b, nil
}

func planRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		FwuUsage(cmd, util.NewFwuError("Must specify a capsule file"))
	}

	policy, err := parsePolicy(planCopy, planStage)
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

	plan, err := planner.ComputeFromSource(fm, policy, img)
	if err != nil {
		FwuUsage(nil, err)
	}

	if planYaml {
		b, err := planToYaml(plan, policy)
		if err != nil {
			FwuUsage(nil, err)
		}
		fmt.Printf("%s", b)
		return
	}

	util.StatusMessage(util.VERBOSITY_QUIET, "%s\n", policy)
	for i, r := range plan.Regions() {
		util.StatusMessage(util.VERBOSITY_QUIET,
			"Region %d %-14s dest=0x%08x size=0x%08x src=0x%08x\n",
			i, r.Class, r.DestOffset, r.Length, r.SourceOffset)
	}
}

func locateRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 2 {
		FwuUsage(cmd,
			util.NewFwuError("Must specify a capsule file and a signature"))
	}

	img, err := capsule.Load(args[0])
	if err != nil {
		FwuUsage(nil, err)
	}

	fm, err := loadFlashMap()
	if err != nil {
		FwuUsage(nil, err)
	}

	c, err := locator.New(fm).ResolveInCapsule(img, args[1], locateBackup)
	if err != nil {
		FwuUsage(nil, err)
	}

	util.StatusMessage(util.VERBOSITY_QUIET,
		"%s: capsule offset=0x%08x size=0x%x\n", args[1], c.Offset, c.Size)
}

func AddPlanCommands(cmd *cobra.Command) {
	planHelpText := FormatHelp(`Compute the list of flash regions that an
		update with <capsule> would write, and where each region's new
		contents are found in the capsule.  Nothing is written.`)
	planHelpEx := "  fwu plan fw.cap\n"
	planHelpEx += "  fwu plan fw.cap --copy b --stage other\n"
	planHelpEx += "  fwu plan fw.cap --yaml"

	planCmd := &cobra.Command{
		Use:     "plan <capsule>",
		Short:   "Compute an update plan",
		Long:    planHelpText,
		Example: planHelpEx,
		Run:     planRunCmd,
	}
	addPolicyFlags(planCmd, &planCopy, &planStage)
	planCmd.Flags().BoolVar(&planYaml, "yaml", false, "Print the plan as YAML")
	cmd.AddCommand(planCmd)

	locateHelpText := FormatHelp(`Locate a firmware component, identified by
		its four character flash map signature, inside <capsule>.`)

	locateCmd := &cobra.Command{
		Use:     "locate <capsule> <signature>",
		Short:   "Locate a component in a capsule",
		Long:    locateHelpText,
		Example: "  fwu locate fw.cap SG1A\n  fwu locate fw.cap SG1A --backup",
		Run:     locateRunCmd,
	}
	locateCmd.Flags().BoolVar(&locateBackup, "backup", false,
		"Prefer the backup copy of the component")
	cmd.AddCommand(locateCmd)
}
