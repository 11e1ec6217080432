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
	"os"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mynewt.apache.org/fwu/fwu/bootmedia"
	"mynewt.apache.org/fwu/fwu/flashmap"
	"mynewt.apache.org/fwu/fwu/fwuutil"
	"mynewt.apache.org/fwu/fwu/planner"
	"mynewt.apache.org/fwu/fwu/regio"
	"mynewt.apache.org/fwu/util"
)

var ConfigFile string

var fwuViper = viper.New()
var fwuCfg fwuutil.Config

func FwuUsage(cmd *cobra.Command, err error) {
	if err != nil {
		if fErr, ok := err.(*util.FwuError); ok {
			log.Debugf("%s", fErr.StackTrace)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	}

	if cmd != nil {
		fmt.Printf("\n")
		fmt.Printf("%s - ", cmd.Name())
		cmd.Help()
	}
	os.Exit(1)
}

// Display help text with a max line width of 79 characters
func FormatHelp(text string) string {
	// first compress all new lines and extra spaces
	words := regexp.MustCompile("\\s+").Split(text, -1)
	linelen := 0
	fmtText := ""
	for _, word := range words {
		word = strings.Trim(word, "\n ") + " "
		tmplen := linelen + len(word)
		if tmplen >= 80 {
			fmtText += "\n"
			linelen = 0
		}
		fmtText += word
		linelen += len(word)
	}
	return fmtText
}

// AddConfigFlags registers the flags that override fwu.yml settings.
func AddConfigFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&ConfigFile, "config", "c", "",
		"Configuration file (default: fwu.yml in ., the executable's "+
			"directory or /etc/fwu)")
	flags.String("flash-map", "", "Flash map description file")
	flags.String("flash-image", "", "Flash image file backing the boot media")
	flags.String("backend", "",
		"Register backend: "+fwuutil.BACKEND_SIM+" or "+fwuutil.BACKEND_DEVMEM)
	flags.String("sim-state", "", "State file of the simulated register backend")
}

var flagKeys = map[string]string{
	"flash-map":   "flash_map",
	"flash-image": "flash_image",
	"backend":     "backend",
	"sim-state":   "sim_state",
}

// InitConfig reads the configuration file and applies flag overrides.
func InitConfig(flags *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := fwuViper.BindPFlag(key, f); err != nil {
				return util.ChildFwuError(err)
			}
		}
	}

	cfg, err := fwuutil.ReadConfig(fwuViper, ConfigFile)
	if err != nil {
		return err
	}

	cfg.ResolvePaths(fwuViper)
	fwuCfg = cfg

	return nil
}

func loadFlashMap() (*flashmap.FlashMap, error) {
	return flashmap.Load(fwuCfg.FlashMap)
}

func openBus() (regio.Bus, error) {
	switch fwuCfg.Backend {
	case fwuutil.BACKEND_DEVMEM:
		return regio.NewDevMem(), nil

	default:
		return regio.LoadSim(fwuCfg.SimState)
	}
}

func openMedia(layout flashmap.Layout) (*bootmedia.File, error) {
	if fwuCfg.FlashImage == "" {
		return nil, util.KindError(util.ErrNotFound,
			"no flash image configured; use --flash-image or flash_image")
	}

	return bootmedia.OpenFile(fwuCfg.FlashImage, fwuCfg.RegionBase,
		layout.RomSize)
}

func parsePolicy(copyStr string, stageStr string) (planner.Policy, error) {
	target, err := planner.ParseTargetCopy(copyStr)
	if err != nil {
		return planner.Policy{}, err
	}

	stage, err := planner.ParseStage(stageStr)
	if err != nil {
		return planner.Policy{}, err
	}

	return planner.Policy{
		Target: target,
		Stage:  stage,
	}, nil
}

func addPolicyFlags(cmd *cobra.Command, copyStr *string, stageStr *string) {
	cmd.Flags().StringVar(copyStr, "copy", "a",
		"Redundant copy to update (a or b)")
	cmd.Flags().StringVar(stageStr, "stage", "part-a",
		"Update stage (part-a, part-b or other)")
}
