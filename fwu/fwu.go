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

package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mynewt.apache.org/fwu/fwu/cli"
	"mynewt.apache.org/fwu/fwu/fwuutil"
	"mynewt.apache.org/fwu/util"
)

var FwuLogLevel log.Level
var fwuSilent bool
var fwuQuiet bool
var fwuVerbose bool
var fwuLogFile string
var fwuHelp bool

func fwuCmd() *cobra.Command {
	fwuHelpText := cli.FormatHelp(`Fwu plans and performs fail-safe updates
		of a platform's boot firmware.  The BIOS region is split into a
		top swap block and a redundant block, each present twice (copy A
		and copy B), plus a single non-redundant block.  Fwu computes which
		of these regions a capsule update must rewrite, writes them, and
		manages the top swap bit and the non-volatile update flag.`)
	fwuHelpText += "\n\n" + cli.FormatHelp(`Please use the fwu help command,
		and specify the name of the command you want help for, for help on
		how to use a specific command`)
	fwuHelpEx := "  fwu\n"
	fwuHelpEx += "  fwu help [<command-name>]\n"
	fwuHelpEx += "    For help on <command-name>.  If not specified, " +
		"print this message."

	logLevelStr := ""
	fwuCmd := &cobra.Command{
		Use:     "fwu",
		Short:   "Fwu is a tool for fail-safe A/B boot firmware updates",
		Long:    fwuHelpText,
		Example: fwuHelpEx,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbosity := util.VERBOSITY_DEFAULT
			if fwuSilent {
				verbosity = util.VERBOSITY_SILENT
			} else if fwuQuiet {
				verbosity = util.VERBOSITY_QUIET
			} else if fwuVerbose {
				verbosity = util.VERBOSITY_VERBOSE
			}

			var err error
			FwuLogLevel, err = log.ParseLevel(logLevelStr)
			if err != nil {
				cli.FwuUsage(nil, util.NewFwuError(err.Error()))
			}

			err = util.Init(FwuLogLevel, fwuLogFile, verbosity)
			if err != nil {
				cli.FwuUsage(nil, err)
			}

			if err := cli.InitConfig(cmd.Flags()); err != nil {
				cli.FwuUsage(nil, err)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	fwuCmd.PersistentFlags().BoolVarP(&fwuVerbose, "verbose", "v", false,
		"Enable verbose output when executing commands")
	fwuCmd.PersistentFlags().BoolVarP(&fwuQuiet, "quiet", "q", false,
		"Be quiet; only display error output")
	fwuCmd.PersistentFlags().BoolVarP(&fwuSilent, "silent", "s", false,
		"Be silent; don't output anything")
	fwuCmd.PersistentFlags().StringVarP(&logLevelStr, "loglevel", "l",
		"WARN", "Log level")
	fwuCmd.PersistentFlags().StringVarP(&fwuLogFile, "outfile", "o",
		"", "Filename to tee output to")
	fwuCmd.PersistentFlags().BoolVarP(&fwuHelp, "help", "h",
		false, "Help for fwu commands")
	cli.AddConfigFlags(fwuCmd.PersistentFlags())

	versHelpText := cli.FormatHelp(`Display the fwu version number`)
	versHelpEx := "  fwu version"
	versCmd := &cobra.Command{
		Use:     "version",
		Short:   "Display the fwu version number",
		Long:    versHelpText,
		Example: versHelpEx,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s\n", fwuutil.FwuVersionStr)
		},
	}

	fwuCmd.AddCommand(versCmd)

	return fwuCmd
}

func main() {
	cmd := fwuCmd()

	cli.AddLayoutCommands(cmd)
	cli.AddPlanCommands(cmd)
	cli.AddDeviceCommands(cmd)
	cli.AddUpdateCommands(cmd)

	cmd.Execute()
}
