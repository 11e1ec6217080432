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

package fwuutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kardianos/osext"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"mynewt.apache.org/fwu/fwu/bootpart"
	"mynewt.apache.org/fwu/fwu/fwuflag"
	"mynewt.apache.org/fwu/util"
)

var FwuVersionStr string = "Apache fwu 1.0.0"
var FwuForce bool

const CONFIG_NAME = "fwu"
const SIM_STATE_DFLT = ".fwu-sim.yml"

const (
	BACKEND_SIM    = "sim"
	BACKEND_DEVMEM = "devmem"
)

// Config is the tool configuration, read from fwu.yml and overridden by
// command line flags.
type Config struct {
	FlashMap    string
	FlashImage  string
	RegionBase  int64
	Backend     string
	SimState    string
	TopSwapReg  uint64
	FlagIndex   uint8
	PreUpdate   string
	PostUpdate  string
	BackupImage string
}

func SetConfigDefaults(v *viper.Viper) {
	v.SetDefault("flash_map", "flashmap.yml")
	v.SetDefault("region_base", "0")
	v.SetDefault("backend", BACKEND_SIM)
	v.SetDefault("sim_state", SIM_STATE_DFLT)
	v.SetDefault("top_swap_reg", fmt.Sprintf("0x%x", bootpart.TOP_SWAP_REG_DFLT))
	v.SetDefault("flag_index",
		fmt.Sprintf("0x%x", fwuflag.FWU_BOOT_MODE_OFFSET))
}

// ConfigSearchPaths lists the directories searched for fwu.yml when no
// config file is specified.
func ConfigSearchPaths() []string {
	paths := []string{"."}

	if dir, err := osext.ExecutableFolder(); err == nil {
		paths = append(paths, dir)
	}

	return append(paths, "/etc/fwu")
}

// ReadConfig reads the tool configuration.  If path is empty the search
// paths are tried; a missing config file is not an error.
func ReadConfig(v *viper.Viper, path string) (Config, error) {
	SetConfigDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(CONFIG_NAME)
		for _, p := range ConfigSearchPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return Config{}, util.FmtChildFwuError(err,
				"cannot read config: %s", err.Error())
		}
		log.Debugf("no config file found; using defaults")
	} else {
		log.Debugf("using config file %s", v.ConfigFileUsed())
	}

	return decodeConfig(v)
}

func decodeConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		FlashMap:    v.GetString("flash_map"),
		FlashImage:  v.GetString("flash_image"),
		Backend:     strings.ToLower(v.GetString("backend")),
		SimState:    v.GetString("sim_state"),
		PreUpdate:   v.GetString("hooks.pre_update"),
		PostUpdate:  v.GetString("hooks.post_update"),
		BackupImage: v.GetString("backup_image"),
	}

	base, err := util.ParseSize(cast.ToString(v.Get("region_base")))
	if err != nil || base < 0 {
		return cfg, util.KindError(util.ErrInvalidParameter,
			"invalid region_base: %v", v.Get("region_base"))
	}
	cfg.RegionBase = base

	reg, err := util.AtoiNoOct(cast.ToString(v.Get("top_swap_reg")))
	if err != nil || reg < 0 {
		return cfg, util.KindError(util.ErrInvalidParameter,
			"invalid top_swap_reg: %v", v.Get("top_swap_reg"))
	}
	cfg.TopSwapReg = uint64(reg)

	idx, err := util.AtoiNoOct(cast.ToString(v.Get("flag_index")))
	if err != nil || idx < 0 || idx > 0x7f {
		return cfg, util.KindError(util.ErrInvalidParameter,
			"invalid flag_index: %v", v.Get("flag_index"))
	}
	cfg.FlagIndex = uint8(idx)

	switch cfg.Backend {
	case BACKEND_SIM, BACKEND_DEVMEM:
	default:
		return cfg, util.KindError(util.ErrInvalidParameter,
			"invalid backend \"%s\"; must be one of: %s, %s",
			cfg.Backend, BACKEND_SIM, BACKEND_DEVMEM)
	}

	return cfg, nil
}

// ResolvePath interprets a relative path against the directory holding the
// config file.
func ResolvePath(v *viper.Viper, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	cfgFile := v.ConfigFileUsed()
	if cfgFile == "" {
		return path
	}

	return filepath.Join(filepath.Dir(cfgFile), path)
}

// ResolvePaths resolves every file setting against the config file's
// directory.
func (cfg *Config) ResolvePaths(v *viper.Viper) {
	cfg.FlashMap = ResolvePath(v, cfg.FlashMap)
	cfg.FlashImage = ResolvePath(v, cfg.FlashImage)
	cfg.SimState = ResolvePath(v, cfg.SimState)
	cfg.BackupImage = ResolvePath(v, cfg.BackupImage)
}

// OtherUpdateRunning reports whether another process of this executable is
// performing an update.
func OtherUpdateRunning() (bool, error) {
	self := int32(os.Getpid())
	exe := filepath.Base(os.Args[0])

	procs, err := process.Processes()
	if err != nil {
		return false, util.ChildFwuError(err)
	}

	for _, p := range procs {
		if p.Pid == self {
			continue
		}

		args, err := p.CmdlineSlice()
		if err != nil || len(args) < 2 {
			continue
		}

		if filepath.Base(args[0]) != exe {
			continue
		}
		for _, arg := range args[1:] {
			if arg == "update" {
				log.Debugf("found running update: pid=%d", p.Pid)
				return true, nil
			}
		}
	}

	return false, nil
}
