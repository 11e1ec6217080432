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

package regio

import (
	"io/ioutil"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"mynewt.apache.org/fwu/util"
)

// Sim is an in-memory register and port bus.  The CMOS index/data port
// pair is emulated.  If Path is set, the state is loaded from and saved to
// a YAML file so that it survives across invocations.
type Sim struct {
	Path string `yaml:"-"`

	Registers map[uint64]uint32 `yaml:"registers"`
	Cmos      map[uint8]uint8   `yaml:"cmos"`
	Ports     map[uint16]uint8  `yaml:"ports"`

	cmosIndex uint8
}

func NewSim() *Sim {
	return &Sim{
		Registers: map[uint64]uint32{},
		Cmos:      map[uint8]uint8{},
		Ports:     map[uint16]uint8{},
	}
}

// LoadSim reads a simulated bus from a state file.  A missing file yields
// an empty bus.
func LoadSim(path string) (*Sim, error) {
	s := NewSim()
	s.Path = path

	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("sim state %s does not exist; starting empty", path)
			return s, nil
		}
		return nil, util.ChildFwuError(err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, util.FmtChildFwuError(err,
			"cannot parse sim state \"%s\": %s", path, err.Error())
	}
	if s.Registers == nil {
		s.Registers = map[uint64]uint32{}
	}
	if s.Cmos == nil {
		s.Cmos = map[uint8]uint8{}
	}
	if s.Ports == nil {
		s.Ports = map[uint16]uint8{}
	}

	return s, nil
}

func (s *Sim) save() error {
	if s.Path == "" {
		return nil
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return util.ChildFwuError(err)
	}

	if err := ioutil.WriteFile(s.Path, data, 0644); err != nil {
		return util.ChildFwuError(err)
	}

	return nil
}

func (s *Sim) ReadRegister(addr uint64) (uint32, error) {
	return s.Registers[addr], nil
}

func (s *Sim) WriteRegister(addr uint64, val uint32) error {
	s.Registers[addr] = val
	return s.save()
}

func (s *Sim) ReadPort(port uint16) (uint8, error) {
	switch port {
	case CMOS_ADDREG:
		return s.cmosIndex, nil
	case CMOS_DATAREG:
		return s.Cmos[s.cmosIndex], nil
	default:
		return s.Ports[port], nil
	}
}

func (s *Sim) WritePort(port uint16, val uint8) error {
	switch port {
	case CMOS_ADDREG:
		s.cmosIndex = val & 0x7f
		return nil
	case CMOS_DATAREG:
		s.Cmos[s.cmosIndex] = val
	default:
		s.Ports[port] = val
	}

	return s.save()
}
