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

package planner

import (
	"fmt"
	"strings"

	"mynewt.apache.org/fwu/util"
)

// TargetCopy selects which physical instance of the redundant regions an
// update writes.  Copy A is nearest the top of flash.
type TargetCopy int

const (
	CopyA TargetCopy = iota
	CopyB
)

func (c TargetCopy) String() string {
	switch c {
	case CopyA:
		return "a"
	case CopyB:
		return "b"
	default:
		return fmt.Sprintf("copy(%d)", int(c))
	}
}

func ParseTargetCopy(s string) (TargetCopy, error) {
	switch strings.ToLower(s) {
	case "a", "primary":
		return CopyA, nil
	case "b", "backup":
		return CopyB, nil
	default:
		return CopyA, util.KindError(util.ErrInvalidParameter,
			"invalid copy \"%s\"; must be one of: a, b", s)
	}
}

// Stage is the position of the firmware update state machine.
type Stage int

const (
	StageOther Stage = iota
	StagePartA
	StagePartB
)

var stageNames = map[Stage]string{
	StageOther: "other",
	StagePartA: "part-a",
	StagePartB: "part-b",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func ParseStage(s string) (Stage, error) {
	for stage, name := range stageNames {
		if strings.EqualFold(name, s) {
			return stage, nil
		}
	}

	return StageOther, util.KindError(util.ErrInvalidParameter,
		"invalid stage \"%s\"; must be one of: part-a, part-b, other", s)
}

// Policy is an immutable update policy supplied by the caller.
type Policy struct {
	Target TargetCopy
	Stage  Stage
}

// UpdatesNonRedundant reports whether the shared non-redundant region is
// written under this policy.  Only the staged full update touches it.
func (p Policy) UpdatesNonRedundant() bool {
	return p.Stage == StagePartA || p.Stage == StagePartB
}

func (p Policy) String() string {
	return fmt.Sprintf("copy=%s stage=%s", p.Target, p.Stage)
}

// Packed policy word: bit 0 selects partition B, bits 4-7 hold the state
// machine stage.
const (
	POLICY_PARTITION_B_BIT  = 0x1
	POLICY_STAGE_SHIFT      = 4
	POLICY_STAGE_MASK       = 0xf
	POLICY_STAGE_VAL_PART_A = 1
	POLICY_STAGE_VAL_PART_B = 2
)

// DecodePolicy unpacks a policy word.  Unknown stage values decode as
// StageOther.
func DecodePolicy(word uint32) Policy {
	p := Policy{}

	if word&POLICY_PARTITION_B_BIT != 0 {
		p.Target = CopyB
	}

	switch (word >> POLICY_STAGE_SHIFT) & POLICY_STAGE_MASK {
	case POLICY_STAGE_VAL_PART_A:
		p.Stage = StagePartA
	case POLICY_STAGE_VAL_PART_B:
		p.Stage = StagePartB
	default:
		p.Stage = StageOther
	}

	return p
}

func (p Policy) Encode() uint32 {
	var word uint32

	if p.Target == CopyB {
		word |= POLICY_PARTITION_B_BIT
	}

	switch p.Stage {
	case StagePartA:
		word |= POLICY_STAGE_VAL_PART_A << POLICY_STAGE_SHIFT
	case StagePartB:
		word |= POLICY_STAGE_VAL_PART_B << POLICY_STAGE_SHIFT
	}

	return word
}
