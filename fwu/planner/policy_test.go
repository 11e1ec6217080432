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

package planner_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/fwu/fwu/planner"
	"mynewt.apache.org/fwu/util"
)

func TestPolicyEncodeDecode(t *testing.T) {
	tests := []struct {
		word   uint32
		policy planner.Policy
	}{
		{0x00, planner.Policy{Target: planner.CopyA, Stage: planner.StageOther}},
		{0x01, planner.Policy{Target: planner.CopyB, Stage: planner.StageOther}},
		{0x10, planner.Policy{Target: planner.CopyA, Stage: planner.StagePartA}},
		{0x21, planner.Policy{Target: planner.CopyB, Stage: planner.StagePartB}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.policy, planner.DecodePolicy(tt.word))
		assert.Equal(t, tt.word, tt.policy.Encode())
	}

	// Unknown stages and unrelated bits are ignored.
	assert.Equal(t,
		planner.Policy{Target: planner.CopyB, Stage: planner.StageOther},
		planner.DecodePolicy(0xff0f71))
}

func TestUpdatesNonRedundant(t *testing.T) {
	assert.True(t, planner.Policy{Stage: planner.StagePartA}.UpdatesNonRedundant())
	assert.True(t, planner.Policy{Stage: planner.StagePartB}.UpdatesNonRedundant())
	assert.False(t, planner.Policy{Stage: planner.StageOther}.UpdatesNonRedundant())
}

func TestParsePolicyStrings(t *testing.T) {
	c, err := planner.ParseTargetCopy("B")
	require.NoError(t, err)
	assert.Equal(t, planner.CopyB, c)

	s, err := planner.ParseStage("Part-A")
	require.NoError(t, err)
	assert.Equal(t, planner.StagePartA, s)

	_, err = planner.ParseTargetCopy("c")
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))

	_, err = planner.ParseStage("part-c")
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))

	assert.Equal(t, "copy=b stage=part-b",
		planner.Policy{Target: planner.CopyB, Stage: planner.StagePartB}.String())
}
