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

package util_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/fwu/util"
)

func TestKindError(t *testing.T) {
	err := util.KindError(util.ErrNotFound, "no entry for %s", "SG1A")

	assert.True(t, errors.Is(err, util.ErrNotFound))
	assert.False(t, errors.Is(err, util.ErrDevice))
	assert.Equal(t, "no entry for SG1A (not found)", err.Error())
	assert.Equal(t, util.ErrNotFound, util.ErrorKind(err))
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := util.KindError(util.ErrDevice, "read failed")

	child := util.ChildFwuError(base)
	assert.True(t, errors.Is(child, util.ErrDevice))

	pre := util.PreFwuError(util.KindError(util.ErrAllocation, "full"),
		"planning")
	assert.True(t, errors.Is(pre, util.ErrAllocation))
	assert.Equal(t, "planning; full (allocation failure)", pre.Error())

	wrapped := fmt.Errorf("outer: %w", base)
	assert.Equal(t, util.ErrDevice, util.ErrorKind(wrapped))
}

func TestFmtKindChildError(t *testing.T) {
	parent := errors.New("EIO")
	err := util.FmtKindChildError(util.ErrDevice, parent, "write at 0x%x", 16)

	assert.True(t, errors.Is(err, util.ErrDevice))
	assert.Equal(t, parent, errors.Unwrap(err))
	assert.Equal(t, "write at 0x10 (device error)", err.Error())
}

func TestErrorKindNone(t *testing.T) {
	assert.Nil(t, util.ErrorKind(nil))
	assert.Nil(t, util.ErrorKind(util.NewFwuError("plain")))
	assert.Nil(t, util.ErrorKind(errors.New("other")))
}

func TestAtoiNoOct(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"10", 10},
		{"010", 10},
		{"0x10", 16},
		{"0xFDC33414", 0xFDC33414},
	}

	for _, tt := range tests {
		got, err := util.AtoiNoOct(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := util.AtoiNoOct("12q")
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"4096", 4096},
		{"64kb", 64 * 1024},
		{"64KB", 64 * 1024},
		{"16mb", 16 * 1024 * 1024},
		{" 2 mb ", 2 * 1024 * 1024},
		{"0x10000", 0x10000},
	}

	for _, tt := range tests {
		got, err := util.ParseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := util.ParseSize("kb")
	assert.Error(t, err)
}
