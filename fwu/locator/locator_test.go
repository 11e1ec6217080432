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

package locator_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/fwu/artifact/capsule"
	"mynewt.apache.org/fwu/fwu/flashmap"
	"mynewt.apache.org/fwu/fwu/locator"
	"mynewt.apache.org/fwu/util"
)

const romSize = 0x100000

type key struct {
	sig    string
	backup bool
}

// fakeSource is a flash map service backed by a table of components.
type fakeSource struct {
	layout flashmap.Layout
	comps  map[key]flashmap.ComponentInfo
	calls  []key
}

func (f *fakeSource) Layout() (flashmap.Layout, error) {
	return f.layout, nil
}

func (f *fakeSource) ComponentBySignature(sig string,
	backup bool) (flashmap.ComponentInfo, error) {

	f.calls = append(f.calls, key{sig, backup})
	if info, ok := f.comps[key{sig, backup}]; ok {
		return info, nil
	}
	return flashmap.ComponentInfo{},
		util.KindError(util.ErrNotFound, "no component %s", sig)
}

func newFakeSource() *fakeSource {
	top := flashmap.WrapAddressSpace
	return &fakeSource{
		layout: flashmap.NewLayout(romSize, 0x1000, 0x4000, 0x8000),
		comps: map[key]flashmap.ComponentInfo{
			{"SG1A", false}: {Base: top - 0x1000, Size: 0x1000},
			{"SG1A", true}:  {Base: top - 0x2000, Size: 0x1000},
			{"SG1B", false}: {Base: top - 0x6000, Size: 0x4000},
		},
	}
}

func TestToRegionOffset(t *testing.T) {
	tests := []struct {
		rom  uint64
		base uint64
		want uint32
	}{
		{0x1000000, 0xffff0000, 0xff0000},
		{0x1000000, 0xff000000, 0},
		{0x1000000, 0xffffffff, 0xffffff},
		{0x100000000, 0, 0},
		{0x100000000, 0x12345678, 0x12345678},
	}

	for _, tt := range tests {
		got, err := locator.ToRegionOffset(tt.rom, tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestToRegionOffsetOutOfWindow(t *testing.T) {
	bad := []struct {
		rom  uint64
		base uint64
	}{
		{0x1000000, 0xfeffffff},
		{0x1000000, 0x100000000},
		{0, 0xffff0000},
		{0x200000000, 0},
	}

	for _, tt := range bad {
		_, err := locator.ToRegionOffset(tt.rom, tt.base)
		assert.True(t, errors.Is(err, util.ErrInvalidParameter),
			"rom=0x%x base=0x%x", tt.rom, tt.base)
	}
}

func TestLocate(t *testing.T) {
	src := newFakeSource()
	l := locator.New(src)

	info, err := l.Locate("SG1A", true)
	require.NoError(t, err)
	assert.Equal(t, flashmap.WrapAddressSpace-0x2000, info.Base)

	info, err = l.Locate("SG1A", false)
	require.NoError(t, err)
	assert.Equal(t, flashmap.WrapAddressSpace-0x1000, info.Base)
}

func TestLocateBackupFallsBackToPrimary(t *testing.T) {
	src := newFakeSource()
	l := locator.New(src)

	info, err := l.Locate("SG1B", true)
	require.NoError(t, err)
	assert.Equal(t, flashmap.WrapAddressSpace-0x6000, info.Base)
	assert.Equal(t, uint32(0x4000), info.Size)
	assert.Equal(t, []key{{"SG1B", true}, {"SG1B", false}}, src.calls)
}

func TestLocateNotFound(t *testing.T) {
	l := locator.New(newFakeSource())

	_, err := l.Locate("PYLD", true)
	assert.True(t, errors.Is(err, util.ErrNotFound))

	var fm *flashmap.FlashMap
	_, err = locator.New(fm).Locate("SG1A", false)
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestResolveInCapsule(t *testing.T) {
	payload := make([]byte, romSize)
	for i := range payload {
		payload[i] = byte(i >> 12)
	}
	img, err := capsule.New(capsule.Build(capsule.Header{}, payload))
	require.NoError(t, err)

	l := locator.New(newFakeSource())

	c, err := l.ResolveInCapsule(img, "SG1A", false)
	require.NoError(t, err)
	assert.Equal(t, uint32(capsule.HeaderSize+romSize-0x1000), c.Offset)
	assert.Equal(t, uint32(0x1000), c.Size)
	assert.Equal(t, payload[romSize-0x1000:], c.Data)

	c, err = l.ResolveInCapsule(img, "SG1A", true)
	require.NoError(t, err)
	assert.Equal(t, uint32(capsule.HeaderSize+romSize-0x2000), c.Offset)
}

func TestResolveInShortCapsule(t *testing.T) {
	img, err := capsule.New(capsule.Build(capsule.Header{},
		make([]byte, romSize/2)))
	require.NoError(t, err)

	_, err = locator.New(newFakeSource()).ResolveInCapsule(img, "SG1A", false)
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))

	_, err = locator.New(newFakeSource()).ResolveInCapsule(nil, "SG1A", false)
	assert.True(t, errors.Is(err, util.ErrInvalidParameter))
}
