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

package bootmedia

import (
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/fwu/util"
)

// File is a flash image on disk.  The BIOS region occupies RegionSize bytes
// starting at RegionBase within the file.
type File struct {
	Path       string
	RegionBase int64
	RegionSize uint64
}

// OpenFile checks that the image file exists and is large enough to hold
// the region.
func OpenFile(path string, regionBase int64, regionSize uint64) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, util.FmtKindChildError(util.ErrDevice, err,
			"cannot open flash image \"%s\": %s", path, err.Error())
	}

	if info.Size() < regionBase+int64(regionSize) {
		return nil, util.KindError(util.ErrInvalidParameter,
			"flash image \"%s\" too small: size=0x%x, region ends at 0x%x",
			path, info.Size(), regionBase+int64(regionSize))
	}

	return &File{
		Path:       path,
		RegionBase: regionBase,
		RegionSize: regionSize,
	}, nil
}

func (f *File) checkRange(op string, off uint32, length uint32) error {
	if uint64(off)+uint64(length) > f.RegionSize {
		return util.KindError(util.ErrInvalidParameter,
			"%s beyond end of region: off=0x%x len=0x%x region=0x%x",
			op, off, length, f.RegionSize)
	}
	return nil
}

func (f *File) devErr(op string, err error) error {
	return util.FmtKindChildError(util.ErrDevice, err,
		"flash %s failed (%s): %s", op, f.Path, err.Error())
}

func (f *File) Read(off uint32, length uint32) ([]byte, error) {
	if err := f.checkRange("read", off, length); err != nil {
		return nil, err
	}

	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, f.devErr("read", err)
	}
	defer fh.Close()

	buf := make([]byte, length)
	if _, err := fh.ReadAt(buf, f.RegionBase+int64(off)); err != nil {
		return nil, f.devErr("read", err)
	}

	return buf, nil
}

func (f *File) writeAt(op string, off uint32, data []byte) error {
	fh, err := os.OpenFile(f.Path, os.O_WRONLY, 0)
	if err != nil {
		return f.devErr(op, err)
	}
	defer fh.Close()

	if _, err := fh.WriteAt(data, f.RegionBase+int64(off)); err != nil {
		return f.devErr(op, err)
	}

	if err := fh.Sync(); err != nil {
		return f.devErr(op, err)
	}

	return nil
}

func (f *File) Write(off uint32, data []byte) error {
	if err := f.checkRange("write", off, uint32(len(data))); err != nil {
		return err
	}

	log.Debugf("flash write off=0x%08x len=0x%x", off, len(data))
	return f.writeAt("write", off, data)
}

func (f *File) Erase(off uint32, length uint32) error {
	if err := f.checkRange("erase", off, length); err != nil {
		return err
	}

	buf := make([]byte, length)
	for i := range buf {
		buf[i] = ERASE_VAL
	}

	log.Debugf("flash erase off=0x%08x len=0x%x", off, length)
	return f.writeAt("erase", off, buf)
}

// Backup copies the whole image file to dst.
func (f *File) Backup(dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return util.ChildFwuError(err)
	}

	if err := copy.Copy(f.Path, dst); err != nil {
		return util.FmtChildFwuError(err,
			"cannot back up flash image to \"%s\": %s", dst, err.Error())
	}

	util.StatusMessage(util.VERBOSITY_VERBOSE,
		"Backed up flash image to %s\n", dst)
	return nil
}
