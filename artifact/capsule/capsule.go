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

// Package capsule provides a bounds-checked view of a firmware management
// capsule image: a fixed header followed by a byte-for-byte mirror of the
// BIOS region.
package capsule

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/fwu/util"
)

// HeaderSize is the size of the firmware management capsule image header
// that precedes the region payload.
const HeaderSize = 40

const (
	HEADER_OFF_VERSION     = 0
	HEADER_OFF_TYPE_ID     = 4
	HEADER_OFF_INDEX       = 20
	HEADER_OFF_IMAGE_SIZE  = 24
	HEADER_OFF_VENDOR_SIZE = 28
	HEADER_OFF_HW_INSTANCE = 32
	HEADER_VERSION_MIN     = 1
	HEADER_VERSION_CURRENT = 2
)

const lz4FrameMagic uint32 = 0x184D2204

type Header struct {
	Version          uint32
	ImageTypeId      uuid.UUID
	ImageIndex       uint8
	ImageSize        uint32
	VendorCodeSize   uint32
	HardwareInstance uint64
}

// Image is a read-only capsule buffer.  All accessors check their bounds
// against the buffer length, so offsets derived from a flash layout cannot
// escape it.
type Image struct {
	Header Header
	buf    []byte
}

// guidToUUID converts a mixed-endian EFI GUID into its canonical form.
func guidToUUID(b []byte) uuid.UUID {
	var u uuid.UUID
	copy(u[:], b)

	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]

	return u
}

func uuidToGUID(u uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, u[:])

	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]

	return b
}

func ParseHeader(b []byte) (Header, error) {
	hdr := Header{}

	if len(b) < HeaderSize {
		return hdr, util.KindError(util.ErrInvalidParameter,
			"capsule too short for header: len=%d, need=%d",
			len(b), HeaderSize)
	}

	le := binary.LittleEndian
	hdr.Version = le.Uint32(b[HEADER_OFF_VERSION:])
	hdr.ImageTypeId = guidToUUID(b[HEADER_OFF_TYPE_ID : HEADER_OFF_TYPE_ID+16])
	hdr.ImageIndex = b[HEADER_OFF_INDEX]
	hdr.ImageSize = le.Uint32(b[HEADER_OFF_IMAGE_SIZE:])
	hdr.VendorCodeSize = le.Uint32(b[HEADER_OFF_VENDOR_SIZE:])
	hdr.HardwareInstance = le.Uint64(b[HEADER_OFF_HW_INSTANCE:])

	if hdr.Version < HEADER_VERSION_MIN {
		return hdr, util.KindError(util.ErrInvalidParameter,
			"unsupported capsule header version: %d", hdr.Version)
	}

	return hdr, nil
}

func (hdr Header) Bytes() []byte {
	b := make([]byte, HeaderSize)

	le := binary.LittleEndian
	le.PutUint32(b[HEADER_OFF_VERSION:], hdr.Version)
	copy(b[HEADER_OFF_TYPE_ID:], uuidToGUID(hdr.ImageTypeId))
	b[HEADER_OFF_INDEX] = hdr.ImageIndex
	le.PutUint32(b[HEADER_OFF_IMAGE_SIZE:], hdr.ImageSize)
	le.PutUint32(b[HEADER_OFF_VENDOR_SIZE:], hdr.VendorCodeSize)
	le.PutUint64(b[HEADER_OFF_HW_INSTANCE:], hdr.HardwareInstance)

	return b
}

// New wraps a raw capsule buffer.  The buffer must not be modified while the
// image is in use.
func New(buf []byte) (*Image, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}

	payloadLen := uint64(len(buf) - HeaderSize)
	if uint64(hdr.ImageSize) > payloadLen {
		return nil, util.KindError(util.ErrInvalidParameter,
			"capsule truncated: header declares %d payload bytes, have %d",
			hdr.ImageSize, payloadLen)
	}

	return &Image{
		Header: hdr,
		buf:    buf,
	}, nil
}

// Build assembles a capsule from a header and payload.  The header's image
// size field is filled in from the payload.
func Build(hdr Header, payload []byte) []byte {
	if hdr.Version == 0 {
		hdr.Version = HEADER_VERSION_CURRENT
	}
	hdr.ImageSize = uint32(len(payload))

	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, hdr.Bytes()...)
	buf = append(buf, payload...)

	return buf
}

func (img *Image) Len() int {
	return len(img.buf)
}

func (img *Image) Bytes() []byte {
	return img.buf
}

// PayloadEnd is the buffer offset just past the declared image.  Vendor
// code that follows the image is not part of the payload.
func (img *Image) PayloadEnd() uint64 {
	return uint64(HeaderSize) + uint64(img.Header.ImageSize)
}

func (img *Image) Payload() []byte {
	return img.buf[HeaderSize:img.PayloadEnd()]
}

// VendorCode returns the bytes following the declared image.
func (img *Image) VendorCode() []byte {
	return img.buf[img.PayloadEnd():]
}

// SourceOffset maps a region-relative flash offset to its location in the
// capsule buffer.
func SourceOffset(flashOff uint32) (uint32, error) {
	off := uint64(HeaderSize) + uint64(flashOff)
	if off > 0xffffffff {
		return 0, util.KindError(util.ErrInvalidParameter,
			"flash offset 0x%x overflows capsule addressing", flashOff)
	}

	return uint32(off), nil
}

// Contains reports whether [off, off+length) lies inside the header and
// declared image.
func (img *Image) Contains(off uint32, length uint32) bool {
	return uint64(off)+uint64(length) <= img.PayloadEnd()
}

// Slice returns the bytes at [off, off+length) of the capsule buffer.
func (img *Image) Slice(off uint32, length uint32) ([]byte, error) {
	if !img.Contains(off, length) {
		return nil, util.KindError(util.ErrInvalidParameter,
			"capsule range out of bounds: off=0x%x len=0x%x payload_end=0x%x",
			off, length, img.PayloadEnd())
	}

	return img.buf[off : uint64(off)+uint64(length)], nil
}

func isLz4(b []byte) bool {
	return len(b) >= 4 && binary.LittleEndian.Uint32(b) == lz4FrameMagic
}

// Read reads a capsule from r.  lz4-framed input is decompressed
// transparently.
func Read(r io.Reader) (*Image, error) {
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, util.ChildFwuError(err)
	}

	if isLz4(buf) {
		log.Debugf("capsule is lz4 compressed (%d bytes)", len(buf))
		zr := lz4.NewReader(bytes.NewReader(buf))
		buf, err = ioutil.ReadAll(zr)
		if err != nil {
			return nil, util.FmtChildFwuError(err,
				"cannot decompress capsule: %s", err.Error())
		}
	}

	return New(buf)
}

// Load reads a capsule file.
func Load(path string) (*Image, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, util.FmtChildFwuError(err,
			"cannot read capsule \"%s\": %s", path, err.Error())
	}

	img, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, util.PreFwuError(err, "capsule \"%s\"", path)
	}

	log.Debugf("loaded capsule %s: version=%d type=%s size=%d",
		path, img.Header.Version, img.Header.ImageTypeId, img.Len())

	return img, nil
}
