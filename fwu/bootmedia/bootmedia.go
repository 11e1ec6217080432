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

// Package bootmedia provides access to the BIOS region of the boot flash.
package bootmedia

// Media reads, writes and erases the BIOS region.  Offsets are relative to
// the start of the region, not the whole chip.
type Media interface {
	Read(off uint32, length uint32) ([]byte, error)
	Write(off uint32, data []byte) error
	Erase(off uint32, length uint32) error
}

const ERASE_VAL byte = 0xff
