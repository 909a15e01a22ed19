// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package pbwire

import "fmt"

// WireType is the 3-bit component of a field tag describing how the field's
// value is physically encoded.
type WireType uint8

const (
	// WireTypeVarint is a base-128 varint: int32, int64, uint32, uint64, bool, enum
	WireTypeVarint WireType = 0
	// WireTypeFixed64 is 8 little-endian bytes: fixed64, sfixed64, double
	WireTypeFixed64 WireType = 1
	// WireTypeString is a varint length followed by that many bytes: string, bytes, messages, packed runs
	WireTypeString WireType = 2
	// WireTypeStartGroup opens a group; the matching EndGroup carries the same field number
	WireTypeStartGroup WireType = 3
	// WireTypeEndGroup closes a group
	WireTypeEndGroup WireType = 4
	// WireTypeFixed32 is 4 little-endian bytes: fixed32, sfixed32, float
	WireTypeFixed32 WireType = 5

	// WireTypeSignedVarint is a zig-zag decorated Varint; it shares tag value 0 on the wire.
	WireTypeSignedVarint WireType = 8
	// WireTypeNone means no field is pending.
	WireTypeNone WireType = 0xFF
)

const (
	// MaxFieldNumber is the largest field number representable in a tag.
	MaxFieldNumber = 1<<29 - 1

	tagTypeBits = 3
	tagTypeMask = 1<<tagTypeBits - 1
)

var wireTypeNames = map[WireType]string{
	WireTypeVarint:       "Varint",
	WireTypeFixed64:      "Fixed64",
	WireTypeString:       "String",
	WireTypeStartGroup:   "StartGroup",
	WireTypeEndGroup:     "EndGroup",
	WireTypeFixed32:      "Fixed32",
	WireTypeSignedVarint: "SignedVarint",
	WireTypeNone:         "None",
}

func (wt WireType) String() string {
	if name, ok := wireTypeNames[wt]; ok {
		return name
	}
	return fmt.Sprintf("WireType(%d)", uint8(wt))
}

// onWire maps the synthetic SignedVarint onto its physical tag value.
func (wt WireType) onWire() WireType {
	if wt == WireTypeSignedVarint {
		return WireTypeVarint
	}
	return wt
}

// MakeTag builds the field tag (fieldNumber << 3) | wireType.
func MakeTag(fieldNumber int, wt WireType) uint32 {
	return uint32(fieldNumber)<<tagTypeBits | uint32(wt.onWire())
}

// SplitTag splits a field tag into its field number and wire type.
func SplitTag(tag uint32) (int, WireType) {
	return int(tag >> tagTypeBits), WireType(tag & tagTypeMask)
}

// validOnWire reports whether wt is one of the six physical wire types.
func validOnWire(wt WireType) bool {
	return wt <= WireTypeFixed32
}
