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

import (
	"encoding/binary"
	"math/bits"
)

const (
	// MaxVarintLen32 is the maximum encoded length of a 32-bit varint.
	MaxVarintLen32 = 5
	// MaxVarintLen64 is the maximum encoded length of a 64-bit varint.
	MaxVarintLen64 = 10

	// Negative results of the Consume functions.
	varintTruncated = -1
	varintOverflow  = -2
)

// varintError maps a negative Consume result onto an Error.
func varintError(n int) Error {
	if n == varintOverflow {
		return VarintOverflowError()
	}
	return EndOfStreamError(1)
}

// SizeVaruint32 returns the number of bytes needed to encode v.
func SizeVaruint32(v uint32) int {
	return int(9*uint32(bits.Len32(v))+64) / 64
}

// SizeVaruint64 returns the number of bytes needed to encode v.
func SizeVaruint64(v uint64) int {
	return int(9*uint32(bits.Len64(v))+64) / 64
}

// PutVaruint32 writes v into b, which must have room for SizeVaruint32(v)
// bytes, and returns the number of bytes written.
func PutVaruint32(b []byte, v uint32) int {
	if v>>7 == 0 {
		b[0] = byte(v)
		return 1
	}
	if v>>14 == 0 {
		b[0] = byte(v&0x7F | 0x80)
		b[1] = byte(v >> 7)
		return 2
	}
	if v>>21 == 0 {
		b[0] = byte(v&0x7F | 0x80)
		b[1] = byte(v>>7 | 0x80)
		b[2] = byte(v >> 14)
		return 3
	}
	if v>>28 == 0 {
		b[0] = byte(v&0x7F | 0x80)
		b[1] = byte(v>>7 | 0x80)
		b[2] = byte(v>>14 | 0x80)
		b[3] = byte(v >> 21)
		return 4
	}
	b[0] = byte(v&0x7F | 0x80)
	b[1] = byte(v>>7 | 0x80)
	b[2] = byte(v>>14 | 0x80)
	b[3] = byte(v>>21 | 0x80)
	b[4] = byte(v >> 28)
	return 5
}

// PutVaruint64 writes v into b, which must have room for SizeVaruint64(v)
// bytes, and returns the number of bytes written.
func PutVaruint64(b []byte, v uint64) int {
	if v < 1<<32 {
		return PutVaruint32(b, uint32(v))
	}
	i := 0
	for v >= 0x80 {
		b[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	b[i] = byte(v)
	return i + 1
}

// AppendVaruint32 appends the varint encoding of v to b.
func AppendVaruint32(b []byte, v uint32) []byte {
	var tmp [MaxVarintLen32]byte
	n := PutVaruint32(tmp[:], v)
	return append(b, tmp[:n]...)
}

// AppendVaruint64 appends the varint encoding of v to b.
func AppendVaruint64(b []byte, v uint64) []byte {
	var tmp [MaxVarintLen64]byte
	n := PutVaruint64(tmp[:], v)
	return append(b, tmp[:n]...)
}

// ConsumeVaruint64 decodes a varint from the front of b. It returns the value
// and the number of bytes read; n is negative if b is truncated or the varint
// overflows 64 bits.
func ConsumeVaruint64(b []byte) (uint64, int) {
	if len(b) >= MaxVarintLen64 {
		return consumeVaruint64SWAR(b)
	}
	return consumeVaruint64Slow(b)
}

// consumeVaruint64Fast requires len(b) >= MaxVarintLen64.
func consumeVaruint64Fast(b []byte) (uint64, int) {
	_ = b[9]
	v := uint64(b[0] & 0x7F)
	if b[0] < 0x80 {
		return v, 1
	}
	v |= uint64(b[1]&0x7F) << 7
	if b[1] < 0x80 {
		return v, 2
	}
	v |= uint64(b[2]&0x7F) << 14
	if b[2] < 0x80 {
		return v, 3
	}
	v |= uint64(b[3]&0x7F) << 21
	if b[3] < 0x80 {
		return v, 4
	}
	v |= uint64(b[4]&0x7F) << 28
	if b[4] < 0x80 {
		return v, 5
	}
	v |= uint64(b[5]&0x7F) << 35
	if b[5] < 0x80 {
		return v, 6
	}
	v |= uint64(b[6]&0x7F) << 42
	if b[6] < 0x80 {
		return v, 7
	}
	v |= uint64(b[7]&0x7F) << 49
	if b[7] < 0x80 {
		return v, 8
	}
	v |= uint64(b[8]&0x7F) << 56
	if b[8] < 0x80 {
		return v, 9
	}
	// the 10th byte only has room for bit 63
	if b[9] > 1 {
		return 0, varintOverflow
	}
	return v | uint64(b[9])<<63, 10
}

// consumeVaruint64SWAR loads eight bytes as one little-endian word, finds the
// terminating byte with a single bit scan and compacts the 7-bit groups
// without branching per byte. Varints longer than eight bytes take the
// unrolled path. Requires len(b) >= MaxVarintLen64.
func consumeVaruint64SWAR(b []byte) (uint64, int) {
	word := binary.LittleEndian.Uint64(b)
	stops := ^word & 0x8080808080808080
	if stops == 0 {
		return consumeVaruint64Fast(b)
	}
	n := bits.TrailingZeros64(stops)/8 + 1
	word &= (uint64(1) << (8 * uint(n))) - 1
	word &= 0x7F7F7F7F7F7F7F7F
	v := word&0x7F |
		(word>>1)&(0x7F<<7) |
		(word>>2)&(0x7F<<14) |
		(word>>3)&(0x7F<<21) |
		(word>>4)&(0x7F<<28) |
		(word>>5)&(0x7F<<35) |
		(word>>6)&(0x7F<<42) |
		(word>>7)&(0x7F<<49)
	return v, n
}

// consumeVaruint64Slow reads byte by byte and checks bounds on every step.
func consumeVaruint64Slow(b []byte) (uint64, int) {
	var v uint64
	for i := 0; ; i++ {
		if i >= len(b) {
			return 0, varintTruncated
		}
		c := b[i]
		if i == MaxVarintLen64-1 {
			if c > 1 {
				return 0, varintOverflow
			}
			return v | uint64(c)<<63, i + 1
		}
		v |= uint64(c&0x7F) << (7 * uint(i))
		if c < 0x80 {
			return v, i + 1
		}
	}
}

// ConsumeVaruint32 decodes a 32-bit varint from the front of b. A value wider
// than 32 bits overflows, except for the 10-byte sign-extended form of a
// negative int32, whose upper bytes must be all ones and are discarded.
func ConsumeVaruint32(b []byte) (uint32, int) {
	if len(b) > 0 && b[0] < 0x80 {
		return uint32(b[0]), 1
	}
	var v uint32
	for i := 0; i < MaxVarintLen32-1; i++ {
		if i >= len(b) {
			return 0, varintTruncated
		}
		c := b[i]
		v |= uint32(c&0x7F) << (7 * uint(i))
		if c < 0x80 {
			return v, i + 1
		}
	}
	if len(b) < MaxVarintLen32 {
		return 0, varintTruncated
	}
	// the 5th byte holds bits 28..34; only bits 28..31 fit
	c := b[MaxVarintLen32-1]
	v |= uint32(c&0x0F) << 28
	if c < 0x80 {
		if c > 0x0F {
			return 0, varintOverflow
		}
		return v, MaxVarintLen32
	}
	// a continuation is only valid as sign extension: bits 31..34 set
	if c&0x78 != 0x78 {
		return 0, varintOverflow
	}
	for i := MaxVarintLen32; i < MaxVarintLen64-1; i++ {
		if i >= len(b) {
			return 0, varintTruncated
		}
		if b[i] != 0xFF {
			return 0, varintOverflow
		}
	}
	if len(b) < MaxVarintLen64 {
		return 0, varintTruncated
	}
	if b[MaxVarintLen64-1] != 0x01 {
		return 0, varintOverflow
	}
	return v, MaxVarintLen64
}

// EncodeZigZag32 maps signed to unsigned so small magnitudes stay short.
func EncodeZigZag32(n int32) uint32 {
	return uint32((n << 1) ^ (n >> 31))
}

// DecodeZigZag32 reverses EncodeZigZag32.
func DecodeZigZag32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

// EncodeZigZag64 maps signed to unsigned so small magnitudes stay short.
func EncodeZigZag64(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

// DecodeZigZag64 reverses EncodeZigZag64.
func DecodeZigZag64(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
