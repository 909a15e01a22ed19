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
	"errors"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestReadMinimalMessage(t *testing.T) {
	r := NewReader([]byte{0x08, 0xAC, 0x02})
	defer r.Dispose()
	require.Equal(t, 1, r.ReadFieldHeader())
	require.Equal(t, WireTypeVarint, r.WireType())
	require.Equal(t, int32(300), r.ReadInt32())
	require.Equal(t, 0, r.ReadFieldHeader())
	require.NoError(t, r.Err())
	require.Equal(t, int64(3), r.Position())
}

func TestReadScalarsFromProtowire(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, u64(-5))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(-5))
	b = protowire.AppendTag(b, 3, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(1.5))
	b = protowire.AppendTag(b, 4, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(-2.25))
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendString(b, "héllo")
	b = protowire.AppendTag(b, 6, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{1, 2, 3})
	b = protowire.AppendTag(b, 7, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, uint32(0xFFFFFFFE))
	b = protowire.AppendTag(b, 8, protowire.VarintType)
	b = protowire.AppendVarint(b, math.MaxUint64)

	r := NewReader(b)
	defer r.Dispose()
	require.Equal(t, 1, r.ReadFieldHeader())
	require.Equal(t, int32(-5), r.ReadInt32())
	require.Equal(t, 2, r.ReadFieldHeader())
	r.Hint(WireTypeSignedVarint)
	require.Equal(t, WireTypeSignedVarint, r.WireType())
	require.Equal(t, int64(-5), r.ReadInt64())
	require.Equal(t, 3, r.ReadFieldHeader())
	require.Equal(t, float32(1.5), r.ReadFloat32())
	require.Equal(t, 4, r.ReadFieldHeader())
	require.Equal(t, -2.25, r.ReadFloat64())
	require.Equal(t, 5, r.ReadFieldHeader())
	require.Equal(t, "héllo", r.ReadString())
	require.Equal(t, 6, r.ReadFieldHeader())
	require.Equal(t, []byte{1, 2, 3}, r.ReadBytes())
	require.Equal(t, 7, r.ReadFieldHeader())
	// Fixed32 sign-extends into int64
	require.Equal(t, int64(-2), r.ReadInt64())
	require.Equal(t, 8, r.ReadFieldHeader())
	require.Equal(t, uint64(math.MaxUint64), r.ReadUInt64())
	require.Equal(t, 0, r.ReadFieldHeader())
	require.NoError(t, r.Err())
}

func readOne(t *testing.T, data []byte, read func(r *Reader)) error {
	t.Helper()
	r := NewReader(data)
	defer r.Dispose()
	require.Greater(t, r.ReadFieldHeader(), 0)
	read(r)
	return r.Err()
}

func TestReadWireTypeMismatch(t *testing.T) {
	str := protowire.AppendString(protowire.AppendTag(nil, 1, protowire.BytesType), "x")
	varint := protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 1)
	cases := []struct {
		name string
		data []byte
		read func(r *Reader)
	}{
		{"int32 from string", str, func(r *Reader) { r.ReadInt32() }},
		{"uint64 from string", str, func(r *Reader) { r.ReadUInt64() }},
		{"float32 from varint", varint, func(r *Reader) { r.ReadFloat32() }},
		{"float64 from varint", varint, func(r *Reader) { r.ReadFloat64() }},
		{"string from varint", varint, func(r *Reader) { r.ReadString() }},
		{"bytes from varint", varint, func(r *Reader) { r.ReadBytes() }},
		{"sub-item from varint", varint, func(r *Reader) { r.StartSubItem() }},
		{"uint32 from signed", varint, func(r *Reader) {
			r.Hint(WireTypeSignedVarint)
			r.ReadUInt32()
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := readOne(t, c.data, c.read)
			require.ErrorIs(t, err, ErrWireTypeMismatch)
			var wireErr Error
			require.True(t, errors.As(err, &wireErr))
			require.Equal(t, 1, wireErr.FieldNumber())
		})
	}
}

func TestReadCheckedNarrowing(t *testing.T) {
	fixed64 := func(v uint64) []byte {
		return protowire.AppendFixed64(protowire.AppendTag(nil, 1, protowire.Fixed64Type), v)
	}
	varint := func(v uint64) []byte {
		return protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), v)
	}

	var i32 int32
	require.NoError(t, readOne(t, fixed64(u64(-7)), func(r *Reader) { i32 = r.ReadInt32() }))
	require.Equal(t, int32(-7), i32)
	require.ErrorIs(t, readOne(t, fixed64(1<<40), func(r *Reader) { r.ReadInt32() }), ErrOverflow)
	require.ErrorIs(t, readOne(t, fixed64(1<<33), func(r *Reader) { r.ReadUInt32() }), ErrOverflow)
	require.ErrorIs(t, readOne(t, fixed64(math.Float64bits(1e300)), func(r *Reader) { r.ReadFloat32() }), ErrOverflow)

	var f32 float32
	require.NoError(t, readOne(t, fixed64(math.Float64bits(math.Inf(-1))), func(r *Reader) { f32 = r.ReadFloat32() }))
	require.True(t, math.IsInf(float64(f32), -1))

	require.ErrorIs(t, readOne(t, varint(1<<15), func(r *Reader) { r.ReadInt16() }), ErrOverflow)
	require.ErrorIs(t, readOne(t, varint(1<<16), func(r *Reader) { r.ReadUInt16() }), ErrOverflow)
	require.ErrorIs(t, readOne(t, varint(128), func(r *Reader) { r.ReadSByte() }), ErrOverflow)
	require.ErrorIs(t, readOne(t, varint(256), func(r *Reader) { r.ReadByte() }), ErrOverflow)

	var i16 int16
	require.NoError(t, readOne(t, varint(u64(math.MinInt16)), func(r *Reader) { i16 = r.ReadInt16() }))
	require.Equal(t, int16(math.MinInt16), i16)
}

func TestReadBool(t *testing.T) {
	varint := func(v uint64) []byte {
		return protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), v)
	}
	var got bool
	require.NoError(t, readOne(t, varint(1), func(r *Reader) { got = r.ReadBool() }))
	require.True(t, got)
	require.NoError(t, readOne(t, varint(0), func(r *Reader) { got = r.ReadBool() }))
	require.False(t, got)
	require.ErrorIs(t, readOne(t, varint(2), func(r *Reader) { r.ReadBool() }), ErrOverflow)
}

func TestReadInvalidHeaders(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		kind Error
	}{
		{"field zero", []byte{0x00}, ErrInvalidField},
		{"field zero with wire type", []byte{0x02, 0x00}, ErrInvalidField},
		{"wire type 6", []byte{0x0E}, ErrInvalidField},
		{"wire type 7", []byte{0x0F}, ErrInvalidField},
		{"end-group at root", []byte{0x0C}, ErrFraming},
		{"truncated tag", []byte{0x80}, ErrEndOfStream},
		{"overlong tag", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00}, ErrVarintOverflow},
		{"tag wider than 32 bits", []byte{0x88, 0x80, 0x80, 0x80, 0x10, 0x05}, ErrVarintOverflow},
		{"sign-extended tag", []byte{0xF8, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01, 0x05}, ErrInvalidField},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewReader(c.data)
			defer r.Dispose()
			require.Equal(t, 0, r.ReadFieldHeader())
			require.ErrorIs(t, r.Err(), c.kind)
			// a failed reader stays failed
			require.Equal(t, 0, r.ReadFieldHeader())
			require.Equal(t, int32(0), r.ReadInt32())
		})
	}
}

func TestReadWideVaruint32(t *testing.T) {
	var got uint32
	err := readOne(t, []byte{0x08, 0x80, 0x80, 0x80, 0x80, 0x20}, func(r *Reader) { got = r.ReadUInt32() })
	require.ErrorIs(t, err, ErrVarintOverflow)
	require.Zero(t, got)

	err = readOne(t, []byte{0x08, 0xFF, 0xFF, 0xFF, 0xFF, 0x1F}, func(r *Reader) { r.ReadInt32() })
	require.ErrorIs(t, err, ErrVarintOverflow)

	var i32 int32
	err = readOne(t, protowire.AppendVarint([]byte{0x08}, u64(math.MinInt32)), func(r *Reader) { i32 = r.ReadInt32() })
	require.NoError(t, err)
	require.Equal(t, int32(math.MinInt32), i32)

	// a sign-extended tag never matches, even when its low bits do
	r := NewReader([]byte{0xF8, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01, 0x05})
	defer r.Dispose()
	require.False(t, r.TryReadFieldHeader(MaxFieldNumber))
	require.Equal(t, int64(0), r.Position())
	require.NoError(t, r.Err())
}

func TestReadUnconsumedField(t *testing.T) {
	r := NewReader([]byte{0x08, 0x01, 0x10, 0x02})
	defer r.Dispose()
	require.Equal(t, 1, r.ReadFieldHeader())
	require.Equal(t, 0, r.ReadFieldHeader())
	require.ErrorIs(t, r.Err(), ErrInvalidState)
}

func TestReadZeroPadding(t *testing.T) {
	data := []byte{0x08, 0x01, 0x00, 0x00, 0x00}
	r := NewReader(data)
	require.Equal(t, 1, r.ReadFieldHeader())
	r.ReadInt32()
	require.Equal(t, 0, r.ReadFieldHeader())
	require.ErrorIs(t, r.Err(), ErrInvalidField)
	r.Dispose()

	r = NewReader(data, WithAllowZeroPadding(true))
	require.Equal(t, 1, r.ReadFieldHeader())
	require.Equal(t, int32(1), r.ReadInt32())
	require.Equal(t, 0, r.ReadFieldHeader())
	require.NoError(t, r.Err())
	require.Equal(t, int64(len(data)), r.Position())
	r.Dispose()

	r = NewReader([]byte{0x08, 0x01, 0x00, 0x00, 0x07}, WithAllowZeroPadding(true))
	require.Equal(t, 1, r.ReadFieldHeader())
	r.ReadInt32()
	require.Equal(t, 0, r.ReadFieldHeader())
	require.ErrorIs(t, r.Err(), ErrInvalidField)
	r.Dispose()
}

func TestTryReadFieldHeader(t *testing.T) {
	data := []byte{0x08, 0x01, 0x12, 0x01, 'a'}
	r := NewReader(data)
	defer r.Dispose()
	require.False(t, r.TryReadFieldHeader(2))
	require.Equal(t, int64(0), r.Position())
	require.True(t, r.TryReadFieldHeader(1))
	require.Equal(t, int32(1), r.ReadInt32())
	require.True(t, r.TryReadFieldHeader(2))
	require.Equal(t, "a", r.ReadString())
	require.False(t, r.TryReadFieldHeader(2))
	require.NoError(t, r.Err())
}

func TestAssertWireType(t *testing.T) {
	r := NewReader([]byte{0x08, 0x03})
	defer r.Dispose()
	require.Equal(t, 1, r.ReadFieldHeader())
	r.Assert(WireTypeSignedVarint)
	require.Equal(t, int32(-2), r.ReadInt32())
	require.NoError(t, r.Err())

	r2 := NewReader([]byte{0x08, 0x03})
	defer r2.Dispose()
	require.Equal(t, 1, r2.ReadFieldHeader())
	r2.Assert(WireTypeFixed32)
	require.ErrorIs(t, r2.Err(), ErrWireTypeMismatch)
}

func TestReadStringInterning(t *testing.T) {
	var b []byte
	for i := 0; i < 3; i++ {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, "repeated")
	}
	r := NewReader(b, WithInternStrings(true))
	defer r.Dispose()
	var got []string
	for r.ReadFieldHeader() > 0 {
		got = append(got, r.ReadString())
	}
	require.NoError(t, r.Err())
	require.Equal(t, []string{"repeated", "repeated", "repeated"}, got)
	require.Same(t, unsafeStringData(got[0]), unsafeStringData(got[2]))
}

func TestReadEmptyBytesIsNotNil(t *testing.T) {
	var got []byte
	require.NoError(t, readOne(t, []byte{0x0A, 0x00}, func(r *Reader) { got = r.ReadBytes() }))
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestReadLengthBeyondInput(t *testing.T) {
	// declares 5 bytes, carries 2
	err := readOne(t, []byte{0x0A, 0x05, 'a', 'b'}, func(r *Reader) { r.ReadString() })
	require.ErrorIs(t, err, ErrEndOfStream)
}

func TestErrorContext(t *testing.T) {
	r := NewReader([]byte{0x08, 0x01, 0x12, 0x01, 'a'})
	defer r.Dispose()
	r.ReadFieldHeader()
	r.ReadInt32()
	require.Equal(t, 2, r.ReadFieldHeader())
	r.ReadInt64()
	err := r.Err()
	var wireErr Error
	require.True(t, errors.As(err, &wireErr))
	require.Equal(t, ErrKindWireTypeMismatch, wireErr.Kind())
	require.Equal(t, 2, wireErr.FieldNumber())
	require.Equal(t, WireTypeString, wireErr.WireType())
	require.Equal(t, int64(3), wireErr.Position())
	require.Contains(t, err.Error(), "field=2")
}

func unsafeStringData(s string) *byte {
	return unsafe.StringData(s)
}
