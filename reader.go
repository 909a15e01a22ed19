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
	"math"

	"go.uber.org/zap"
)

// source supplies input bytes to a Reader.
type source interface {
	// fill refreshes the reader's window so that at least n bytes are
	// readable at the cursor, and returns the number of readable bytes.
	// The result is less than n only when the input is exhausted.
	fill(r *Reader, n int) int
	// release drops the source's hold on pooled buffers and inputs.
	release(r *Reader)
}

type readerKind uint8

const (
	readerBytes readerKind = iota
	readerSegments
	readerStream
	readerKindCount
)

// SubItemToken marks an open sub-item. It is returned by StartSubItem and
// must be passed to exactly one EndSubItem, in LIFO order.
type SubItemToken struct {
	// -fieldNumber for groups; previous block end (reader) or prefix
	// position (writer) for length-prefixed sub-items
	value int64
	style PrefixStyle
}

// Reader decodes the protobuf wire format from one backend.
//
// A Reader drives a field loop:
//
//	for field := r.ReadFieldHeader(); field > 0; field = r.ReadFieldHeader() {
//		switch field {
//		case 1:
//			id = r.ReadInt32()
//		default:
//			r.SkipField()
//		}
//	}
//
// Errors are accumulated: the first failure is kept, every later operation
// returns a zero value, and Err reports the failure. A failed Reader must be
// disposed, not reused. Reader is not safe for concurrent use.
type Reader struct {
	cur         cursor
	base        int64 // absolute position of cur.window[0]
	src         source
	kind        readerKind
	blockEnd    int64
	fieldNumber int
	wireType    WireType
	depth       int
	config      Config
	err         Error
	interner    *stringInterner
	refs        referenceTable
	scratch     []byte
}

func (r *Reader) init(cfg Config) {
	r.cur.reset(nil)
	r.base = 0
	r.blockEnd = math.MaxInt64
	r.fieldNumber = 0
	r.wireType = WireTypeNone
	r.depth = 0
	r.config = cfg
	r.err = Error{}
	if cfg.InternStrings && r.interner == nil {
		r.interner = &stringInterner{}
	}
}

// Dispose returns pooled buffers and recycles the Reader. The Reader must
// not be used afterwards.
func (r *Reader) Dispose() {
	if r == nil || r.src == nil {
		return
	}
	r.src.release(r)
	r.cur.reset(nil)
	r.refs.reset()
	if r.interner != nil {
		r.interner.reset()
	}
	r.scratch = r.scratch[:0]
	releaseReader(r)
}

// Position returns the absolute number of bytes consumed.
func (r *Reader) Position() int64 {
	return r.base + int64(r.cur.offset)
}

// FieldNumber returns the field number of the current field.
func (r *Reader) FieldNumber() int {
	return r.fieldNumber
}

// WireType returns the wire type of the current field, or WireTypeNone.
func (r *Reader) WireType() WireType {
	return r.wireType
}

// Depth returns the number of open sub-items.
func (r *Reader) Depth() int {
	return r.depth
}

// HasError returns true if an error has occurred
func (r *Reader) HasError() bool {
	return r.err.HasError()
}

// Err returns the first error that occurred, or nil.
func (r *Reader) Err() error {
	return r.err.CheckError()
}

// fail records e with the reader's wire context; the first error wins.
func (r *Reader) fail(e Error) {
	if r.err.Ok() {
		r.err = e.withContext(r.fieldNumber, r.wireType, r.Position(), r.depth)
	}
}

// ensure returns the number of readable bytes, refilling when fewer than n
// are in the window.
func (r *Reader) ensure(n int) int {
	if avail := r.cur.remaining(); avail >= n {
		return avail
	}
	return r.src.fill(r, n)
}

func (r *Reader) readVaruint64() uint64 {
	if r.cur.remaining() < MaxVarintLen64 {
		r.ensure(MaxVarintLen64)
	}
	v, n := ConsumeVaruint64(r.cur.unread())
	if n < 0 {
		r.fail(varintError(n))
		return 0
	}
	r.cur.advance(n)
	return v
}

func (r *Reader) readVaruint32() uint32 {
	if r.cur.remaining() < MaxVarintLen64 {
		r.ensure(MaxVarintLen64)
	}
	v, n := ConsumeVaruint32(r.cur.unread())
	if n < 0 {
		r.fail(varintError(n))
		return 0
	}
	r.cur.advance(n)
	return v
}

// readTag reads a field tag. Tags are unsigned, so the sign-extended
// 10-byte form is rejected.
func (r *Reader) readTag() uint32 {
	if r.cur.remaining() < MaxVarintLen64 {
		r.ensure(MaxVarintLen64)
	}
	v, n := ConsumeVaruint32(r.cur.unread())
	if n < 0 {
		r.fail(varintError(n))
		return 0
	}
	if n > MaxVarintLen32 {
		r.fail(InvalidFieldErrorf("invalid field header: %d-byte tag", n))
		return 0
	}
	r.cur.advance(n)
	return v
}

func (r *Reader) readFixed32() uint32 {
	if avail := r.ensure(4); avail < 4 {
		r.fail(EndOfStreamError(4 - avail))
		return 0
	}
	v := binary.LittleEndian.Uint32(r.cur.unread())
	r.cur.advance(4)
	return v
}

func (r *Reader) readFixed64() uint64 {
	if avail := r.ensure(8); avail < 8 {
		r.fail(EndOfStreamError(8 - avail))
		return 0
	}
	v := binary.LittleEndian.Uint64(r.cur.unread())
	r.cur.advance(8)
	return v
}

// readLength reads a varint length prefix and checks it against the
// current block.
func (r *Reader) readLength() int {
	v := r.readVaruint64()
	if r.err.HasError() {
		return 0
	}
	if v > math.MaxInt32 {
		r.fail(OverflowErrorf("length %d exceeds the 2 GiB limit", v))
		return 0
	}
	if end := r.Position() + int64(v); end > r.blockEnd {
		r.fail(FramingError("length-prefixed value extends beyond its sub-item", r.blockEnd, end))
		return 0
	}
	return int(v)
}

// appendRaw appends the next n input bytes to dst.
func (r *Reader) appendRaw(dst []byte, n int) []byte {
	for n > 0 {
		if r.cur.remaining() == 0 && r.src.fill(r, 1) == 0 {
			r.fail(EndOfStreamError(n))
			return dst
		}
		k := min(n, r.cur.remaining())
		dst = append(dst, r.cur.unread()[:k]...)
		r.cur.advance(k)
		n -= k
	}
	return dst
}

func (r *Reader) skipRaw(n int64) {
	for n > 0 {
		if r.cur.remaining() == 0 && r.src.fill(r, 1) == 0 {
			r.fail(EndOfStreamError(int(min(n, math.MaxInt32))))
			return
		}
		k := min(n, int64(r.cur.remaining()))
		r.cur.advance(int(k))
		n -= k
	}
}

// ReadFieldHeader reads the next field tag and returns its field number, or
// 0 when the current message has no more fields: the block boundary or end
// of input was reached, or an EndGroup was read inside a group.
func (r *Reader) ReadFieldHeader() int {
	if r.err.HasError() || r.wireType == WireTypeEndGroup {
		return 0
	}
	if r.wireType != WireTypeNone {
		r.fail(InvalidStateErrorf("field %d was not consumed before reading the next header", r.fieldNumber))
		return 0
	}
	if r.Position() >= r.blockEnd {
		r.fieldNumber = 0
		return 0
	}
	if r.ensure(1) == 0 {
		r.fieldNumber = 0
		if r.depth > 0 || r.blockEnd != math.MaxInt64 {
			r.fail(EndOfStreamError(1))
		}
		return 0
	}
	tag := r.readTag()
	if r.err.HasError() {
		return 0
	}
	field, wt := SplitTag(tag)
	if field == 0 {
		if tag == 0 && r.config.AllowZeroPadding {
			r.skipZeroPadding()
			return 0
		}
		r.fail(InvalidFieldErrorf("invalid field number 0 (tag %#x)", tag))
		return 0
	}
	r.fieldNumber = field
	if !validOnWire(wt) {
		r.fail(InvalidFieldErrorf("invalid wire type %d", uint8(wt)))
		return 0
	}
	r.wireType = wt
	if wt == WireTypeEndGroup {
		if r.depth == 0 {
			r.fail(FramingError("unexpected end-group at the root", 0, 0))
		}
		return 0
	}
	return field
}

// skipZeroPadding consumes the rest of the block, which must be all zeros.
func (r *Reader) skipZeroPadding() {
	start := r.Position()
	for r.Position() < r.blockEnd {
		if r.cur.remaining() == 0 && r.src.fill(r, 1) == 0 {
			break
		}
		window := r.cur.unread()
		if limit := r.blockEnd - r.Position(); int64(len(window)) > limit {
			window = window[:limit]
		}
		for i, b := range window {
			if b != 0 {
				r.cur.advance(i)
				r.fail(InvalidFieldErrorf("non-zero byte %#x after zero padding", b))
				return
			}
		}
		r.cur.advance(len(window))
	}
	r.fieldNumber = 0
	if ce := Logger().Check(zap.DebugLevel, "pbwire: tolerated zero padding"); ce != nil {
		ce.Write(zap.Int64("start", start), zap.Int64("end", r.Position()))
	}
}

// TryReadFieldHeader reads the next field header only if it has the given
// field number.
func (r *Reader) TryReadFieldHeader(field int) bool {
	if r.err.HasError() || r.wireType != WireTypeNone || r.Position() >= r.blockEnd {
		return false
	}
	r.ensure(MaxVarintLen32)
	tag, n := ConsumeVaruint32(r.cur.unread())
	if n <= 0 || n > MaxVarintLen32 {
		return false
	}
	got, wt := SplitTag(tag)
	if got != field || !validOnWire(wt) || wt == WireTypeEndGroup {
		return false
	}
	r.cur.advance(n)
	r.fieldNumber = field
	r.wireType = wt
	return true
}

// Hint applies a wire-type decoration, such as SignedVarint, to a field whose
// physical wire type matches.
func (r *Reader) Hint(wt WireType) {
	if r.wireType != WireTypeNone && r.wireType == wt.onWire() {
		r.wireType = wt
	}
}

// Assert checks that the current field has the given wire type, applying a
// decoration if the physical wire type matches.
func (r *Reader) Assert(wt WireType) {
	if r.err.HasError() || r.wireType == wt {
		return
	}
	if r.wireType == wt.onWire() {
		r.wireType = wt
		return
	}
	r.fail(WireTypeMismatchError(wt.String(), r.wireType))
}

func (r *Reader) consumed() {
	r.wireType = WireTypeNone
}

// ReadUInt64 reads a Varint, Fixed32 or Fixed64 field as uint64.
func (r *Reader) ReadUInt64() uint64 {
	if r.err.HasError() {
		return 0
	}
	var v uint64
	switch r.wireType {
	case WireTypeVarint:
		v = r.readVaruint64()
	case WireTypeFixed32:
		v = uint64(r.readFixed32())
	case WireTypeFixed64:
		v = r.readFixed64()
	default:
		r.fail(WireTypeMismatchError("uint64", r.wireType))
		return 0
	}
	r.consumed()
	return v
}

// ReadInt64 reads a Varint, SignedVarint, Fixed32 or Fixed64 field as int64.
func (r *Reader) ReadInt64() int64 {
	if r.err.HasError() {
		return 0
	}
	var v int64
	switch r.wireType {
	case WireTypeVarint:
		v = int64(r.readVaruint64())
	case WireTypeSignedVarint:
		v = DecodeZigZag64(r.readVaruint64())
	case WireTypeFixed32:
		v = int64(int32(r.readFixed32()))
	case WireTypeFixed64:
		v = int64(r.readFixed64())
	default:
		r.fail(WireTypeMismatchError("int64", r.wireType))
		return 0
	}
	r.consumed()
	return v
}

// ReadUInt32 reads a Varint, Fixed32 or Fixed64 field as uint32.
func (r *Reader) ReadUInt32() uint32 {
	if r.err.HasError() {
		return 0
	}
	var v uint32
	switch r.wireType {
	case WireTypeVarint:
		v = r.readVaruint32()
	case WireTypeFixed32:
		v = r.readFixed32()
	case WireTypeFixed64:
		u := r.readFixed64()
		if u > math.MaxUint32 {
			r.fail(OverflowErrorf("value %d does not fit uint32", u))
			return 0
		}
		v = uint32(u)
	default:
		r.fail(WireTypeMismatchError("uint32", r.wireType))
		return 0
	}
	r.consumed()
	return v
}

// ReadInt32 reads a Varint, SignedVarint, Fixed32 or Fixed64 field as int32.
func (r *Reader) ReadInt32() int32 {
	if r.err.HasError() {
		return 0
	}
	var v int32
	switch r.wireType {
	case WireTypeVarint:
		v = int32(r.readVaruint32())
	case WireTypeSignedVarint:
		v = DecodeZigZag32(r.readVaruint32())
	case WireTypeFixed32:
		v = int32(r.readFixed32())
	case WireTypeFixed64:
		i := int64(r.readFixed64())
		if i < math.MinInt32 || i > math.MaxInt32 {
			r.fail(OverflowErrorf("value %d does not fit int32", i))
			return 0
		}
		v = int32(i)
	default:
		r.fail(WireTypeMismatchError("int32", r.wireType))
		return 0
	}
	r.consumed()
	return v
}

// ReadInt16 reads an int32-compatible field and checks the int16 range.
func (r *Reader) ReadInt16() int16 {
	v := r.ReadInt32()
	if v < math.MinInt16 || v > math.MaxInt16 {
		r.fail(OverflowErrorf("value %d does not fit int16", v))
		return 0
	}
	return int16(v)
}

// ReadUInt16 reads a uint32-compatible field and checks the uint16 range.
func (r *Reader) ReadUInt16() uint16 {
	v := r.ReadUInt32()
	if v > math.MaxUint16 {
		r.fail(OverflowErrorf("value %d does not fit uint16", v))
		return 0
	}
	return uint16(v)
}

// ReadSByte reads an int32-compatible field and checks the int8 range.
func (r *Reader) ReadSByte() int8 {
	v := r.ReadInt32()
	if v < math.MinInt8 || v > math.MaxInt8 {
		r.fail(OverflowErrorf("value %d does not fit int8", v))
		return 0
	}
	return int8(v)
}

// ReadByte reads a uint32-compatible field and checks the uint8 range.
func (r *Reader) ReadByte() uint8 {
	v := r.ReadUInt32()
	if v > math.MaxUint8 {
		r.fail(OverflowErrorf("value %d does not fit uint8", v))
		return 0
	}
	return uint8(v)
}

// ReadBool reads a field holding exactly 0 or 1.
func (r *Reader) ReadBool() bool {
	switch v := r.ReadUInt32(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail(OverflowErrorf("unexpected boolean value %d", v))
		return false
	}
}

// ReadFloat32 reads a Fixed32 field, or a Fixed64 field that fits float32.
func (r *Reader) ReadFloat32() float32 {
	if r.err.HasError() {
		return 0
	}
	var v float32
	switch r.wireType {
	case WireTypeFixed32:
		v = math.Float32frombits(r.readFixed32())
	case WireTypeFixed64:
		d := math.Float64frombits(r.readFixed64())
		if !math.IsInf(d, 0) && !math.IsNaN(d) && math.Abs(d) > math.MaxFloat32 {
			r.fail(OverflowErrorf("value %g does not fit float32", d))
			return 0
		}
		v = float32(d)
	default:
		r.fail(WireTypeMismatchError("float32", r.wireType))
		return 0
	}
	r.consumed()
	return v
}

// ReadFloat64 reads a Fixed64 or Fixed32 field as float64.
func (r *Reader) ReadFloat64() float64 {
	if r.err.HasError() {
		return 0
	}
	var v float64
	switch r.wireType {
	case WireTypeFixed32:
		v = float64(math.Float32frombits(r.readFixed32()))
	case WireTypeFixed64:
		v = math.Float64frombits(r.readFixed64())
	default:
		r.fail(WireTypeMismatchError("float64", r.wireType))
		return 0
	}
	r.consumed()
	return v
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() string {
	if r.err.HasError() {
		return ""
	}
	if r.wireType != WireTypeString {
		r.fail(WireTypeMismatchError("string", r.wireType))
		return ""
	}
	n := r.readLength()
	if r.err.HasError() {
		return ""
	}
	r.consumed()
	if n == 0 {
		return ""
	}
	var b []byte
	if r.cur.remaining() >= n || (n <= r.config.BufferSize && r.ensure(n) >= n) {
		b = r.cur.unread()[:n]
		r.cur.advance(n)
	} else {
		r.scratch = r.appendRaw(r.scratch[:0], n)
		if r.err.HasError() {
			return ""
		}
		b = r.scratch
	}
	if r.interner != nil && r.config.InternStrings {
		return r.interner.intern(b)
	}
	return string(b)
}

// ReadBytes reads a length-prefixed byte blob into a new slice.
func (r *Reader) ReadBytes() []byte {
	if r.err.HasError() {
		return nil
	}
	b := r.AppendBytes(nil)
	if b == nil && r.err.Ok() {
		// present but empty
		return []byte{}
	}
	return b
}

// AppendBytes appends a length-prefixed byte blob to dst.
func (r *Reader) AppendBytes(dst []byte) []byte {
	if r.err.HasError() {
		return dst
	}
	if r.wireType != WireTypeString {
		r.fail(WireTypeMismatchError("bytes", r.wireType))
		return dst
	}
	n := r.readLength()
	if r.err.HasError() {
		return dst
	}
	r.consumed()
	return r.appendRaw(dst, n)
}

// StartSubItem opens the current StartGroup, String or Fixed32-prefixed
// field as a sub-item. Fields are then read until ReadFieldHeader returns 0,
// and the sub-item is closed with EndSubItem.
func (r *Reader) StartSubItem() SubItemToken {
	if r.err.HasError() {
		return SubItemToken{}
	}
	if r.config.MaxDepth > 0 && r.depth >= r.config.MaxDepth {
		r.fail(MaxDepthExceededError(r.config.MaxDepth))
		return SubItemToken{}
	}
	switch r.wireType {
	case WireTypeStartGroup:
		r.consumed()
		r.depth++
		return SubItemToken{value: -int64(r.fieldNumber)}
	case WireTypeString, WireTypeFixed32:
		var n int64
		if r.wireType == WireTypeString {
			n = int64(r.readLength())
		} else {
			n = int64(r.readFixed32())
			if n > math.MaxInt32 {
				r.fail(OverflowErrorf("length %d exceeds the 2 GiB limit", n))
			}
		}
		if r.err.HasError() {
			return SubItemToken{}
		}
		end := r.Position() + n
		if end > r.blockEnd {
			r.fail(FramingError("sub-item extends beyond its parent", r.blockEnd, end))
			return SubItemToken{}
		}
		tok := SubItemToken{value: r.blockEnd}
		r.blockEnd = end
		r.consumed()
		r.depth++
		return tok
	default:
		r.fail(WireTypeMismatchError("sub-item", r.wireType))
		return SubItemToken{}
	}
}

// EndSubItem closes the sub-item opened by the StartSubItem that returned
// tok. A length-prefixed sub-item must have been consumed exactly to its
// boundary; a group must have ended with its own EndGroup.
func (r *Reader) EndSubItem(tok SubItemToken) {
	if r.err.HasError() {
		return
	}
	if r.depth <= 0 {
		r.fail(InvalidStateErrorf("no sub-item is open"))
		return
	}
	if tok.value < 0 {
		field := int(-tok.value)
		if r.wireType != WireTypeEndGroup {
			r.fail(FramingError("group was not terminated by an end-group", 0, 0))
			return
		}
		if r.fieldNumber != field {
			r.fail(FramingError("end-group field number does not match its group", int64(field), int64(r.fieldNumber)))
			return
		}
		r.consumed()
		r.depth--
		return
	}
	if r.wireType == WireTypeEndGroup {
		r.fail(FramingError("unexpected end-group inside a length-prefixed sub-item", 0, 0))
		return
	}
	switch pos := r.Position(); {
	case pos < r.blockEnd:
		r.fail(FramingError("sub-item not read entirely", r.blockEnd, pos))
		return
	case pos > r.blockEnd:
		r.fail(FramingError("sub-item read beyond its end", r.blockEnd, pos))
		return
	}
	r.blockEnd = tok.value
	r.consumed()
	r.depth--
}
