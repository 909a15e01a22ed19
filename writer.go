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
)

// target receives the bytes produced by a Writer.
type target interface {
	// demand makes at least n bytes writable at the cursor, or records an
	// error on w.
	demand(w *Writer, n int)
	// canBackfill reports whether length prefixes can be reserved and
	// written after their payload.
	canBackfill() bool
	// startLength reserves room for a length prefix and returns the
	// absolute position of the reservation.
	startLength(w *Writer, style PrefixStyle) int64
	// endLength writes the length of the payload that followed the
	// reservation at pos.
	endLength(w *Writer, pos int64, style PrefixStyle)
	flush(w *Writer)
	release(w *Writer)
}

type writerKind uint8

const (
	writerMemory writerKind = iota
	writerStream
	writerSink
	writerNull
	writerKindCount
)

// rawChunk bounds the bytes demanded at once when copying blobs.
const rawChunk = DefaultBufferSize

type openItem struct {
	token    SubItemToken
	instance any
	start    int64 // payload start
}

type recursionEntry struct {
	key objectKey
	ok  bool
}

// Writer encodes the protobuf wire format into one backend.
//
// Every value is preceded by WriteFieldHeader, which fixes the wire type the
// value is encoded with:
//
//	w.WriteFieldHeader(1, pbwire.WireTypeVarint)
//	w.WriteInt32(150)
//
// Errors are accumulated: the first failure is kept, later operations do
// nothing, and Close reports the failure. Writer is not safe for concurrent use.
type Writer struct {
	cur         cursor
	base        int64 // absolute position of cur.window[0]
	dst         target
	kind        writerKind
	fieldNumber int
	wireType    WireType // wire type of the header awaiting its value
	packedField int
	depth       int
	open        []openItem
	recursion   []recursionEntry
	cache       *ObjectCache
	ownsCache   bool
	config      Config
	err         Error
}

func (w *Writer) init(cfg Config) {
	w.cur.reset(nil)
	w.base = 0
	w.fieldNumber = 0
	w.wireType = WireTypeNone
	w.packedField = 0
	w.depth = 0
	w.open = w.open[:0]
	w.recursion = w.recursion[:0]
	w.config = cfg
	w.err = Error{}
}

// Dispose releases pooled buffers and recycles the Writer. The Writer must
// not be used afterwards.
func (w *Writer) Dispose() {
	if w == nil || w.dst == nil {
		return
	}
	w.dst.release(w)
	w.cur.reset(nil)
	if w.ownsCache && w.cache != nil {
		w.cache.Clear()
	} else {
		w.cache = nil
		w.ownsCache = false
	}
	clear(w.open)
	w.open = w.open[:0]
	w.recursion = w.recursion[:0]
	releaseWriter(w)
}

// Close checks that every sub-item was ended and every header received its
// value, flushes the backend, and returns the first error.
func (w *Writer) Close() error {
	if w.err.Ok() {
		switch {
		case len(w.open) > 0 || w.depth != 0:
			w.fail(InvalidStateErrorf("%d sub-item(s) still open", max(len(w.open), w.depth)))
		case w.wireType != WireTypeNone:
			w.fail(InvalidStateErrorf("field %d has no value", w.fieldNumber))
		case w.packedField != 0:
			w.fail(InvalidStateErrorf("packed field %d was not cleared", w.packedField))
		}
	}
	if w.err.Ok() {
		w.dst.flush(w)
	}
	return w.err.CheckError()
}

// Position returns the absolute number of bytes written.
func (w *Writer) Position() int64 {
	return w.base + int64(w.cur.offset)
}

// Depth returns the number of open sub-items.
func (w *Writer) Depth() int {
	return w.depth
}

// HasError returns true if an error has occurred
func (w *Writer) HasError() bool {
	return w.err.HasError()
}

// Err returns the first error that occurred, or nil.
func (w *Writer) Err() error {
	return w.err.CheckError()
}

func (w *Writer) fail(e Error) {
	if w.err.Ok() {
		w.err = e.withContext(w.fieldNumber, w.wireType, w.Position(), w.depth)
	}
}

func (w *Writer) objectCache() *ObjectCache {
	if w.cache == nil {
		w.cache = NewObjectCache()
		w.ownsCache = true
	}
	return w.cache
}

// useCache makes w use c, which the caller keeps owning.
func (w *Writer) useCache(c *ObjectCache) {
	w.cache = c
	w.ownsCache = false
}

// reserve returns n writable bytes at the cursor, or nil after a failure.
func (w *Writer) reserve(n int) []byte {
	if w.cur.remaining() < n {
		w.dst.demand(w, n)
		if w.cur.remaining() < n {
			if w.err.Ok() {
				w.fail(InvalidStateErrorf("backend provided %d bytes, need %d", w.cur.remaining(), n))
			}
			return nil
		}
	}
	return w.cur.unread()[:n]
}

func (w *Writer) writeVaruint64(v uint64) {
	if w.cur.remaining() >= MaxVarintLen64 {
		w.cur.advance(PutVaruint64(w.cur.unread(), v))
		return
	}
	n := SizeVaruint64(v)
	if b := w.reserve(n); b != nil {
		PutVaruint64(b, v)
		w.cur.advance(n)
	}
}

func (w *Writer) writeVaruint32(v uint32) {
	if w.cur.remaining() >= MaxVarintLen32 {
		w.cur.advance(PutVaruint32(w.cur.unread(), v))
		return
	}
	n := SizeVaruint32(v)
	if b := w.reserve(n); b != nil {
		PutVaruint32(b, v)
		w.cur.advance(n)
	}
}

func (w *Writer) writeFixed32(v uint32) {
	if b := w.reserve(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
		w.cur.advance(4)
	}
}

func (w *Writer) writeFixed64(v uint64) {
	if b := w.reserve(8); b != nil {
		binary.LittleEndian.PutUint64(b, v)
		w.cur.advance(8)
	}
}

func (w *Writer) writeRaw(p []byte) {
	for len(p) > 0 && w.err.Ok() {
		if w.cur.remaining() == 0 {
			if w.reserve(min(len(p), rawChunk)) == nil {
				return
			}
		}
		k := copy(w.cur.unread(), p)
		w.cur.advance(k)
		p = p[k:]
	}
}

func (w *Writer) writeLengthPrefix(n int64, style PrefixStyle) {
	switch style {
	case PrefixFixed32:
		w.writeFixed32(uint32(n))
	case PrefixFixed32BigEndian:
		if b := w.reserve(4); b != nil {
			binary.BigEndian.PutUint32(b, uint32(n))
			w.cur.advance(4)
		}
	default:
		w.writeVaruint64(uint64(n))
	}
}

// WriteFieldHeader writes the tag of the next field. Exactly one value
// must follow. While a packed field is active the tag is suppressed.
func (w *Writer) WriteFieldHeader(field int, wt WireType) {
	if w.err.HasError() {
		return
	}
	if w.wireType != WireTypeNone {
		w.fail(InvalidStateErrorf("cannot write a field header until the %s value for field %d has been written", w.wireType, w.fieldNumber))
		return
	}
	if field < 1 || field > MaxFieldNumber {
		w.fail(InvalidFieldErrorf("invalid field number %d", field))
		return
	}
	switch wt {
	case WireTypeVarint, WireTypeSignedVarint, WireTypeFixed32, WireTypeFixed64, WireTypeString, WireTypeStartGroup:
	default:
		w.fail(InvalidFieldErrorf("invalid wire type %s for a field header", wt))
		return
	}
	if w.packedField != 0 {
		if field != w.packedField {
			w.fail(PackedFieldError(w.packedField, field))
			return
		}
		switch wt {
		case WireTypeVarint, WireTypeSignedVarint, WireTypeFixed32, WireTypeFixed64:
		default:
			w.fail(InvalidFieldErrorf("wire type %s cannot be packed", wt))
			return
		}
		w.fieldNumber = field
		w.wireType = wt
		return
	}
	w.fieldNumber = field
	w.wireType = wt
	w.writeVaruint32(MakeTag(field, wt))
}

// SetPackedField starts a packed run of field inside an open String
// sub-item: later headers for field write no tag.
func (w *Writer) SetPackedField(field int) {
	if w.err.HasError() {
		return
	}
	if field < 1 || field > MaxFieldNumber {
		w.fail(InvalidFieldErrorf("invalid field number %d", field))
		return
	}
	if w.packedField != 0 && w.packedField != field {
		w.fail(PackedFieldError(w.packedField, field))
		return
	}
	w.packedField = field
}

// ClearPackedField ends the packed run of field.
func (w *Writer) ClearPackedField(field int) {
	if w.err.HasError() {
		return
	}
	if field != w.packedField {
		w.fail(PackedFieldError(w.packedField, field))
		return
	}
	w.packedField = 0
}

func (w *Writer) written() {
	w.wireType = WireTypeNone
}

// WriteUInt64 writes v as Varint, Fixed64, or Fixed32 when it fits.
func (w *Writer) WriteUInt64(v uint64) {
	if w.err.HasError() {
		return
	}
	switch w.wireType {
	case WireTypeVarint:
		w.writeVaruint64(v)
	case WireTypeFixed64:
		w.writeFixed64(v)
	case WireTypeFixed32:
		if v > math.MaxUint32 {
			w.fail(OverflowErrorf("value %d does not fit fixed32", v))
			return
		}
		w.writeFixed32(uint32(v))
	default:
		w.fail(WireTypeMismatchError("uint64", w.wireType))
		return
	}
	w.written()
}

// WriteInt64 writes v as Varint, SignedVarint, Fixed64, or Fixed32 when it fits.
func (w *Writer) WriteInt64(v int64) {
	if w.err.HasError() {
		return
	}
	switch w.wireType {
	case WireTypeVarint:
		w.writeVaruint64(uint64(v))
	case WireTypeSignedVarint:
		w.writeVaruint64(EncodeZigZag64(v))
	case WireTypeFixed64:
		w.writeFixed64(uint64(v))
	case WireTypeFixed32:
		if v < math.MinInt32 || v > math.MaxInt32 {
			w.fail(OverflowErrorf("value %d does not fit fixed32", v))
			return
		}
		w.writeFixed32(uint32(int32(v)))
	default:
		w.fail(WireTypeMismatchError("int64", w.wireType))
		return
	}
	w.written()
}

// WriteUInt32 writes v as Varint, Fixed32 or Fixed64.
func (w *Writer) WriteUInt32(v uint32) {
	if w.err.HasError() {
		return
	}
	switch w.wireType {
	case WireTypeVarint:
		w.writeVaruint32(v)
	case WireTypeFixed32:
		w.writeFixed32(v)
	case WireTypeFixed64:
		w.writeFixed64(uint64(v))
	default:
		w.fail(WireTypeMismatchError("uint32", w.wireType))
		return
	}
	w.written()
}

// WriteInt32 writes v as Varint, SignedVarint, Fixed32 or Fixed64. Negative
// values on Varint are sign-extended to 10 bytes.
func (w *Writer) WriteInt32(v int32) {
	if w.err.HasError() {
		return
	}
	switch w.wireType {
	case WireTypeVarint:
		if v >= 0 {
			w.writeVaruint32(uint32(v))
		} else {
			w.writeVaruint64(uint64(int64(v)))
		}
	case WireTypeSignedVarint:
		w.writeVaruint32(EncodeZigZag32(v))
	case WireTypeFixed32:
		w.writeFixed32(uint32(v))
	case WireTypeFixed64:
		w.writeFixed64(uint64(int64(v)))
	default:
		w.fail(WireTypeMismatchError("int32", w.wireType))
		return
	}
	w.written()
}

// WriteInt16 writes v like WriteInt32.
func (w *Writer) WriteInt16(v int16) {
	w.WriteInt32(int32(v))
}

// WriteUInt16 writes v like WriteUInt32.
func (w *Writer) WriteUInt16(v uint16) {
	w.WriteUInt32(uint32(v))
}

// WriteSByte writes v like WriteInt32.
func (w *Writer) WriteSByte(v int8) {
	w.WriteInt32(int32(v))
}

// WriteByte writes v like WriteUInt32.
func (w *Writer) WriteByte(v uint8) {
	w.WriteUInt32(uint32(v))
}

// WriteBool writes 1 or 0.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUInt32(1)
	} else {
		w.WriteUInt32(0)
	}
}

// WriteFloat32 writes v as Fixed32 or Fixed64.
func (w *Writer) WriteFloat32(v float32) {
	if w.err.HasError() {
		return
	}
	switch w.wireType {
	case WireTypeFixed32:
		w.writeFixed32(math.Float32bits(v))
	case WireTypeFixed64:
		w.writeFixed64(math.Float64bits(float64(v)))
	default:
		w.fail(WireTypeMismatchError("float32", w.wireType))
		return
	}
	w.written()
}

// WriteFloat64 writes v as Fixed64, or Fixed32 when it fits float32.
func (w *Writer) WriteFloat64(v float64) {
	if w.err.HasError() {
		return
	}
	switch w.wireType {
	case WireTypeFixed64:
		w.writeFixed64(math.Float64bits(v))
	case WireTypeFixed32:
		if !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) > math.MaxFloat32 {
			w.fail(OverflowErrorf("value %g does not fit float32", v))
			return
		}
		w.writeFixed32(math.Float32bits(float32(v)))
	default:
		w.fail(WireTypeMismatchError("float64", w.wireType))
		return
	}
	w.written()
}

// WriteString writes s as a length-prefixed String field.
func (w *Writer) WriteString(s string) {
	if w.err.HasError() {
		return
	}
	if w.wireType != WireTypeString {
		w.fail(WireTypeMismatchError("string", w.wireType))
		return
	}
	if len(s) > math.MaxInt32 {
		w.fail(OverflowErrorf("string of %d bytes exceeds the 2 GiB limit", len(s)))
		return
	}
	w.writeVaruint32(uint32(len(s)))
	for len(s) > 0 && w.err.Ok() {
		if w.cur.remaining() == 0 && w.reserve(min(len(s), rawChunk)) == nil {
			return
		}
		k := copy(w.cur.unread(), s)
		w.cur.advance(k)
		s = s[k:]
	}
	w.written()
}

// WriteBytes writes b as a length-prefixed String field.
func (w *Writer) WriteBytes(b []byte) {
	if w.err.HasError() {
		return
	}
	if w.wireType != WireTypeString {
		w.fail(WireTypeMismatchError("bytes", w.wireType))
		return
	}
	if len(b) > math.MaxInt32 {
		w.fail(OverflowErrorf("blob of %d bytes exceeds the 2 GiB limit", len(b)))
		return
	}
	w.writeVaruint32(uint32(len(b)))
	w.writeRaw(b)
	w.written()
}

// StartSubItem opens a sub-item for the pending StartGroup, String or
// Fixed32 header. instance identifies the object being written, for cycle
// detection and the length cache; it may be nil. Backends that cannot
// backfill lengths reject String and Fixed32 here; use WriteSubItem.
func (w *Writer) StartSubItem(instance any) SubItemToken {
	if w.err.HasError() {
		return SubItemToken{}
	}
	var tok SubItemToken
	switch w.wireType {
	case WireTypeStartGroup:
		tok = SubItemToken{value: -int64(w.fieldNumber)}
	case WireTypeString, WireTypeFixed32:
		if !w.dst.canBackfill() {
			w.fail(InvalidStateErrorf("this writer cannot backfill lengths; use WriteSubItem"))
			return SubItemToken{}
		}
		style := PrefixBase128
		if w.wireType == WireTypeFixed32 {
			style = PrefixFixed32
		}
		tok = SubItemToken{value: w.dst.startLength(w, style), style: style}
	default:
		w.fail(WireTypeMismatchError("sub-item", w.wireType))
		return SubItemToken{}
	}
	w.written()
	w.pushRecursion(instance)
	w.open = append(w.open, openItem{token: tok, instance: instance, start: w.Position()})
	return tok
}

// startPrefixed opens a length-prefixed sub-item with an explicit prefix
// style, without a field header.
func (w *Writer) startPrefixed(instance any, style PrefixStyle) SubItemToken {
	if w.err.HasError() {
		return SubItemToken{}
	}
	if !w.dst.canBackfill() {
		w.fail(InvalidStateErrorf("this writer cannot backfill lengths"))
		return SubItemToken{}
	}
	tok := SubItemToken{value: w.dst.startLength(w, style), style: style}
	w.pushRecursion(instance)
	w.open = append(w.open, openItem{token: tok, instance: instance, start: w.Position()})
	return tok
}

// EndSubItem closes the sub-item opened by the StartSubItem that returned
// tok: a group gets its EndGroup tag, a length-prefixed sub-item gets its
// length.
func (w *Writer) EndSubItem(tok SubItemToken) {
	if w.err.HasError() {
		return
	}
	if len(w.open) == 0 || w.open[len(w.open)-1].token != tok {
		w.fail(InvalidStateErrorf("sub-items must be ended in the reverse order they were started"))
		return
	}
	if w.wireType != WireTypeNone {
		w.fail(InvalidStateErrorf("field %d has no value", w.fieldNumber))
		return
	}
	if w.packedField != 0 {
		w.fail(InvalidStateErrorf("packed field %d was not cleared", w.packedField))
		return
	}
	item := w.open[len(w.open)-1]
	w.open[len(w.open)-1] = openItem{}
	w.open = w.open[:len(w.open)-1]
	if tok.value < 0 {
		w.writeVaruint32(MakeTag(int(-tok.value), WireTypeEndGroup))
	} else {
		payload := w.Position() - item.start
		if payload > math.MaxInt32 {
			w.fail(OverflowErrorf("sub-item of %d bytes exceeds the 2 GiB limit", payload))
			return
		}
		if w.kind == writerNull && item.instance != nil {
			w.objectCache().SetLength(item.instance, payload)
		}
		w.dst.endLength(w, tok.value, tok.style)
	}
	w.popRecursion()
}

func (w *Writer) pushRecursion(instance any) {
	w.depth++
	if w.depth <= w.config.RecursionCheckDepth {
		return
	}
	key, ok := identityOf(instance)
	if ok {
		for i, e := range w.recursion {
			if e.ok && e.key == key {
				w.fail(RecursionError(len(w.recursion) - i))
				return
			}
		}
	}
	w.recursion = append(w.recursion, recursionEntry{key: key, ok: ok})
}

func (w *Writer) popRecursion() {
	if w.depth > w.config.RecursionCheckDepth && len(w.recursion) > 0 {
		w.recursion = w.recursion[:len(w.recursion)-1]
	}
	w.depth--
}

// writeSubItem writes the pending StartGroup, String or Fixed32 field as a
// sub-item whose payload is produced by body. Backends that cannot backfill
// measure the payload first.
func (w *Writer) writeSubItem(instance any, body func(*Writer)) {
	if w.err.HasError() {
		return
	}
	switch w.wireType {
	case WireTypeStartGroup:
	case WireTypeString, WireTypeFixed32:
		if !w.dst.canBackfill() {
			w.writeMeasured(instance, body)
			return
		}
	default:
		w.fail(WireTypeMismatchError("sub-item", w.wireType))
		return
	}
	tok := w.StartSubItem(instance)
	body(w)
	w.EndSubItem(tok)
}

// writeMeasured writes the length prefix from a measuring pass, then the
// payload, and checks the two agree.
func (w *Writer) writeMeasured(instance any, body func(*Writer)) {
	style := PrefixBase128
	if w.wireType == WireTypeFixed32 {
		style = PrefixFixed32
	}
	w.written()
	w.pushRecursion(instance)
	if w.err.HasError() {
		return
	}
	length, ok := w.objectCache().Length(instance)
	if !ok {
		length = w.measure(body)
		if w.err.HasError() {
			return
		}
		w.cache.SetLength(instance, length)
	}
	w.writeLengthPrefix(length, style)
	start := w.Position()
	body(w)
	if w.err.HasError() {
		return
	}
	if w.wireType != WireTypeNone {
		w.fail(InvalidStateErrorf("field %d has no value", w.fieldNumber))
		return
	}
	if actual := w.Position() - start; actual != length {
		w.fail(LengthMismatchError(length, actual))
		return
	}
	w.popRecursion()
}

// measure runs body against a null writer that shares the object cache's
// lengths and returns the payload size.
func (w *Writer) measure(body func(*Writer)) int64 {
	nw := newNullWriter(w.config)
	nw.useCache(w.objectCache().forMeasure())
	nw.depth = w.depth
	nw.recursion = append(nw.recursion, w.recursion...)
	body(nw)
	if nw.err.Ok() && nw.wireType != WireTypeNone {
		nw.fail(InvalidStateErrorf("field %d has no value", nw.fieldNumber))
	}
	n := nw.Position()
	if nw.err.HasError() {
		w.err.SetError(nw.err)
	}
	nw.Dispose()
	return n
}
