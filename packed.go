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

// Packed repeated fields are one String field holding the values back to
// back, without tags. Writers compute the payload length up front, so packed
// runs need no backfill on any backend.

func packedSize[T any](w *Writer, values []T, wt WireType, varintSize func(T, WireType) int) (int, bool) {
	switch wt {
	case WireTypeFixed32:
		return 4 * len(values), true
	case WireTypeFixed64:
		return 8 * len(values), true
	case WireTypeVarint, WireTypeSignedVarint:
		n := 0
		for _, v := range values {
			n += varintSize(v, wt)
		}
		return n, true
	default:
		w.fail(InvalidFieldErrorf("wire type %s cannot be packed", wt))
		return 0, false
	}
}

func writePacked[T any](w *Writer, field int, values []T, wt WireType, varintSize func(T, WireType) int, write func(*Writer, T)) {
	if w.err.HasError() || len(values) == 0 {
		return
	}
	n, ok := packedSize(w, values, wt, varintSize)
	if !ok {
		return
	}
	w.WriteFieldHeader(field, WireTypeString)
	if w.err.HasError() {
		return
	}
	w.writeVaruint64(uint64(n))
	for _, v := range values {
		w.wireType = wt
		write(w, v)
		if w.err.HasError() {
			return
		}
	}
	w.written()
}

func int32Size(v int32, wt WireType) int {
	if wt == WireTypeSignedVarint {
		return SizeVaruint32(EncodeZigZag32(v))
	}
	if v < 0 {
		return MaxVarintLen64
	}
	return SizeVaruint32(uint32(v))
}

func int64Size(v int64, wt WireType) int {
	if wt == WireTypeSignedVarint {
		return SizeVaruint64(EncodeZigZag64(v))
	}
	return SizeVaruint64(uint64(v))
}

func uint32Size(v uint32, _ WireType) int { return SizeVaruint32(v) }
func uint64Size(v uint64, _ WireType) int { return SizeVaruint64(v) }
func boolSize(bool, WireType) int         { return 1 }
func float32Size(float32, WireType) int   { return 0 }
func float64Size(float64, WireType) int   { return 0 }

// WritePackedInt32s writes values as one packed field; nothing is written
// for an empty slice.
func (w *Writer) WritePackedInt32s(field int, values []int32, wt WireType) {
	writePacked(w, field, values, wt, int32Size, (*Writer).WriteInt32)
}

// WritePackedInt64s writes values as one packed field.
func (w *Writer) WritePackedInt64s(field int, values []int64, wt WireType) {
	writePacked(w, field, values, wt, int64Size, (*Writer).WriteInt64)
}

// WritePackedUInt32s writes values as one packed field.
func (w *Writer) WritePackedUInt32s(field int, values []uint32, wt WireType) {
	writePacked(w, field, values, wt, uint32Size, (*Writer).WriteUInt32)
}

// WritePackedUInt64s writes values as one packed field.
func (w *Writer) WritePackedUInt64s(field int, values []uint64, wt WireType) {
	writePacked(w, field, values, wt, uint64Size, (*Writer).WriteUInt64)
}

// WritePackedBools writes values as one packed Varint field.
func (w *Writer) WritePackedBools(field int, values []bool) {
	writePacked(w, field, values, WireTypeVarint, boolSize, (*Writer).WriteBool)
}

// WritePackedFloat32s writes values as one packed Fixed32 field.
func (w *Writer) WritePackedFloat32s(field int, values []float32) {
	writePacked(w, field, values, WireTypeFixed32, float32Size, (*Writer).WriteFloat32)
}

// WritePackedFloat64s writes values as one packed Fixed64 field.
func (w *Writer) WritePackedFloat64s(field int, values []float64) {
	writePacked(w, field, values, WireTypeFixed64, float64Size, (*Writer).WriteFloat64)
}

// readRepeated reads one occurrence of a repeated scalar field, which may be
// a single value or a packed run, and appends to dst.
func readRepeated[T any](r *Reader, dst []T, elem WireType, read func(*Reader) T) []T {
	if r.err.HasError() {
		return dst
	}
	if r.wireType != WireTypeString {
		r.Hint(elem)
		return append(dst, read(r))
	}
	tok := r.StartSubItem()
	for r.err.Ok() && r.Position() < r.blockEnd {
		r.wireType = elem
		v := read(r)
		if r.err.HasError() {
			break
		}
		dst = append(dst, v)
	}
	r.EndSubItem(tok)
	return dst
}

// ReadPackedInt32s appends the current field's values to dst. The field may
// be packed, or a single value with wire type elem.
func (r *Reader) ReadPackedInt32s(dst []int32, elem WireType) []int32 {
	return readRepeated(r, dst, elem, (*Reader).ReadInt32)
}

// ReadPackedInt64s appends the current field's values to dst.
func (r *Reader) ReadPackedInt64s(dst []int64, elem WireType) []int64 {
	return readRepeated(r, dst, elem, (*Reader).ReadInt64)
}

// ReadPackedUInt32s appends the current field's values to dst.
func (r *Reader) ReadPackedUInt32s(dst []uint32, elem WireType) []uint32 {
	return readRepeated(r, dst, elem, (*Reader).ReadUInt32)
}

// ReadPackedUInt64s appends the current field's values to dst.
func (r *Reader) ReadPackedUInt64s(dst []uint64, elem WireType) []uint64 {
	return readRepeated(r, dst, elem, (*Reader).ReadUInt64)
}

// ReadPackedBools appends the current field's values to dst.
func (r *Reader) ReadPackedBools(dst []bool) []bool {
	return readRepeated(r, dst, WireTypeVarint, (*Reader).ReadBool)
}

// ReadPackedFloat32s appends the current field's values to dst.
func (r *Reader) ReadPackedFloat32s(dst []float32) []float32 {
	return readRepeated(r, dst, WireTypeFixed32, (*Reader).ReadFloat32)
}

// ReadPackedFloat64s appends the current field's values to dst.
func (r *Reader) ReadPackedFloat64s(dst []float64) []float64 {
	return readRepeated(r, dst, WireTypeFixed64, (*Reader).ReadFloat64)
}
