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
	"errors"
	"fmt"
	"io"
	"math"
)

// PrefixStyle selects how a length prefix is encoded.
type PrefixStyle uint8

const (
	// PrefixBase128 is a varint length, optionally preceded by a String field header.
	PrefixBase128 PrefixStyle = iota
	// PrefixFixed32 is a 4-byte little-endian length.
	PrefixFixed32
	// PrefixFixed32BigEndian is a 4-byte big-endian length.
	PrefixFixed32BigEndian
)

func (s PrefixStyle) String() string {
	switch s {
	case PrefixBase128:
		return "Base128"
	case PrefixFixed32:
		return "Fixed32"
	case PrefixFixed32BigEndian:
		return "Fixed32BigEndian"
	default:
		return fmt.Sprintf("PrefixStyle(%d)", uint8(s))
	}
}

// Marshal encodes value into a new slice.
func Marshal[T any](value T, s Serializer[T], opts ...Option) ([]byte, error) {
	w := NewWriter(nil, opts...)
	defer w.Dispose()
	s.Write(w, value)
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal decodes a value from data.
func Unmarshal[T any](data []byte, s Serializer[T], opts ...Option) (T, error) {
	r := NewReader(data, opts...)
	defer r.Dispose()
	return readRoot(r, s)
}

// UnmarshalSegments decodes a value from the concatenation of segments.
func UnmarshalSegments[T any](segments [][]byte, s Serializer[T], opts ...Option) (T, error) {
	r := NewSegmentReader(segments, opts...)
	defer r.Dispose()
	return readRoot(r, s)
}

// Serialize encodes value to dst.
func Serialize[T any](dst io.Writer, value T, s Serializer[T], opts ...Option) error {
	w := NewStreamWriter(dst, opts...)
	defer w.Dispose()
	s.Write(w, value)
	return w.Close()
}

// Deserialize decodes a value from src, reading until io.EOF.
func Deserialize[T any](src io.Reader, s Serializer[T], opts ...Option) (T, error) {
	r := NewStreamReader(src, -1, opts...)
	defer r.Dispose()
	return readRoot(r, s)
}

// SerializeToSink encodes value into sink. Sub-items are measured before
// they are written.
func SerializeToSink[T any](sink BufferWriter, value T, s Serializer[T], opts ...Option) error {
	w := NewSinkWriter(sink, opts...)
	defer w.Dispose()
	s.Write(w, value)
	return w.Close()
}

func readRoot[T any](r *Reader, s Serializer[T]) (T, error) {
	var zero T
	v := s.Read(r, zero)
	if r.err.Ok() && r.depth != 0 {
		r.fail(InvalidStateErrorf("%d sub-item(s) still open", r.depth))
	}
	if err := r.Err(); err != nil {
		return zero, err
	}
	return v, nil
}

// SerializeWithLengthPrefix writes value to dst as one length-prefixed
// item. With PrefixBase128 and a positive fieldNumber the prefix is
// preceded by a String field header, so a sequence of items reads as a
// repeated field. The fixed styles carry no header and ignore fieldNumber.
func SerializeWithLengthPrefix[T any](dst io.Writer, value T, s Serializer[T], style PrefixStyle, fieldNumber int, opts ...Option) error {
	w := NewStreamWriter(dst, opts...)
	defer w.Dispose()
	var tok SubItemToken
	switch style {
	case PrefixBase128:
		if fieldNumber > 0 {
			w.WriteFieldHeader(fieldNumber, WireTypeString)
			tok = w.StartSubItem(value)
		} else {
			tok = w.startPrefixed(value, style)
		}
	case PrefixFixed32, PrefixFixed32BigEndian:
		tok = w.startPrefixed(value, style)
	default:
		return InvalidFieldErrorf("invalid prefix style %s", style)
	}
	s.Write(w, value)
	w.EndSubItem(tok)
	return w.Close()
}

// DeserializeWithLengthPrefix reads the next length-prefixed item from src.
// ok is false when src is at a clean end. With PrefixBase128 and a positive
// fieldNumber, items of other fields are skipped; the fixed styles have no
// field header and ignore fieldNumber. Exactly the item's bytes are taken
// from src.
func DeserializeWithLengthPrefix[T any](src io.Reader, s Serializer[T], style PrefixStyle, fieldNumber int, opts ...Option) (value T, ok bool, err error) {
	var length int64
	filter := style == PrefixBase128 && fieldNumber > 0
	for {
		var field int
		field, length, err = ReadLengthPrefix(src, filter, style)
		if errors.Is(err, io.EOF) {
			return value, false, nil
		}
		if err != nil {
			return value, false, err
		}
		if !filter || field == fieldNumber {
			break
		}
		if _, err = io.CopyN(io.Discard, src, length); err != nil {
			return value, false, IOError("skip item", err)
		}
	}
	r := NewStreamReader(src, length, opts...)
	defer r.Dispose()
	value, err = readRoot(r, s)
	if err != nil {
		return value, false, err
	}
	// leave src at the next item even if the serializer stopped early
	if rest := length - r.Position(); rest > 0 {
		r.skipRaw(rest)
		if err = r.Err(); err != nil {
			return value, false, err
		}
	}
	return value, true, nil
}

// ReadLengthPrefix reads a length prefix from src one byte at a time, so no
// byte past the prefix is consumed. When expectHeader is set (PrefixBase128
// only) a String field header precedes the length and its field number is
// returned. io.EOF is returned when src ends before the first byte.
func ReadLengthPrefix(src io.Reader, expectHeader bool, style PrefixStyle) (fieldNumber int, length int64, err error) {
	switch style {
	case PrefixBase128:
		if expectHeader {
			tag, err := readVarintFrom(src)
			if err != nil {
				return 0, 0, err
			}
			if tag > math.MaxUint32 {
				return 0, 0, InvalidFieldErrorf("invalid field header %#x", tag)
			}
			field, wt := SplitTag(uint32(tag))
			if field == 0 {
				return 0, 0, InvalidFieldErrorf("invalid field header %#x", tag)
			}
			if wt != WireTypeString {
				return 0, 0, WireTypeMismatchError("length prefix", wt)
			}
			fieldNumber = field
		}
		v, err := readVarintFrom(src)
		if err != nil {
			if expectHeader && errors.Is(err, io.EOF) {
				err = EndOfStreamError(1)
			}
			return 0, 0, err
		}
		if v > math.MaxInt32 {
			return 0, 0, OverflowErrorf("length %d exceeds the 2 GiB limit", v)
		}
		return fieldNumber, int64(v), nil
	case PrefixFixed32, PrefixFixed32BigEndian:
		var b [4]byte
		n, err := io.ReadFull(src, b[:])
		switch {
		case n == 0 && errors.Is(err, io.EOF):
			return 0, 0, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return 0, 0, EndOfStreamError(4 - n)
		case err != nil:
			return 0, 0, IOError("read length prefix", err)
		}
		var v uint32
		if style == PrefixFixed32 {
			v = binary.LittleEndian.Uint32(b[:])
		} else {
			v = binary.BigEndian.Uint32(b[:])
		}
		if v > math.MaxInt32 {
			return 0, 0, OverflowErrorf("length %d exceeds the 2 GiB limit", v)
		}
		return 0, int64(v), nil
	default:
		return 0, 0, InvalidFieldErrorf("invalid prefix style %s", style)
	}
}

// readVarintFrom reads one varint byte by byte. It returns io.EOF only when
// src ends before the first byte.
func readVarintFrom(src io.Reader) (uint64, error) {
	var buf [MaxVarintLen64]byte
	var one [1]byte
	for i := 0; i < MaxVarintLen64; i++ {
		if _, err := io.ReadFull(src, one[:]); err != nil {
			if errors.Is(err, io.EOF) {
				if i == 0 {
					return 0, io.EOF
				}
				return 0, EndOfStreamError(1)
			}
			return 0, IOError("read length prefix", err)
		}
		buf[i] = one[0]
		if one[0] < 0x80 {
			v, n := ConsumeVaruint64(buf[:i+1])
			if n < 0 {
				return 0, varintError(n)
			}
			return v, nil
		}
	}
	return 0, VarintOverflowError()
}
