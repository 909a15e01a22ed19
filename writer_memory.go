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

const minMemoryBuffer = 256

// memoryTarget grows one contiguous slice. It is not pooled, so the slice
// stays valid after the Writer is disposed.
type memoryTarget struct{}

func newMemoryTarget() target {
	return memoryTarget{}
}

func (memoryTarget) demand(w *Writer, n int) {
	need := w.cur.offset + n
	buf := w.cur.window
	if need <= len(buf) {
		return
	}
	if need <= cap(buf) {
		w.cur.window = buf[:cap(buf)]
		return
	}
	next := make([]byte, roundUpPow2(max(need, 2*cap(buf), minMemoryBuffer)))
	copy(next, buf[:w.cur.offset])
	w.cur.window = next
}

func (memoryTarget) canBackfill() bool {
	return true
}

func (memoryTarget) startLength(w *Writer, style PrefixStyle) int64 {
	return reserveLength(w, style)
}

func (memoryTarget) endLength(w *Writer, pos int64, style PrefixStyle) {
	backfillLength(w, pos, style)
}

func (memoryTarget) flush(w *Writer) {}

func (memoryTarget) release(w *Writer) {}

// reservedLength returns the bytes reserved for a length prefix.
func reservedLength(style PrefixStyle) int {
	if style == PrefixBase128 {
		// most payloads are short; longer prefixes are made room for at the end
		return 1
	}
	return 4
}

// reserveLength writes a placeholder prefix and returns its position.
func reserveLength(w *Writer, style PrefixStyle) int64 {
	pos := w.Position()
	n := reservedLength(style)
	if b := w.reserve(n); b != nil {
		clear(b)
		w.cur.advance(n)
	}
	return pos
}

// backfillLength writes the length of the payload following the placeholder
// at pos. The placeholder must still be in the window. A base-128 length
// longer than its one-byte placeholder moves the payload up.
func backfillLength(w *Writer, pos int64, style PrefixStyle) {
	if w.err.HasError() {
		return
	}
	at := int(pos - w.base)
	reserved := reservedLength(style)
	payload := w.cur.offset - at - reserved
	if payload > math.MaxInt32 {
		w.fail(OverflowErrorf("sub-item of %d bytes exceeds the 2 GiB limit", payload))
		return
	}
	switch style {
	case PrefixFixed32:
		binary.LittleEndian.PutUint32(w.cur.window[at:], uint32(payload))
	case PrefixFixed32BigEndian:
		binary.BigEndian.PutUint32(w.cur.window[at:], uint32(payload))
	default:
		need := SizeVaruint32(uint32(payload))
		if extra := need - reserved; extra > 0 {
			if w.reserve(extra) == nil {
				return
			}
			copy(w.cur.window[at+need:], w.cur.window[at+reserved:w.cur.offset])
			w.cur.advance(extra)
		}
		PutVaruint32(w.cur.window[at:], uint32(payload))
	}
}

// NewWriter returns a Writer that appends to dst. Bytes returns the result,
// which shares dst's backing array while it has capacity.
func NewWriter(dst []byte, opts ...Option) *Writer {
	return newMemoryWriter(dst, buildConfig(opts))
}

func newMemoryWriter(dst []byte, cfg Config) *Writer {
	w := acquireWriter(writerMemory, newMemoryTarget)
	w.init(cfg)
	w.cur.window = dst[:cap(dst)]
	w.cur.offset = len(dst)
	w.base = -int64(len(dst))
	return w
}

// Bytes returns dst with everything written so far appended. It is only
// meaningful for Writers created by NewWriter.
func (w *Writer) Bytes() []byte {
	if w.kind != writerMemory {
		return nil
	}
	return w.cur.window[:w.cur.offset]
}
