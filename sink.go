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

// BufferWriter is a sink that hands out writable spans. GetSpan returns at
// least sizeHint writable bytes (at least one when sizeHint is 0), and
// Advance commits count bytes of the last span.
type BufferWriter interface {
	GetSpan(sizeHint int) []byte
	Advance(count int)
}

// ArrayBufferWriter is a BufferWriter over one growing slice.
type ArrayBufferWriter struct {
	buf     []byte
	written int
}

// NewArrayBufferWriter creates an ArrayBufferWriter with the given initial capacity.
func NewArrayBufferWriter(initialCapacity int) *ArrayBufferWriter {
	return &ArrayBufferWriter{buf: make([]byte, max(initialCapacity, 0))}
}

// GetSpan implements BufferWriter.
func (a *ArrayBufferWriter) GetSpan(sizeHint int) []byte {
	sizeHint = max(sizeHint, 1)
	if len(a.buf)-a.written < sizeHint {
		next := make([]byte, roundUpPow2(max(a.written+sizeHint, 2*len(a.buf))))
		copy(next, a.buf[:a.written])
		a.buf = next
	}
	return a.buf[a.written:]
}

// Advance implements BufferWriter.
func (a *ArrayBufferWriter) Advance(count int) {
	if count < 0 || a.written+count > len(a.buf) {
		panic("pbwire: advanced past the end of the span")
	}
	a.written += count
}

// WrittenBytes returns the committed bytes.
func (a *ArrayBufferWriter) WrittenBytes() []byte {
	return a.buf[:a.written]
}

// Reset discards the committed bytes, keeping the buffer.
func (a *ArrayBufferWriter) Reset() {
	a.written = 0
}

// SegmentedBufferWriter is a BufferWriter that never moves committed bytes:
// when the current segment is too small, a new one is started.
type SegmentedBufferWriter struct {
	segmentSize int
	sealed      [][]byte
	current     []byte
	used        int
}

// NewSegmentedBufferWriter creates a SegmentedBufferWriter whose segments
// hold at least segmentSize bytes.
func NewSegmentedBufferWriter(segmentSize int) *SegmentedBufferWriter {
	return &SegmentedBufferWriter{segmentSize: max(segmentSize, 1)}
}

// GetSpan implements BufferWriter.
func (s *SegmentedBufferWriter) GetSpan(sizeHint int) []byte {
	sizeHint = max(sizeHint, 1)
	if len(s.current)-s.used < sizeHint {
		if s.used > 0 {
			s.sealed = append(s.sealed, s.current[:s.used])
		}
		s.current = make([]byte, max(s.segmentSize, sizeHint))
		s.used = 0
	}
	return s.current[s.used:]
}

// Advance implements BufferWriter.
func (s *SegmentedBufferWriter) Advance(count int) {
	if count < 0 || s.used+count > len(s.current) {
		panic("pbwire: advanced past the end of the span")
	}
	s.used += count
}

// Segments returns the committed bytes as a sequence of segments.
func (s *SegmentedBufferWriter) Segments() [][]byte {
	out := make([][]byte, 0, len(s.sealed)+1)
	out = append(out, s.sealed...)
	if s.used > 0 {
		out = append(out, s.current[:s.used])
	}
	return out
}

// Len returns the number of committed bytes.
func (s *SegmentedBufferWriter) Len() int {
	n := s.used
	for _, seg := range s.sealed {
		n += len(seg)
	}
	return n
}
