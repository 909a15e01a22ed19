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

// segmentScratch holds primitives that straddle segment boundaries; it must
// fit the longest varint.
const segmentScratch = 16

// segmentSource reads from a sequence of non-contiguous segments. The
// reader's window is a segment tail, or the scratch copy when a primitive
// straddles two or more segments.
type segmentSource struct {
	segments [][]byte
	index    int   // segment containing the current position
	start    int64 // absolute position of segments[index][0]
	scratch  [segmentScratch]byte
}

func newSegmentSource() source {
	return &segmentSource{}
}

func (s *segmentSource) fill(r *Reader, n int) int {
	pos := r.Position()
	for s.index < len(s.segments) && pos >= s.start+int64(len(s.segments[s.index])) {
		s.start += int64(len(s.segments[s.index]))
		s.index++
	}
	r.base = pos
	if s.index >= len(s.segments) {
		r.cur.reset(nil)
		return 0
	}
	tail := s.segments[s.index][pos-s.start:]
	if len(tail) >= n || n > segmentScratch || s.index == len(s.segments)-1 {
		r.cur.reset(tail)
		return len(tail)
	}
	k := copy(s.scratch[:], tail)
	for i := s.index + 1; i < len(s.segments) && k < segmentScratch; i++ {
		k += copy(s.scratch[k:], s.segments[i])
	}
	r.cur.reset(s.scratch[:k])
	return k
}

func (s *segmentSource) release(r *Reader) {
	clear(s.segments)
	s.segments = s.segments[:0]
	s.index = 0
	s.start = 0
}

// NewSegmentReader returns a Reader over the concatenation of segments.
// Empty segments are allowed.
func NewSegmentReader(segments [][]byte, opts ...Option) *Reader {
	r := acquireReader(readerSegments, newSegmentSource)
	r.init(buildConfig(opts))
	s := r.src.(*segmentSource)
	s.segments = append(s.segments[:0], segments...)
	s.index = 0
	s.start = 0
	s.fill(r, 1)
	return r
}
