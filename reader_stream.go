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
	"bytes"
	"errors"
	"io"
	"math"

	"go.uber.org/zap"
)

// minStreamBuffer is the smallest buffer a stream backend works with.
const minStreamBuffer = 64

// maxEmptyReads bounds consecutive (0, nil) results from an io.Reader.
const maxEmptyReads = 100

// streamSource reads from an io.Reader through a pooled buffer that is
// compacted and grown on demand. A *bytes.Buffer input is read in place.
type streamSource struct {
	src     io.Reader
	buf     []byte
	filled  int   // bytes of buf holding data
	limit   int64 // bytes that may be taken from src, or -1
	taken   int64
	eof     bool
	aliased *bytes.Buffer
}

func newStreamSource() source {
	return &streamSource{}
}

func (s *streamSource) fill(r *Reader, n int) int {
	if s.aliased != nil || s.eof && r.cur.offset == 0 {
		return r.cur.remaining()
	}
	if off := r.cur.offset; off > 0 {
		s.filled = copy(s.buf, s.buf[off:s.filled])
		r.base += int64(off)
	}
	if n > len(s.buf) {
		s.buf = ResizeBuffer(s.buf, n, 0, s.filled)
	}
	empty := 0
	for s.filled < n && !s.eof {
		want := len(s.buf) - s.filled
		if s.limit >= 0 {
			if left := s.limit - s.taken; left < int64(want) {
				want = int(left)
			}
			if want == 0 {
				s.eof = true
				break
			}
		}
		m, err := s.src.Read(s.buf[s.filled : s.filled+want])
		s.filled += m
		s.taken += int64(m)
		switch {
		case errors.Is(err, io.EOF):
			s.eof = true
		case err != nil:
			s.eof = true
			r.fail(IOError("read", err))
		case m == 0:
			if empty++; empty >= maxEmptyReads {
				s.eof = true
				r.fail(IOError("read", io.ErrNoProgress))
			}
		default:
			empty = 0
		}
	}
	r.cur.reset(s.buf[:s.filled])
	return s.filled
}

func (s *streamSource) release(r *Reader) {
	if s.aliased != nil {
		s.aliased.Next(int(r.Position()))
		s.aliased = nil
	} else if s.buf != nil {
		ReturnBuffer(s.buf)
	}
	s.buf = nil
	s.src = nil
	s.filled = 0
	s.taken = 0
	s.eof = false
}

// NewStreamReader returns a Reader over src. A non-negative length bounds
// the message: exactly length bytes are read and the root ends there. A
// negative length reads until src reports io.EOF; the Reader may then buffer
// bytes beyond the message.
//
// A *bytes.Buffer is read in place and advanced past the consumed bytes on
// Dispose.
func NewStreamReader(src io.Reader, length int64, opts ...Option) *Reader {
	r := acquireReader(readerStream, newStreamSource)
	cfg := buildConfig(opts)
	r.init(cfg)
	s := r.src.(*streamSource)
	s.src = src
	s.limit = -1
	if length >= 0 {
		s.limit = length
		r.blockEnd = length
	}
	if b, ok := src.(*bytes.Buffer); ok {
		data := b.Bytes()
		if length >= 0 && length < int64(len(data)) {
			data = data[:length]
		}
		s.aliased = b
		r.cur.reset(data)
		if ce := Logger().Check(zap.DebugLevel, "pbwire: reading bytes.Buffer in place"); ce != nil {
			ce.Write(zap.Int("buffered", len(data)))
		}
		return r
	}
	size := cfg.BufferSize
	if length >= 0 && length < int64(size) {
		size = max(int(length), minStreamBuffer)
	}
	s.buf = RentBuffer(min(size, math.MaxInt32))
	s.buf = s.buf[:cap(s.buf)]
	r.cur.reset(s.buf[:0])
	return r
}
