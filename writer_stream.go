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

import "io"

// streamTarget buffers into a pooled buffer and writes it to an io.Writer.
// While a length-prefixed sub-item is open the buffer grows instead of
// being flushed, so the prefix can still be backfilled.
type streamTarget struct {
	dst       io.Writer
	flushLock int
}

func newStreamTarget() target {
	return &streamTarget{}
}

func (s *streamTarget) demand(w *Writer, n int) {
	if w.cur.remaining() >= n {
		return
	}
	if s.flushLock == 0 {
		s.flushBuffer(w)
		if w.cur.remaining() >= n || w.err.HasError() {
			return
		}
	}
	w.cur.window = ResizeBuffer(w.cur.window, w.cur.offset+n, 0, w.cur.offset)
}

func (s *streamTarget) flushBuffer(w *Writer) {
	if w.cur.offset == 0 {
		return
	}
	if _, err := s.dst.Write(w.cur.window[:w.cur.offset]); err != nil {
		w.fail(IOError("write", err))
		return
	}
	w.base += int64(w.cur.offset)
	w.cur.offset = 0
}

func (s *streamTarget) canBackfill() bool {
	return true
}

func (s *streamTarget) startLength(w *Writer, style PrefixStyle) int64 {
	s.flushLock++
	return reserveLength(w, style)
}

func (s *streamTarget) endLength(w *Writer, pos int64, style PrefixStyle) {
	backfillLength(w, pos, style)
	s.flushLock--
}

func (s *streamTarget) flush(w *Writer) {
	s.flushBuffer(w)
	if f, ok := s.dst.(interface{ Flush() error }); ok && w.err.Ok() {
		if err := f.Flush(); err != nil {
			w.fail(IOError("flush", err))
		}
	}
}

func (s *streamTarget) release(w *Writer) {
	ReturnBuffer(w.cur.window)
	s.dst = nil
	s.flushLock = 0
}

// NewStreamWriter returns a Writer that writes to dst. Output is buffered
// until Close.
func NewStreamWriter(dst io.Writer, opts ...Option) *Writer {
	return newStreamWriter(dst, buildConfig(opts))
}

func newStreamWriter(dst io.Writer, cfg Config) *Writer {
	w := acquireWriter(writerStream, newStreamTarget)
	w.init(cfg)
	w.dst.(*streamTarget).dst = dst
	w.cur.reset(RentBuffer(cfg.BufferSize))
	return w
}
