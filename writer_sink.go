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

// sinkTarget writes into spans handed out by a BufferWriter. Spans are
// committed before a new one is requested, so length prefixes cannot be
// backfilled: sub-items are measured first.
type sinkTarget struct {
	sink BufferWriter
}

func newSinkTarget() target {
	return &sinkTarget{}
}

func (s *sinkTarget) commit(w *Writer) {
	if w.cur.offset > 0 {
		s.sink.Advance(w.cur.offset)
		w.base += int64(w.cur.offset)
	}
	w.cur.reset(nil)
}

func (s *sinkTarget) demand(w *Writer, n int) {
	s.commit(w)
	span := s.sink.GetSpan(n)
	if len(span) < n {
		w.fail(InvalidStateErrorf("sink returned a span of %d bytes, need %d", len(span), n))
		return
	}
	w.cur.reset(span)
}

func (s *sinkTarget) canBackfill() bool {
	return false
}

func (s *sinkTarget) startLength(w *Writer, style PrefixStyle) int64 {
	return w.Position()
}

func (s *sinkTarget) endLength(w *Writer, pos int64, style PrefixStyle) {}

func (s *sinkTarget) flush(w *Writer) {
	s.commit(w)
}

func (s *sinkTarget) release(w *Writer) {
	s.sink = nil
}

// NewSinkWriter returns a Writer that writes into sink. Sub-items written
// with WriteSubItem are measured before their payload is written.
func NewSinkWriter(sink BufferWriter, opts ...Option) *Writer {
	return newSinkWriter(sink, buildConfig(opts))
}

func newSinkWriter(sink BufferWriter, cfg Config) *Writer {
	w := acquireWriter(writerSink, newSinkTarget)
	w.init(cfg)
	w.dst.(*sinkTarget).sink = sink
	return w
}
