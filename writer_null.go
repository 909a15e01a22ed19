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

const nullScratch = 256

// nullTarget discards output and only counts it. Length prefixes are
// accounted for when their sub-item ends, and payload lengths are recorded
// in the object cache for a later writing pass.
type nullTarget struct {
	scratch []byte
}

func newNullTarget() target {
	return &nullTarget{scratch: make([]byte, nullScratch)}
}

func (s *nullTarget) demand(w *Writer, n int) {
	w.base += int64(w.cur.offset)
	if len(s.scratch) < n {
		s.scratch = make([]byte, roundUpPow2(n))
	}
	w.cur.reset(s.scratch)
}

func (s *nullTarget) canBackfill() bool {
	return true
}

func (s *nullTarget) startLength(w *Writer, style PrefixStyle) int64 {
	return w.Position()
}

func (s *nullTarget) endLength(w *Writer, pos int64, style PrefixStyle) {
	payload := w.Position() - pos
	if style == PrefixBase128 {
		w.base += int64(SizeVaruint64(uint64(payload)))
	} else {
		w.base += 4
	}
}

func (s *nullTarget) flush(w *Writer) {}

func (s *nullTarget) release(w *Writer) {}

// NewNullWriter returns a Writer that only counts the bytes written to it.
// Position reports the encoded size.
func NewNullWriter(opts ...Option) *Writer {
	return newNullWriter(buildConfig(opts))
}

func newNullWriter(cfg Config) *Writer {
	w := acquireWriter(writerNull, newNullTarget)
	w.init(cfg)
	return w
}
