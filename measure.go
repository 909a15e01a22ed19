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

// MeasureState holds the encoded length of a value together with the
// sub-item lengths found while measuring it, so the value can be written
// to any backend without measuring again. The value must not change between
// Measure and the writes.
type MeasureState[T any] struct {
	value      T
	serializer Serializer[T]
	config     Config
	cache      *ObjectCache
	length     int64
}

// Measure computes the encoded length of value.
func Measure[T any](value T, s Serializer[T], opts ...Option) (*MeasureState[T], error) {
	cfg := buildConfig(opts)
	cache := NewObjectCache()
	nw := newNullWriter(cfg)
	nw.useCache(cache)
	s.Write(nw, value)
	err := nw.Close()
	length := nw.Position()
	nw.Dispose()
	if err != nil {
		return nil, err
	}
	return &MeasureState[T]{
		value:      value,
		serializer: s,
		config:     cfg,
		cache:      cache,
		length:     length,
	}, nil
}

// Length returns the encoded length in bytes.
func (m *MeasureState[T]) Length() int64 {
	return m.length
}

// replay writes the value through w and disposes w. For memory writers
// the result is stored in out.
func (m *MeasureState[T]) replay(w *Writer, out *[]byte) error {
	defer w.Dispose()
	if m.cache == nil {
		return InvalidStateErrorf("measure state was disposed")
	}
	m.cache.resetKeys()
	w.useCache(m.cache)
	start := w.Position()
	m.serializer.Write(w, m.value)
	if n := w.Position() - start; w.err.Ok() && n != m.length {
		w.fail(LengthMismatchError(m.length, n))
	}
	if err := w.Close(); err != nil {
		return err
	}
	if out != nil {
		*out = w.Bytes()
	}
	return nil
}

// WriteTo writes the value to dst.
func (m *MeasureState[T]) WriteTo(dst io.Writer) (int64, error) {
	if err := m.replay(newStreamWriter(dst, m.config), nil); err != nil {
		return 0, err
	}
	return m.length, nil
}

// AppendTo appends the encoded value to dst, growing it at most once.
func (m *MeasureState[T]) AppendTo(dst []byte) ([]byte, error) {
	if free := cap(dst) - len(dst); int64(free) < m.length {
		grown := make([]byte, len(dst), int64(len(dst))+m.length)
		copy(grown, dst)
		dst = grown
	}
	out := dst
	if err := m.replay(newMemoryWriter(dst, m.config), &out); err != nil {
		return dst, err
	}
	return out, nil
}

// SerializeToSink writes the value into sink. Sub-item lengths come from
// the measuring pass.
func (m *MeasureState[T]) SerializeToSink(sink BufferWriter) error {
	return m.replay(newSinkWriter(sink, m.config), nil)
}

// Dispose releases the measured lengths.
func (m *MeasureState[T]) Dispose() {
	if m.cache != nil {
		m.cache.Clear()
		m.cache = nil
	}
}
