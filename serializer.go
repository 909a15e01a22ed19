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
	"reflect"
	"sync"
)

// Serializer writes and reads values of type T as the fields of a message.
// Write emits fields only; framing is done by the caller. Read consumes
// fields until ReadFieldHeader returns 0 and returns the merged value;
// existing is the value to merge into, or the zero value.
type Serializer[T any] interface {
	Write(w *Writer, value T)
	Read(r *Reader, existing T) T
}

// SerializerFuncs adapts a pair of functions to Serializer.
type SerializerFuncs[T any] struct {
	WriteFunc func(w *Writer, value T)
	ReadFunc  func(r *Reader, existing T) T
}

// Write implements Serializer.
func (f SerializerFuncs[T]) Write(w *Writer, value T) {
	f.WriteFunc(w, value)
}

// Read implements Serializer.
func (f SerializerFuncs[T]) Read(r *Reader, existing T) T {
	return f.ReadFunc(r, existing)
}

// WriteSubItem writes value as the sub-item of the pending StartGroup,
// String or Fixed32 header. On backends that cannot backfill lengths the
// payload is measured first, and the measured length of value is reused
// for the rest of the write.
func WriteSubItem[T any](w *Writer, value T, s Serializer[T]) {
	w.writeSubItem(value, func(w *Writer) {
		s.Write(w, value)
	})
}

// WriteMessage writes value as a length-prefixed sub-message in field.
func WriteMessage[T any](w *Writer, field int, value T, s Serializer[T]) {
	w.WriteFieldHeader(field, WireTypeString)
	WriteSubItem(w, value, s)
}

// WriteGroup writes value as a group in field.
func WriteGroup[T any](w *Writer, field int, value T, s Serializer[T]) {
	w.WriteFieldHeader(field, WireTypeStartGroup)
	WriteSubItem(w, value, s)
}

// ReadMessage reads the current sub-item field (group or length-prefixed)
// and merges it into existing.
func ReadMessage[T any](r *Reader, existing T, s Serializer[T]) T {
	tok := r.StartSubItem()
	if r.err.HasError() {
		return existing
	}
	v := s.Read(r, existing)
	r.EndSubItem(tok)
	return v
}

// Registry maps Go types to their serializers.
type Registry struct {
	mu          sync.RWMutex
	serializers map[reflect.Type]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{serializers: make(map[reflect.Type]any)}
}

// Register records s as the serializer for T, replacing any previous one.
func Register[T any](reg *Registry, s Serializer[T]) {
	reg.mu.Lock()
	reg.serializers[reflect.TypeOf((*T)(nil)).Elem()] = s
	reg.mu.Unlock()
}

// Lookup returns the serializer registered for T.
func Lookup[T any](reg *Registry) (Serializer[T], bool) {
	reg.mu.RLock()
	s, ok := reg.serializers[reflect.TypeOf((*T)(nil)).Elem()]
	reg.mu.RUnlock()
	if !ok {
		return nil, false
	}
	ts, ok := s.(Serializer[T])
	return ts, ok
}
