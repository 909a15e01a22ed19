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

import "math"

// Fields of the wrapper written around a tracked reference.
const (
	refFieldExistingKey = 1
	refFieldNewKey      = 2
	refFieldObject      = 10
)

// WriteReference writes value as a sub-item of the pending header, tracking
// its identity: the first occurrence carries a new key and the payload,
// later occurrences only the key. Requires WithTrackReferences.
func WriteReference[T any](w *Writer, value T, s Serializer[T]) {
	if w.err.HasError() {
		return
	}
	if !w.config.TrackReferences {
		w.fail(InvalidStateErrorf("reference tracking is disabled"))
		return
	}
	// the wrapper differs between occurrences, so it has no cacheable identity
	w.writeSubItem(nil, func(w *Writer) {
		key, existing := w.objectCache().AddObjectKey(value)
		if existing {
			w.WriteFieldHeader(refFieldExistingKey, WireTypeVarint)
			w.WriteUInt64(uint64(key))
			return
		}
		w.WriteFieldHeader(refFieldNewKey, WireTypeVarint)
		w.WriteUInt64(uint64(key))
		WriteMessage(w, refFieldObject, value, s)
	})
}

// ReadReference reads a sub-item written by WriteReference. create, if not
// nil, allocates the object before its payload is read, so references back
// to it from inside the payload resolve to the same object.
func ReadReference[T any](r *Reader, s Serializer[T], create func() T) T {
	var result T
	if r.err.HasError() {
		return result
	}
	if !r.config.TrackReferences {
		r.fail(InvalidStateErrorf("reference tracking is disabled"))
		return result
	}
	tok := r.StartSubItem()
	key := -1
	for field := r.ReadFieldHeader(); field > 0; field = r.ReadFieldHeader() {
		switch field {
		case refFieldExistingKey:
			k := r.ReadUInt64()
			if r.err.HasError() {
				return result
			}
			obj, ok := r.refs.get(int(min(k, math.MaxInt32)))
			if !ok {
				r.fail(InvalidFieldErrorf("unknown reference key %d", k))
				return result
			}
			if result, ok = obj.(T); !ok {
				r.fail(InvalidStateErrorf("reference key %d holds %T", k, obj))
				return result
			}
		case refFieldNewKey:
			k := r.ReadUInt64()
			if r.err.HasError() {
				return result
			}
			// keys are assigned sequentially, so the table grows with the input
			if k != uint64(len(r.refs.objects)) {
				r.fail(InvalidFieldErrorf("unexpected reference key %d, next is %d", k, len(r.refs.objects)))
				return result
			}
			key = int(k)
			if create != nil {
				result = create()
			}
			r.refs.put(key, result)
		case refFieldObject:
			if key < 0 {
				r.fail(InvalidFieldErrorf("reference payload before its key"))
				return result
			}
			result = ReadMessage(r, result, s)
			r.refs.put(key, result)
		default:
			r.SkipField()
		}
	}
	r.EndSubItem(tok)
	return result
}
