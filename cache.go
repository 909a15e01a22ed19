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
	"unsafe"
)

// objectKey identifies an object for the length and reference caches.
// The dynamic type is part of the key, so a struct and its first field,
// which share an address, are kept apart.
type objectKey struct {
	pointer unsafe.Pointer
	length  int // for slices only
	typ     reflect.Type
}

// identityOf returns the identity of reference-like values. Plain values
// have no identity and cannot form cycles.
func identityOf(obj any) (objectKey, bool) {
	if obj == nil {
		return objectKey{}, false
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return objectKey{}, false
		}
		return objectKey{pointer: v.UnsafePointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.IsNil() {
			return objectKey{}, false
		}
		// slices sharing a backing array but differing in length are different objects
		return objectKey{pointer: v.UnsafePointer(), length: v.Len(), typ: v.Type()}, true
	default:
		return objectKey{}, false
	}
}

// ObjectCache tracks objects seen during one top-level write: the measured
// length of their sub-item payloads, and the reference keys assigned to them
// when reference tracking is enabled.
type ObjectCache struct {
	lengths map[objectKey]int64
	keys    map[objectKey]int
	nextKey int
}

// NewObjectCache creates an empty cache.
func NewObjectCache() *ObjectCache {
	return &ObjectCache{}
}

// Length returns the cached payload length of obj.
func (c *ObjectCache) Length(obj any) (int64, bool) {
	if c == nil || c.lengths == nil {
		return 0, false
	}
	key, ok := identityOf(obj)
	if !ok {
		return 0, false
	}
	n, ok := c.lengths[key]
	return n, ok
}

// SetLength records the payload length of obj. Values without identity are ignored.
func (c *ObjectCache) SetLength(obj any, n int64) {
	key, ok := identityOf(obj)
	if !ok {
		return
	}
	if c.lengths == nil {
		c.lengths = make(map[objectKey]int64)
	}
	c.lengths[key] = n
}

// AddObjectKey returns the reference key of obj, assigning the next key if
// obj has not been seen. existing reports whether the key was already assigned.
func (c *ObjectCache) AddObjectKey(obj any) (key int, existing bool) {
	id, ok := identityOf(obj)
	if !ok {
		key = c.nextKey
		c.nextKey++
		return key, false
	}
	if c.keys == nil {
		c.keys = make(map[objectKey]int)
	}
	if key, existing = c.keys[id]; existing {
		return key, true
	}
	key = c.nextKey
	c.nextKey++
	c.keys[id] = key
	return key, false
}

// forMeasure returns a cache for a measuring pass: lengths are shared so the
// real pass can reuse them, reference keys are copied so the measuring pass
// does not mark objects as already written.
func (c *ObjectCache) forMeasure() *ObjectCache {
	if c.lengths == nil {
		c.lengths = make(map[objectKey]int64)
	}
	m := &ObjectCache{lengths: c.lengths, nextKey: c.nextKey}
	if len(c.keys) > 0 {
		m.keys = make(map[objectKey]int, len(c.keys))
		for k, v := range c.keys {
			m.keys[k] = v
		}
	}
	return m
}

// resetKeys forgets reference keys but keeps measured lengths, so a
// measured object graph can be written again.
func (c *ObjectCache) resetKeys() {
	clear(c.keys)
	c.nextKey = 0
}

// Clear empties the cache for reuse.
func (c *ObjectCache) Clear() {
	clear(c.lengths)
	clear(c.keys)
	c.nextKey = 0
}

// referenceTable maps reference keys back to objects on the read side.
type referenceTable struct {
	objects []any
	set     []bool
}

func (t *referenceTable) get(key int) (any, bool) {
	if key < 0 || key >= len(t.objects) || !t.set[key] {
		return nil, false
	}
	return t.objects[key], true
}

func (t *referenceTable) put(key int, obj any) {
	for key >= len(t.objects) {
		t.objects = append(t.objects, nil)
		t.set = append(t.set, false)
	}
	t.objects[key] = obj
	t.set[key] = true
}

func (t *referenceTable) reset() {
	clear(t.objects)
	t.objects = t.objects[:0]
	t.set = t.set[:0]
}
