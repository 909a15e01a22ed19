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

import "github.com/spaolacci/murmur3"

const (
	internSlots = 1024
	// longer strings are rarely repeated and are not worth hashing
	maxInternLength = 128
)

// stringInterner returns one shared string for repeated byte sequences.
// It is a fixed-size table indexed by hash; a colliding entry replaces the
// previous one, so hostile input cannot grow it.
type stringInterner struct {
	slots [internSlots]string
}

func (t *stringInterner) intern(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if len(b) > maxInternLength {
		return string(b)
	}
	slot := murmur3.Sum64(b) & (internSlots - 1)
	if s := t.slots[slot]; s == string(b) {
		return s
	}
	s := string(b)
	t.slots[slot] = s
	return s
}

func (t *stringInterner) reset() {
	clear(t.slots[:])
}
