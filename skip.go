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

// SkipField discards the value of the current field. Groups are skipped
// recursively, field by field, up to their matching EndGroup.
func (r *Reader) SkipField() {
	if r.err.HasError() {
		return
	}
	switch r.wireType {
	case WireTypeFixed32:
		r.skipRaw(4)
	case WireTypeFixed64:
		r.skipRaw(8)
	case WireTypeString:
		n := r.readLength()
		if r.err.HasError() {
			return
		}
		r.skipRaw(int64(n))
	case WireTypeVarint, WireTypeSignedVarint:
		r.readVaruint64()
	case WireTypeStartGroup:
		tok := r.StartSubItem()
		for r.ReadFieldHeader() > 0 {
			r.SkipField()
		}
		r.EndSubItem(tok)
		return
	default:
		r.fail(WireTypeMismatchError("skip", r.wireType))
		return
	}
	r.consumed()
}

// SkipRemaining skips every remaining field of the current message.
func (r *Reader) SkipRemaining() {
	for r.ReadFieldHeader() > 0 {
		r.SkipField()
	}
}
