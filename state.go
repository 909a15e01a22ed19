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

// cursor is the window of bytes a Reader or Writer is currently working in.
// The window belongs to the owning Reader or Writer (or its backend); a
// cursor is never stored anywhere else. remaining() is always
// len(window)-offset.
type cursor struct {
	window []byte
	offset int
}

func (c *cursor) remaining() int {
	return len(c.window) - c.offset
}

// unread returns the bytes between the offset and the end of the window.
func (c *cursor) unread() []byte {
	return c.window[c.offset:]
}

func (c *cursor) advance(n int) {
	c.offset += n
}

func (c *cursor) reset(window []byte) {
	c.window = window
	c.offset = 0
}
