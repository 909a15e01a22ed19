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

import "sync"

// Readers and Writers are recycled through one sync.Pool per backend, so a
// recycled instance always carries a backend of the right type.
var (
	readerPools [readerKindCount]sync.Pool
	writerPools [writerKindCount]sync.Pool
)

func acquireReader(kind readerKind, newSource func() source) *Reader {
	if r, _ := readerPools[kind].Get().(*Reader); r != nil {
		return r
	}
	return &Reader{kind: kind, src: newSource()}
}

func releaseReader(r *Reader) {
	readerPools[r.kind].Put(r)
}

func acquireWriter(kind writerKind, newTarget func() target) *Writer {
	if w, _ := writerPools[kind].Get().(*Writer); w != nil {
		return w
	}
	return &Writer{kind: kind, dst: newTarget()}
}

func releaseWriter(w *Writer) {
	writerPools[w.kind].Put(w)
}
