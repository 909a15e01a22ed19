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
	"math/bits"
	"sync"

	"go.uber.org/zap"
)

const (
	// Pool limits to prevent memory bloat
	minPooledShift = 8  // 256 bytes
	maxPooledShift = 20 // 1 MiB
	// DefaultBufferSize is the buffer size the stream backends start with.
	DefaultBufferSize = 1024
)

// bufferBuckets holds one pool per power-of-two size class.
var bufferBuckets [maxPooledShift - minPooledShift + 1]sync.Pool

func sizeClass(n int) (int, bool) {
	if n <= 1<<minPooledShift {
		return 0, true
	}
	shift := bits.Len(uint(n - 1))
	if shift > maxPooledShift {
		return 0, false
	}
	return shift - minPooledShift, true
}

// RentBuffer returns a buffer whose length is a power of two of at least
// minSize bytes. The caller owns it until ReturnBuffer.
func RentBuffer(minSize int) []byte {
	class, ok := sizeClass(minSize)
	if !ok {
		return make([]byte, roundUpPow2(minSize))
	}
	if p, _ := bufferBuckets[class].Get().(*[]byte); p != nil {
		return (*p)[:cap(*p)]
	}
	return make([]byte, 1<<(class+minPooledShift))
}

// ReturnBuffer hands buf back to the pool. The caller must not use buf again.
// Buffers outside the pooled size classes are dropped.
func ReturnBuffer(buf []byte) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	class, ok := sizeClass(c)
	if !ok {
		if ce := Logger().Check(zap.DebugLevel, "pbwire: dropping oversized buffer"); ce != nil {
			ce.Write(zap.Int("cap", c))
		}
		return
	}
	buf = buf[:c]
	bufferBuckets[class].Put(&buf)
}

// ResizeBuffer returns a buffer of at least toFitAtLeast bytes holding
// buf[copyFrom:copyFrom+copyBytes] at its start. The old buffer is returned
// to the pool.
func ResizeBuffer(buf []byte, toFitAtLeast, copyFrom, copyBytes int) []byte {
	newSize := len(buf) * 2
	if newSize < toFitAtLeast {
		newSize = toFitAtLeast
	}
	next := RentBuffer(newSize)
	if copyBytes > 0 {
		copy(next, buf[copyFrom:copyFrom+copyBytes])
	}
	ReturnBuffer(buf)
	return next
}

func roundUpPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
