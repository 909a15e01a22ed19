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
	"bytes"
	"io"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

var benchVaruint64SmallValues = []uint64{
	0,
	1,
	2,
	3,
	7,
	15,
	31,
	63,
	127,
}

var benchVaruint64MidValues = []uint64{
	128,
	129,
	16383,
	16384,
	1<<20 - 1,
	1 << 20,
	1<<27 - 1,
	1 << 27,
	1<<34 - 1,
	1 << 34,
}

var benchVaruint64LargeValues = []uint64{
	1<<40 - 1,
	1 << 40,
	1<<55 - 1,
	1 << 55,
	1<<63 - 1,
	^uint64(0),
}

func encodeAll(values []uint64) []byte {
	var out []byte
	for _, v := range values {
		out = AppendVaruint64(out, v)
	}
	return out
}

func benchmarkConsumeVaruint64(b *testing.B, values []uint64) {
	data := encodeAll(values)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for p := data; len(p) > 0; {
			_, n := ConsumeVaruint64(p)
			p = p[n:]
		}
	}
}

func benchmarkProtowireConsumeVarint(b *testing.B, values []uint64) {
	data := encodeAll(values)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for p := data; len(p) > 0; {
			_, n := protowire.ConsumeVarint(p)
			p = p[n:]
		}
	}
}

func BenchmarkConsumeVaruint64Small(b *testing.B) {
	benchmarkConsumeVaruint64(b, benchVaruint64SmallValues)
}

func BenchmarkConsumeVaruint64Mid(b *testing.B) {
	benchmarkConsumeVaruint64(b, benchVaruint64MidValues)
}

func BenchmarkConsumeVaruint64Large(b *testing.B) {
	benchmarkConsumeVaruint64(b, benchVaruint64LargeValues)
}

func BenchmarkProtowireConsumeVarintSmall(b *testing.B) {
	benchmarkProtowireConsumeVarint(b, benchVaruint64SmallValues)
}

func BenchmarkProtowireConsumeVarintMid(b *testing.B) {
	benchmarkProtowireConsumeVarint(b, benchVaruint64MidValues)
}

func BenchmarkProtowireConsumeVarintLarge(b *testing.B) {
	benchmarkProtowireConsumeVarint(b, benchVaruint64LargeValues)
}

func BenchmarkAppendVaruint64Mid(b *testing.B) {
	buf := make([]byte, 0, 1024)
	values := benchVaruint64MidValues
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = AppendVaruint64(buf[:0], values[i%len(values)])
	}
}

func BenchmarkMarshalPerson(b *testing.B) {
	p := samplePerson()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Marshal(p, personCodec{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSerializeToSinkPerson(b *testing.B) {
	p := samplePerson()
	sink := NewArrayBufferWriter(4096)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sink.Reset()
		if err := SerializeToSink(sink, p, personCodec{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSerializePerson(b *testing.B) {
	p := samplePerson()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Serialize(io.Discard, p, personCodec{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnmarshalPerson(b *testing.B) {
	data, err := Marshal(samplePerson(), personCodec{})
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Unmarshal(data, personCodec{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDeserializePerson(b *testing.B) {
	data, err := Marshal(samplePerson(), personCodec{})
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Deserialize(bytes.NewReader(data), personCodec{}); err != nil {
			b.Fatal(err)
		}
	}
}
