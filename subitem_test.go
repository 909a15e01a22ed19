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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestPersonRoundTrip(t *testing.T) {
	want := samplePerson()
	data, err := Marshal(want, personCodec{})
	require.NoError(t, err)

	got, err := Unmarshal(data, personCodec{})
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSubItemLengthBackfill(t *testing.T) {
	for _, n := range []int{0, 1, 126, 127, 128, 300, 16383, 16384, 70000} {
		payload := strings.Repeat("z", n)
		got := writeAll(t, func(w *Writer) {
			w.WriteFieldHeader(1, WireTypeString)
			tok := w.StartSubItem(nil)
			w.WriteFieldHeader(2, WireTypeString)
			w.WriteString(payload)
			w.EndSubItem(tok)
			w.WriteFieldHeader(3, WireTypeVarint)
			w.WriteInt32(1)
		})

		var inner []byte
		inner = protowire.AppendTag(inner, 2, protowire.BytesType)
		inner = protowire.AppendString(inner, payload)
		var want []byte
		want = protowire.AppendTag(want, 1, protowire.BytesType)
		want = protowire.AppendBytes(want, inner)
		want = protowire.AppendTag(want, 3, protowire.VarintType)
		want = protowire.AppendVarint(want, 1)
		require.Equal(t, want, got, "payload %d", n)
	}
}

func TestSubItemFixed32Prefix(t *testing.T) {
	got := writeAll(t, func(w *Writer) {
		w.WriteFieldHeader(1, WireTypeFixed32)
		tok := w.StartSubItem(nil)
		w.WriteFieldHeader(2, WireTypeVarint)
		w.WriteInt32(5)
		w.EndSubItem(tok)
	})
	require.Equal(t, []byte{0x0D, 0x02, 0x00, 0x00, 0x00, 0x10, 0x05}, got)

	r := NewReader(got)
	defer r.Dispose()
	require.Equal(t, 1, r.ReadFieldHeader())
	tok := r.StartSubItem()
	require.Equal(t, 2, r.ReadFieldHeader())
	require.Equal(t, int32(5), r.ReadInt32())
	require.Equal(t, 0, r.ReadFieldHeader())
	r.EndSubItem(tok)
	require.NoError(t, r.Err())
}

func TestGroupEncoding(t *testing.T) {
	got := writeAll(t, func(w *Writer) {
		WriteGroup(w, 3, &address{Zip: 1}, addressCodec{})
	})
	var want []byte
	want = protowire.AppendTag(want, 3, protowire.StartGroupType)
	want = protowire.AppendTag(want, 2, protowire.VarintType)
	want = protowire.AppendVarint(want, protowire.EncodeZigZag(1))
	want = protowire.AppendTag(want, 3, protowire.EndGroupType)
	require.Equal(t, want, got)
}

func TestReadGroupMismatchedEnd(t *testing.T) {
	var data []byte
	data = protowire.AppendTag(data, 3, protowire.StartGroupType)
	data = protowire.AppendTag(data, 4, protowire.EndGroupType)

	r := NewReader(data)
	defer r.Dispose()
	require.Equal(t, 3, r.ReadFieldHeader())
	tok := r.StartSubItem()
	require.Equal(t, 0, r.ReadFieldHeader())
	r.EndSubItem(tok)
	require.ErrorIs(t, r.Err(), ErrFraming)
}

func TestReadGroupUnterminated(t *testing.T) {
	data := protowire.AppendTag(nil, 3, protowire.StartGroupType)
	data = protowire.AppendTag(data, 1, protowire.VarintType)
	data = protowire.AppendVarint(data, 1)

	r := NewReader(data)
	defer r.Dispose()
	require.Equal(t, 3, r.ReadFieldHeader())
	r.StartSubItem()
	require.Equal(t, 1, r.ReadFieldHeader())
	r.ReadInt32()
	require.Equal(t, 0, r.ReadFieldHeader())
	require.ErrorIs(t, r.Err(), ErrEndOfStream)
}

func TestReadSubItemNotConsumed(t *testing.T) {
	data := writeAll(t, func(w *Writer) {
		WriteMessage(w, 1, &address{Street: "x", Zip: 2}, addressCodec{})
	})
	r := NewReader(data)
	defer r.Dispose()
	require.Equal(t, 1, r.ReadFieldHeader())
	tok := r.StartSubItem()
	require.Equal(t, 1, r.ReadFieldHeader())
	r.ReadString()
	r.EndSubItem(tok)
	require.ErrorIs(t, r.Err(), ErrFraming)
}

func TestReadSubItemBeyondParent(t *testing.T) {
	// outer claims 3 bytes, inner claims 5
	data := []byte{0x0A, 0x03, 0x0A, 0x05, 0x08, 0x01, 0x08, 0x01}
	r := NewReader(data)
	defer r.Dispose()
	require.Equal(t, 1, r.ReadFieldHeader())
	r.StartSubItem()
	require.Equal(t, 1, r.ReadFieldHeader())
	r.StartSubItem()
	require.ErrorIs(t, r.Err(), ErrFraming)
}

func TestReadEndGroupInsideLengthPrefixed(t *testing.T) {
	data := []byte{0x0A, 0x01, 0x0C}
	r := NewReader(data)
	defer r.Dispose()
	require.Equal(t, 1, r.ReadFieldHeader())
	tok := r.StartSubItem()
	require.Equal(t, 0, r.ReadFieldHeader())
	r.EndSubItem(tok)
	require.ErrorIs(t, r.Err(), ErrFraming)
}

func TestWriteSubItemLIFO(t *testing.T) {
	w := NewWriter(nil)
	defer w.Dispose()
	w.WriteFieldHeader(1, WireTypeString)
	outer := w.StartSubItem(nil)
	w.WriteFieldHeader(2, WireTypeStartGroup)
	w.StartSubItem(nil)
	w.EndSubItem(outer)
	require.ErrorIs(t, w.Err(), ErrInvalidState)
}

func TestWriteCloseWithOpenSubItem(t *testing.T) {
	w := NewWriter(nil)
	defer w.Dispose()
	w.WriteFieldHeader(1, WireTypeString)
	w.StartSubItem(nil)
	require.ErrorIs(t, w.Close(), ErrInvalidState)
}

type loop struct {
	Next *loop
}

type loopCodec struct{}

func (loopCodec) Write(w *Writer, l *loop) {
	if l.Next != nil {
		WriteMessage(w, 1, l.Next, loopCodec{})
	}
}

func (loopCodec) Read(r *Reader, l *loop) *loop {
	if l == nil {
		l = &loop{}
	}
	for field := r.ReadFieldHeader(); field > 0; field = r.ReadFieldHeader() {
		if field == 1 {
			l.Next = ReadMessage(r, l.Next, loopCodec{})
		} else {
			r.SkipField()
		}
	}
	return l
}

func TestWriteRecursionDetected(t *testing.T) {
	a := &loop{}
	b := &loop{Next: a}
	a.Next = b

	for name, newWriter := range map[string]func() *Writer{
		"memory": func() *Writer { return NewWriter(nil, WithRecursionCheckDepth(4)) },
		"sink":   func() *Writer { return NewSinkWriter(NewArrayBufferWriter(64), WithRecursionCheckDepth(4)) },
		"null":   func() *Writer { return NewNullWriter(WithRecursionCheckDepth(4)) },
	} {
		t.Run(name, func(t *testing.T) {
			w := newWriter()
			defer w.Dispose()
			loopCodec{}.Write(w, a)
			require.ErrorIs(t, w.Close(), ErrRecursion)
		})
	}
}

func TestWriteDeepAcyclicChain(t *testing.T) {
	head := &loop{}
	for i := 0; i < 60; i++ {
		head = &loop{Next: head}
	}
	data, err := Marshal(head, loopCodec{}, WithRecursionCheckDepth(4))
	require.NoError(t, err)

	got, err := Unmarshal(data, loopCodec{})
	require.NoError(t, err)
	depth := 0
	for l := got; l.Next != nil; l = l.Next {
		depth++
	}
	require.Equal(t, 60, depth)
}

func TestReadMaxDepth(t *testing.T) {
	head := &loop{}
	for i := 0; i < 20; i++ {
		head = &loop{Next: head}
	}
	data, err := Marshal(head, loopCodec{})
	require.NoError(t, err)

	_, err = Unmarshal(data, loopCodec{}, WithMaxDepth(10))
	require.ErrorIs(t, err, ErrMaxDepthExceeded)

	_, err = Unmarshal(data, loopCodec{}, WithMaxDepth(20))
	require.NoError(t, err)
}

func TestTruncationNeverYieldsValue(t *testing.T) {
	data, err := Marshal(samplePerson(), personCodec{})
	require.NoError(t, err)
	for cut := 1; cut < len(data); cut++ {
		got, err := Unmarshal(data[:cut], personCodec{})
		if err != nil {
			continue
		}
		// only a cut between top-level fields decodes, and it loses fields
		require.NotEqual(t, samplePerson(), got, "cut %d", cut)
	}
}
