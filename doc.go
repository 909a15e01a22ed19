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

/*
Package pbwire reads and writes the protocol buffers wire format.

pbwire is a low-level engine: it has no schema and no reflection-driven
message mapping. Callers drive it field by field, usually through a
Serializer written for each message type, and pbwire takes care of tags,
varints, length prefixes, groups, packed runs and the bookkeeping needed to
write length-prefixed sub-messages to outputs that cannot be rewound.

# Requirements

Go 1.24 or later is required.

# Quick Start

A Serializer writes the fields of a value and reads them back:

	type Point struct {
		X, Y int32
		Tags []string
	}

	var pointSerializer = pbwire.SerializerFuncs[*Point]{
		WriteFunc: func(w *pbwire.Writer, p *Point) {
			w.WriteFieldHeader(1, pbwire.WireTypeVarint)
			w.WriteInt32(p.X)
			w.WriteFieldHeader(2, pbwire.WireTypeSignedVarint)
			w.WriteInt32(p.Y)
			for _, t := range p.Tags {
				w.WriteFieldHeader(3, pbwire.WireTypeString)
				w.WriteString(t)
			}
		},
		ReadFunc: func(r *pbwire.Reader, p *Point) *Point {
			if p == nil {
				p = &Point{}
			}
			for field := r.ReadFieldHeader(); field > 0; field = r.ReadFieldHeader() {
				switch field {
				case 1:
					p.X = r.ReadInt32()
				case 2:
					r.Hint(pbwire.WireTypeSignedVarint)
					p.Y = r.ReadInt32()
				case 3:
					p.Tags = append(p.Tags, r.ReadString())
				default:
					r.SkipField()
				}
			}
			return p
		},
	}

	data, err := pbwire.Marshal(&Point{X: 1, Y: -2}, pointSerializer)
	p, err := pbwire.Unmarshal(data, pointSerializer)

# Wire Types

WriteFieldHeader fixes how the next value is encoded. Each scalar operation
accepts a fixed set of wire types: WriteInt32 accepts Varint (negative values
take 10 bytes), SignedVarint (zig-zag), Fixed32 and Fixed64; WriteFloat64
accepts Fixed64 and, when the value fits, Fixed32. A value that does not fit
the chosen encoding is an error, never silently truncated.

On the read side the wire type comes from the input. Hint applies a decoration
the wire cannot carry, such as SignedVarint on a Varint field.

# Sub-items

Nested messages are sub-items, framed either as groups or by a length prefix:

	w.WriteFieldHeader(4, pbwire.WireTypeString)
	tok := w.StartSubItem(child)
	// child fields
	w.EndSubItem(tok)

Tokens must be ended in the reverse order they were started. Readers check
that a length-prefixed sub-item is consumed exactly to its boundary and that
a group ends with its own EndGroup. Writers scan the open sub-items for the
same instance past RecursionCheckDepth and report a cycle as ErrRecursion.

# Backends

Readers:

  - NewReader: one contiguous slice
  - NewSegmentReader: a sequence of non-contiguous segments
  - NewStreamReader: an io.Reader, optionally bounded to a known length

Writers:

  - NewWriter: a growing slice
  - NewStreamWriter: an io.Writer, buffered
  - NewSinkWriter: a BufferWriter that hands out spans
  - NewNullWriter: counts bytes only

Sink writers cannot backfill a length prefix once its span is committed.
Use WriteSubItem (or WriteMessage) there: the payload is measured with a null
writer first and the measured lengths are cached by object identity, so each
object is measured once per write. Measure does the same for a whole value
and returns a MeasureState that can be written to any backend.

# Errors

Readers and Writers record the first error and turn every later operation
into a no-op. Check Err (Reader) or Close (Writer) once at the end. Errors are
of type Error and carry the field number, wire type, position and depth at
which they were raised; errors.Is matches them against the Err* sentinels:

	if errors.Is(err, pbwire.ErrFraming) {
		// truncated or corrupt sub-item
	}

# Pooling

Readers and Writers are recycled on Dispose, and stream backends rent their
buffers from a size-class pool (RentBuffer, ReturnBuffer). A Reader or Writer
must not be used after Dispose. Slices returned by a memory Writer stay valid.

# Logging

pbwire logs rare events, such as tolerated zero padding or dropped oversized
buffers, at debug level through a zap.Logger installed with SetLogger.

# Thread Safety

Readers and Writers are not safe for concurrent use. Package-level functions
such as Marshal and Unmarshal are safe for concurrent use.
*/
package pbwire
