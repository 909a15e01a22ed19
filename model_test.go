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

import "strings"

// Test model: a person with a nested message, a group, a packed field and
// repeated self-typed children.

type address struct {
	Street string
	Zip    int32
}

type person struct {
	ID      int32
	Name    string
	Score   float64
	Ratio   float32
	Delta   int64
	Flags   uint64
	Active  bool
	Home    *address
	Work    *address
	Scores  []int32
	Data    []byte
	Friends []*person
}

type addressCodec struct{}

func (addressCodec) Write(w *Writer, a *address) {
	if a.Street != "" {
		w.WriteFieldHeader(1, WireTypeString)
		w.WriteString(a.Street)
	}
	w.WriteFieldHeader(2, WireTypeSignedVarint)
	w.WriteInt32(a.Zip)
}

func (addressCodec) Read(r *Reader, a *address) *address {
	if a == nil {
		a = &address{}
	}
	for field := r.ReadFieldHeader(); field > 0; field = r.ReadFieldHeader() {
		switch field {
		case 1:
			a.Street = r.ReadString()
		case 2:
			r.Hint(WireTypeSignedVarint)
			a.Zip = r.ReadInt32()
		default:
			r.SkipField()
		}
	}
	return a
}

type personCodec struct{}

func (personCodec) Write(w *Writer, p *person) {
	w.WriteFieldHeader(1, WireTypeVarint)
	w.WriteInt32(p.ID)
	if p.Name != "" {
		w.WriteFieldHeader(2, WireTypeString)
		w.WriteString(p.Name)
	}
	w.WriteFieldHeader(3, WireTypeFixed64)
	w.WriteFloat64(p.Score)
	w.WriteFieldHeader(4, WireTypeFixed32)
	w.WriteFloat32(p.Ratio)
	w.WriteFieldHeader(5, WireTypeSignedVarint)
	w.WriteInt64(p.Delta)
	w.WriteFieldHeader(6, WireTypeFixed64)
	w.WriteUInt64(p.Flags)
	w.WriteFieldHeader(7, WireTypeVarint)
	w.WriteBool(p.Active)
	if p.Home != nil {
		WriteMessage(w, 8, p.Home, addressCodec{})
	}
	if p.Work != nil {
		WriteGroup(w, 9, p.Work, addressCodec{})
	}
	w.WritePackedInt32s(10, p.Scores, WireTypeVarint)
	if p.Data != nil {
		w.WriteFieldHeader(11, WireTypeString)
		w.WriteBytes(p.Data)
	}
	for _, f := range p.Friends {
		WriteMessage(w, 12, f, personCodec{})
	}
}

func (personCodec) Read(r *Reader, p *person) *person {
	if p == nil {
		p = &person{}
	}
	for field := r.ReadFieldHeader(); field > 0; field = r.ReadFieldHeader() {
		switch field {
		case 1:
			p.ID = r.ReadInt32()
		case 2:
			p.Name = r.ReadString()
		case 3:
			p.Score = r.ReadFloat64()
		case 4:
			p.Ratio = r.ReadFloat32()
		case 5:
			r.Hint(WireTypeSignedVarint)
			p.Delta = r.ReadInt64()
		case 6:
			p.Flags = r.ReadUInt64()
		case 7:
			p.Active = r.ReadBool()
		case 8:
			p.Home = ReadMessage(r, p.Home, addressCodec{})
		case 9:
			p.Work = ReadMessage(r, p.Work, addressCodec{})
		case 10:
			p.Scores = r.ReadPackedInt32s(p.Scores, WireTypeVarint)
		case 11:
			p.Data = r.ReadBytes()
		case 12:
			p.Friends = append(p.Friends, ReadMessage[*person](r, nil, personCodec{}))
		default:
			r.SkipField()
		}
	}
	return p
}

// samplePerson covers every field kind, negative values, a sub-message
// longer than 127 bytes and nesting three levels deep.
func samplePerson() *person {
	return &person{
		ID:     -42,
		Name:   "Ada Lovelace",
		Score:  3.5,
		Ratio:  -0.25,
		Delta:  -1 << 40,
		Flags:  0xDEADBEEFCAFEBABE,
		Active: true,
		Home:   &address{Street: "12 St James's Square", Zip: -7},
		Work:   &address{Street: "Analytical Engine Works", Zip: 1843},
		Scores: []int32{1, 2, 3, -1, 300},
		Data:   []byte{0x00, 0xFF, 0x10},
		Friends: []*person{
			{
				ID:   7,
				Name: strings.Repeat("Babbage ", 40),
				Home: &address{Zip: 1},
				Friends: []*person{
					{ID: 8, Name: "Menabrea", Scores: []int32{math32Max}},
				},
			},
			{ID: 9},
		},
	}
}

const math32Max = 1<<31 - 1
