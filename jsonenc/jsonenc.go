/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package jsonenc implements the ua-data JSON companion encoder over the
// same DataModel the uadp binary codec encodes. It produces a
// compact, deterministically-ordered document; field order is built by
// hand rather than left to encoding/json's map ordering.
package jsonenc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/opcua-pubsub/uadp/model"
)

// ErrSecurityNotSupported is returned by Encode for any NetworkMessage
// carrying security: the ua-data JSON mapping has no
// encrypted/signed form in this codec's scope.
var ErrSecurityNotSupported = errors.New("jsonenc: security is not supported")

// ErrNotSupported is returned for a built-in type this encoder cannot
// represent in JSON ("Unsupported built-in types produce
// NotSupported errors and no output").
var ErrNotSupported = errors.New("jsonenc: built-in type not supported")

// Encode renders nm as the ua-data JSON document.
func Encode(nm *model.NetworkMessage) ([]byte, error) {
	if nm.HasSecurity {
		return nil, ErrSecurityNotSupported
	}

	var b strings.Builder
	b.WriteByte('{')

	b.WriteString(`"MessageId":`)
	writeJSONString(&b, fmt.Sprintf("%d-%s", nm.Group.GroupID, dsmSeqSuffix(nm)))
	b.WriteString(`,"MessageType":"ua-data"`)

	if nm.Header.PublisherID != nil {
		b.WriteString(`,"PublisherId":`)
		writeJSONString(&b, publisherIDString(nm.Header.PublisherID))
	}

	b.WriteString(`,"Messages":[`)
	for i, d := range nm.DSMs {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeMessage(&b, i, d); err != nil {
			return nil, err
		}
	}
	b.WriteString(`]}`)

	return []byte(b.String()), nil
}

// dsmSeqSuffix picks the first DSM's sequence number as the MessageId
// suffix; a NetworkMessage with no DSMs has none to report.
func dsmSeqSuffix(nm *model.NetworkMessage) string {
	if len(nm.DSMs) == 0 {
		return "0"
	}
	return strconv.Itoa(int(nm.DSMs[0].SeqNum))
}

func publisherIDString(p *model.PublisherID) string {
	if v, ok := p.Byte(); ok {
		return strconv.Itoa(int(v))
	}
	if v, ok := p.UInt16(); ok {
		return strconv.Itoa(int(v))
	}
	if v, ok := p.UInt32(); ok {
		return strconv.FormatUint(uint64(v), 10)
	}
	if v, ok := p.UInt64(); ok {
		return strconv.FormatUint(v, 10)
	}
	if v, ok := p.String(); ok {
		return v
	}
	return ""
}

func writeMessage(b *strings.Builder, dsmIndex int, d *model.DataSetMessage) error {
	b.WriteByte('{')
	b.WriteString(`"DataSetWriterId":`)
	b.WriteString(strconv.Itoa(int(d.WriterID)))

	b.WriteString(`,"MessageType":"ua-keyframe"`)

	b.WriteString(`,"Payload":{`)
	for fi, f := range d.Fields {
		if fi > 0 {
			b.WriteByte(',')
		}
		writeJSONString(b, fmt.Sprintf("%d-%d", dsmIndex, fi))
		b.WriteByte(':')
		if err := writeField(b, f); err != nil {
			return err
		}
	}
	b.WriteString("}}")
	return nil
}

func writeField(b *strings.Builder, f model.Variant) error {
	b.WriteByte('{')
	b.WriteString(`"Type":`)
	b.WriteString(strconv.Itoa(int(f.Type())))
	b.WriteString(`,"Body":`)
	if err := writeValue(b, f); err != nil {
		return err
	}
	b.WriteByte('}')
	return nil
}

func writeValue(b *strings.Builder, f model.Variant) error {
	if f.IsArray() {
		return ErrNotSupported
	}
	switch f.Type() {
	case model.TypeBoolean:
		v, _ := f.Bool()
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case model.TypeSByte:
		v, _ := f.SByte()
		b.WriteString(strconv.Itoa(int(v)))
	case model.TypeByte:
		v, _ := f.Byte()
		b.WriteString(strconv.Itoa(int(v)))
	case model.TypeInt16:
		v, _ := f.Int16()
		b.WriteString(strconv.Itoa(int(v)))
	case model.TypeUInt16:
		v, _ := f.UInt16()
		b.WriteString(strconv.Itoa(int(v)))
	case model.TypeInt32:
		v, _ := f.Int32()
		b.WriteString(strconv.Itoa(int(v)))
	case model.TypeUInt32:
		v, _ := f.UInt32()
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	case model.TypeFloat:
		v, _ := f.Float()
		writeFloat(b, float64(v), 32)
	case model.TypeDouble:
		v, _ := f.Double()
		writeFloat(b, v, 64)
	case model.TypeString:
		v, _ := f.String()
		writeJSONString(b, v)
	default:
		// Int64/UInt64 are deliberately NotSupported: JSON numbers lose
		// precision past 2^53 and OPC UA JSON mapping quotes them as
		// strings, which this encoder's Non-goals exclude (see the open
		// question c).
		return ErrNotSupported
	}
	return nil
}

// writeFloat renders a float as the ua-data mapping requires: NaN/Infinity/
// -Infinity as quoted strings, everything else as a JSON number.
func writeFloat(b *strings.Builder, v float64, bitSize int) {
	switch {
	case math.IsNaN(v):
		b.WriteString(`"NaN"`)
	case math.IsInf(v, 1):
		b.WriteString(`"Infinity"`)
	case math.IsInf(v, -1):
		b.WriteString(`"-Infinity"`)
	default:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, bitSize))
	}
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
