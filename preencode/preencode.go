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

// Package preencode builds a stable byte image of a periodic NetworkMessage
// once, recording the offsets of its mutable fields, then rewrites only
// those bytes on each subsequent publish.
package preencode

import (
	"errors"
	"fmt"

	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/uadp"
)

// ErrSecurityNotNone is returned by Build when asked to preencode a message
// whose security context is anything but None: the security sequence
// number and, for SignAndEncrypt, the ciphertext itself change every
// publication, which defeats the point of a stable image.
var ErrSecurityNotNone = errors.New("preencode: security must be None")

type seqFixup struct {
	dsmIndex int
	pos      int
}

type fieldFixup struct {
	dsmIndex, fieldIndex int
	pos, length          int
}

// Ctx is the fix-up table plus the stable buffer for one periodic writer.
// It holds only a weak reference to the NetworkMessage it was built from:
// it never owns the message's DSMs or Variants, and never outlives a
// caller's responsibility to keep that tree alive.
type Ctx struct {
	nm  *model.NetworkMessage
	buf []byte

	seqFixups   []seqFixup
	fieldFixups []fieldFixup
}

type recorder struct {
	seqFixups   []seqFixup
	fieldFixups []fieldFixup
}

func (r *recorder) OnDSMSeqNum(dsmIndex, pos int) {
	r.seqFixups = append(r.seqFixups, seqFixup{dsmIndex: dsmIndex, pos: pos})
}

func (r *recorder) OnFieldValue(dsmIndex, fieldIndex, pos, length int) {
	r.fieldFixups = append(r.fieldFixups, fieldFixup{dsmIndex: dsmIndex, fieldIndex: fieldIndex, pos: pos, length: length})
}

// Build encodes nm once, recording the byte offsets of every DSM sequence
// number and fixed-size field value, and returns a Ctx ready for repeated
// Refresh calls.
func Build(nm *model.NetworkMessage) (*Ctx, error) {
	if nm.HasSecurity {
		return nil, ErrSecurityNotNone
	}
	rec := &recorder{}
	buf, err := uadp.EncodeMessageWithFixups(nm, rec)
	if err != nil {
		return nil, fmt.Errorf("preencode: initial encode: %w", err)
	}
	return &Ctx{
		nm:          nm,
		buf:         buf,
		seqFixups:   rec.seqFixups,
		fieldFixups: rec.fieldFixups,
	}, nil
}

// Refresh increments each DSM sequence number in the live (weakly
// referenced) NetworkMessage tree, re-reads each current field Variant, and
// overwrites the pre-recorded byte positions in the stable buffer in
// place. It returns the same buffer handed back each time; the caller must
// not pass it to a transport until Refresh returns.
func (c *Ctx) Refresh() ([]byte, error) {
	for _, f := range c.seqFixups {
		if f.dsmIndex >= len(c.nm.DSMs) {
			return nil, fmt.Errorf("preencode: dsm index %d out of range", f.dsmIndex)
		}
		d := c.nm.DSMs[f.dsmIndex]
		d.SeqNum++
		patchUint16(c.buf, f.pos, d.SeqNum)
	}

	for _, f := range c.fieldFixups {
		if f.dsmIndex >= len(c.nm.DSMs) {
			return nil, fmt.Errorf("preencode: dsm index %d out of range", f.dsmIndex)
		}
		d := c.nm.DSMs[f.dsmIndex]
		if f.fieldIndex >= len(d.Fields) {
			return nil, fmt.Errorf("preencode: field index %d out of range", f.fieldIndex)
		}
		body, ok := d.Fields[f.fieldIndex].FixedBody()
		if !ok {
			return nil, fmt.Errorf("preencode: field %d-%d is not a fixed-size scalar", f.dsmIndex, f.fieldIndex)
		}
		if len(body) != f.length {
			return nil, fmt.Errorf("preencode: field %d-%d changed size from %d to %d", f.dsmIndex, f.fieldIndex, f.length, len(body))
		}
		copy(c.buf[f.pos:f.pos+f.length], body)
	}

	return c.buf, nil
}

// Bytes returns the current stable buffer without refreshing it.
func (c *Ctx) Bytes() []byte { return c.buf }

func patchUint16(b []byte, pos int, v uint16) {
	b[pos] = byte(v)
	b[pos+1] = byte(v >> 8)
}
