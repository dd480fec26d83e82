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

// Package model implements the in-memory NetworkMessage tree: header,
// group descriptor, and an ordered sequence of DataSetMessages each owning
// an ordered sequence of Variant fields.
package model

import "fmt"

// FieldEncoding selects how a DataSetMessage's fields are carried on the
// wire. Only Variant is implemented; RawData and DataValue are named for
// parity with the wire flag bits but any attempt to use them fails fast.
type FieldEncoding uint8

const (
	FieldEncodingVariant  FieldEncoding = 0
	FieldEncodingRawData  FieldEncoding = 1
	FieldEncodingDataValue FieldEncoding = 2
)

// MessageType is the DataSetMessage kind carried in DataSetFlags2 bits 0-3.
type MessageType uint8

const (
	MessageTypeKeyFrame   MessageType = 0
	MessageTypeDeltaFrame MessageType = 1
	MessageTypeEvent      MessageType = 2
	MessageTypeKeepAlive  MessageType = 3
)

// DataSetMessageConf holds the per-DSM flags1/flags2 configuration. In
// this implementation Valid is always true on encode and
// FieldEncoding is always Variant; DeltaFrame is rejected on decode.
type DataSetMessageConf struct {
	Valid             bool
	FieldEncoding     FieldEncoding
	SeqNumEnabled     bool
	StatusEnabled     bool
	MajorVersionFlag  bool
	MinorVersionFlag  bool
	MessageType       MessageType
	TimestampEnabled  bool
	PicosEnabled      bool
}

// DefaultDataSetMessageConf returns the conf used by every DSM this codec
// produces: valid, Variant-encoded, sequence numbers on, KeyFrame content.
func DefaultDataSetMessageConf() DataSetMessageConf {
	return DataSetMessageConf{
		Valid:         true,
		FieldEncoding: FieldEncodingVariant,
		SeqNumEnabled: true,
		MessageType:   MessageTypeKeyFrame,
	}
}

// DataSetMessage is a single dataset snapshot within a NetworkMessage
// It owns its Fields.
type DataSetMessage struct {
	WriterID  uint16
	Conf      DataSetMessageConf
	SeqNum    uint16
	Timestamp uint64
	Status    uint16
	Fields    []Variant
}

// AllocateFields preallocates n empty (zero-value) field slots.
func (d *DataSetMessage) AllocateFields(n int) {
	d.Fields = make([]Variant, n)
}

// SetField replaces the Variant at idx. Setting a variant at
// an already-populated slot clears and replaces it; in Go terms this is
// simply overwriting the value, there is nothing to explicitly free.
func (d *DataSetMessage) SetField(idx int, v Variant) error {
	if idx < 0 || idx >= len(d.Fields) {
		return fmt.Errorf("model: field index %d out of range [0,%d)", idx, len(d.Fields))
	}
	d.Fields[idx] = v
	return nil
}

// GroupDescriptor identifies the writer group a NetworkMessage belongs to
// GroupID == 0 means "absent" at configuration level.
type GroupDescriptor struct {
	GroupID      uint16
	GroupVersion uint32
}

// NetworkMessageHeader is the fixed cap of a datagram.
type NetworkMessageHeader struct {
	Version     uint8
	PublisherID *PublisherID
}

// NetworkMessage is the full decoded/encodable message: a header, a group
// descriptor, and an ordered sequence of DataSetMessages. It
// owns its DSMs and their field Variants; any PreencodeCtx built from it
// holds only weak, read-only references, never ownership (see
// preencode.Ctx).
type NetworkMessage struct {
	Header NetworkMessageHeader

	HasGroupHeader bool
	Group          GroupDescriptor

	// HasPayloadHeader controls whether the per-DSM writer-id table is
	// emitted in the header. This codec always sets it, mirroring the
	// reference test corpus, but decode honors whatever the
	// wire actually carries.
	HasPayloadHeader bool

	DSMs []*DataSetMessage

	// HasSecurity and SecurityTokenID are only meaningful when encoding
	// with a non-nil security.Ctx; they are carried here so a decoded
	// NetworkMessage round-trips through re-encoding without the caller
	// threading security parameters back in separately.
	HasSecurity     bool
	SecurityTokenID uint32
}

// UADPVersion is the only network-message version this codec implements
// on the wire.
const UADPVersion uint8 = 1

// NewNetworkMessage creates an empty NetworkMessage at UADP version 1 with
// a payload header and group header enabled, matching this codec's fixed
// encoder configuration.
func NewNetworkMessage() *NetworkMessage {
	return &NetworkMessage{
		Header:           NetworkMessageHeader{Version: UADPVersion},
		HasGroupHeader:   true,
		HasPayloadHeader: true,
	}
}

// NewNetworkMessageWithDSMs creates a NetworkMessage with n preallocated
// DataSetMessages, each with the default conf (builder: "create
// with N preallocated DSMs and a UADP version").
func NewNetworkMessageWithDSMs(n int) (*NetworkMessage, error) {
	if n < 0 || n > 255 {
		return nil, fmt.Errorf("model: dsm count %d out of range [0,255]", n)
	}
	nm := NewNetworkMessage()
	nm.DSMs = make([]*DataSetMessage, n)
	for i := range nm.DSMs {
		nm.DSMs[i] = &DataSetMessage{Conf: DefaultDataSetMessageConf()}
	}
	return nm, nil
}

// SetPublisherID sets the network message's publisher id. Pass nil to
// clear it (absent publisher id).
func (nm *NetworkMessage) SetPublisherID(id *PublisherID) {
	nm.Header.PublisherID = id
}

// SetGroup sets the writer-group filter fields.
func (nm *NetworkMessage) SetGroup(groupID uint16, groupVersion uint32) {
	nm.Group = GroupDescriptor{GroupID: groupID, GroupVersion: groupVersion}
}

// AddDataSetMessage appends a new DSM with the given conf and returns it
// for further population (writer id, sequence number, fields).
func (nm *NetworkMessage) AddDataSetMessage(conf DataSetMessageConf) (*DataSetMessage, error) {
	if len(nm.DSMs) >= 255 {
		return nil, fmt.Errorf("model: network message already has the maximum 255 DSMs")
	}
	dsm := &DataSetMessage{Conf: conf}
	nm.DSMs = append(nm.DSMs, dsm)
	return dsm, nil
}

// Equal reports deep equality of two NetworkMessages up to field-for-field
// Variant equality.
func (nm *NetworkMessage) Equal(o *NetworkMessage) bool {
	if nm == nil || o == nil {
		return nm == o
	}
	if nm.Header.Version != o.Header.Version || !nm.Header.PublisherID.Equal(o.Header.PublisherID) {
		return false
	}
	if nm.HasGroupHeader != o.HasGroupHeader || nm.Group != o.Group {
		return false
	}
	if len(nm.DSMs) != len(o.DSMs) {
		return false
	}
	for i, d := range nm.DSMs {
		if !dsmEqual(d, o.DSMs[i]) {
			return false
		}
	}
	return true
}

func dsmEqual(a, b *DataSetMessage) bool {
	if a.WriterID != b.WriterID || a.Conf != b.Conf || a.SeqNum != b.SeqNum {
		return false
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i, f := range a.Fields {
		if !f.Equal(b.Fields[i]) {
			return false
		}
	}
	return true
}
