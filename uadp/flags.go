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

// Package uadp implements the UADP network-message codec: the encoder
// (header + payload, optional sign/encrypt, final merge) and the decoder
// (header parse, reader-group match, optional security, DSM parse, field
// dispatch).
package uadp

// flags0 bits (main flags byte).
const (
	flagVersionMask           uint8 = 0x0f
	flagPublisherIDEnabled    uint8 = 1 << 4
	flagGroupHeaderEnabled    uint8 = 1 << 5
	flagPayloadHeaderEnabled  uint8 = 1 << 6
	flagExtendedFlags1Present uint8 = 1 << 7
)

// ExtendedFlags1 bits.
const (
	ext1PublisherIDTypeMask uint8 = 0x07
	ext1DataSetClassID      uint8 = 1 << 3
	ext1Security            uint8 = 1 << 4
	ext1Timestamp           uint8 = 1 << 5
	ext1Picoseconds         uint8 = 1 << 6
	ext1ExtendedFlags2      uint8 = 1 << 7
)

// GroupFlags bits.
const (
	groupFlagWriterGroupID       uint8 = 1 << 0
	groupFlagGroupVersion        uint8 = 1 << 1
	groupFlagNetworkMessageNumber uint8 = 1 << 2
	groupFlagSequenceNumber       uint8 = 1 << 3
)

// nonceWireLength is the SecurityHeader's nonce_length value: the 4-byte
// message nonce random plus the 4-byte security sequence number that
// follows it on the wire.
const nonceWireLength uint8 = 8

// SecurityHeader flags bits.
const (
	secFlagSigned    uint8 = 1 << 0
	secFlagEncrypted uint8 = 1 << 1
	secFlagFooter    uint8 = 1 << 2
	secFlagKeyReset  uint8 = 1 << 3
)

// DataSetFlags1 bits.
const (
	dsFlags1Valid           uint8 = 1 << 0
	dsFlags1FieldEncodingShift = 1
	dsFlags1FieldEncodingMask  uint8 = 0x03 << dsFlags1FieldEncodingShift
	dsFlags1SeqNum          uint8 = 1 << 3
	dsFlags1Status          uint8 = 1 << 4
	dsFlags1MajorVersion    uint8 = 1 << 5
	dsFlags1MinorVersion    uint8 = 1 << 6
	dsFlags1Flags2Present   uint8 = 1 << 7
)

// DataSetFlags2 bits.
const (
	dsFlags2MessageTypeMask uint8 = 0x0f
	dsFlags2Timestamp       uint8 = 1 << 4
	dsFlags2Picoseconds     uint8 = 1 << 5
)
