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

package uadp

import (
	"errors"
	"fmt"

	"github.com/opcua-pubsub/uadp/buffer"
	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/security"
)

func wrapRead(err error) error {
	if errors.Is(err, buffer.ErrEndOfBuffer) {
		return newErr(CodeReadEndOfBuffer, err)
	}
	return newErr(CodeReadShortFailed, err)
}

// DecodeMessage parses a UADP datagram: header parse, reader-group match,
// optional security, DSM parse, field dispatch. It stops at the first
// error and returns the partially decoded state discarded (a *CodecError
// identifying the phase).
func DecodeMessage(data []byte, cb Callbacks) (*model.NetworkMessage, error) {
	buf := buffer.NewFromBytes(data)

	flags0, err := buf.ReadByte()
	if err != nil {
		return nil, wrapRead(err)
	}
	version := flags0 & flagVersionMask
	pubIDEnabled := flags0&flagPublisherIDEnabled != 0
	groupHeaderEnabled := flags0&flagGroupHeaderEnabled != 0
	payloadHeaderEnabled := flags0&flagPayloadHeaderEnabled != 0
	ext1Enabled := flags0&flagExtendedFlags1Present != 0

	pubIDType := model.PublisherIDTypeByte
	securityEnabled := false
	if ext1Enabled {
		ext1, err := buf.ReadByte()
		if err != nil {
			return nil, wrapRead(err)
		}
		pubIDType = model.PublisherIDType(ext1 & ext1PublisherIDTypeMask)
		dataSetClassIDEnabled := ext1&ext1DataSetClassID != 0
		securityEnabled = ext1&ext1Security != 0
		timestampEnabled := ext1&ext1Timestamp != 0
		picosEnabled := ext1&ext1Picoseconds != 0
		flags2Enabled := ext1&ext1ExtendedFlags2 != 0

		if timestampEnabled || picosEnabled || dataSetClassIDEnabled {
			return nil, ErrUnsupportedFlags1
		}
		if flags2Enabled {
			ext2, err := buf.ReadByte()
			if err != nil {
				return nil, wrapRead(err)
			}
			if ext2 != 0 {
				return nil, ErrUnsupportedFlags2
			}
		}
	}

	var pubID *model.PublisherID
	if pubIDEnabled {
		if pubIDType == model.PublisherIDTypeString {
			return nil, newErr(CodeUnsupportedPublisherIDType, fmt.Errorf("string publisher id"))
		}
		pubID, err = model.ReadPublisherID(pubIDType, buf)
		if err != nil {
			return nil, wrapRead(err)
		}
	}

	nm := &model.NetworkMessage{
		Header:           model.NetworkMessageHeader{Version: version, PublisherID: pubID},
		HasPayloadHeader: payloadHeaderEnabled,
	}

	if groupHeaderEnabled {
		groupFlags, err := buf.ReadByte()
		if err != nil {
			return nil, wrapRead(err)
		}
		writerGroupIDEnabled := groupFlags&groupFlagWriterGroupID != 0
		groupVersionEnabled := groupFlags&groupFlagGroupVersion != 0
		if groupFlags&(groupFlagNetworkMessageNumber|groupFlagSequenceNumber) != 0 {
			return nil, ErrUnsupportedFlags1
		}
		nm.HasGroupHeader = true
		if writerGroupIDEnabled {
			nm.Group.GroupID, err = buf.ReadUint16()
			if err != nil {
				return nil, wrapRead(err)
			}
		}
		if groupVersionEnabled {
			nm.Group.GroupVersion, err = buf.ReadUint32()
			if err != nil {
				return nil, wrapRead(err)
			}
		}
	}

	groupHandle, matched := cb.getReaderGroup(pubID, nm.Group.GroupVersion, nm.Group.GroupID)
	if !matched {
		return nil, ErrNoMatchingGroup
	}

	if version != model.UADPVersion {
		return nil, ErrUnsupportedVersion
	}

	var dsmCount int
	var writerIDs []uint16
	if payloadHeaderEnabled {
		n, err := buf.ReadByte()
		if err != nil {
			return nil, wrapRead(err)
		}
		dsmCount = int(n)
		writerIDs = make([]uint16, dsmCount)
		for i := range writerIDs {
			writerIDs[i], err = buf.ReadUint16()
			if err != nil {
				return nil, wrapRead(err)
			}
		}
	} else {
		dsmCount = 1
		writerIDs = []uint16{0}
	}

	readers := make([]any, dsmCount)
	readerMatched := make([]bool, dsmCount)
	anyReaderMatched := false
	for i := 0; i < dsmCount; i++ {
		r, ok := cb.getReader(groupHandle, writerIDs[i], i)
		if ok {
			readers[i] = r
			readerMatched[i] = true
			anyReaderMatched = true
		}
	}
	if !anyReaderMatched {
		return nil, ErrNoMatchingReader
	}

	var secCtx *security.Ctx
	var msgNonceRandom [4]byte
	var secSeqNum uint32
	encrypted := false

	if securityEnabled {
		secFlags, err := buf.ReadByte()
		if err != nil {
			return nil, wrapRead(err)
		}
		signed := secFlags&secFlagSigned != 0
		encrypted = secFlags&secFlagEncrypted != 0
		if secFlags&(secFlagFooter|secFlagKeyReset) != 0 {
			return nil, ErrUnsupportedFlags1
		}
		tokenID, err := buf.ReadUint32()
		if err != nil {
			return nil, wrapRead(err)
		}
		nm.HasSecurity = true
		nm.SecurityTokenID = tokenID

		secCtx, matched = cb.getSecurity(tokenID, pubID, nm.Group.GroupID)
		if !matched {
			return nil, newErr(CodeSecurityKeyNotFound, fmt.Errorf("token %d", tokenID))
		}
		wantSign := secCtx.Mode == security.ModeSign || secCtx.Mode == security.ModeSignAndEncrypt
		wantEncrypt := secCtx.Mode == security.ModeSignAndEncrypt
		if signed != wantSign || encrypted != wantEncrypt {
			return nil, ErrSecurityModeMismatch
		}

		if signed {
			sigSize := secCtx.SignatureSize()
			if len(data) < sigSize {
				return nil, ErrSignatureInvalid
			}
			body := data[:len(data)-sigSize]
			sig := data[len(data)-sigSize:]
			if !secCtx.Verify(body, sig) {
				return nil, ErrSignatureInvalid
			}
		}

		nonceLen, err := buf.ReadByte()
		if err != nil {
			return nil, wrapRead(err)
		}
		if nonceLen != nonceWireLength {
			return nil, newErr(CodeNonceInvalid, fmt.Errorf("nonce length %d", nonceLen))
		}
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return nil, wrapRead(err)
		}
		copy(msgNonceRandom[:], raw)

		secSeqNum, err = buf.ReadUint32()
		if err != nil {
			return nil, wrapRead(err)
		}
		if !security.IsNewerSequence32(secSeqNum, secCtx.SequenceNumber) {
			return nil, ErrReplayRejected
		}
		secCtx.SequenceNumber = secSeqNum
	} else {
		// Security absent on the wire: if the matched group expects
		// Sign/SignAndEncrypt, this is a hard failure (ErrSecurityNoneFailed).
		if mode, ok := cb.expectedSecurityMode(pubID, nm.Group.GroupID); ok && mode != security.ModeNone {
			return nil, ErrSecurityNoneFailed
		}
	}

	sigSize := 0
	if secCtx != nil {
		sigSize = secCtx.SignatureSize()
	}
	payloadEnd := len(data) - sigSize
	rawPayload, err := buf.ReadBytes(payloadEnd - buf.Position())
	if err != nil {
		return nil, wrapRead(err)
	}
	payload := rawPayload
	if encrypted {
		payload, err = secCtx.Decrypt(rawPayload, msgNonceRandom, secSeqNum)
		if err != nil {
			return nil, newErr(CodeWriteSecurity, err)
		}
	}
	payloadBuf := buffer.NewFromBytes(payload)

	var sizes []uint16
	if dsmCount > 1 && payloadHeaderEnabled {
		sizes = make([]uint16, dsmCount)
		for i := range sizes {
			sizes[i], err = payloadBuf.ReadUint16()
			if err != nil {
				return nil, wrapRead(err)
			}
		}
	}

	for i := 0; i < dsmCount; i++ {
		dsmStart := payloadBuf.Position()
		hasSize := sizes != nil

		if !readerMatched[i] {
			if hasSize {
				if _, err := payloadBuf.ReadBytes(int(sizes[i])); err != nil {
					return nil, wrapRead(err)
				}
			} else if i != dsmCount-1 {
				return nil, fmt.Errorf("uadp: cannot skip unmatched DSM %d of unknown size", i)
			} else {
				break // unmatched, unsized, last: nothing more to parse
			}
			continue
		}

		dsm, err := decodeDSM(payloadBuf, writerIDs[i])
		if err != nil {
			return nil, err
		}
		nm.DSMs = append(nm.DSMs, dsm)

		if hasSize && payloadBuf.Position()-dsmStart != int(sizes[i]) {
			return nil, ErrDsmSizeCheckFailed
		}

		if err := cb.setDSM(dsm, readers[i]); err != nil {
			return nil, err
		}
		cb.isNewerDSMSeq(pubID, nm.Group.GroupID, dsm.WriterID, dsm.SeqNum)
		cb.updateTimeout(pubID, nm.Group.GroupID, dsm.WriterID)
	}

	return nm, nil
}

func decodeDSM(b *buffer.Buffer, writerID uint16) (*model.DataSetMessage, error) {
	flags1, err := b.ReadByte()
	if err != nil {
		return nil, wrapRead(err)
	}
	if flags1&dsFlags1Valid == 0 {
		// Design note (a): treat a not-valid DSM as "reject the whole
		// message", not merely skip this DSM.
		return nil, ErrInvalidBit
	}
	fieldEncoding := model.FieldEncoding((flags1 & dsFlags1FieldEncodingMask) >> dsFlags1FieldEncodingShift)
	if fieldEncoding != model.FieldEncodingVariant {
		return nil, newErr(CodeUnsupportedFieldEncoding, fmt.Errorf("field encoding %d", fieldEncoding))
	}
	if flags1&(dsFlags1Status|dsFlags1MajorVersion|dsFlags1MinorVersion) != 0 {
		return nil, ErrUnsupportedFlags1
	}
	seqNumEnabled := flags1&dsFlags1SeqNum != 0
	flags2Present := flags1&dsFlags1Flags2Present != 0

	conf := model.DataSetMessageConf{
		Valid:         true,
		FieldEncoding: model.FieldEncodingVariant,
		SeqNumEnabled: seqNumEnabled,
		MessageType:   model.MessageTypeKeyFrame,
	}

	if flags2Present {
		flags2, err := b.ReadByte()
		if err != nil {
			return nil, wrapRead(err)
		}
		msgType := model.MessageType(flags2 & dsFlags2MessageTypeMask)
		if flags2&(dsFlags2Timestamp|dsFlags2Picoseconds) != 0 {
			return nil, ErrUnsupportedFlags2
		}
		switch msgType {
		case model.MessageTypeKeyFrame, model.MessageTypeKeepAlive:
		default:
			return nil, newErr(CodeUnsupportedMessageType, fmt.Errorf("message type %d", msgType))
		}
		conf.MessageType = msgType
	}

	dsm := &model.DataSetMessage{WriterID: writerID, Conf: conf}

	if seqNumEnabled {
		dsm.SeqNum, err = b.ReadUint16()
		if err != nil {
			return nil, wrapRead(err)
		}
	}

	if conf.MessageType == model.MessageTypeKeepAlive {
		return dsm, nil
	}

	fieldCount, err := b.ReadUint16()
	if err != nil {
		return nil, wrapRead(err)
	}
	dsm.Fields = make([]model.Variant, fieldCount)
	for i := range dsm.Fields {
		dsm.Fields[i], err = model.ReadVariant(b)
		if err != nil {
			return nil, wrapRead(err)
		}
	}
	return dsm, nil
}
