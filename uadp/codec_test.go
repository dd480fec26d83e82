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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/security"
)

func singleDSMMessage() *model.NetworkMessage {
	nm, err := model.NewNetworkMessageWithDSMs(1)
	if err != nil {
		panic(err)
	}
	nm.SetPublisherID(model.NewPublisherIDUInt32(7))
	nm.SetGroup(1, 1)
	nm.DSMs[0].WriterID = 100
	nm.DSMs[0].SeqNum = 5
	nm.DSMs[0].AllocateFields(2)
	_ = nm.DSMs[0].SetField(0, model.NewUInt32Variant(0xcafebabe))
	_ = nm.DSMs[0].SetField(1, model.NewDoubleVariant(1.5))
	return nm
}

func callbacksFor(nm *model.NetworkMessage) (*[]*model.DataSetMessage, Callbacks) {
	delivered := &[]*model.DataSetMessage{}
	cb := Callbacks{
		GetReaderGroup: func(pubID *model.PublisherID, groupVersion uint32, groupID uint16) (any, bool) {
			return nm, groupID == nm.Group.GroupID
		},
		GetReader: func(group any, writerID uint16, index int) (any, bool) {
			return writerID, true
		},
		SetDSM: func(dsm *model.DataSetMessage, reader any) error {
			*delivered = append(*delivered, dsm)
			return nil
		},
	}
	return delivered, cb
}

func TestEncodeDecodeSingleDSMRoundTrip(t *testing.T) {
	nm := singleDSMMessage()
	datagram, err := EncodeMessage(nm, nil)
	require.NoError(t, err)

	delivered, cb := callbacksFor(nm)
	got, err := DecodeMessage(datagram, cb)
	require.NoError(t, err)

	require.Len(t, got.DSMs, 1)
	assert.True(t, nm.Equal(got))
	require.Len(t, *delivered, 1)
	assert.Equal(t, uint16(100), (*delivered)[0].WriterID)
}

func TestEncodeDecodeKeepAlive(t *testing.T) {
	nm, err := model.NewNetworkMessageWithDSMs(1)
	require.NoError(t, err)
	nm.SetGroup(2, 0)
	nm.DSMs[0].WriterID = 9
	nm.DSMs[0].Conf.MessageType = model.MessageTypeKeepAlive
	nm.DSMs[0].SeqNum = 1

	datagram, err := EncodeMessage(nm, nil)
	require.NoError(t, err)

	_, cb := callbacksFor(nm)
	got, err := DecodeMessage(datagram, cb)
	require.NoError(t, err)
	require.Len(t, got.DSMs, 1)
	assert.Empty(t, got.DSMs[0].Fields)
}

func TestEncodeDecodeMultiDSM(t *testing.T) {
	nm, err := model.NewNetworkMessageWithDSMs(3)
	require.NoError(t, err)
	nm.SetGroup(3, 0)
	for i, d := range nm.DSMs {
		d.WriterID = uint16(10 + i)
		d.SeqNum = uint16(i)
		d.AllocateFields(1)
		require.NoError(t, d.SetField(0, model.NewUInt16Variant(uint16(i*10))))
	}

	datagram, err := EncodeMessage(nm, nil)
	require.NoError(t, err)

	_, cb := callbacksFor(nm)
	got, err := DecodeMessage(datagram, cb)
	require.NoError(t, err)
	require.Len(t, got.DSMs, 3)
	assert.True(t, nm.Equal(got))
}

func TestDecodeNoMatchingGroup(t *testing.T) {
	nm := singleDSMMessage()
	datagram, err := EncodeMessage(nm, nil)
	require.NoError(t, err)

	cb := Callbacks{
		GetReaderGroup: func(*model.PublisherID, uint32, uint16) (any, bool) { return nil, false },
	}
	_, err = DecodeMessage(datagram, cb)
	assert.ErrorIs(t, err, ErrNoMatchingGroup)
}

func TestDecodeNoMatchingReader(t *testing.T) {
	nm := singleDSMMessage()
	datagram, err := EncodeMessage(nm, nil)
	require.NoError(t, err)

	cb := Callbacks{
		GetReaderGroup: func(*model.PublisherID, uint32, uint16) (any, bool) { return nm, true },
		GetReader:      func(any, uint16, int) (any, bool) { return nil, false },
	}
	_, err = DecodeMessage(datagram, cb)
	assert.ErrorIs(t, err, ErrNoMatchingReader)
}

func TestDecodeCorruptedMultiDSMSizeFails(t *testing.T) {
	nm, err := model.NewNetworkMessageWithDSMs(2)
	require.NoError(t, err)
	nm.SetGroup(4, 0)
	for i, d := range nm.DSMs {
		d.WriterID = uint16(20 + i)
		d.AllocateFields(1)
		require.NoError(t, d.SetField(0, model.NewByteVariant(byte(i))))
	}
	datagram, err := EncodeMessage(nm, nil)
	require.NoError(t, err)

	// Corrupt the first DSM's size field in the size table (right after the
	// payload header: flags0(1) + groupFlags(1) + groupId(2) + groupVersion(4)
	// + dsmCount(1) + writerIds(2*2) = 13 bytes in).
	datagram[13] ^= 0xff

	_, cb := callbacksFor(nm)
	_, err = DecodeMessage(datagram, cb)
	assert.Error(t, err)
}

func TestEncodeDecodeWithSecurity(t *testing.T) {
	nm := singleDSMMessage()
	sec := &security.Ctx{
		TokenID: 3,
		Mode:    security.ModeSignAndEncrypt,
		Keys: security.KeySet{
			EncryptKey: make([]byte, 16),
			SigningKey: make([]byte, 16),
			KeyNonce:   make([]byte, 8),
		},
	}
	datagram, err := EncodeMessage(nm, sec)
	require.NoError(t, err)

	decSec := &security.Ctx{
		TokenID: 3,
		Mode:    security.ModeSignAndEncrypt,
		Keys:    sec.Keys,
	}
	_, cb := callbacksFor(nm)
	cb.GetSecurity = func(tokenID uint32, pubID *model.PublisherID, groupID uint16) (*security.Ctx, bool) {
		return decSec, tokenID == decSec.TokenID
	}
	got, err := DecodeMessage(datagram, cb)
	require.NoError(t, err)
	assert.True(t, nm.Equal(got))
}

func TestEncodeDecodeSecurityNoneExpectedFails(t *testing.T) {
	nm := singleDSMMessage()
	datagram, err := EncodeMessage(nm, nil)
	require.NoError(t, err)

	_, cb := callbacksFor(nm)
	cb.ExpectedSecurityMode = func(*model.PublisherID, uint16) (security.Mode, bool) {
		return security.ModeSign, true
	}
	_, err = DecodeMessage(datagram, cb)
	assert.ErrorIs(t, err, ErrSecurityNoneFailed)
}

type fixedRandom struct{ b [4]byte }

func (f fixedRandom) Read(p []byte) (int, error) {
	return copy(p, f.b[:]), nil
}

// TestEncodeSecurityHeaderLayoutHasNoPadding pins the security header's
// literal byte layout for singleDSMMessage() under ModeSign: nonce_length
// must be followed directly by the 4-byte message nonce random and then
// the 4-byte security sequence number, with no reserved padding in
// between.
func TestEncodeSecurityHeaderLayoutHasNoPadding(t *testing.T) {
	nm := singleDSMMessage()
	sec := &security.Ctx{
		TokenID: 3,
		Mode:    security.ModeSign,
		Keys: security.KeySet{
			SigningKey: make([]byte, 16),
		},
		Rand: fixedRandom{b: [4]byte{0xaa, 0xbb, 0xcc, 0xdd}},
	}
	datagram, err := EncodeMessage(nm, sec)
	require.NoError(t, err)

	// flags0(1) ext1(1) publisherId-UInt32(4) groupFlags(1) groupId(2)
	// groupVersion(4) dsmCount(1) writerId(2) secFlags(1) tokenId(4)
	// nonceLen(1) msgNonceRandom(4) seqNum(4) = 30 bytes.
	require.GreaterOrEqual(t, len(datagram), 30)
	assert.Equal(t, byte(8), datagram[21], "nonce_length")
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, datagram[22:26], "msg nonce random must follow nonce_length directly")
	assert.Equal(t, []byte{1, 0, 0, 0}, datagram[26:30], "security sequence number must follow the nonce random with no padding")
}

func TestEncodeRejectsInvalidDSM(t *testing.T) {
	nm, err := model.NewNetworkMessageWithDSMs(1)
	require.NoError(t, err)
	nm.DSMs[0].Conf.Valid = false
	_, err = EncodeMessage(nm, nil)
	assert.Error(t, err)
}
