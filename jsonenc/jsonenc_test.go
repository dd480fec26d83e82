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

package jsonenc

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-pubsub/uadp/buffer"
	"github.com/opcua-pubsub/uadp/model"
)

func simpleMessage(t *testing.T) *model.NetworkMessage {
	t.Helper()
	nm, err := model.NewNetworkMessageWithDSMs(1)
	require.NoError(t, err)
	nm.SetPublisherID(model.NewPublisherIDUInt32(42))
	nm.SetGroup(3, 0)
	nm.DSMs[0].WriterID = 11
	nm.DSMs[0].SeqNum = 7
	nm.DSMs[0].AllocateFields(2)
	require.NoError(t, nm.DSMs[0].SetField(0, model.NewUInt32Variant(99)))
	require.NoError(t, nm.DSMs[0].SetField(1, model.NewDoubleVariant(3.5)))
	return nm
}

func TestEncodeProducesValidJSONWithExpectedShape(t *testing.T) {
	nm := simpleMessage(t)
	out, err := Encode(nm)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "ua-data", doc["MessageType"])
	assert.Equal(t, "42", doc["PublisherId"])

	msgs, ok := doc["Messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, float64(11), msg["DataSetWriterId"])
	assert.Equal(t, "ua-keyframe", msg["MessageType"])

	payload := msg["Payload"].(map[string]any)
	assert.Len(t, payload, 2)
}

func TestEncodeRejectsSecurity(t *testing.T) {
	nm := simpleMessage(t)
	nm.HasSecurity = true
	_, err := Encode(nm)
	assert.ErrorIs(t, err, ErrSecurityNotSupported)
}

func TestEncodeRejectsInt64AndUInt64(t *testing.T) {
	for _, v := range []model.Variant{
		model.NewInt64Variant(1),
		model.NewUInt64Variant(1),
	} {
		nm, err := model.NewNetworkMessageWithDSMs(1)
		require.NoError(t, err)
		nm.DSMs[0].AllocateFields(1)
		require.NoError(t, nm.DSMs[0].SetField(0, v))
		_, err = Encode(nm)
		assert.ErrorIs(t, err, ErrNotSupported)
	}
}

// uint32ArrayVariant builds an array Variant the only way a package outside
// model can: by decoding the wire bytes for one. Arrays reach this codec
// over the wire, not through a builder API.
func uint32ArrayVariant(t *testing.T, values ...uint32) model.Variant {
	t.Helper()
	b := buffer.New(16, buffer.DefaultMaxCapacity)
	require.NoError(t, b.WriteByte(byte(model.TypeUInt32)|0x80))
	require.NoError(t, b.WriteInt32(int32(len(values))))
	for _, v := range values {
		require.NoError(t, b.WriteUint32(v))
	}
	v, err := model.ReadVariant(buffer.NewFromBytes(b.Bytes()))
	require.NoError(t, err)
	require.True(t, v.IsArray())
	return v
}

func TestEncodeRejectsArrayVariant(t *testing.T) {
	nm, err := model.NewNetworkMessageWithDSMs(1)
	require.NoError(t, err)
	nm.DSMs[0].AllocateFields(1)
	require.NoError(t, nm.DSMs[0].SetField(0, uint32ArrayVariant(t, 1, 2, 3)))
	_, err = Encode(nm)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestWriteFloatSpecialValuesAreQuotedStrings(t *testing.T) {
	cases := map[float64]string{
		math.NaN():   `"NaN"`,
		math.Inf(1):  `"Infinity"`,
		math.Inf(-1): `"-Infinity"`,
	}
	for v, want := range cases {
		var b strings.Builder
		writeFloat(&b, v, 64)
		assert.Equal(t, want, b.String())
	}
}

func TestWriteFloatOrdinaryValueIsBareNumber(t *testing.T) {
	var b strings.Builder
	writeFloat(&b, 1.5, 64)
	assert.Equal(t, "1.5", b.String())
}
