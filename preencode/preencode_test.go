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

package preencode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/uadp"
)

func buildMessage(t *testing.T) *model.NetworkMessage {
	t.Helper()
	nm, err := model.NewNetworkMessageWithDSMs(1)
	require.NoError(t, err)
	nm.SetPublisherID(model.NewPublisherIDUInt32(1))
	nm.SetGroup(1, 0)
	nm.DSMs[0].WriterID = 5
	nm.DSMs[0].SeqNum = 100
	nm.DSMs[0].AllocateFields(1)
	require.NoError(t, nm.DSMs[0].SetField(0, model.NewUInt32Variant(7)))
	return nm
}

func TestRefreshIncrementsSeqAndPatchesField(t *testing.T) {
	nm := buildMessage(t)
	ctx, err := Build(nm)
	require.NoError(t, err)

	buf1, err := ctx.Refresh()
	require.NoError(t, err)
	// Refresh rewrites and returns the same buffer, so keep a snapshot.
	buf1 = append([]byte(nil), buf1...)
	require.NoError(t, nm.DSMs[0].SetField(0, model.NewUInt32Variant(99)))
	buf2, err := ctx.Refresh()
	require.NoError(t, err)

	assert.Equal(t, uint16(102), nm.DSMs[0].SeqNum)
	assert.NotEqual(t, buf1, buf2)

	decoded, err := uadp.DecodeMessage(buf2, uadp.Callbacks{
		GetReaderGroup: func(*model.PublisherID, uint32, uint16) (any, bool) { return nm, true },
		GetReader:      func(any, uint16, int) (any, bool) { return nil, true },
	})
	require.NoError(t, err)
	v, ok := decoded.DSMs[0].Fields[0].UInt32()
	require.True(t, ok)
	assert.Equal(t, uint32(99), v)
	assert.Equal(t, uint16(102), decoded.DSMs[0].SeqNum)
}

func TestBuildRejectsSecurityNotNone(t *testing.T) {
	nm := buildMessage(t)
	nm.HasSecurity = true
	_, err := Build(nm)
	assert.ErrorIs(t, err, ErrSecurityNotNone)
}

func TestBytesReturnsCurrentBufferWithoutRefresh(t *testing.T) {
	nm := buildMessage(t)
	ctx, err := Build(nm)
	require.NoError(t, err)
	b1 := ctx.Bytes()
	b2 := ctx.Bytes()
	assert.Equal(t, b1, b2)
}
