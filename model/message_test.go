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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNetworkMessageWithDSMsPreallocatesDefaultConf(t *testing.T) {
	nm, err := NewNetworkMessageWithDSMs(2)
	require.NoError(t, err)
	require.Len(t, nm.DSMs, 2)
	for _, d := range nm.DSMs {
		assert.Equal(t, DefaultDataSetMessageConf(), d.Conf)
	}
}

func TestNewNetworkMessageWithDSMsRejectsOutOfRange(t *testing.T) {
	_, err := NewNetworkMessageWithDSMs(256)
	assert.Error(t, err)
	_, err = NewNetworkMessageWithDSMs(-1)
	assert.Error(t, err)
}

func TestSetFieldReplacesAndRejectsOutOfRange(t *testing.T) {
	d := &DataSetMessage{}
	d.AllocateFields(2)
	require.NoError(t, d.SetField(0, NewUInt32Variant(1)))
	require.NoError(t, d.SetField(0, NewUInt32Variant(2)))
	v, ok := d.Fields[0].UInt32()
	require.True(t, ok)
	assert.Equal(t, uint32(2), v)

	assert.Error(t, d.SetField(5, NewUInt32Variant(1)))
}

func TestNetworkMessageEqual(t *testing.T) {
	a, err := NewNetworkMessageWithDSMs(1)
	require.NoError(t, err)
	a.SetPublisherID(NewPublisherIDUInt32(1))
	a.SetGroup(5, 1)
	a.DSMs[0].WriterID = 10
	a.DSMs[0].AllocateFields(1)
	require.NoError(t, a.DSMs[0].SetField(0, NewUInt32Variant(42)))

	b, err := NewNetworkMessageWithDSMs(1)
	require.NoError(t, err)
	b.SetPublisherID(NewPublisherIDUInt32(1))
	b.SetGroup(5, 1)
	b.DSMs[0].WriterID = 10
	b.DSMs[0].AllocateFields(1)
	require.NoError(t, b.DSMs[0].SetField(0, NewUInt32Variant(42)))

	assert.True(t, a.Equal(b))

	require.NoError(t, b.DSMs[0].SetField(0, NewUInt32Variant(43)))
	assert.False(t, a.Equal(b))
}

func TestAddDataSetMessageRejectsOverCapacity(t *testing.T) {
	nm := NewNetworkMessage()
	nm.DSMs = make([]*DataSetMessage, 255)
	_, err := nm.AddDataSetMessage(DefaultDataSetMessageConf())
	assert.Error(t, err)
}
