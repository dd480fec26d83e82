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

	"github.com/opcua-pubsub/uadp/buffer"
)

func TestPublisherIDRoundTrip(t *testing.T) {
	cases := []*PublisherID{
		NewPublisherIDByte(7),
		NewPublisherIDUInt16(1000),
		NewPublisherIDUInt32(100000),
		NewPublisherIDUInt64(1 << 40),
		NewPublisherIDString("plant-1"),
	}
	for _, p := range cases {
		b := buffer.New(16, buffer.DefaultMaxCapacity)
		require.NoError(t, p.WriteTo(b))

		r := buffer.NewFromBytes(b.Bytes())
		got, err := ReadPublisherID(p.Type(), r)
		require.NoError(t, err)
		assert.True(t, p.Equal(got))
	}
}

func TestPublisherIDEqualNilIsWildcardOnlyAgainstNil(t *testing.T) {
	assert.True(t, (*PublisherID)(nil).Equal(nil))
	assert.False(t, NewPublisherIDByte(1).Equal(nil))
	assert.False(t, (*PublisherID)(nil).Equal(NewPublisherIDByte(1)))
}

func TestPublisherIDEqualDifferentValues(t *testing.T) {
	assert.False(t, NewPublisherIDUInt32(1).Equal(NewPublisherIDUInt32(2)))
	assert.False(t, NewPublisherIDUInt32(1).Equal(NewPublisherIDUInt16(1)))
}
