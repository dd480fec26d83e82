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

package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/security"
)

type recordingTransport struct {
	mu        sync.Mutex
	datagrams [][]byte
}

func (t *recordingTransport) Send(groupID uint16, datagram []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := append([]byte(nil), datagram...)
	t.datagrams = append(t.datagrams, cp)
	return nil
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.datagrams)
}

func constField(v uint32) DataSetFieldConfig {
	return DataSetFieldConfig{Name: "f", GetValue: func() model.Variant { return model.NewUInt32Variant(v) }}
}

func TestAddWriterGroupBuildsPreencodeFastPathWhenNoSecurity(t *testing.T) {
	p := &Publisher{PublisherID: model.NewPublisherIDUInt32(1)}
	cfg := WriterGroupConfig{
		GroupID:      1,
		PublishEvery: time.Millisecond,
		Writers: []DataSetWriterConfig{
			{WriterID: 1, Fields: []DataSetFieldConfig{constField(1)}},
		},
	}
	require.NoError(t, p.AddWriterGroup(cfg))
	require.Len(t, p.groups, 1)
	assert.NotNil(t, p.groups[0].pre)
	assert.Nil(t, p.groups[0].sec)
}

func TestAddWriterGroupRequiresResolveSecurityWhenTokenSet(t *testing.T) {
	p := &Publisher{PublisherID: model.NewPublisherIDUInt32(1)}
	cfg := WriterGroupConfig{GroupID: 1, PublishEvery: time.Millisecond, SecurityTokenID: 5}
	err := p.AddWriterGroup(cfg)
	assert.Error(t, err)
}

func TestAddWriterGroupUsesResolveSecurityWhenTokenSet(t *testing.T) {
	sec := &security.Ctx{TokenID: 5, Mode: security.ModeSign}
	p := &Publisher{
		PublisherID: model.NewPublisherIDUInt32(1),
		ResolveSecurity: func(tokenID uint32) (*security.Ctx, bool) {
			return sec, tokenID == 5
		},
	}
	cfg := WriterGroupConfig{
		GroupID:         1,
		PublishEvery:    time.Millisecond,
		SecurityTokenID: 5,
		Writers:         []DataSetWriterConfig{{WriterID: 1, Fields: []DataSetFieldConfig{constField(1)}}},
	}
	require.NoError(t, p.AddWriterGroup(cfg))
	require.Len(t, p.groups, 1)
	assert.Nil(t, p.groups[0].pre)
	assert.Same(t, sec, p.groups[0].sec)
	assert.True(t, p.groups[0].nm.HasSecurity)
}

func TestAddWriterGroupRejectsFieldWithoutGetValue(t *testing.T) {
	p := &Publisher{PublisherID: model.NewPublisherIDUInt32(1)}
	cfg := WriterGroupConfig{
		GroupID:      1,
		PublishEvery: time.Millisecond,
		Writers:      []DataSetWriterConfig{{WriterID: 1, Fields: []DataSetFieldConfig{{Name: "f"}}}},
	}
	assert.Error(t, p.AddWriterGroup(cfg))
}

func TestPublishOnceViaPreencodeFastPath(t *testing.T) {
	transport := &recordingTransport{}
	p := &Publisher{PublisherID: model.NewPublisherIDUInt32(1), Transport: transport}
	cfg := WriterGroupConfig{
		GroupID:      2,
		PublishEvery: time.Millisecond,
		Writers:      []DataSetWriterConfig{{WriterID: 1, Fields: []DataSetFieldConfig{constField(7)}}},
	}
	require.NoError(t, p.AddWriterGroup(cfg))
	require.NoError(t, p.publishOnce(p.groups[0]))
	require.NoError(t, p.publishOnce(p.groups[0]))
	assert.Equal(t, 2, transport.count())
}

func TestPublishOnceViaFullEncodeWithSecurity(t *testing.T) {
	transport := &recordingTransport{}
	sec := &security.Ctx{
		TokenID: 9,
		Mode:    security.ModeSign,
		Keys:    security.KeySet{SigningKey: make([]byte, 16), KeyNonce: make([]byte, 8)},
	}
	p := &Publisher{
		PublisherID:     model.NewPublisherIDUInt32(1),
		Transport:       transport,
		ResolveSecurity: func(uint32) (*security.Ctx, bool) { return sec, true },
	}
	cfg := WriterGroupConfig{
		GroupID:         3,
		PublishEvery:    time.Millisecond,
		SecurityTokenID: 9,
		Writers:         []DataSetWriterConfig{{WriterID: 1, Fields: []DataSetFieldConfig{constField(7)}}},
	}
	require.NoError(t, p.AddWriterGroup(cfg))
	require.NoError(t, p.publishOnce(p.groups[0]))
	assert.Equal(t, 1, transport.count())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	transport := &recordingTransport{}
	p := &Publisher{PublisherID: model.NewPublisherIDUInt32(1), Transport: transport, Stats: NoopStats{}}
	cfg := WriterGroupConfig{
		GroupID:      4,
		PublishEvery: time.Millisecond,
		Writers:      []DataSetWriterConfig{{WriterID: 1, Fields: []DataSetFieldConfig{constField(1)}}},
	}
	require.NoError(t, p.AddWriterGroup(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))
	assert.Greater(t, transport.count(), 0)
}
