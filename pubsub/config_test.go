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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadWriterGroupsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groups.yaml")

	groups := []WriterGroupConfig{
		{
			GroupID:      1,
			GroupVersion: 7,
			PublishEvery: time.Second,
			Writers: []DataSetWriterConfig{
				{WriterID: 10, Fields: []DataSetFieldConfig{{Name: "temperature"}}},
			},
		},
	}

	require.NoError(t, WriteWriterGroups(path, groups))
	got, err := ReadWriterGroups(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint16(1), got[0].GroupID)
	assert.Equal(t, uint32(7), got[0].GroupVersion)
	assert.Equal(t, time.Second, got[0].PublishEvery)
	require.Len(t, got[0].Writers, 1)
	assert.Equal(t, uint16(10), got[0].Writers[0].WriterID)
	assert.Equal(t, "temperature", got[0].Writers[0].Fields[0].Name)
}

func TestReadWriterGroupsRejectsNonPositivePublishEvery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groups.yaml")
	require.NoError(t, WriteWriterGroups(path, []WriterGroupConfig{{GroupID: 1, PublishEvery: 0}}))

	_, err := ReadWriterGroups(path)
	assert.Error(t, err)
}

func TestReadWriterGroupsMissingFile(t *testing.T) {
	_, err := ReadWriterGroups(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
