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

package reader

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/opcua-pubsub/uadp/model"
)

// dsmKey hashes a {publisherId, groupId, writerId} triple into a single
// lookup key for the per-writer sequence-number and timeout tables,
// replacing a hand-rolled string-concat map key with a fixed-width hash.
func dsmKey(publisherID *model.PublisherID, groupID, writerID uint16) uint64 {
	buf := make([]byte, 0, 24)
	buf = append(buf, publisherIDBytes(publisherID)...)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(groupID), 10)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(writerID), 10)
	return xxhash.Sum64(buf)
}

func publisherIDBytes(p *model.PublisherID) []byte {
	if p == nil {
		return []byte("*")
	}
	if v, ok := p.Byte(); ok {
		return strconv.AppendUint(nil, uint64(v), 10)
	}
	if v, ok := p.UInt16(); ok {
		return strconv.AppendUint(nil, uint64(v), 10)
	}
	if v, ok := p.UInt32(); ok {
		return strconv.AppendUint(nil, uint64(v), 10)
	}
	if v, ok := p.UInt64(); ok {
		return strconv.AppendUint(nil, v, 10)
	}
	if v, ok := p.String(); ok {
		return []byte(v)
	}
	return nil
}
