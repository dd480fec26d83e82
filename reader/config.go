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

// Package reader implements the subscriber-side reader-group/reader
// matching glue the uadp decoder drives through a Callbacks value,
// plus gap and timeout bookkeeping (update_timeout, is_newer_dsm_seq).
package reader

import (
	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/security"
)

// DataSetReaderConfig describes one configured DataSetReader within a
// ReaderGroupConfig: which writer id it targets and what happens with a
// decoded DataSetMessage.
type DataSetReaderConfig struct {
	// WriterID selects this reader by the DSM's writer id. In a reader
	// group with PositionalDispatch set, WriterID is instead compared with
	// the DSM's positional index in the payload header.
	WriterID uint16

	// MatchAnyWriterID, when set, makes this reader match every DSM in
	// the group regardless of WriterID (or positional index). Ignored if
	// another reader in the same group would otherwise match first.
	MatchAnyWriterID bool

	// OnDataSetMessage is invoked once a DSM targeting this reader has
	// been fully decoded and passed its size check.
	OnDataSetMessage func(dsm *model.DataSetMessage)
}

// ReaderGroupConfig describes one configured ReaderGroup: the
// {publisherId, writerGroupId} filter, its member readers, and the
// security context expected for messages in this group.
type ReaderGroupConfig struct {
	// PublisherID is the filter value; nil means "any publisher",
	// matching every incoming datagram's publisher id including an
	// absent one.
	PublisherID *model.PublisherID

	GroupID uint16

	// GroupVersion is the filter value; 0 means "any version", matching
	// every incoming datagram's group version.
	GroupVersion uint32

	// PositionalDispatch selects readers by the DSM's index in the
	// payload header instead of by writer id, for groups where writer
	// ids are not carried on the wire.
	PositionalDispatch bool

	Readers []*DataSetReaderConfig

	// Security is the expected crypto context for this group. A nil
	// Security means ModeNone is expected. A datagram with security
	// enabled against a nil Security fails the token lookup
	// (Read_SecurityKeyNotFound_Failed); one whose security flags differ
	// from Security.Mode fails with ErrSecurityModeMismatch; one without
	// security against a Sign/SignAndEncrypt group fails with
	// ErrSecurityNoneFailed.
	Security *security.Ctx
}

func (g *ReaderGroupConfig) matchesPublisher(pubID *model.PublisherID) bool {
	if g.PublisherID == nil || pubID == nil {
		return true
	}
	return g.PublisherID.Equal(pubID)
}

func (g *ReaderGroupConfig) matchesGroupVersion(groupVersion uint32) bool {
	return g.GroupVersion == 0 || groupVersion == g.GroupVersion
}

func (g *ReaderGroupConfig) readerFor(writerID uint16, index int) (*DataSetReaderConfig, bool) {
	for _, r := range g.Readers {
		if r.MatchAnyWriterID {
			return r, true
		}
		if g.PositionalDispatch {
			if index == int(r.WriterID) {
				return r, true
			}
			continue
		}
		if r.WriterID == writerID {
			return r, true
		}
	}
	return nil, false
}
