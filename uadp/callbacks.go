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
	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/security"
)

// Callbacks is the struct-of-function-pointers the decoder drives
// (callbacks instead of inheritance). Group and Reader
// are opaque handles owned by whatever reader-group manager the caller
// plugs in (see package reader for the default one); the decoder never
// looks inside them.
type Callbacks struct {
	// GetReaderGroup resolves the {publisherId, groupVersion, groupId}
	// filter to a reader-group handle. publisherID is nil when the
	// datagram carried no publisher id; that
	// must be treated as "any" by the lookup.
	GetReaderGroup func(publisherID *model.PublisherID, groupVersion uint32, groupID uint16) (group any, ok bool)

	// GetReader resolves a DSM's writer id (dispatch by id) or its
	// positional index within the payload header (dispatch by
	// position, used when writer ids are absent) to a reader handle.
	GetReader func(group any, writerID uint16, index int) (reader any, ok bool)

	// SetDSM delivers a fully decoded DataSetMessage to its matched
	// reader.
	SetDSM func(dsm *model.DataSetMessage, reader any) error

	// GetSecurity resolves a received security token id to a Ctx.
	GetSecurity func(tokenID uint32, publisherID *model.PublisherID, groupID uint16) (*security.Ctx, bool)

	// ExpectedSecurityMode reports the security mode a matched reader
	// group expects, independent of any token id, so the decoder can
	// reject a datagram that arrived with security disabled against a
	// group that requires Sign or SignAndEncrypt (ErrSecurityNoneFailed).
	// ok is false when no group-level expectation is registered, in
	// which case the decoder assumes ModeNone.
	ExpectedSecurityMode func(publisherID *model.PublisherID, groupID uint16) (mode security.Mode, ok bool)

	// IsNewerDSMSeq reports whether receivedSeq is newer than the last
	// seen sequence number for {publisherId, groupId, writerId}; used
	// only to drive an optional gap notification, never to reject a
	// message and still delivers it.
	IsNewerDSMSeq func(publisherID *model.PublisherID, groupID uint16, writerID uint16, receivedSeq uint16) bool

	// UpdateTimeout resets the receive-timeout tracking for
	// {publisherId, groupId, writerId} after a successful delivery.
	UpdateTimeout func(publisherID *model.PublisherID, groupID uint16, writerID uint16)
}

func (cb Callbacks) getReaderGroup(publisherID *model.PublisherID, groupVersion uint32, groupID uint16) (any, bool) {
	if cb.GetReaderGroup == nil {
		return nil, false
	}
	return cb.GetReaderGroup(publisherID, groupVersion, groupID)
}

func (cb Callbacks) getReader(group any, writerID uint16, index int) (any, bool) {
	if cb.GetReader == nil {
		return nil, false
	}
	return cb.GetReader(group, writerID, index)
}

func (cb Callbacks) setDSM(dsm *model.DataSetMessage, reader any) error {
	if cb.SetDSM == nil {
		return nil
	}
	return cb.SetDSM(dsm, reader)
}

func (cb Callbacks) getSecurity(tokenID uint32, publisherID *model.PublisherID, groupID uint16) (*security.Ctx, bool) {
	if cb.GetSecurity == nil {
		return nil, false
	}
	return cb.GetSecurity(tokenID, publisherID, groupID)
}

func (cb Callbacks) expectedSecurityMode(publisherID *model.PublisherID, groupID uint16) (security.Mode, bool) {
	if cb.ExpectedSecurityMode == nil {
		return security.ModeNone, false
	}
	return cb.ExpectedSecurityMode(publisherID, groupID)
}

func (cb Callbacks) isNewerDSMSeq(publisherID *model.PublisherID, groupID uint16, writerID uint16, receivedSeq uint16) bool {
	if cb.IsNewerDSMSeq == nil {
		return true
	}
	return cb.IsNewerDSMSeq(publisherID, groupID, writerID, receivedSeq)
}

func (cb Callbacks) updateTimeout(publisherID *model.PublisherID, groupID uint16, writerID uint16) {
	if cb.UpdateTimeout != nil {
		cb.UpdateTimeout(publisherID, groupID, writerID)
	}
}
