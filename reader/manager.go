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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/security"
	"github.com/opcua-pubsub/uadp/uadp"
)

// IsNewerDSMSequence is a standalone, overridable predicate for the
// per-writer gap test, rather than inlining it into the decode loop. It
// is a thin re-export of security.IsNewerDSMSequence16 so callers needing
// to unit test or override the gap check never have to import security
// directly.
func IsNewerDSMSequence(received, last uint16) bool {
	return security.IsNewerDSMSequence16(received, last)
}

type seqState struct {
	mu   sync.Mutex
	last uint16
	seen bool
}

// Manager is the default reader-group manager: a flat list of configured
// groups, matched linearly (group counts in this domain are small — tens,
// not thousands — so a hash index buys nothing at the group level; see
// key.go for where xxhash earns its keep, the high-frequency per-DSM
// sequence and timeout state).
type Manager struct {
	Groups []*ReaderGroupConfig

	// GapTimeout is how long a writer may go silent before OnTimeout
	// fires. Zero disables timeout tracking.
	GapTimeout time.Duration
	OnGap      func(publisherID *model.PublisherID, groupID, writerID uint16, received, last uint16)
	OnTimeout  func(publisherID *model.PublisherID, groupID, writerID uint16)

	seqMu   sync.Mutex
	seq     map[uint64]*seqState
	timerMu sync.Mutex
	timers  map[uint64]*time.Timer
}

func (m *Manager) seqFor(key uint64) *seqState {
	m.seqMu.Lock()
	defer m.seqMu.Unlock()
	if m.seq == nil {
		m.seq = make(map[uint64]*seqState)
	}
	s, ok := m.seq[key]
	if !ok {
		s = &seqState{}
		m.seq[key] = s
	}
	return s
}

// Callbacks builds the uadp.Callbacks value the decoder drives, wiring
// group/reader resolution, security resolution, and gap/timeout
// bookkeeping.
func (m *Manager) Callbacks() uadp.Callbacks {
	return uadp.Callbacks{
		GetReaderGroup:        m.getReaderGroup,
		GetReader:             m.getReader,
		SetDSM:                m.setDSM,
		GetSecurity:           m.getSecurity,
		ExpectedSecurityMode:  m.expectedSecurityMode,
		IsNewerDSMSeq:         m.isNewerDSMSeq,
		UpdateTimeout:         m.updateTimeout,
	}
}

func (m *Manager) getReaderGroup(publisherID *model.PublisherID, groupVersion uint32, groupID uint16) (any, bool) {
	for _, g := range m.Groups {
		if g.GroupID != groupID {
			continue
		}
		if !g.matchesPublisher(publisherID) {
			continue
		}
		if !g.matchesGroupVersion(groupVersion) {
			continue
		}
		return g, true
	}
	log.WithField("groupId", groupID).Debug("reader: no matching reader group")
	return nil, false
}

func (m *Manager) getReader(group any, writerID uint16, index int) (any, bool) {
	g, ok := group.(*ReaderGroupConfig)
	if !ok {
		return nil, false
	}
	r, ok := g.readerFor(writerID, index)
	if !ok {
		return nil, false
	}
	return readerHandle{group: g, reader: r}, true
}

type readerHandle struct {
	group  *ReaderGroupConfig
	reader *DataSetReaderConfig
}

func (m *Manager) setDSM(dsm *model.DataSetMessage, reader any) error {
	rh, ok := reader.(readerHandle)
	if !ok || rh.reader.OnDataSetMessage == nil {
		return nil
	}
	rh.reader.OnDataSetMessage(dsm)
	return nil
}

func (m *Manager) getSecurity(tokenID uint32, publisherID *model.PublisherID, groupID uint16) (*security.Ctx, bool) {
	for _, g := range m.Groups {
		if g.GroupID != groupID || !g.matchesPublisher(publisherID) {
			continue
		}
		if g.Security == nil {
			return nil, false
		}
		if g.Security.TokenID != tokenID {
			continue
		}
		return g.Security, true
	}
	return nil, false
}

func (m *Manager) expectedSecurityMode(publisherID *model.PublisherID, groupID uint16) (security.Mode, bool) {
	for _, g := range m.Groups {
		if g.GroupID != groupID || !g.matchesPublisher(publisherID) {
			continue
		}
		if g.Security == nil {
			return security.ModeNone, true
		}
		return g.Security.Mode, true
	}
	return security.ModeNone, false
}

func (m *Manager) isNewerDSMSeq(publisherID *model.PublisherID, groupID uint16, writerID uint16, receivedSeq uint16) bool {
	key := dsmKey(publisherID, groupID, writerID)
	s := m.seqFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seen {
		s.seen = true
		s.last = receivedSeq
		return true
	}
	newer := IsNewerDSMSequence(receivedSeq, s.last)
	if newer {
		s.last = receivedSeq
	} else if m.OnGap != nil {
		m.OnGap(publisherID, groupID, writerID, receivedSeq, s.last)
	}
	return newer
}

// updateTimeout resets the receive-timeout tracking for
// {publisherId, groupId, writerId} after a successful delivery, fired
// once per dispatched DSM.
func (m *Manager) updateTimeout(publisherID *model.PublisherID, groupID uint16, writerID uint16) {
	if m.GapTimeout <= 0 || m.OnTimeout == nil {
		return
	}
	key := dsmKey(publisherID, groupID, writerID)

	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timers == nil {
		m.timers = make(map[uint64]*time.Timer)
	}
	if t, ok := m.timers[key]; ok {
		t.Stop()
	}
	m.timers[key] = time.AfterFunc(m.GapTimeout, func() {
		m.OnTimeout(publisherID, groupID, writerID)
	})
}
