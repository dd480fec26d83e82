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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opcua-pubsub/uadp/model"
)

// Stats is the metric collection interface, keyed by {writerGroupId,
// dsmMessageType}. Publisher reports IncPublished and IncPublishError; the
// receive-side methods have no caller in this module.
type Stats interface {
	IncPublished(groupID uint16, messageType model.MessageType)
	IncPublishError(groupID uint16)
	IncReceived(groupID uint16, messageType model.MessageType)
	IncDecodeError(groupID uint16)
	IncReplayRejected(groupID uint16)
	IncGap(groupID uint16, writerID uint16)
}

// PrometheusStats is the default Stats implementation: one CounterVec per
// event kind, registered directly on a caller-supplied
// prometheus.Registerer.
type PrometheusStats struct {
	published       *prometheus.CounterVec
	publishErrors   *prometheus.CounterVec
	received        *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	replayRejected  *prometheus.CounterVec
	gaps            *prometheus.CounterVec
}

// NewPrometheusStats creates and registers the counter vectors on reg.
func NewPrometheusStats(reg prometheus.Registerer) *PrometheusStats {
	s := &PrometheusStats{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uadp", Name: "published_total", Help: "DataSetMessages published, by group and message type.",
		}, []string{"group_id", "message_type"}),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uadp", Name: "publish_errors_total", Help: "Publish attempts that failed to encode, by group.",
		}, []string{"group_id"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uadp", Name: "received_total", Help: "DataSetMessages successfully decoded, by group and message type.",
		}, []string{"group_id", "message_type"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uadp", Name: "decode_errors_total", Help: "Datagrams that failed to decode, by group.",
		}, []string{"group_id"}),
		replayRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uadp", Name: "replay_rejected_total", Help: "Security sequence numbers rejected as replays, by group.",
		}, []string{"group_id"}),
		gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uadp", Name: "dsm_sequence_gaps_total", Help: "DSM sequence-number gaps observed, by group and writer.",
		}, []string{"group_id", "writer_id"}),
	}
	reg.MustRegister(s.published, s.publishErrors, s.received, s.decodeErrors, s.replayRejected, s.gaps)
	return s
}

func messageTypeLabel(t model.MessageType) string {
	switch t {
	case model.MessageTypeKeyFrame:
		return "keyframe"
	case model.MessageTypeDeltaFrame:
		return "deltaframe"
	case model.MessageTypeEvent:
		return "event"
	case model.MessageTypeKeepAlive:
		return "keepalive"
	default:
		return "unknown"
	}
}

func groupIDLabel(groupID uint16) string { return strconv.Itoa(int(groupID)) }

func (s *PrometheusStats) IncPublished(groupID uint16, messageType model.MessageType) {
	s.published.WithLabelValues(groupIDLabel(groupID), messageTypeLabel(messageType)).Inc()
}

func (s *PrometheusStats) IncPublishError(groupID uint16) {
	s.publishErrors.WithLabelValues(groupIDLabel(groupID)).Inc()
}

func (s *PrometheusStats) IncReceived(groupID uint16, messageType model.MessageType) {
	s.received.WithLabelValues(groupIDLabel(groupID), messageTypeLabel(messageType)).Inc()
}

func (s *PrometheusStats) IncDecodeError(groupID uint16) {
	s.decodeErrors.WithLabelValues(groupIDLabel(groupID)).Inc()
}

func (s *PrometheusStats) IncReplayRejected(groupID uint16) {
	s.replayRejected.WithLabelValues(groupIDLabel(groupID)).Inc()
}

func (s *PrometheusStats) IncGap(groupID uint16, writerID uint16) {
	s.gaps.WithLabelValues(groupIDLabel(groupID), strconv.Itoa(int(writerID))).Inc()
}

// NoopStats discards every metric; useful for tests and for binaries that
// do not want a prometheus dependency at runtime.
type NoopStats struct{}

func (NoopStats) IncPublished(uint16, model.MessageType) {}
func (NoopStats) IncPublishError(uint16)                 {}
func (NoopStats) IncReceived(uint16, model.MessageType)  {}
func (NoopStats) IncDecodeError(uint16)                  {}
func (NoopStats) IncReplayRejected(uint16)               {}
func (NoopStats) IncGap(uint16, uint16)                  {}
