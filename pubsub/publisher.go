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
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/preencode"
	"github.com/opcua-pubsub/uadp/security"
	"github.com/opcua-pubsub/uadp/uadp"
)

// Transport is the external collaborator a Publisher hands finished
// datagrams to; the codec itself has no opinion on sockets.
type Transport interface {
	Send(groupID uint16, datagram []byte) error
}

// writerGroup is a WriterGroupConfig bound to its live NetworkMessage and,
// when security is None, the PreencodeCtx fast path built from it.
type writerGroup struct {
	cfg WriterGroupConfig
	nm  *model.NetworkMessage
	pre *preencode.Ctx
	sec *security.Ctx
}

// Publisher drives one or more WriterGroups on independent tickers,
// encoding each period either via the preencode cache (security None) or a
// full uadp.EncodeMessage call (security enabled), and handing the result
// to a Transport. Each writer group runs on its own goroutine inside an
// errgroup.Group, a per-group ticker rather than a shared send queue,
// since periodic publish has no backpressure to balance.
type Publisher struct {
	PublisherID *model.PublisherID
	Transport   Transport
	Stats       Stats

	// ResolveSecurity returns the Ctx for a group's configured
	// SecurityTokenID, or (nil, true) to mean ModeNone. ok false aborts
	// startup for that group.
	ResolveSecurity func(tokenID uint32) (*security.Ctx, bool)

	groups []*writerGroup
}

// AddWriterGroup builds the live NetworkMessage for cfg and, if its
// SecurityTokenID is zero, the PreencodeCtx fast path.
func (p *Publisher) AddWriterGroup(cfg WriterGroupConfig) error {
	nm, err := model.NewNetworkMessageWithDSMs(len(cfg.Writers))
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	nm.SetPublisherID(p.PublisherID)
	nm.SetGroup(cfg.GroupID, cfg.GroupVersion)

	for i, w := range cfg.Writers {
		d := nm.DSMs[i]
		d.WriterID = w.WriterID
		d.AllocateFields(len(w.Fields))
		for fi, f := range w.Fields {
			if f.GetValue == nil {
				return fmt.Errorf("pubsub: writer group %d writer %d field %d has no GetValue", cfg.GroupID, w.WriterID, fi)
			}
			if err := d.SetField(fi, f.GetValue()); err != nil {
				return fmt.Errorf("pubsub: %w", err)
			}
		}
	}

	wg := &writerGroup{cfg: cfg, nm: nm}

	if cfg.SecurityTokenID != 0 {
		if p.ResolveSecurity == nil {
			return fmt.Errorf("pubsub: writer group %d requires security but no ResolveSecurity is configured", cfg.GroupID)
		}
		sec, ok := p.ResolveSecurity(cfg.SecurityTokenID)
		if !ok {
			return fmt.Errorf("pubsub: writer group %d: unknown security token %d", cfg.GroupID, cfg.SecurityTokenID)
		}
		nm.HasSecurity = true
		nm.SecurityTokenID = cfg.SecurityTokenID
		wg.sec = sec
	} else {
		pre, err := preencode.Build(nm)
		if err != nil {
			return fmt.Errorf("pubsub: writer group %d: preencode: %w", cfg.GroupID, err)
		}
		wg.pre = pre
	}

	p.groups = append(p.groups, wg)
	return nil
}

// Run starts one ticker goroutine per configured writer group and blocks
// until ctx is cancelled or a group's encode loop returns a fatal error.
func (p *Publisher) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, wg := range p.groups {
		wg := wg
		eg.Go(func() error {
			return p.runGroup(ctx, wg)
		})
	}
	return eg.Wait()
}

func (p *Publisher) runGroup(ctx context.Context, wg *writerGroup) error {
	ticker := time.NewTicker(wg.cfg.PublishEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.publishOnce(wg); err != nil {
				log.WithField("groupId", wg.cfg.GroupID).Warningf("pubsub: publish failed: %v", err)
				if p.Stats != nil {
					p.Stats.IncPublishError(wg.cfg.GroupID)
				}
				continue
			}
			if p.Stats != nil {
				for _, d := range wg.nm.DSMs {
					p.Stats.IncPublished(wg.cfg.GroupID, d.Conf.MessageType)
				}
			}
		}
	}
}

func (p *Publisher) publishOnce(wg *writerGroup) error {
	var datagram []byte
	var err error

	for i, d := range wg.nm.DSMs {
		for fi, f := range wg.cfg.Writers[i].Fields {
			if setErr := d.SetField(fi, f.GetValue()); setErr != nil {
				return setErr
			}
		}
	}

	if wg.pre != nil {
		datagram, err = wg.pre.Refresh()
	} else {
		for _, d := range wg.nm.DSMs {
			d.SeqNum++
		}
		datagram, err = uadp.EncodeMessage(wg.nm, wg.sec)
	}
	if err != nil {
		return err
	}
	return p.Transport.Send(wg.cfg.GroupID, datagram)
}
