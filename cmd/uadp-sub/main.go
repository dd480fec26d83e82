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

// uadp-sub is an example UDP multicast subscriber binary demonstrating the
// reader package end to end, with a -human flag for a pretty-printed
// table instead of structured log lines.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/reader"
	"github.com/opcua-pubsub/uadp/uadp"
)

func variantString(v model.Variant) string {
	if b, ok := v.Bool(); ok {
		return fmt.Sprintf("%v", b)
	}
	if b, ok := v.Byte(); ok {
		return fmt.Sprintf("%d", b)
	}
	if i, ok := v.Int16(); ok {
		return fmt.Sprintf("%d", i)
	}
	if i, ok := v.UInt16(); ok {
		return fmt.Sprintf("%d", i)
	}
	if i, ok := v.Int32(); ok {
		return fmt.Sprintf("%d", i)
	}
	if i, ok := v.UInt32(); ok {
		return fmt.Sprintf("%d", i)
	}
	if i, ok := v.Int64(); ok {
		return fmt.Sprintf("%d", i)
	}
	if i, ok := v.UInt64(); ok {
		return fmt.Sprintf("%d", i)
	}
	if f, ok := v.Float(); ok {
		return fmt.Sprintf("%g", f)
	}
	if f, ok := v.Double(); ok {
		return fmt.Sprintf("%g", f)
	}
	if s, ok := v.String(); ok {
		return s
	}
	return "<array>"
}

// printHuman renders one decoded DataSetMessage as a row appended to table,
// following sourcesRunPTP4l's build-a-[]string-then-Append shape.
func printHuman(table *tablewriter.Table, groupID uint16, dsm *model.DataSetMessage) {
	fields := make([]string, 0, len(dsm.Fields))
	for _, f := range dsm.Fields {
		fields = append(fields, variantString(f))
	}
	row := []string{
		fmt.Sprintf("%d", groupID),
		fmt.Sprintf("%d", dsm.WriterID),
		fmt.Sprintf("%d", dsm.SeqNum),
		fmt.Sprintf("%d", len(dsm.Fields)),
	}
	if len(fields) > 0 {
		row = append(row, fields[0])
	} else {
		row = append(row, "")
	}
	table.Append(row)
}

func main() {
	var (
		addr        = flag.String("addr", "239.0.0.1:4840", "multicast group address:port to join")
		iface       = flag.String("iface", "", "network interface to join the multicast group on")
		publisherID = flag.Uint("publisherid", 0, "expected publisher id (UInt32); 0 means any")
		groupID     = flag.Uint("groupid", 1, "writer group id to subscribe to")
		writerIDs   = flag.String("writerids", "", "comma-separated writer ids to print (empty means all)")
		human       = flag.Bool("human", false, "pretty-print decoded DataSetMessages as a table instead of logging")
		loglevel    = flag.String("loglevel", "info", "log level: debug, info, warning, error")
	)
	flag.Parse()

	switch *loglevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", *loglevel)
	}

	laddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		log.Fatalf("resolving %s: %v", *addr, err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: laddr.Port})
	if err != nil {
		log.Fatalf("listening on %s: %v", *addr, err)
	}
	defer conn.Close()

	pc := ipv4.NewPacketConn(conn)
	var ifi *net.Interface
	if *iface != "" {
		ifi, err = net.InterfaceByName(*iface)
		if err != nil {
			log.Fatalf("resolving interface %s: %v", *iface, err)
		}
	}
	if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: laddr.IP}); err != nil {
		log.Fatalf("joining multicast group %s: %v", laddr.IP, err)
	}

	var pubID *model.PublisherID
	if *publisherID != 0 {
		pubID = model.NewPublisherIDUInt32(uint32(*publisherID))
	}

	wanted := map[uint16]bool{}
	var all bool
	if *writerIDs == "" {
		all = true
	} else {
		var id uint16
		for _, r := range *writerIDs {
			if r == ',' {
				wanted[id] = true
				id = 0
				continue
			}
			id = id*10 + uint16(r-'0')
		}
		wanted[id] = true
	}

	var table *tablewriter.Table
	if *human {
		table = tablewriter.NewWriter(os.Stdout)
		table.SetColWidth(20)
		table.SetHeader([]string{"group", "writer", "seq", "fields", "first value"})
	}

	onDSM := func(dsm *model.DataSetMessage) {
		if !all && !wanted[dsm.WriterID] {
			return
		}
		if *human {
			printHuman(table, uint16(*groupID), dsm)
			table.Render()
			return
		}
		log.WithField("groupId", *groupID).
			WithField("writerId", dsm.WriterID).
			WithField("seqNum", dsm.SeqNum).
			Infof("received %d fields", len(dsm.Fields))
	}

	readers := []*reader.DataSetReaderConfig{}
	if all {
		readers = append(readers, &reader.DataSetReaderConfig{MatchAnyWriterID: true, OnDataSetMessage: onDSM})
	} else {
		for id := range wanted {
			readers = append(readers, &reader.DataSetReaderConfig{WriterID: id, OnDataSetMessage: onDSM})
		}
	}

	const gapTimeout = 10 * time.Second
	mgr := &reader.Manager{
		Groups: []*reader.ReaderGroupConfig{
			{
				PublisherID: pubID,
				GroupID:     uint16(*groupID),
				Readers:     readers,
			},
		},
		GapTimeout: gapTimeout,
		OnGap: func(publisherID *model.PublisherID, groupID, writerID uint16, received, last uint16) {
			color.Yellow("gap: group %d writer %d: received seq %d, last seen %d", groupID, writerID, received, last)
		},
		OnTimeout: func(publisherID *model.PublisherID, groupID, writerID uint16) {
			color.Red("timeout: group %d writer %d silent for %s", groupID, writerID, gapTimeout)
		},
	}
	cb := mgr.Callbacks()

	log.Infof("listening for group %d on %s", *groupID, *addr)
	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Warningf("read: %v", err)
			continue
		}
		if _, err := uadp.DecodeMessage(buf[:n], cb); err != nil {
			log.WithError(err).Debug("decode failed")
		}
	}
}
