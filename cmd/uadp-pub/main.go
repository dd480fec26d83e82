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

// uadp-pub is an example UDP multicast publisher binary demonstrating the
// pubsub package end to end, using a flat flag set.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/opcua-pubsub/uadp/model"
	"github.com/opcua-pubsub/uadp/pubsub"
)

// udpTransport sends each WriterGroup's datagram to a single multicast
// destination, ignoring groupID; a real deployment would map groups to
// distinct multicast addresses/ports.
type udpTransport struct {
	conn *net.UDPConn
}

func (t *udpTransport) Send(_ uint16, datagram []byte) error {
	_, err := t.conn.Write(datagram)
	return err
}

func main() {
	var (
		addr           = flag.String("addr", "239.0.0.1:4840", "multicast destination address:port")
		configFile     = flag.String("config", "", "path to a YAML writer-group config")
		publisherID    = flag.Uint("publisherid", 1, "publisher id (UInt32)")
		loglevel       = flag.String("loglevel", "info", "log level: debug, info, warning, error")
		monitoringAddr = flag.String("monitoringaddr", ":8888", "host:port to serve /metrics on")
		pidFile        = flag.String("pidfile", "", "path to write the process id to, if set")
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

	if *configFile == "" {
		log.Fatal("-config is required")
	}
	groups, err := pubsub.ReadWriterGroups(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	if *pidFile != "" {
		cfg := &pubsub.StaticConfig{PidFile: *pidFile}
		if err := cfg.CreatePidFile(); err != nil {
			log.Fatalf("writing pid file: %v", err)
		}
		defer cfg.DeletePidFile()
	}

	raddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		log.Fatalf("resolving %s: %v", *addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("dialing %s: %v", *addr, err)
	}
	defer conn.Close()

	reg := prometheus.NewRegistry()
	stats := pubsub.NewPrometheusStats(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		log.Infof("serving metrics on %s", *monitoringAddr)
		log.Println(http.ListenAndServe(*monitoringAddr, mux))
	}()

	p := &pubsub.Publisher{
		PublisherID: model.NewPublisherIDUInt32(uint32(*publisherID)),
		Transport:   &udpTransport{conn: conn},
		Stats:       stats,
	}
	for _, g := range groups {
		if err := p.AddWriterGroup(g); err != nil {
			log.Fatalf("adding writer group %d: %v", g.GroupID, err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Infof("publishing %d writer groups to %s", len(groups), *addr)
	if err := p.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
