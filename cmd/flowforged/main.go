/*
Copyright 2023 Alexander Bartolomey (github@alexanderbartolomey.de)

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

// Command flowforged wires C1-C8 and pkg/sensors/pkg/flowctx into a
// runnable exporter: bind the UDP socket, load the sensor configuration,
// start the worker pool, and serve /metrics, per spec.md §2's "UDP socket
// receive loop ... command-line parsing" out-of-scope collaborators and
// SPEC_FULL.md's module map row for this package.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowforge/flowforge/pkg/enrich"
	"github.com/flowforge/flowforge/pkg/enrich/ptr"
	"github.com/flowforge/flowforge/pkg/flowctx"
	"github.com/flowforge/flowforge/pkg/flowlog"
	"github.com/flowforge/flowforge/pkg/ingest"
	"github.com/flowforge/flowforge/pkg/sensors"
	"github.com/flowforge/flowforge/pkg/template"
	"github.com/flowforge/flowforge/pkg/transport"
	"github.com/flowforge/flowforge/pkg/worker"
)

type stdoutSink struct{}

func (stdoutSink) Publish(_ context.Context, _ string, line []byte) error {
	_, err := os.Stdout.Write(line)
	return err
}

func main() {
	var (
		bindAddr     = flag.String("listen", ":2055", "UDP address to receive NetFlow/IPFIX datagrams on")
		metricsAddr  = flag.String("metrics-listen", ":9090", "HTTP address to serve Prometheus metrics on")
		sensorsPath  = flag.String("sensors", "", "path to the sensor configuration JSON file")
		macVendors   = flag.String("mac-vendors", "", "path to the MAC vendor (OUI) database file")
		macNames     = flag.String("mac-names", "", "path to the operator MAC name override file")
		workers      = flag.Int("workers", runtime.NumCPU(), "number of worker goroutines")
		ptrPositive  = flag.Duration("ptr-positive-ttl", 30*time.Minute, "PTR cache positive entry TTL")
		ptrNegative  = flag.Duration("ptr-negative-ttl", 2*time.Minute, "PTR cache negative entry TTL")
		ptrDeadline  = flag.Duration("ptr-deadline", 20*time.Millisecond, "per-record PTR resolution deadline")
	)
	flag.Parse()

	zapLogger, err := flowlog.NewZapProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowforged: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	flowlog.SetLogger(logr.New(flowlog.NewZapSink(zapLogger)))
	log := flowlog.Log

	sensorCfg, err := loadSensorConfig(*sensorsPath)
	if err != nil {
		log.Error(err, "failed to load sensor configuration")
		os.Exit(1)
	}
	sensorsDB, err := sensors.NewDatabase(sensorCfg)
	if err != nil {
		log.Error(err, "failed to build sensor database")
		os.Exit(1)
	}

	macVendorsDB := enrich.NewMACVendors()
	if *macVendors != "" {
		if err := macVendorsDB.Reload(*macVendors); err != nil {
			log.Error(err, "failed to load MAC vendor database, continuing without one")
		}
	}
	macNamesDB := enrich.NewMACNames()
	if *macNames != "" {
		if err := macNamesDB.Reload(*macNames); err != nil {
			log.Error(err, "failed to load MAC name database, continuing without one")
		}
	}
	geoipDB := enrich.NewCIDRGeoIP()

	sources := flowctx.Sources{
		MACVendors: macVendorsDB,
		MACNames:   macNamesDB,
		GeoIP:      geoipDB,
		Protocols:  enrich.NewProtocolNames(),
	}

	ptrCache := ptr.New(ptr.NetResolver{}, *ptrPositive, *ptrNegative)

	fctx := flowctx.New(sensorsDB, template.New(), sources, ptrCache, stdoutSink{}, *ptrDeadline, time.Now)

	pool := worker.NewPool(fctx, worker.Config{Workers: *workers})
	dispatcher := ingest.New(pool)

	listener := transport.NewUDPListener(*bindAddr, transport.UDPListenerConfig{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = flowlog.IntoContext(ctx, log)

	go serveMetrics(*metricsAddr, log)
	go handleReloadSignal(ctx, *sensorsPath, *macVendors, *macNames, sensorsDB, macVendorsDB, macNamesDB, log)

	errCh := make(chan error, 2)
	go func() { errCh <- pool.Run(ctx) }()
	go func() { errCh <- listener.Listen(ctx) }()

	go func() {
		for dg := range listener.Datagrams() {
			dispatcher.HandleDatagram(ctx, dg.SensorIP, dg.Payload)
		}
	}()

	log.Info("flowforged started", "listen", *bindAddr, "workers", *workers)

	remaining := 2
	select {
	case <-ctx.Done():
	case err := <-errCh:
		remaining--
		if err != nil {
			log.Error(err, "fatal startup error")
			os.Exit(1)
		}
	}

	// wait for whichever of the worker pool / listener hasn't finished yet
	// to drain, per spec.md §5's cooperative shutdown sequence.
	for ; remaining > 0; remaining-- {
		<-errCh
	}
	log.Info("flowforged stopped")
}

func loadSensorConfig(path string) (sensors.Config, error) {
	if path == "" {
		return sensors.Config{}, nil
	}
	loader := sensors.JSONLoader{Read: func() ([]byte, error) { return os.ReadFile(path) }}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// handleReloadSignal re-reads the sensor/MAC databases on SIGHUP, per
// spec.md §5 "Environment: reload signal prompts re-read of host/network/
// MAC/GeoIP databases." A failed reload keeps the previous database in
// place, per spec.md §7.
func handleReloadSignal(ctx context.Context, sensorsPath, macVendorsPath, macNamesPath string, db *sensors.Database, vendors *enrich.DefaultMACVendors, names *enrich.DefaultMACNames, log interface {
	Error(err error, msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
}) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			log.Info("reload signal received, re-reading databases")
			if sensorsPath != "" {
				if cfg, err := loadSensorConfig(sensorsPath); err != nil {
					log.Error(err, "sensor config reload failed, keeping previous configuration")
				} else if err := db.Reload(cfg); err != nil {
					log.Error(err, "sensor database reload failed, keeping previous database")
				}
			}
			if macVendorsPath != "" {
				if err := vendors.Reload(macVendorsPath); err != nil {
					log.Error(err, "MAC vendor database reload failed, keeping previous database")
				}
			}
			if macNamesPath != "" {
				if err := names.Reload(macNamesPath); err != nil {
					log.Error(err, "MAC name database reload failed, keeping previous database")
				}
			}
		}
	}
}

func serveMetrics(addr string, log interface {
	Error(err error, msg string, keysAndValues ...interface{})
}) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error(err, "metrics server stopped", "addr", addr)
	}
}
