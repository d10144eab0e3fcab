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

// Package metrics holds the process-wide prometheus collectors for the
// decode and enrichment pipeline. They are package-level vars, exactly like
// the teacher's metrics.go, registered once at import time.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DatagramsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowforge_datagrams_total",
		Help: "Total number of datagrams accepted by the wire reader.",
	})
	DatagramsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowforge_datagrams_dropped_total",
		Help: "Total number of datagrams dropped, by reason.",
	}, []string{"reason"})
	DecodeDurationMicroseconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowforge_decode_duration_microseconds",
		Help:    "Duration of decoding a single datagram, in microseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
	DecodedRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowforge_decoded_records_total",
		Help: "Total number of data records successfully decoded and emitted.",
	}, []string{"sensor"})
	DroppedRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowforge_dropped_records_total",
		Help: "Total number of data records dropped, by reason.",
	}, []string{"reason"})
	TemplateUpsertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowforge_template_upserts_total",
		Help: "Total number of template/option-template upserts, by kind.",
	}, []string{"kind"})
	PTRLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowforge_ptr_lookups_total",
		Help: "Total number of PTR cache lookups, by outcome.",
	}, []string{"outcome"}) // hit, miss
	WorkerQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowforge_worker_queue_depth",
		Help: "Current depth of a worker's template or data queue.",
	}, []string{"worker", "queue"})
)

func init() {
	prometheus.MustRegister(
		DatagramsTotal,
		DatagramsDropped,
		DecodeDurationMicroseconds,
		DecodedRecordsTotal,
		DroppedRecordsTotal,
		TemplateUpsertsTotal,
		PTRLookupsTotal,
		WorkerQueueDepth,
	)
}
