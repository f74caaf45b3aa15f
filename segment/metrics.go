//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package segment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NsObserver records a duration given a start timestamp in nanoseconds
// (time.Now().UnixNano()), matching the teacher's callback-style timing
// helpers rather than defer-based prometheus.Timer usage.
type NsObserver func(startNs int64)

// Metrics is curried per table (by table name) the same way the teacher
// curries per class/shard: every method is nil-receiver-safe so a Table
// built without a registry still runs at full speed.
type Metrics struct {
	ConversionDuration prometheus.ObserverVec
	PurgeDuration       prometheus.ObserverVec
	ActiveSegments      *prometheus.GaugeVec
	SegmentRows         *prometheus.GaugeVec
	SegmentSize         *prometheus.GaugeVec
	BloomFilters        prometheus.ObserverVec
	DictZipBuildDuration prometheus.ObserverVec
	DictZipSampleBytes  *prometheus.GaugeVec
}

// NewMetrics registers the vectors against reg (pass prometheus.DefaultRegisterer
// for process-wide registration) and curries every metric with the owning
// table's name, mirroring metrics.go's MustCurryWith(class_name/shard_name)
// pattern.
func NewMetrics(reg prometheus.Registerer, tableName string) *Metrics {
	conversionDuration := registerHistogramVec(reg, prometheus.HistogramOpts{
		Namespace: "terark_db",
		Name:      "conversion_duration_ms",
		Help:      "Duration of a writable-to-readonly segment conversion in milliseconds.",
	}, []string{"table"})

	purgeDuration := registerHistogramVec(reg, prometheus.HistogramOpts{
		Namespace: "terark_db",
		Name:      "purge_duration_ms",
		Help:      "Duration of a readonly segment compaction in milliseconds.",
	}, []string{"table"})

	activeSegments := registerGaugeVec(reg, prometheus.GaugeOpts{
		Namespace: "terark_db",
		Name:      "active_segments",
		Help:      "Number of segments currently held by a table.",
	}, []string{"table", "state"})

	segmentRows := registerGaugeVec(reg, prometheus.GaugeOpts{
		Namespace: "terark_db",
		Name:      "segment_rows",
		Help:      "Logical row count of a segment.",
	}, []string{"table", "segment"})

	segmentSize := registerGaugeVec(reg, prometheus.GaugeOpts{
		Namespace: "terark_db",
		Name:      "segment_size_bytes",
		Help:      "On-disk storage size of a segment.",
	}, []string{"table", "segment"})

	bloomFilters := registerHistogramVec(reg, prometheus.HistogramOpts{
		Namespace: "terark_db",
		Name:      "bloom_filter_duration_ns",
		Help:      "Duration of a bloom-filter guarded point lookup in nanoseconds.",
	}, []string{"table", "strategy", "outcome"})

	dictZipBuildDuration := registerHistogramVec(reg, prometheus.HistogramOpts{
		Namespace: "terark_db",
		Name:      "dictzip_build_duration_ms",
		Help:      "Duration of a dict-zip two-pass build in milliseconds.",
	}, []string{"table"})

	dictZipSampleBytes := registerGaugeVec(reg, prometheus.GaugeOpts{
		Namespace: "terark_db",
		Name:      "dictzip_sample_bytes",
		Help:      "Bytes fed into the dict-zip sample dictionary on the last build.",
	}, []string{"table"})

	return &Metrics{
		ConversionDuration:   conversionDuration.MustCurryWith(prometheus.Labels{"table": tableName}),
		PurgeDuration:        purgeDuration.MustCurryWith(prometheus.Labels{"table": tableName}),
		ActiveSegments:       curryGaugeVec(activeSegments, tableName),
		SegmentRows:          curryGaugeVec(segmentRows, tableName),
		SegmentSize:          curryGaugeVec(segmentSize, tableName),
		BloomFilters:         bloomFilters.MustCurryWith(prometheus.Labels{"table": tableName}),
		DictZipBuildDuration: dictZipBuildDuration.MustCurryWith(prometheus.Labels{"table": tableName}),
		DictZipSampleBytes:   curryGaugeVec(dictZipSampleBytes, tableName),
	}
}

func registerHistogramVec(reg prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(opts, labels)
	if reg != nil {
		reg.MustRegister(vec)
	}
	return vec
}

func registerGaugeVec(reg prometheus.Registerer, opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(opts, labels)
	if reg != nil {
		reg.MustRegister(vec)
	}
	return vec
}

func curryGaugeVec(vec *prometheus.GaugeVec, tableName string) *prometheus.GaugeVec {
	curried, err := vec.CurryWith(prometheus.Labels{"table": tableName})
	if err != nil {
		panic(err)
	}
	return curried
}

func noOpNsObserver(startNs int64) {}

// ConversionOpObserver returns a callback the converter invokes with its
// start timestamp once conversion completes.
func (m *Metrics) ConversionOpObserver() NsObserver {
	if m == nil {
		return noOpNsObserver
	}
	curried := m.ConversionDuration
	return func(startNs int64) {
		took := float64(time.Now().UnixNano()-startNs) / float64(time.Millisecond)
		curried.WithLabelValues().Observe(took)
	}
}

// PurgeOpObserver mirrors ConversionOpObserver for the purger.
func (m *Metrics) PurgeOpObserver() NsObserver {
	if m == nil {
		return noOpNsObserver
	}
	curried := m.PurgeDuration
	return func(startNs int64) {
		took := float64(time.Now().UnixNano()-startNs) / float64(time.Millisecond)
		curried.WithLabelValues().Observe(took)
	}
}

func (m *Metrics) SetActiveSegments(state string, count int) {
	if m == nil {
		return
	}
	m.ActiveSegments.With(prometheus.Labels{"state": state}).Set(float64(count))
}

func (m *Metrics) SetSegmentRows(segment string, rows uint64) {
	if m == nil {
		return
	}
	m.SegmentRows.With(prometheus.Labels{"segment": segment}).Set(float64(rows))
}

func (m *Metrics) SetSegmentSize(segment string, bytes uint64) {
	if m == nil {
		return
	}
	m.SegmentSize.With(prometheus.Labels{"segment": segment}).Set(float64(bytes))
}

func (m *Metrics) TrackDictZipBuild(start time.Time, sampleBytes uint64) {
	if m == nil {
		return
	}
	took := float64(time.Since(start)) / float64(time.Millisecond)
	m.DictZipBuildDuration.WithLabelValues().Observe(took)
	m.DictZipSampleBytes.WithLabelValues().Set(float64(sampleBytes))
}

// TimeObserver records a duration given a time.Time start, used by the
// bloom-filter-guarded lookup path where callers already hold a
// time.Now() rather than a raw nanosecond timestamp.
type TimeObserver func(start time.Time)

func noOpTimeObserver(time.Time) {}

// BloomFilterObserver curries a (strategy, outcome) pair once so the hot
// lookup path never re-builds a prometheus.Labels map per call.
func (m *Metrics) BloomFilterObserver(strategy, outcome string) TimeObserver {
	if m == nil {
		return noOpTimeObserver
	}
	curried := m.BloomFilters.With(prometheus.Labels{"strategy": strategy, "outcome": outcome})
	return func(start time.Time) {
		curried.Observe(float64(time.Since(start).Nanoseconds()))
	}
}
