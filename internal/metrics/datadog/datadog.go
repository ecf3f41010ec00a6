// Package datadog is a buffering Datadog backend for internal/metrics.
//
// Observations are aggregated in memory and submitted on a ticker and once
// more on Close, so both one-shot subcommands and long object-store scans
// produce a usable time series. Only the eduetl_* metrics declared in
// internal/metrics are accepted; anything else is dropped.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"eduetl/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>". Defaults to "eduetl".
	JobName string

	// Tags are extra tags such as "env:prod".
	Tags []string

	// FlushEvery defaults to 60s when <= 0.
	FlushEvery time.Duration

	// test seams
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter submitter
}

type submitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// series identity inside one flush window: datadog metric name plus the
// extra tags, joined with \x00.
type seriesKey string

func makeKey(metric string, tags ...string) seriesKey {
	return seriesKey(metric + "\x00" + strings.Join(tags, "\x00"))
}

func (k seriesKey) split() (metric string, tags []string) {
	parts := strings.Split(string(k), "\x00")
	metric = parts[0]
	for _, p := range parts[1:] {
		if p != "" {
			tags = append(tags, p)
		}
	}
	return metric, tags
}

// Backend implements metrics.Backend.
type Backend struct {
	api      submitter
	ctx      context.Context
	baseTags []string

	flushEvery time.Duration
	now        func() time.Time
	newTicker  func(d time.Duration) *time.Ticker
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	mu      sync.Mutex
	counts  map[seriesKey]float64
	samples map[seriesKey][]float64
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend constructs a Datadog backend and starts its flush loop.
//
// Credentials and site come from the usual DD_API_KEY / DD_SITE environment
// through dd.NewDefaultContext. Network errors surface from Flush, not here.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(fmt.Errorf("nil context"))
	}
	job := opts.JobName
	if job == "" {
		job = "eduetl"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	api := opts.submitter
	if api == nil {
		api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	b := &Backend{
		api:        api,
		ctx:        dd.NewDefaultContext(parent),
		baseTags:   withTags([]string{resolveEnvTag(), "job:" + job}, opts.Tags...),
		flushEvery: flushEvery,
		now:        nowFn,
		newTicker:  newTicker,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		counts:     make(map[seriesKey]float64),
		samples:    make(map[seriesKey][]float64),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)
	t := b.newTicker(b.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and submits whatever is still buffered.
// Subsequent calls only flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	var k seriesKey
	switch name {
	case metrics.StepTotal:
		k = makeKey("eduetl.step.total", tag("step", labels), tag("status", labels))
	case metrics.RecordsTotal:
		if labels["kind"] == "" {
			return
		}
		k = makeKey("eduetl.records.total", tag("kind", labels))
	case metrics.GroupsTotal:
		k = makeKey("eduetl.groups.total", tag("status", labels))
	default:
		return
	}
	b.mu.Lock()
	b.counts[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.StepDurationSeconds {
		return
	}
	k := makeKey("eduetl.step.duration_seconds", tag("step", labels), tag("status", labels))
	b.mu.Lock()
	b.samples[k] = append(b.samples[k], value)
	b.mu.Unlock()
}

func tag(name string, labels metrics.Labels) string {
	v := labels[name]
	if v == "" {
		v = "unknown"
	}
	return name + ":" + v
}

// Flush submits buffered metrics and resets the buffers, even when the
// submission fails. Nothing is sent for an empty window.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counts, samples := b.counts, b.samples
	b.counts = make(map[seriesKey]float64)
	b.samples = make(map[seriesKey][]float64)
	b.mu.Unlock()

	if len(counts) == 0 && len(samples) == 0 {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.buildSeries(counts, samples, b.now().Unix())}
	if _, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters()); err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// buildSeries is pure; output is sorted by metric name then tags.
func (b *Backend) buildSeries(counts map[seriesKey]float64, samples map[seriesKey][]float64, nowUnix int64) []datadogV2.MetricSeries {
	out := make([]datadogV2.MetricSeries, 0, len(counts)+6*len(samples))
	for k, v := range counts {
		metric, tags := k.split()
		out = append(out, point(datadogV2.METRICINTAKETYPE_COUNT, metric, v, withTags(b.baseTags, tags...), nowUnix))
	}
	for k, s := range samples {
		metric, tags := k.split()
		out = append(out, percentiles(metric, s, withTags(b.baseTags, tags...), nowUnix)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		return strings.Join(out[i].Tags, ",") < strings.Join(out[j].Tags, ",")
	})
	return out
}

// percentiles renders p50/p90/p95/p99/max/samples gauges. samples is not
// mutated.
func percentiles(prefix string, samples []float64, tags []string, nowUnix int64) []datadogV2.MetricSeries {
	if len(samples) == 0 {
		return nil
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)
	g := datadogV2.METRICINTAKETYPE_GAUGE
	return []datadogV2.MetricSeries{
		point(g, prefix+".p50", nearestRank(cp, 0.50), tags, nowUnix),
		point(g, prefix+".p90", nearestRank(cp, 0.90), tags, nowUnix),
		point(g, prefix+".p95", nearestRank(cp, 0.95), tags, nowUnix),
		point(g, prefix+".p99", nearestRank(cp, 0.99), tags, nowUnix),
		point(g, prefix+".max", cp[len(cp)-1], tags, nowUnix),
		point(g, prefix+".samples", float64(len(cp)), tags, nowUnix),
	}
}

func point(typ datadogV2.MetricIntakeType, metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

// nearestRank expects s sorted ascending.
func nearestRank(s []float64, p float64) float64 {
	n := len(s)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return s[0]
	case p >= 1:
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	return append(out, extras...)
}

func resolveEnvTag() string {
	for _, name := range []string{"ENV", "DD_ENV"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return "env:" + v
		}
	}
	return "env:unknown"
}

// ParseTagsCSV parses "env:prod,team:content" into tags, skipping blanks.
func ParseTagsCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
