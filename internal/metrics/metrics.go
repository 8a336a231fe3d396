// Package metrics はカウンタとレイテンシの記録先を抽象化します。
package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Recorder は各コンポーネントが計測値を書き込む先です。
type Recorder interface {
	RecordLatency(ctx context.Context, name string, d time.Duration)
	IncrementCounter(ctx context.Context, name string, delta int)
}

type Noop struct{}

func (Noop) RecordLatency(context.Context, string, time.Duration) {}

func (Noop) IncrementCounter(context.Context, string, int) {}

var _ Recorder = Noop{}

// Counters はプロセス内でカウンタを保持するRecorderです。/health とテストで読み出します。
type Counters struct {
	mu      sync.Mutex
	counts  map[string]int64
	lastLat map[string]time.Duration
}

func NewCounters() *Counters {
	return &Counters{counts: make(map[string]int64), lastLat: make(map[string]time.Duration)}
}

func (c *Counters) RecordLatency(_ context.Context, name string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastLat[name] = d
}

func (c *Counters) IncrementCounter(_ context.Context, name string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name] += int64(delta)
}

func (c *Counters) Get(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Snapshot は全カウンタのコピーを返します。
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Names はカウンタ名を昇順で返します。
func (c *Counters) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.counts))
	for k := range c.counts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OTel はOpenTelemetryのmeterに計測値を流すRecorderです。計器は名前ごとに遅延生成します。
type OTel struct {
	meter      metric.Meter
	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

func NewOTel(meter metric.Meter) *OTel {
	return &OTel{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (o *OTel) IncrementCounter(ctx context.Context, name string, delta int) {
	o.mu.Lock()
	c, ok := o.counters[name]
	if !ok {
		var err error
		c, err = o.meter.Int64Counter(name)
		if err != nil {
			o.mu.Unlock()
			return
		}
		o.counters[name] = c
	}
	o.mu.Unlock()
	c.Add(ctx, int64(delta))
}

func (o *OTel) RecordLatency(ctx context.Context, name string, d time.Duration) {
	o.mu.Lock()
	h, ok := o.histograms[name]
	if !ok {
		var err error
		h, err = o.meter.Float64Histogram(name, metric.WithUnit("ms"))
		if err != nil {
			o.mu.Unlock()
			return
		}
		o.histograms[name] = h
	}
	o.mu.Unlock()
	h.Record(ctx, float64(d.Microseconds())/1000)
}

// Tee は複数のRecorderへ同じ値を書き込みます。
type Tee []Recorder

func (t Tee) RecordLatency(ctx context.Context, name string, d time.Duration) {
	for _, r := range t {
		r.RecordLatency(ctx, name, d)
	}
}

func (t Tee) IncrementCounter(ctx context.Context, name string, delta int) {
	for _, r := range t {
		r.IncrementCounter(ctx, name, delta)
	}
}
