// Package instrument provides a lightweight named-interval timer used by
// the orchestration components for diagnostics.
package instrument

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/gasbench/benchmatrix/internal/output"
)

// Timer records named intervals into per-label HDR histograms.
//
// It is owned by the run scheduler and shared by reference with the
// components that record spans. The sequential execution model means no
// locking is required.
type Timer struct {
	hists   map[string]*hdrhistogram.Histogram
	order   []string
	console *output.Console
}

// NewTimer creates a Timer. The console may be nil, in which case spans
// are recorded silently.
func NewTimer(console *output.Console) *Timer {
	return &Timer{
		hists:   make(map[string]*hdrhistogram.Histogram),
		console: console,
	}
}

// Start begins a named interval and returns a function that ends it.
//
//	stop := timer.Start("launch/geth")
//	defer stop()
func (t *Timer) Start(label string) func() {
	begin := time.Now()
	if t.console != nil {
		t.console.Debugf("[timer] %s started", label)
	}
	return func() {
		elapsed := time.Since(begin)
		t.Record(label, elapsed)
		if t.console != nil {
			t.console.Debugf("[timer] %s finished in %s", label, elapsed.Round(time.Millisecond))
		}
	}
}

// Record adds a single measurement to the label's histogram.
func (t *Timer) Record(label string, d time.Duration) {
	hist, ok := t.hists[label]
	if !ok {
		// 1 microsecond to 1 hour, 3 significant figures
		hist = hdrhistogram.New(1, time.Hour.Microseconds(), 3)
		t.hists[label] = hist
		t.order = append(t.order, label)
	}
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	// Out-of-range values are clamped by the histogram; ignore the error.
	_ = hist.RecordValue(us)
}

// Count returns the number of spans recorded under label.
func (t *Timer) Count(label string) int64 {
	if hist, ok := t.hists[label]; ok {
		return hist.TotalCount()
	}
	return 0
}

// Summary renders a per-label table of count, p50, p95 and max.
func (t *Timer) Summary() string {
	if len(t.order) == 0 {
		return ""
	}
	labels := append([]string(nil), t.order...)
	sort.Strings(labels)

	var b strings.Builder
	b.WriteString("interval                                      count      p50      p95      max\n")
	for _, label := range labels {
		hist := t.hists[label]
		b.WriteString(fmt.Sprintf("%-42s %7d %8s %8s %8s\n",
			label,
			hist.TotalCount(),
			microString(hist.ValueAtQuantile(50)),
			microString(hist.ValueAtQuantile(95)),
			microString(hist.Max()),
		))
	}
	return b.String()
}

func microString(us int64) string {
	return (time.Duration(us) * time.Microsecond).Round(time.Millisecond).String()
}
