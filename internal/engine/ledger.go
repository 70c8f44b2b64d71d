// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sigil-dev/relay/internal/store"
)

// vendorStats aggregates one vendor's attempt outcomes for the current
// UTC day. Latency is kept as a running sum so the average is exact.
type vendorStats struct {
	mu sync.Mutex

	callsToday    int
	successes     int
	failures      int
	latencySum    time.Duration
	lastFailureAt time.Time
	day           time.Time
}

// Ledger records every attempt the engine makes: an append-only trail
// through the optional AttemptStore plus in-memory per-vendor
// aggregates that feed the status endpoint and the vendor-level daily
// ceiling. Aggregates roll over lazily at UTC midnight.
type Ledger struct {
	mu      sync.Mutex
	vendors map[string]*vendorStats

	sink store.AttemptStore

	nowFunc func() time.Time
}

// NewLedger creates a ledger. sink may be nil, in which case records
// are aggregated but not persisted.
func NewLedger(sink store.AttemptStore) *Ledger {
	return &Ledger{
		vendors: make(map[string]*vendorStats),
		sink:    sink,
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the time source (for testing).
func (l *Ledger) SetNowFunc(fn func() time.Time) {
	l.mu.Lock()
	l.nowFunc = fn
	l.mu.Unlock()
}

func (l *Ledger) stats(vendor string) *vendorStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	vs, ok := l.vendors[vendor]
	if !ok {
		vs = &vendorStats{day: utcDay(l.nowFunc())}
		l.vendors[vendor] = vs
	}
	return vs
}

func (vs *vendorStats) rollover(today time.Time) {
	if vs.day.Before(today) {
		vs.day = today
		vs.callsToday = 0
		vs.successes = 0
		vs.failures = 0
		vs.latencySum = 0
	}
}

// Record appends one attempt. Persistence is best-effort: a failing
// sink is logged and never surfaces to the caller or blocks routing.
func (l *Ledger) Record(ctx context.Context, rec AttemptRecord) {
	l.mu.Lock()
	now := l.nowFunc()
	l.mu.Unlock()

	vs := l.stats(rec.Vendor)
	vs.mu.Lock()
	vs.rollover(utcDay(now))
	vs.callsToday++
	vs.latencySum += rec.Latency
	if rec.Success {
		vs.successes++
	} else {
		vs.failures++
		vs.lastFailureAt = rec.At
	}
	vs.mu.Unlock()

	if l.sink == nil {
		return
	}
	if err := l.sink.Append(ctx, store.Attempt{
		ID:           rec.ID,
		RequestID:    rec.RequestID,
		Vendor:       rec.Vendor,
		CredentialID: rec.CredentialID,
		Model:        rec.Model,
		At:           rec.At,
		Success:      rec.Success,
		LatencyMS:    rec.Latency.Milliseconds(),
		PromptTokens: rec.Usage.PromptTokens,
		OutputTokens: rec.Usage.CompletionTokens,
		Kind:         string(rec.Kind),
		Reason:       rec.Reason,
	}); err != nil {
		slog.Warn("attempt record not persisted", "vendor", rec.Vendor, "error", err)
	}
}

// CallsToday returns the vendor's attempt count for the current UTC day.
func (l *Ledger) CallsToday(vendor string) int {
	l.mu.Lock()
	now := l.nowFunc()
	l.mu.Unlock()

	vs := l.stats(vendor)
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.rollover(utcDay(now))
	return vs.callsToday
}

// VendorAggregates holds the derived numbers the status surface shows.
type VendorAggregates struct {
	CallsToday    int
	SuccessRate   float64
	AvgLatency    time.Duration
	LastFailureAt time.Time
}

// Aggregates returns today's derived stats for a vendor. SuccessRate is
// 1.0 for a vendor with no calls yet.
func (l *Ledger) Aggregates(vendor string) VendorAggregates {
	l.mu.Lock()
	now := l.nowFunc()
	l.mu.Unlock()

	vs := l.stats(vendor)
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.rollover(utcDay(now))

	agg := VendorAggregates{
		CallsToday:    vs.callsToday,
		SuccessRate:   1.0,
		LastFailureAt: vs.lastFailureAt,
	}
	if vs.callsToday > 0 {
		agg.SuccessRate = float64(vs.successes) / float64(vs.callsToday)
		agg.AvgLatency = vs.latencySum / time.Duration(vs.callsToday)
	}
	return agg
}
