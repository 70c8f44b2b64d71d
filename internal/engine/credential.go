// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sigil-dev/relay/internal/config"
)

// credentialState is the runtime half of a credential: usage counters
// and failure tracking live here, while priority and limits stay in the
// config snapshot and are passed in per call. That split keeps counters
// intact across config reloads.
type credentialState struct {
	callsToday          int
	consecutiveFailures int
	deactivated         bool
	day                 time.Time // UTC midnight of the day the counters belong to
}

// CredentialPool tracks runtime state for one vendor's credentials.
// Counters roll over lazily at UTC midnight: the first read after the
// day boundary resets usage and reactivates soft-deactivated
// credentials. There is no background timer.
type CredentialPool struct {
	mu          sync.Mutex
	states      map[string]*credentialState
	maxFailures int

	nowFunc func() time.Time
}

// NewCredentialPool creates a pool. maxFailures is the consecutive
// failure count at which a credential is soft-deactivated for the rest
// of the day.
func NewCredentialPool(maxFailures int) *CredentialPool {
	return &CredentialPool{
		states:      make(map[string]*credentialState),
		maxFailures: maxFailures,
		nowFunc:     time.Now,
	}
}

// SetNowFunc overrides the time source (for testing).
func (p *CredentialPool) SetNowFunc(fn func() time.Time) {
	p.mu.Lock()
	p.nowFunc = fn
	p.mu.Unlock()
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// state returns the entry for id, creating it and applying the daily
// rollover as needed. Callers must hold p.mu.
func (p *CredentialPool) state(id string) *credentialState {
	today := utcDay(p.nowFunc())
	st, ok := p.states[id]
	if !ok {
		st = &credentialState{day: today}
		p.states[id] = st
		return st
	}
	if st.day.Before(today) {
		st.day = today
		st.callsToday = 0
		st.consecutiveFailures = 0
		st.deactivated = false
	}
	return st
}

func (p *CredentialPool) selectable(cc config.CredentialConfig, st *credentialState) bool {
	if !cc.Enabled || st.deactivated {
		return false
	}
	if p.maxFailures > 0 && st.consecutiveFailures >= p.maxFailures {
		return false
	}
	if cc.DailyLimit > 0 && int64(st.callsToday) >= cc.DailyLimit {
		return false
	}
	return true
}

// Best picks the most eligible credential from creds: lowest priority
// number first, then most remaining daily calls, then config order.
// It returns false when no credential is selectable.
func (p *CredentialPool) Best(creds []config.CredentialConfig) (config.CredentialConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	type candidate struct {
		cfg       config.CredentialConfig
		remaining int64
		order     int
	}
	var cands []candidate
	for i, cc := range creds {
		st := p.state(cc.ID)
		if !p.selectable(cc, st) {
			continue
		}
		remaining := int64(math.MaxInt64)
		if cc.DailyLimit > 0 {
			remaining = cc.DailyLimit - int64(st.callsToday)
		}
		cands = append(cands, candidate{cfg: cc, remaining: remaining, order: i})
	}
	if len(cands) == 0 {
		return config.CredentialConfig{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].cfg.Priority != cands[j].cfg.Priority {
			return cands[i].cfg.Priority < cands[j].cfg.Priority
		}
		if cands[i].remaining != cands[j].remaining {
			return cands[i].remaining > cands[j].remaining
		}
		return cands[i].order < cands[j].order
	})
	return cands[0].cfg, true
}

// RecordUsage counts one call against the credential. A success resets
// the consecutive failure streak; a failure extends it and
// soft-deactivates the credential once it reaches the threshold.
func (p *CredentialPool) RecordUsage(id string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.state(id)
	st.callsToday++
	if success {
		st.consecutiveFailures = 0
		return
	}
	st.consecutiveFailures++
	if p.maxFailures > 0 && st.consecutiveFailures >= p.maxFailures {
		st.deactivated = true
	}
}

// Deactivate takes the credential out of rotation for the rest of the
// UTC day, for failures that are definitive rather than transient
// (revoked key, exhausted upstream quota).
func (p *CredentialPool) Deactivate(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state(id).deactivated = true
}

// ActiveCount reports how many of creds are currently selectable.
func (p *CredentialPool) ActiveCount(creds []config.CredentialConfig) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, cc := range creds {
		if p.selectable(cc, p.state(cc.ID)) {
			n++
		}
	}
	return n
}

// CallsToday returns the usage counter for one credential.
func (p *CredentialPool) CallsToday(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state(id).callsToday
}
