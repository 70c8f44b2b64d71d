// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sigil-dev/relay/internal/config"
)

type modelState struct {
	callsToday int
	notFound   bool // vendor reported the model missing; sticks for the process lifetime
	day        time.Time
}

// ModelSelector tracks runtime state for one vendor's models. Usage
// counters roll over lazily at UTC midnight like credential counters,
// but a model the vendor reported as unknown stays excluded until the
// process restarts or the config is corrected.
type ModelSelector struct {
	mu     sync.Mutex
	states map[string]*modelState

	nowFunc func() time.Time
}

// NewModelSelector creates an empty selector.
func NewModelSelector() *ModelSelector {
	return &ModelSelector{
		states:  make(map[string]*modelState),
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the time source (for testing).
func (s *ModelSelector) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	s.nowFunc = fn
	s.mu.Unlock()
}

// state returns the entry for name, creating it and applying the daily
// rollover as needed. Callers must hold s.mu.
func (s *ModelSelector) state(name string) *modelState {
	today := utcDay(s.nowFunc())
	st, ok := s.states[name]
	if !ok {
		st = &modelState{day: today}
		s.states[name] = st
		return st
	}
	if st.day.Before(today) {
		st.day = today
		st.callsToday = 0
	}
	return st
}

func (s *ModelSelector) selectable(mc config.ModelConfig, st *modelState) bool {
	if !mc.Enabled || st.notFound {
		return false
	}
	if mc.DailyLimit > 0 && int64(st.callsToday) >= mc.DailyLimit {
		return false
	}
	return true
}

// Best picks the most eligible model: an optional task hint matched as
// a substring narrows the candidates first, then lowest priority number
// wins, then most remaining daily calls, then config order. It returns
// false when no model is selectable.
func (s *ModelSelector) Best(models []config.ModelConfig, taskHint string) (config.ModelConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pick := func(require bool) (config.ModelConfig, bool) {
		type candidate struct {
			cfg       config.ModelConfig
			remaining int64
			order     int
		}
		var cands []candidate
		for i, mc := range models {
			if require && !strings.Contains(strings.ToLower(mc.Name), strings.ToLower(taskHint)) {
				continue
			}
			st := s.state(mc.Name)
			if !s.selectable(mc, st) {
				continue
			}
			remaining := int64(math.MaxInt64)
			if mc.DailyLimit > 0 {
				remaining = mc.DailyLimit - int64(st.callsToday)
			}
			cands = append(cands, candidate{cfg: mc, remaining: remaining, order: i})
		}
		if len(cands) == 0 {
			return config.ModelConfig{}, false
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

	if taskHint != "" {
		if mc, ok := pick(true); ok {
			return mc, true
		}
	}
	return pick(false)
}

// RecordUsage counts one call against the model.
func (s *ModelSelector) RecordUsage(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(name).callsToday++
}

// MarkNotFound excludes the model after the vendor reported it unknown.
// The exclusion does not roll over at midnight; a missing model is a
// config problem, not a quota one.
func (s *ModelSelector) MarkNotFound(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(name).notFound = true
}

// ActiveCount reports how many of models are currently selectable.
func (s *ModelSelector) ActiveCount(models []config.ModelConfig) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, mc := range models {
		if s.selectable(mc, s.state(mc.Name)) {
			n++
		}
	}
	return n
}
