// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/relay/internal/adapter"
	"github.com/sigil-dev/relay/internal/config"
	"github.com/sigil-dev/relay/internal/secrets"
	"github.com/sigil-dev/relay/pkg/health"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// defaultMaxAttempts bounds per-vendor invocations when the vendor
// config leaves max_attempts unset.
const defaultMaxAttempts = 2

// vendorRuntime is the mutable state the engine keeps per vendor:
// the adapter client, circuit breaker, and the credential and model
// pools. It survives config reloads so counters and breaker state are
// not lost when the snapshot swaps.
type vendorRuntime struct {
	adapter    adapter.Adapter
	adapterKey string // type|base_url the adapter was built with
	breaker    *Breaker
	creds      *CredentialPool
	models     *ModelSelector
}

// Engine routes completion requests across vendors in priority order,
// falling back on failure. It never returns an error to the caller:
// total exhaustion is reported as a failed Result.
type Engine struct {
	cfg     *config.Store
	secrets *secrets.Resolver
	ledger  *Ledger

	mu       sync.Mutex
	runtimes map[string]*vendorRuntime

	nowFunc func() time.Time
}

// New creates an Engine reading vendor definitions from cfg. resolver
// turns secret references into credential values; ledger records every
// attempt.
func New(cfg *config.Store, resolver *secrets.Resolver, ledger *Ledger) *Engine {
	return &Engine{
		cfg:      cfg,
		secrets:  resolver,
		ledger:   ledger,
		runtimes: make(map[string]*vendorRuntime),
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the time source for the engine and every vendor
// runtime it creates afterwards (for testing).
func (e *Engine) SetNowFunc(fn func() time.Time) {
	e.mu.Lock()
	e.nowFunc = fn
	for _, rt := range e.runtimes {
		rt.breaker.SetNowFunc(fn)
		rt.creds.SetNowFunc(fn)
		rt.models.SetNowFunc(fn)
	}
	e.mu.Unlock()
	e.ledger.SetNowFunc(fn)
}

// runtime returns the vendor's runtime, creating it on first use. The
// adapter is rebuilt when the vendor's type or base URL changed in a
// reload; breaker and pool state carry over.
func (e *Engine) runtime(vc config.VendorConfig, ec config.EngineConfig) (*vendorRuntime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rt, ok := e.runtimes[vc.Name]
	if !ok {
		rt = &vendorRuntime{
			breaker: NewBreaker(ec.BreakerFailureThreshold, ec.BreakerSuccessThreshold, ec.BreakerCooldown()),
			creds:   NewCredentialPool(ec.CredentialMaxFailures),
			models:  NewModelSelector(),
		}
		rt.breaker.SetNowFunc(e.nowFunc)
		rt.creds.SetNowFunc(e.nowFunc)
		rt.models.SetNowFunc(e.nowFunc)
		e.runtimes[vc.Name] = rt
	}

	key := vc.Type + "|" + vc.BaseURL
	if rt.adapter == nil || rt.adapterKey != key {
		if rt.adapter != nil {
			_ = rt.adapter.Close()
		}
		a, err := adapter.New(vc.Type, adapter.Config{Vendor: vc.Name, BaseURL: vc.BaseURL})
		if err != nil {
			return nil, err
		}
		rt.adapter = a
		rt.adapterKey = key
	}
	return rt, nil
}

// orderedVendors returns the enabled vendors in routing order: the
// preferred vendor first when named, then ascending priority.
func orderedVendors(cfg *config.Config, preferred string) []config.VendorConfig {
	sorted := cfg.SortedVendors()
	out := make([]config.VendorConfig, 0, len(sorted))
	if preferred != "" {
		for _, vc := range sorted {
			if vc.Name == preferred && vc.Enabled {
				out = append(out, vc)
			}
		}
	}
	for _, vc := range sorted {
		if !vc.Enabled || vc.Name == preferred {
			continue
		}
		out = append(out, vc)
	}
	return out
}

func buildMessages(req Request) []adapter.Message {
	if len(req.Messages) > 0 {
		return req.Messages
	}
	return []adapter.Message{{Role: adapter.MessageRoleUser, Content: req.Prompt}}
}

// Complete routes one request. Vendors are walked in priority order;
// within a vendor, credentials and models rotate and transient failures
// get one bounded retry with backoff. The request context bounds the
// whole chain, including backoff waits.
func (e *Engine) Complete(ctx context.Context, req Request) *Result {
	started := e.nowFunc()
	res := &Result{
		RequestID:     uuid.NewString(),
		FallbackChain: []string{},
	}
	defer func() { res.Elapsed = e.nowFunc().Sub(started) }()

	if req.Prompt == "" && len(req.Messages) == 0 {
		res.Error = "request requires a prompt or messages"
		return res
	}

	cfg := e.cfg.Current()
	ec := cfg.Engine
	defTimeout := time.Duration(ec.DefaultTimeoutSeconds) * time.Second
	base := time.Duration(ec.RetryBaseMillis) * time.Millisecond
	max := time.Duration(ec.RetryMaxMillis) * time.Millisecond
	msgs := buildMessages(req)

	vendors := orderedVendors(cfg, req.PreferredVendor)
	if len(vendors) == 0 {
		res.Error = "no enabled vendors configured"
		return res
	}

	for _, vc := range vendors {
		if ctx.Err() != nil {
			res.Error = "request deadline elapsed"
			return res
		}

		res.FallbackChain = append(res.FallbackChain, vc.Name)

		rt, err := e.runtime(vc, ec)
		if err != nil {
			res.Failures = append(res.Failures, VendorFailure{
				Vendor: vc.Name, Kind: FailureUnknown, Reason: err.Error(),
			})
			continue
		}

		// The quota check runs before the breaker gate so a limit skip
		// never consumes the single half-open probe slot.
		if vc.DailyLimit > 0 && int64(e.ledger.CallsToday(vc.Name)) >= vc.DailyLimit {
			res.Failures = append(res.Failures, VendorFailure{
				Vendor: vc.Name, Kind: FailureQuotaExceeded, Reason: "vendor daily limit reached",
			})
			continue
		}

		if !rt.breaker.Allow() {
			res.Failures = append(res.Failures, VendorFailure{
				Vendor: vc.Name, Kind: FailureServerError, Reason: "circuit breaker open",
			})
			continue
		}

		fail, done := e.tryVendor(ctx, req, vc, rt, msgs, defTimeout, base, max, res)
		if done {
			return res
		}
		if fail != nil {
			res.Failures = append(res.Failures, *fail)
		}
	}

	res.Error = "all vendors exhausted"
	return res
}

// tryVendor runs up to max_attempts invocations against one vendor.
// It returns done=true when the request finished (success or deadline);
// otherwise it returns the vendor's terminal failure so the caller can
// advance down the chain.
func (e *Engine) tryVendor(ctx context.Context, req Request, vc config.VendorConfig,
	rt *vendorRuntime, msgs []adapter.Message, defTimeout, base, max time.Duration,
	res *Result) (*VendorFailure, bool) {

	maxAttempts := vc.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	last := VendorFailure{Vendor: vc.Name, Kind: FailureUnknown, Reason: "no attempt made"}

	// Allow may have claimed the half-open probe slot. When this vendor
	// is abandoned before any adapter call the slot must be handed back,
	// or the breaker would stay half-open rejecting everything.
	invoked := false
	defer func() {
		if !invoked {
			rt.breaker.ProbeAborted()
		}
	}()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			res.Error = "request deadline elapsed"
			return nil, true
		}

		cc, ok := rt.creds.Best(vc.Credentials)
		if !ok {
			last = VendorFailure{Vendor: vc.Name, Kind: FailureQuotaExceeded, Reason: "no selectable credential"}
			return &last, false
		}
		mc, ok := rt.models.Best(vc.Models, req.TaskHint)
		if !ok {
			last = VendorFailure{Vendor: vc.Name, Kind: FailureModelNotFound, Reason: "no selectable model"}
			return &last, false
		}

		secret, err := e.secrets.Resolve(cc.SecretRef)
		if err != nil {
			// No vendor call was made, so no attempt is recorded;
			// the credential leaves rotation for the day.
			slog.Warn("credential secret unresolvable",
				"vendor", vc.Name, "credential", cc.ID, "error", err)
			rt.creds.Deactivate(cc.ID)
			attempt--
			continue
		}

		invoked = true
		outcome := e.invoke(ctx, req, vc, rt, cc, mc, secret, msgs, defTimeout, res)
		if outcome == nil {
			res.Success = true
			res.Vendor = vc.Name
			res.Model = mc.Name
			res.CredentialID = cc.ID
			return nil, true
		}

		kind := Classify(outcome)
		last = VendorFailure{Vendor: vc.Name, Kind: kind, Reason: outcome.Error()}

		switch {
		case kind == FailureAuthInvalid || kind == FailureQuotaExceeded:
			// Definitive for this credential; another one may work.
			rt.creds.Deactivate(cc.ID)
		case kind == FailureModelNotFound:
			rt.models.MarkNotFound(mc.Name)
		case kind.retryable():
			// Transient: back off before the next attempt on this vendor.
			if attempt+1 < maxAttempts {
				if err := sleepContext(ctx, backoffDelay(attempt, base, max)); err != nil {
					res.Error = "request deadline elapsed"
					return nil, true
				}
			}
		default:
			return &last, false
		}
	}

	return &last, false
}

// invoke makes one adapter call and does all per-attempt bookkeeping:
// the ledger record, credential and model usage, and breaker feedback.
// It returns nil on success. No lock is held across the network call.
func (e *Engine) invoke(ctx context.Context, req Request, vc config.VendorConfig,
	rt *vendorRuntime, cc config.CredentialConfig, mc config.ModelConfig,
	secret string, msgs []adapter.Message, defTimeout time.Duration, res *Result) error {

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = mc.MaxTokens
	}
	temperature := req.Temperature
	if temperature == nil {
		temperature = mc.Temperature
	}

	callCtx, cancel := context.WithTimeout(ctx, vc.Timeout(defTimeout))
	defer cancel()

	at := e.nowFunc()
	out, err := rt.adapter.Invoke(callCtx, adapter.InvokeRequest{
		Model:       mc.Name,
		Credential:  secret,
		System:      req.System,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	latency := e.nowFunc().Sub(at)

	res.TotalAttempts++
	rt.creds.RecordUsage(cc.ID, err == nil)
	rt.models.RecordUsage(mc.Name)

	rec := AttemptRecord{
		ID:           uuid.NewString(),
		RequestID:    res.RequestID,
		Vendor:       vc.Name,
		CredentialID: cc.ID,
		Model:        mc.Name,
		At:           at,
		Success:      err == nil,
		Latency:      latency,
	}

	if err != nil {
		rt.breaker.OnFailure()
		rec.Kind = Classify(err)
		rec.Reason = err.Error()
		e.ledger.Record(ctx, rec)
		slog.Debug("attempt failed",
			"vendor", vc.Name, "model", mc.Name, "kind", rec.Kind,
			"latency", latency, "error", err)
		return err
	}

	rt.breaker.OnSuccess()
	rec.Usage = out.Usage
	e.ledger.Record(ctx, rec)

	res.Text = out.Text
	res.Usage = out.Usage
	slog.Debug("attempt succeeded",
		"vendor", vc.Name, "model", mc.Name, "latency", latency,
		"tokens", out.Usage.TotalTokens)
	return nil
}

// Status reports per-vendor health for every configured vendor,
// including vendors the engine has not called yet.
func (e *Engine) Status() *health.Snapshot {
	cfg := e.cfg.Current()

	snap := &health.Snapshot{
		Vendors:     make(map[string]health.VendorStatus, len(cfg.Vendors)),
		GeneratedAt: e.nowFunc(),
	}

	for _, vc := range cfg.Vendors {
		vs := health.VendorStatus{
			Vendor:      vc.Name,
			Enabled:     vc.Enabled,
			Breaker:     health.BreakerClosed,
			SuccessRate: 1.0,
		}

		e.mu.Lock()
		rt, ok := e.runtimes[vc.Name]
		e.mu.Unlock()
		if ok {
			state, until := rt.breaker.State()
			vs.Breaker = state
			vs.CooldownUntil = until
			vs.ActiveCredentials = rt.creds.ActiveCount(vc.Credentials)
			vs.ActiveModels = rt.models.ActiveCount(vc.Models)
		} else {
			vs.ActiveCredentials = countEnabledCredentials(vc.Credentials)
			vs.ActiveModels = countEnabledModels(vc.Models)
		}

		agg := e.ledger.Aggregates(vc.Name)
		vs.CallsToday = int64(agg.CallsToday)
		vs.SuccessRate = agg.SuccessRate
		vs.AvgLatency = agg.AvgLatency
		if !agg.LastFailureAt.IsZero() {
			t := agg.LastFailureAt
			vs.LastFailureAt = &t
		}

		snap.Vendors[vc.Name] = vs
	}

	return snap
}

func countEnabledCredentials(creds []config.CredentialConfig) int {
	n := 0
	for _, cc := range creds {
		if cc.Enabled {
			n++
		}
	}
	return n
}

func countEnabledModels(models []config.ModelConfig) int {
	n := 0
	for _, mc := range models {
		if mc.Enabled {
			n++
		}
	}
	return n
}

// Close releases every vendor adapter. The engine must not be used
// afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, rt := range e.runtimes {
		if rt.adapter == nil {
			continue
		}
		if err := rt.adapter.Close(); err != nil {
			errs = append(errs, relayerr.Wrapf(err, relayerr.CodeVendorUpstreamFailure,
				"closing adapter for %s", name))
		}
	}
	return relayerr.Join(errs...)
}
