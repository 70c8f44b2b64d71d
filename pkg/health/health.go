// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package health

import "time"

// BreakerState is the circuit breaker state reported for a vendor.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// VendorStatus exposes the current health of a single vendor for
// monitoring and operator visibility. All fields are point-in-time
// snapshots safe to serialize to JSON.
type VendorStatus struct {
	Vendor            string        `json:"vendor"`
	Enabled           bool          `json:"enabled"`
	Breaker           BreakerState  `json:"breaker_state"`
	CooldownUntil     *time.Time    `json:"cooldown_until,omitempty"`
	ActiveCredentials int           `json:"active_credentials"`
	ActiveModels      int           `json:"active_models"`
	CallsToday        int64         `json:"calls_today"`
	SuccessRate       float64       `json:"success_rate"`
	AvgLatency        time.Duration `json:"avg_latency"`
	LastFailureAt     *time.Time    `json:"last_failure_at,omitempty"`
}

// Snapshot is the full engine health view keyed by vendor name.
type Snapshot struct {
	Vendors     map[string]VendorStatus `json:"vendors"`
	GeneratedAt time.Time               `json:"generated_at"`
}
