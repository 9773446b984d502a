// Package decision implements the three-tier fraud decision pipeline:
// threshold routing on the model's legitimacy score, escalation of uncertain
// cases to the reasoning engine, and verdict parsing with a safe fallback.
package decision

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Route is the path selected for a legitimacy score.
type Route int

const (
	// RouteApprove auto-approves: score >= approve threshold.
	RouteApprove Route = iota

	// RouteDeny auto-denies: score <= deny threshold.
	RouteDeny

	// RouteEscalate hands off to the escalation coordinator:
	// deny threshold < score < approve threshold.
	RouteEscalate
)

func (r Route) String() string {
	switch r {
	case RouteApprove:
		return "approve"
	case RouteDeny:
		return "deny"
	default:
		return "escalate"
	}
}

// Router maps a legitimacy score to a decision path using two fixed
// thresholds. Both comparisons are inclusive: a score exactly equal to a
// threshold never escalates, so equal thresholds make escalation unreachable
// (a valid degenerate configuration).
type Router struct {
	approveThreshold float64
	denyThreshold    float64
}

// NewRouter creates a router. The threshold ordering is validated here so
// request-time routing can never observe an inverted configuration.
func NewRouter(cfg domain.DecisionConfig) (*Router, error) {
	if cfg.ApproveThreshold < 0 || cfg.ApproveThreshold > 1 {
		return nil, fmt.Errorf("approve threshold %v outside [0,1]", cfg.ApproveThreshold)
	}
	if cfg.DenyThreshold < 0 || cfg.DenyThreshold > 1 {
		return nil, fmt.Errorf("deny threshold %v outside [0,1]", cfg.DenyThreshold)
	}
	if cfg.DenyThreshold > cfg.ApproveThreshold {
		return nil, fmt.Errorf("deny threshold %v exceeds approve threshold %v", cfg.DenyThreshold, cfg.ApproveThreshold)
	}
	return &Router{
		approveThreshold: cfg.ApproveThreshold,
		denyThreshold:    cfg.DenyThreshold,
	}, nil
}

// Route selects the path for a legitimacy score.
func (r *Router) Route(score float64) Route {
	switch {
	case score >= r.approveThreshold:
		return RouteApprove
	case score <= r.denyThreshold:
		return RouteDeny
	default:
		return RouteEscalate
	}
}

// Thresholds returns the configured (approve, deny) thresholds.
func (r *Router) Thresholds() (float64, float64) {
	return r.approveThreshold, r.denyThreshold
}
