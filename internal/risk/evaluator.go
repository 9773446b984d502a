// Package risk implements the composite risk indicator evaluator: five
// weighted category sub-scores (account, authentication, payment, behavioral,
// network) combined into a 0-100 composite with triggered-signal explanations.
package risk

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Evaluator computes a RiskAssessment from a transaction. Evaluation is pure
// and deterministic: the same transaction always yields the same assessment.
// Custom CEL signals can be hot-reloaded; the built-in scorers are fixed.
type Evaluator struct {
	policy *Policy

	mu     sync.RWMutex
	custom *signalSet
}

// NewEvaluator creates an evaluator with the given policy.
func NewEvaluator(policy *Policy) (*Evaluator, error) {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk policy: %w", err)
	}
	set, err := newSignalSet(nil)
	if err != nil {
		return nil, err
	}
	return &Evaluator{policy: policy, custom: set}, nil
}

// Policy returns the active scoring policy.
func (e *Evaluator) Policy() *Policy {
	return e.policy
}

// Evaluate scores a transaction across all five categories. Missing optional
// fields contribute nothing to their category; evaluation never fails.
func (e *Evaluator) Evaluate(tx *domain.Transaction) *domain.RiskAssessment {
	categories := []domain.CategoryScore{
		e.scoreAccount(tx),
		e.scoreAuthentication(tx),
		e.scorePayment(tx),
		e.scoreBehavioral(tx),
		e.scoreNetwork(tx),
	}

	e.mu.RLock()
	custom := e.custom
	e.mu.RUnlock()
	custom.apply(tx, categories)

	var composite float64
	for i := range categories {
		categories[i].Score = clamp(categories[i].Score)
		composite += categories[i].Score * e.policy.Weights[categories[i].Category]
	}
	composite = clamp(composite)

	return &domain.RiskAssessment{
		Composite:      composite,
		Categories:     categories,
		Recommendation: domain.RecommendationFor(composite),
	}
}

func (e *Evaluator) scoreAccount(tx *domain.Transaction) domain.CategoryScore {
	cs := domain.CategoryScore{Category: domain.RiskAccount}
	p := e.policy

	if age, ok := accountAge(tx); ok {
		switch {
		case age <= p.BrandNewAgeDays && tx.OrderAmount >= p.LargeOrderAmount:
			cs.Add(p.BrandNewAccountLargeOrder,
				fmt.Sprintf("brand new account (%dd old) placing a %.2f %s order", age, tx.OrderAmount, tx.Currency))
		case age <= p.YoungAgeDays && tx.OrderAmount >= p.MediumOrderAmount:
			cs.Add(p.YoungAccountMediumOrder,
				fmt.Sprintf("young account (%dd old) placing a %.2f %s order", age, tx.OrderAmount, tx.Currency))
		case age <= p.YoungAgeDays:
			cs.Add(p.YoungAccount, fmt.Sprintf("account is only %d days old", age))
		}
	}

	if tx.EmailVerified != nil && !*tx.EmailVerified {
		cs.Add(p.UnverifiedEmail, "email address is not verified")
	}
	if tx.PhoneVerified != nil && !*tx.PhoneVerified {
		cs.Add(p.UnverifiedPhone, "phone number is not verified")
	}
	if tx.ProfileComplete != nil && !*tx.ProfileComplete {
		cs.Add(p.IncompleteProfile, "account profile is incomplete")
	}
	if d := strings.ToLower(tx.EmailDomain); d != "" && p.DisposableEmailDomains[d] {
		cs.Add(p.DisposableEmailDomain, fmt.Sprintf("disposable email domain %s", d))
	}

	return cs
}

func (e *Evaluator) scoreAuthentication(tx *domain.Transaction) domain.CategoryScore {
	cs := domain.CategoryScore{Category: domain.RiskAuthentication}
	p := e.policy

	if n := tx.FailedLoginAttempts24; n > 0 {
		// Geometric series: monotonic in n with diminishing returns per
		// extra attempt, capped.
		pts := p.FailedLoginBase * (1 - math.Pow(p.FailedLoginDecay, float64(n))) / (1 - p.FailedLoginDecay)
		if pts > p.FailedLoginCap {
			pts = p.FailedLoginCap
		}
		cs.Add(pts, fmt.Sprintf("%d failed login attempts in the last 24h", n))
	}

	if tx.PasswordResetCount30d > 0 && domain.Bool(tx.NewDevice) {
		cs.Add(p.RecentResetNewDevice, "password reset within 30 days from a new device")
	}
	if domain.Bool(tx.NewDevice) && tx.IPCountry != "" && p.HighRiskCountries[strings.ToUpper(tx.IPCountry)] {
		cs.Add(p.NewDeviceRiskyCountry, fmt.Sprintf("new device from high-risk country %s", strings.ToUpper(tx.IPCountry)))
	}

	return cs
}

func (e *Evaluator) scorePayment(tx *domain.Transaction) domain.CategoryScore {
	cs := domain.CategoryScore{Category: domain.RiskPayment}
	p := e.policy

	mismatches := 0

	if tx.CVVCheckResult == domain.CVVFail {
		cs.Add(p.CVVFail, "CVV check failed")
		mismatches++
	}
	switch tx.AVSResult {
	case domain.AVSPartialMatch:
		cs.Add(p.AVSPartialMatch, "AVS returned a partial match")
		mismatches++
	case domain.AVSNoMatch:
		cs.Add(p.AVSNoMatch, "AVS returned no match")
		mismatches++
	}
	if billingShippingMismatch(tx) {
		cs.Add(p.BillingShippingMismatch,
			fmt.Sprintf("billing country %s does not match shipping country %s", orUnknown(tx.BillingCountry), orUnknown(tx.ShippingCountry)))
		mismatches++
	}
	if tx.CardCountry != "" && tx.IPCountry != "" && !strings.EqualFold(tx.CardCountry, tx.IPCountry) {
		cs.Add(p.CardIPCountryMismatch,
			fmt.Sprintf("card issued in %s but IP located in %s", strings.ToUpper(tx.CardCountry), strings.ToUpper(tx.IPCountry)))
		mismatches++
	}

	// Co-occurring verification failures compound: every pair of
	// simultaneous mismatches earns a cross-signal bonus on top of the
	// independent sums.
	if mismatches >= 2 {
		pairs := mismatches * (mismatches - 1) / 2
		cs.Add(float64(pairs)*p.MismatchPairBonus,
			fmt.Sprintf("%d simultaneous payment verification failures compound", mismatches))
	}

	return cs
}

func (e *Evaluator) scoreBehavioral(tx *domain.Transaction) domain.CategoryScore {
	cs := domain.CategoryScore{Category: domain.RiskBehavioral}
	p := e.policy

	if tx.OrdersLast24h != nil && *tx.OrdersLast24h > p.VelocityThreshold24h {
		extra := *tx.OrdersLast24h - p.VelocityThreshold24h
		pts := p.VelocityBase + float64(extra-1)*p.VelocityPerExtra
		if pts > p.VelocityCap {
			pts = p.VelocityCap
		}
		cs.Add(pts, fmt.Sprintf("%d orders in the last 24h exceeds the velocity threshold of %d", *tx.OrdersLast24h, p.VelocityThreshold24h))
	}

	if tx.AvgOrderValue != nil && *tx.AvgOrderValue > 0 {
		ratio := tx.OrderAmount / *tx.AvgOrderValue
		switch {
		case ratio >= 2*p.AmountVsAverageMultiple:
			cs.Add(p.AmountVsAverageExtreme,
				fmt.Sprintf("order amount is %.1fx the user's average of %.2f", ratio, *tx.AvgOrderValue))
		case ratio >= p.AmountVsAverageMultiple:
			cs.Add(p.AmountVsAverage,
				fmt.Sprintf("order amount is %.1fx the user's average of %.2f", ratio, *tx.AvgOrderValue))
		}
	}

	if tx.SessionDurationSecs != nil && tx.CartAdditions != nil &&
		*tx.SessionDurationSecs < p.ShortSessionSecs && *tx.CartAdditions <= p.MinimalCartAdditions {
		cs.Add(p.SmashAndGrab,
			fmt.Sprintf("%ds session with %d cart additions suggests a smash-and-grab checkout", *tx.SessionDurationSecs, *tx.CartAdditions))
	}

	if domain.Bool(tx.HighRiskCategory) {
		cs.Add(p.HighRiskCategory, "order contains high-risk category items")
	}

	return cs
}

func (e *Evaluator) scoreNetwork(tx *domain.Transaction) domain.CategoryScore {
	cs := domain.CategoryScore{Category: domain.RiskNetwork}
	p := e.policy

	if domain.Bool(tx.VPNProxyDetected) {
		cs.Add(p.VPNProxy, "VPN or proxy detected")
	}

	if tx.IPCountry != "" {
		mismatches := 0
		if tx.BillingCountry != "" && !strings.EqualFold(tx.IPCountry, tx.BillingCountry) {
			mismatches++
		}
		if tx.ShippingCountry != "" && !strings.EqualFold(tx.IPCountry, tx.ShippingCountry) {
			mismatches++
		}
		switch mismatches {
		case 2:
			cs.Add(p.IPMismatchBoth,
				fmt.Sprintf("IP country %s matches neither billing nor shipping country", strings.ToUpper(tx.IPCountry)))
		case 1:
			cs.Add(p.IPMismatchOne,
				fmt.Sprintf("IP country %s mismatches one of billing/shipping", strings.ToUpper(tx.IPCountry)))
		}
	}

	return cs
}

// ReloadSignals replaces the custom signal set. Invalid expressions reject
// the whole reload, leaving the previous set active.
func (e *Evaluator) ReloadSignals(configs []*domain.SignalConfig) error {
	set, err := newSignalSet(configs)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.custom = set
	e.mu.Unlock()
	return nil
}

// SignalsCount returns the number of loaded custom signals.
func (e *Evaluator) SignalsCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.custom.signals)
}

func accountAge(tx *domain.Transaction) (int, bool) {
	if tx.AccountAgeDays != nil {
		return *tx.AccountAgeDays, true
	}
	if tx.AccountCreatedDate != nil && !tx.Timestamp.IsZero() {
		return int(tx.Timestamp.Sub(*tx.AccountCreatedDate).Hours() / 24), true
	}
	return 0, false
}

func billingShippingMismatch(tx *domain.Transaction) bool {
	if tx.BillingShippingMatch != nil {
		return !*tx.BillingShippingMatch
	}
	return tx.BillingCountry != "" && tx.ShippingCountry != "" &&
		!strings.EqualFold(tx.BillingCountry, tx.ShippingCountry)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.ToUpper(s)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
