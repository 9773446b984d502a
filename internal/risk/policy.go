package risk

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Policy holds every tunable point value used by the evaluator. The exact
// magnitudes are operational knobs; only the relative ordering and the
// composite bands are contractual.
type Policy struct {
	// Category weights for the composite. Must sum to 1.0.
	Weights map[domain.RiskCategory]float64

	// Account
	BrandNewAccountLargeOrder float64 // age <= BrandNewAgeDays and amount >= LargeOrderAmount
	YoungAccountMediumOrder   float64 // age <= YoungAgeDays and amount >= MediumOrderAmount
	YoungAccount              float64 // age <= YoungAgeDays
	BrandNewAgeDays           int
	YoungAgeDays              int
	LargeOrderAmount          float64
	MediumOrderAmount         float64
	UnverifiedEmail           float64
	UnverifiedPhone           float64
	IncompleteProfile         float64
	DisposableEmailDomain     float64

	// Authentication
	FailedLoginBase       float64 // contribution of the first failed attempt
	FailedLoginDecay      float64 // multiplier per additional attempt, in (0,1)
	FailedLoginCap        float64
	RecentResetNewDevice  float64 // password reset within 30d combined with a new device
	NewDeviceRiskyCountry float64

	// Payment
	CVVFail                 float64
	AVSPartialMatch         float64
	AVSNoMatch              float64
	BillingShippingMismatch float64
	CardIPCountryMismatch   float64
	MismatchPairBonus       float64 // per co-occurring pair of payment mismatches

	// Behavioral
	VelocityThreshold24h    int     // orders in 24h above this start scoring
	VelocityBase            float64 // first order over the threshold
	VelocityPerExtra        float64
	VelocityCap             float64
	AmountVsAverageMultiple float64 // order amount vs historical average trigger
	AmountVsAverage         float64
	AmountVsAverageExtreme  float64 // at twice the trigger multiple
	SmashAndGrab            float64 // short session with minimal cart interaction
	ShortSessionSecs        int
	MinimalCartAdditions    int
	HighRiskCategory        float64

	// Network
	VPNProxy               float64
	IPMismatchBoth         float64 // IP country differs from billing and shipping
	IPMismatchOne          float64 // IP country differs from exactly one of the two
	HighRiskCountries      map[string]bool
	DisposableEmailDomains map[string]bool
}

// DefaultPolicy returns the stock scoring policy.
func DefaultPolicy() *Policy {
	return &Policy{
		Weights: map[domain.RiskCategory]float64{
			domain.RiskAccount:        0.20,
			domain.RiskAuthentication: 0.20,
			domain.RiskPayment:        0.20,
			domain.RiskBehavioral:     0.20,
			domain.RiskNetwork:        0.20,
		},

		BrandNewAccountLargeOrder: 40,
		YoungAccountMediumOrder:   25,
		YoungAccount:              10,
		BrandNewAgeDays:           1,
		YoungAgeDays:              7,
		LargeOrderAmount:          500,
		MediumOrderAmount:         200,
		UnverifiedEmail:           15,
		UnverifiedPhone:           10,
		IncompleteProfile:         10,
		DisposableEmailDomain:     20,

		FailedLoginBase:       12,
		FailedLoginDecay:      0.7,
		FailedLoginCap:        40,
		RecentResetNewDevice:  25,
		NewDeviceRiskyCountry: 20,

		CVVFail:                 30,
		AVSPartialMatch:         15,
		AVSNoMatch:              25,
		BillingShippingMismatch: 20,
		CardIPCountryMismatch:   15,
		MismatchPairBonus:       8,

		VelocityThreshold24h:    3,
		VelocityBase:            15,
		VelocityPerExtra:        5,
		VelocityCap:             35,
		AmountVsAverageMultiple: 3,
		AmountVsAverage:         25,
		AmountVsAverageExtreme:  35,
		SmashAndGrab:            20,
		ShortSessionSecs:        60,
		MinimalCartAdditions:    1,
		HighRiskCategory:        10,

		VPNProxy:       30,
		IPMismatchBoth: 30,
		IPMismatchOne:  12,
		HighRiskCountries: map[string]bool{
			"RU": true, "NG": true, "CN": true, "PK": true,
			"ID": true, "UA": true, "VN": true,
		},
		DisposableEmailDomains: map[string]bool{
			"tempmail.net":      true,
			"guerrillamail.com": true,
			"10minutemail.com":  true,
			"throwaway.email":   true,
			"mailinator.com":    true,
			"temp-mail.org":     true,
		},
	}
}

// Validate rejects malformed policies at startup.
func (p *Policy) Validate() error {
	if len(p.Weights) == 0 {
		return fmt.Errorf("category weights are required")
	}
	var sum float64
	for _, c := range domain.RiskCategories {
		w, ok := p.Weights[c]
		if !ok {
			return fmt.Errorf("missing weight for category %s", c)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("weight for %s outside [0,1]: %v", c, w)
		}
		sum += w
	}
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("category weights must sum to 1.0, got %v", sum)
	}
	if p.FailedLoginDecay <= 0 || p.FailedLoginDecay >= 1 {
		return fmt.Errorf("failed login decay must be in (0,1), got %v", p.FailedLoginDecay)
	}
	return nil
}

// WithWeights returns a copy of the policy using the supplied weights.
// An empty map keeps the existing weights.
func (p *Policy) WithWeights(weights map[domain.RiskCategory]float64) *Policy {
	if len(weights) == 0 {
		return p
	}
	cp := *p
	cp.Weights = weights
	return &cp
}
