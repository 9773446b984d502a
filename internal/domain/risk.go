package domain

// RiskCategory identifies one of the five risk indicator categories.
type RiskCategory string

const (
	RiskAccount        RiskCategory = "account"
	RiskAuthentication RiskCategory = "authentication"
	RiskPayment        RiskCategory = "payment"
	RiskBehavioral     RiskCategory = "behavioral"
	RiskNetwork        RiskCategory = "network"
)

// RiskCategories lists the categories in canonical order.
var RiskCategories = []RiskCategory{
	RiskAccount,
	RiskAuthentication,
	RiskPayment,
	RiskBehavioral,
	RiskNetwork,
}

// CategoryScore is one category's sub-score in [0,100] together with the
// human-readable signals that produced it.
type CategoryScore struct {
	Category RiskCategory `json:"category"`
	Score    float64      `json:"score"`
	Signals  []string     `json:"signals,omitempty"`
}

// Add accumulates points into the category and records the triggering signal.
func (c *CategoryScore) Add(points float64, signal string) {
	c.Score += points
	c.Signals = append(c.Signals, signal)
}

// Recommendation is the risk evaluator's advisory outcome. It is consumed by
// the escalation reasoning step and never finalizes a decision on its own.
type Recommendation string

const (
	RecommendApprove      Recommendation = "approve"
	RecommendInconclusive Recommendation = "inconclusive"
	RecommendDeny         Recommendation = "deny"
)

// Composite score bands for recommendations.
const (
	RecommendApproveBelow = 30.0 // composite < 30 recommends approve
	RecommendDenyAtOrOver = 50.0 // composite >= 50 recommends deny
)

// RiskAssessment is the composite risk view over all five categories.
type RiskAssessment struct {
	Composite      float64         `json:"composite_score"`
	Categories     []CategoryScore `json:"categories"`
	Recommendation Recommendation  `json:"recommendation"`
}

// RecommendationFor maps a composite score to its advisory band.
func RecommendationFor(composite float64) Recommendation {
	switch {
	case composite < RecommendApproveBelow:
		return RecommendApprove
	case composite < RecommendDenyAtOrOver:
		return RecommendInconclusive
	default:
		return RecommendDeny
	}
}

// Category returns the score entry for a category, or nil if absent.
func (a *RiskAssessment) Category(c RiskCategory) *CategoryScore {
	for i := range a.Categories {
		if a.Categories[i].Category == c {
			return &a.Categories[i]
		}
	}
	return nil
}

// Signals flattens all triggered signals across categories.
func (a *RiskAssessment) Signals() []string {
	var out []string
	for _, c := range a.Categories {
		out = append(out, c.Signals...)
	}
	return out
}
