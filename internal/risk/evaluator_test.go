package risk

import (
	"reflect"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func boolPtr(b bool) *bool        { return &b }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func baseTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:          "txn-001",
		TenantID:    "tenant-a",
		UserID:      "user-123",
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		OrderAmount: 149.99,
		Currency:    "USD",
	}
}

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(nil)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}
	return e
}

func TestEvaluateEmptyOptionalFields(t *testing.T) {
	e := newTestEvaluator(t)

	// A transaction with every optional signal absent must score neutrally
	// and never panic.
	a := e.Evaluate(baseTransaction())

	if a.Composite != 0 {
		t.Errorf("expected composite 0 for neutral transaction, got %v", a.Composite)
	}
	if len(a.Categories) != 5 {
		t.Fatalf("expected 5 category scores, got %d", len(a.Categories))
	}
	for _, c := range a.Categories {
		if c.Score != 0 {
			t.Errorf("category %s: expected 0, got %v", c.Category, c.Score)
		}
	}
	if a.Recommendation != domain.RecommendApprove {
		t.Errorf("expected approve recommendation, got %s", a.Recommendation)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	e := newTestEvaluator(t)

	tx := baseTransaction()
	tx.AccountAgeDays = intPtr(0)
	tx.OrderAmount = 900
	tx.EmailVerified = boolPtr(false)
	tx.PhoneVerified = boolPtr(false)
	tx.FailedLoginAttempts24 = 4
	tx.NewDevice = boolPtr(true)
	tx.VPNProxyDetected = boolPtr(true)
	tx.CVVCheckResult = domain.CVVFail
	tx.AVSResult = domain.AVSNoMatch
	tx.BillingCountry = "US"
	tx.ShippingCountry = "RU"
	tx.IPCountry = "NG"

	first := e.Evaluate(tx)
	second := e.Evaluate(tx)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("evaluation is not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestScoresStayInRange(t *testing.T) {
	e := newTestEvaluator(t)

	// Worst-case transaction: every signal fires at once.
	tx := baseTransaction()
	tx.OrderAmount = 9999
	tx.AccountAgeDays = intPtr(0)
	tx.EmailDomain = "mailinator.com"
	tx.EmailVerified = boolPtr(false)
	tx.PhoneVerified = boolPtr(false)
	tx.ProfileComplete = boolPtr(false)
	tx.FailedLoginAttempts24 = 50
	tx.PasswordResetCount30d = 3
	tx.NewDevice = boolPtr(true)
	tx.VPNProxyDetected = boolPtr(true)
	tx.IPCountry = "RU"
	tx.CardCountry = "US"
	tx.BillingCountry = "GB"
	tx.ShippingCountry = "NG"
	tx.BillingShippingMatch = boolPtr(false)
	tx.CVVCheckResult = domain.CVVFail
	tx.AVSResult = domain.AVSNoMatch
	tx.OrdersLast24h = intPtr(20)
	tx.AvgOrderValue = floatPtr(20)
	tx.SessionDurationSecs = intPtr(5)
	tx.CartAdditions = intPtr(0)
	tx.HighRiskCategory = boolPtr(true)

	a := e.Evaluate(tx)

	if a.Composite < 0 || a.Composite > 100 {
		t.Errorf("composite %v outside [0,100]", a.Composite)
	}
	for _, c := range a.Categories {
		if c.Score < 0 || c.Score > 100 {
			t.Errorf("category %s score %v outside [0,100]", c.Category, c.Score)
		}
		if c.Score > 0 && len(c.Signals) == 0 {
			t.Errorf("category %s scored %v without any signals", c.Category, c.Score)
		}
	}
	if a.Recommendation != domain.RecommendDeny {
		t.Errorf("expected deny recommendation for worst case, got %s (composite %v)", a.Recommendation, a.Composite)
	}
}

func TestPaymentMismatchCompounding(t *testing.T) {
	e := newTestEvaluator(t)

	// Score the three payment failures independently.
	var independentSum float64

	cvvOnly := baseTransaction()
	cvvOnly.CVVCheckResult = domain.CVVFail
	independentSum += e.Evaluate(cvvOnly).Category(domain.RiskPayment).Score

	avsOnly := baseTransaction()
	avsOnly.AVSResult = domain.AVSPartialMatch
	independentSum += e.Evaluate(avsOnly).Category(domain.RiskPayment).Score

	addrOnly := baseTransaction()
	addrOnly.BillingShippingMatch = boolPtr(false)
	independentSum += e.Evaluate(addrOnly).Category(domain.RiskPayment).Score

	// All three at once must compound past the independent sum.
	combined := baseTransaction()
	combined.CVVCheckResult = domain.CVVFail
	combined.AVSResult = domain.AVSPartialMatch
	combined.BillingShippingMatch = boolPtr(false)

	got := e.Evaluate(combined).Category(domain.RiskPayment).Score
	if got <= independentSum {
		t.Errorf("expected compounded payment score > %v, got %v", independentSum, got)
	}
}

func TestFailedLoginsDiminishing(t *testing.T) {
	e := newTestEvaluator(t)

	score := func(attempts int) float64 {
		tx := baseTransaction()
		tx.FailedLoginAttempts24 = attempts
		return e.Evaluate(tx).Category(domain.RiskAuthentication).Score
	}

	s1, s2, s3 := score(1), score(2), score(3)
	if !(s1 < s2 && s2 < s3) {
		t.Fatalf("failed logins must score monotonically: %v %v %v", s1, s2, s3)
	}
	// Each extra attempt contributes less than the previous one.
	if (s3 - s2) >= (s2 - s1) {
		t.Errorf("expected diminishing returns: delta2=%v delta1=%v", s3-s2, s2-s1)
	}
}

func TestNetworkMismatchStrength(t *testing.T) {
	e := newTestEvaluator(t)

	both := baseTransaction()
	both.IPCountry = "RU"
	both.BillingCountry = "US"
	both.ShippingCountry = "GB"

	one := baseTransaction()
	one.IPCountry = "RU"
	one.BillingCountry = "RU"
	one.ShippingCountry = "GB"

	bothScore := e.Evaluate(both).Category(domain.RiskNetwork).Score
	oneScore := e.Evaluate(one).Category(domain.RiskNetwork).Score

	if bothScore <= oneScore {
		t.Errorf("mismatch against both countries (%v) must outscore mismatch against one (%v)", bothScore, oneScore)
	}
}

func TestAccountAgeDerivedFromCreatedDate(t *testing.T) {
	e := newTestEvaluator(t)

	tx := baseTransaction()
	tx.OrderAmount = 800
	created := tx.Timestamp.Add(-12 * time.Hour)
	tx.AccountCreatedDate = &created

	a := e.Evaluate(tx)
	acct := a.Category(domain.RiskAccount)
	if acct.Score == 0 {
		t.Errorf("expected account risk for a brand-new account derived from created date")
	}
}

func TestRecommendationBands(t *testing.T) {
	tests := []struct {
		composite float64
		want      domain.Recommendation
	}{
		{0, domain.RecommendApprove},
		{29.9, domain.RecommendApprove},
		{30, domain.RecommendInconclusive},
		{49.9, domain.RecommendInconclusive},
		{50, domain.RecommendDeny},
		{100, domain.RecommendDeny},
	}
	for _, tt := range tests {
		if got := domain.RecommendationFor(tt.composite); got != tt.want {
			t.Errorf("RecommendationFor(%v) = %s, want %s", tt.composite, got, tt.want)
		}
	}
}

func TestPolicyValidation(t *testing.T) {
	bad := DefaultPolicy()
	bad.Weights[domain.RiskAccount] = 0.5 // sum now 1.3

	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for weights not summing to 1.0")
	}

	missing := DefaultPolicy()
	delete(missing.Weights, domain.RiskNetwork)
	if err := missing.Validate(); err == nil {
		t.Error("expected validation error for missing category weight")
	}

	if err := DefaultPolicy().Validate(); err != nil {
		t.Errorf("default policy must validate: %v", err)
	}
}

func TestCustomWeights(t *testing.T) {
	p := DefaultPolicy().WithWeights(map[domain.RiskCategory]float64{
		domain.RiskAccount:        1.0,
		domain.RiskAuthentication: 0,
		domain.RiskPayment:        0,
		domain.RiskBehavioral:     0,
		domain.RiskNetwork:        0,
	})
	e, err := NewEvaluator(p)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}

	tx := baseTransaction()
	tx.EmailVerified = boolPtr(false)
	tx.CVVCheckResult = domain.CVVFail

	a := e.Evaluate(tx)
	// With all weight on account, the composite equals the account score.
	if a.Composite != a.Category(domain.RiskAccount).Score {
		t.Errorf("composite %v should equal account score %v under account-only weighting",
			a.Composite, a.Category(domain.RiskAccount).Score)
	}
}
