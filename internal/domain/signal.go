package domain

// SignalConfig defines an operator-supplied custom risk signal. The CEL
// expression is evaluated against transaction fields; when it yields true the
// configured points are added to the target category alongside the built-in
// signals.
type SignalConfig struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Version     string       `json:"version,omitempty"`
	Category    RiskCategory `json:"category"`

	// Expression is a CEL boolean expression over transaction fields,
	// e.g. "payment_method == 'crypto' && order_amount > 500.0".
	Expression string `json:"expression"`

	// Points added to the category when the expression fires. The category
	// total stays clamped to [0,100] regardless.
	Points float64 `json:"points"`

	// Reason is the signal text attached to the category when fired.
	Reason string `json:"reason"`

	Enabled bool `json:"enabled"`
}
