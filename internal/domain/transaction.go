package domain

import (
	"fmt"
	"time"
)

// Transaction is an incoming e-commerce order under fraud review.
// Identity fields are required; the risk-signal fields are optional and an
// absent value is treated as unknown (neutral) by the risk evaluator.
// Optional scalars are pointers so that "not provided" is distinguishable
// from a legitimate zero.
type Transaction struct {
	// Identity
	ID        string    `json:"transaction_id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`

	// Monetary
	OrderAmount float64 `json:"order_amount"`
	Currency    string  `json:"currency"`

	// Account
	AccountCreatedDate    *time.Time `json:"account_created_date,omitempty"`
	AccountAgeDays        *int       `json:"account_age_days,omitempty"`
	EmailDomain           string     `json:"email_domain,omitempty"`
	EmailVerified         *bool      `json:"email_verified,omitempty"`
	PhoneVerified         *bool      `json:"phone_verified,omitempty"`
	ProfileComplete       *bool      `json:"profile_complete,omitempty"`
	FailedLoginAttempts24 int        `json:"failed_login_attempts_24h,omitempty"`
	SuccessfulLogins7d    int        `json:"successful_logins_7d,omitempty"`
	PasswordResetCount30d int        `json:"password_reset_count_30d,omitempty"`

	// Device and network
	DeviceID         string `json:"device_id,omitempty"`
	IPAddress        string `json:"ip_address,omitempty"`
	IPCountry        string `json:"ip_country,omitempty"`
	UserAgent        string `json:"user_agent,omitempty"`
	DeviceType       string `json:"device_type,omitempty"` // desktop, mobile, tablet
	NewDevice        *bool  `json:"new_device,omitempty"`
	VPNProxyDetected *bool  `json:"vpn_proxy_detected,omitempty"`

	// Payment
	PaymentMethod        string `json:"payment_method,omitempty"` // credit_card, debit_card, paypal, crypto
	CardBIN              string `json:"card_bin,omitempty"`
	CardCountry          string `json:"card_country,omitempty"`
	BillingCountry       string `json:"billing_country,omitempty"`
	ShippingCountry      string `json:"shipping_country,omitempty"`
	BillingShippingMatch *bool  `json:"billing_shipping_match,omitempty"`
	CVVCheckResult       string `json:"cvv_check_result,omitempty"` // pass, fail, not_checked
	AVSResult            string `json:"avs_result,omitempty"`       // full_match, partial_match, no_match
	ProcessorResponse    string `json:"payment_processor_response,omitempty"`

	// Behavioral and velocity
	TotalOrdersLifetime *int     `json:"total_orders_lifetime,omitempty"`
	OrdersLast24h       *int     `json:"orders_last_24h,omitempty"`
	OrdersLast7d        *int     `json:"orders_last_7d,omitempty"`
	AvgOrderValue       *float64 `json:"avg_order_value,omitempty"`
	SessionDurationSecs *int     `json:"session_duration_seconds,omitempty"`
	CartAdditions       *int     `json:"cart_additions_session,omitempty"`
	HighRiskCategory    *bool    `json:"high_risk_category,omitempty"`
}

// CVV check results reported by the payment processor.
const (
	CVVPass       = "pass"
	CVVFail       = "fail"
	CVVNotChecked = "not_checked"
)

// AVS results reported by the payment processor.
const (
	AVSFullMatch    = "full_match"
	AVSPartialMatch = "partial_match"
	AVSNoMatch      = "no_match"
)

// Validate checks the required identity fields. Risk-signal fields are
// deliberately not validated here; absence degrades to neutral scoring.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if t.OrderAmount < 0 {
		return fmt.Errorf("order_amount must not be negative")
	}
	return nil
}

// Bool returns the value of an optional flag, or false when absent.
func Bool(b *bool) bool {
	return b != nil && *b
}
