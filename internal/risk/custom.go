package risk

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/harrier/internal/domain"
)

// signalSet holds compiled custom risk signals. Operators extend the built-in
// scorers with CEL boolean expressions over transaction fields; a firing
// signal adds its configured points to its category.
type signalSet struct {
	env     *cel.Env
	signals []compiledSignal
}

type compiledSignal struct {
	config  *domain.SignalConfig
	program cel.Program
}

func newSignalEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("tx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("order_amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("account_age_days", cel.IntType),
		cel.Variable("email_domain", cel.StringType),
		cel.Variable("email_verified", cel.BoolType),
		cel.Variable("phone_verified", cel.BoolType),
		cel.Variable("profile_complete", cel.BoolType),
		cel.Variable("failed_login_attempts_24h", cel.IntType),
		cel.Variable("password_reset_count_30d", cel.IntType),
		cel.Variable("device_type", cel.StringType),
		cel.Variable("new_device", cel.BoolType),
		cel.Variable("vpn_proxy_detected", cel.BoolType),
		cel.Variable("payment_method", cel.StringType),
		cel.Variable("card_bin", cel.StringType),
		cel.Variable("card_country", cel.StringType),
		cel.Variable("billing_country", cel.StringType),
		cel.Variable("shipping_country", cel.StringType),
		cel.Variable("ip_country", cel.StringType),
		cel.Variable("billing_shipping_match", cel.BoolType),
		cel.Variable("cvv_check_result", cel.StringType),
		cel.Variable("avs_result", cel.StringType),
		cel.Variable("total_orders_lifetime", cel.IntType),
		cel.Variable("orders_last_24h", cel.IntType),
		cel.Variable("orders_last_7d", cel.IntType),
		cel.Variable("avg_order_value", cel.DoubleType),
		cel.Variable("session_duration_seconds", cel.IntType),
		cel.Variable("cart_additions_session", cel.IntType),
		cel.Variable("high_risk_category", cel.BoolType),
	)
}

// newSignalSet compiles the enabled configs. Any compile failure rejects the
// whole set so a partial reload can never go live.
func newSignalSet(configs []*domain.SignalConfig) (*signalSet, error) {
	env, err := newSignalEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create signal environment: %w", err)
	}

	set := &signalSet{env: env}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := compileSignal(env, cfg)
		if err != nil {
			return nil, err
		}
		set.signals = append(set.signals, compiled)
	}
	return set, nil
}

func compileSignal(env *cel.Env, cfg *domain.SignalConfig) (compiledSignal, error) {
	if cfg.Points < 0 {
		return compiledSignal{}, fmt.Errorf("signal %s: points must not be negative", cfg.ID)
	}
	if !validCategory(cfg.Category) {
		return compiledSignal{}, fmt.Errorf("signal %s: unknown category %q", cfg.ID, cfg.Category)
	}

	ast, issues := env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return compiledSignal{}, fmt.Errorf("failed to compile signal %s: %w", cfg.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return compiledSignal{}, fmt.Errorf("signal %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return compiledSignal{}, fmt.Errorf("failed to create program for signal %s: %w", cfg.ID, err)
	}
	return compiledSignal{config: cfg, program: program}, nil
}

// ValidateSignal compiles a signal config without loading it.
func ValidateSignal(cfg *domain.SignalConfig) error {
	env, err := newSignalEnv()
	if err != nil {
		return err
	}
	_, err = compileSignal(env, cfg)
	return err
}

// apply evaluates every custom signal and folds firing ones into the matching
// category entry. Evaluation errors skip the signal; a bad custom signal must
// never abort an assessment.
func (s *signalSet) apply(tx *domain.Transaction, categories []domain.CategoryScore) {
	if len(s.signals) == 0 {
		return
	}

	activation := activationFor(tx)
	for _, sig := range s.signals {
		out, _, err := sig.program.Eval(activation)
		if err != nil {
			continue
		}
		fired, ok := out.(types.Bool)
		if !ok || !bool(fired) {
			continue
		}
		for i := range categories {
			if categories[i].Category == sig.config.Category {
				reason := sig.config.Reason
				if reason == "" {
					reason = fmt.Sprintf("custom signal %s fired", sig.config.Name)
				}
				categories[i].Add(sig.config.Points, reason)
				break
			}
		}
	}
}

// activationFor flattens a transaction into CEL variables. Unknown optional
// fields surface as zero values, matching the neutral-when-absent contract.
func activationFor(tx *domain.Transaction) map[string]any {
	age := 0
	if a, ok := accountAge(tx); ok {
		age = a
	}

	vars := map[string]any{
		"user_id":                   tx.UserID,
		"order_amount":              tx.OrderAmount,
		"currency":                  tx.Currency,
		"account_age_days":          age,
		"email_domain":              tx.EmailDomain,
		"email_verified":            domain.Bool(tx.EmailVerified),
		"phone_verified":            domain.Bool(tx.PhoneVerified),
		"profile_complete":          domain.Bool(tx.ProfileComplete),
		"failed_login_attempts_24h": tx.FailedLoginAttempts24,
		"password_reset_count_30d":  tx.PasswordResetCount30d,
		"device_type":               tx.DeviceType,
		"new_device":                domain.Bool(tx.NewDevice),
		"vpn_proxy_detected":        domain.Bool(tx.VPNProxyDetected),
		"payment_method":            tx.PaymentMethod,
		"card_bin":                  tx.CardBIN,
		"card_country":              tx.CardCountry,
		"billing_country":           tx.BillingCountry,
		"shipping_country":          tx.ShippingCountry,
		"ip_country":                tx.IPCountry,
		"billing_shipping_match":    tx.BillingShippingMatch == nil || *tx.BillingShippingMatch,
		"cvv_check_result":          tx.CVVCheckResult,
		"avs_result":                tx.AVSResult,
		"total_orders_lifetime":     intOrZero(tx.TotalOrdersLifetime),
		"orders_last_24h":           intOrZero(tx.OrdersLast24h),
		"orders_last_7d":            intOrZero(tx.OrdersLast7d),
		"avg_order_value":           floatOrZero(tx.AvgOrderValue),
		"session_duration_seconds":  intOrZero(tx.SessionDurationSecs),
		"cart_additions_session":    intOrZero(tx.CartAdditions),
		"high_risk_category":        domain.Bool(tx.HighRiskCategory),
	}
	vars["tx"] = map[string]any{
		"id":           tx.ID,
		"user_id":      tx.UserID,
		"order_amount": tx.OrderAmount,
		"currency":     tx.Currency,
	}
	return vars
}

func validCategory(c domain.RiskCategory) bool {
	for _, known := range domain.RiskCategories {
		if c == known {
			return true
		}
	}
	return false
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
