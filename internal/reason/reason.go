// Package reason defines the boundary to the external reasoning engine that
// reviews escalated transactions. The engine receives a structured review
// context and replies with free-form text; verdict extraction happens in the
// decision package.
package reason

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ReviewContext carries everything the reasoning engine needs: the salient
// transaction fields, the model's legitimacy score, and the pre-computed
// risk assessment with its triggered signals.
type ReviewContext struct {
	Transaction     *domain.Transaction
	LegitimacyScore float64
	Assessment      *domain.RiskAssessment
}

// Engine is the reasoning collaborator. Review returns unstructured text
// which is expected, but not guaranteed, to contain a decision token.
type Engine interface {
	Review(ctx context.Context, rc *ReviewContext) (string, error)
}

// BuildPrompt renders the review context as the prompt payload sent to the
// engine. The engine may instead call the risk evaluator itself through the
// MCP tool surface; the pre-computed assessment just saves it the round trip.
func BuildPrompt(rc *ReviewContext) string {
	var b strings.Builder
	tx := rc.Transaction

	b.WriteString("You are a fraud detection specialist reviewing an uncertain e-commerce transaction.\n\n")
	fmt.Fprintf(&b, "Transaction %s for user %s: %.2f %s\n", tx.ID, tx.UserID, tx.OrderAmount, tx.Currency)
	fmt.Fprintf(&b, "Model legitimacy score: %.3f (0=fraud, 1=legitimate)\n\n", rc.LegitimacyScore)

	writeField := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "- %s: %s\n", name, value)
		}
	}
	b.WriteString("Transaction attributes:\n")
	if tx.AccountAgeDays != nil {
		fmt.Fprintf(&b, "- account age: %d days\n", *tx.AccountAgeDays)
	}
	if tx.EmailVerified != nil {
		fmt.Fprintf(&b, "- email verified: %t\n", *tx.EmailVerified)
	}
	if tx.PhoneVerified != nil {
		fmt.Fprintf(&b, "- phone verified: %t\n", *tx.PhoneVerified)
	}
	if tx.FailedLoginAttempts24 > 0 {
		fmt.Fprintf(&b, "- failed logins (24h): %d\n", tx.FailedLoginAttempts24)
	}
	if tx.NewDevice != nil {
		fmt.Fprintf(&b, "- new device: %t\n", *tx.NewDevice)
	}
	if tx.VPNProxyDetected != nil {
		fmt.Fprintf(&b, "- vpn/proxy: %t\n", *tx.VPNProxyDetected)
	}
	writeField("payment method", tx.PaymentMethod)
	writeField("cvv check", tx.CVVCheckResult)
	writeField("avs result", tx.AVSResult)
	writeField("ip country", tx.IPCountry)
	writeField("billing country", tx.BillingCountry)
	writeField("shipping country", tx.ShippingCountry)
	if tx.OrdersLast24h != nil {
		fmt.Fprintf(&b, "- orders last 24h: %d\n", *tx.OrdersLast24h)
	}

	if rc.Assessment != nil {
		fmt.Fprintf(&b, "\nComposite risk score: %.1f/100 (recommendation: %s)\n",
			rc.Assessment.Composite, rc.Assessment.Recommendation)
		for _, c := range rc.Assessment.Categories {
			fmt.Fprintf(&b, "- %s risk: %.1f\n", c.Category, c.Score)
			for _, s := range c.Signals {
				fmt.Fprintf(&b, "    * %s\n", s)
			}
		}
	}

	b.WriteString("\nWeigh the risk factors and decide. ")
	b.WriteString("End your reply with exactly one line: DECISION: APPROVE or DECISION: DENY.\n")
	return b.String()
}
