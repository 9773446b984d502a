package decision

import (
	"regexp"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Verdict is the tagged result of parsing the reasoning engine's free-form
// reply: an unambiguous approve/deny, or ambiguous with a reason.
type Verdict struct {
	Decision  domain.Decision
	Ambiguous bool
	Reason    string
}

var (
	approveToken = regexp.MustCompile(`(?i)\bapprove[ds]?\b`)
	denyToken    = regexp.MustCompile(`(?i)\b(deny|denie[ds]|denial)\b`)
)

// ParseVerdict scans reply text case-insensitively for decision tokens.
// Exactly one recognized token family present yields that decision; zero or
// conflicting tokens yield an ambiguous verdict. The parser never fails: any
// unparseable input degrades to ambiguous, which callers resolve to the
// review fallback.
func ParseVerdict(text string) Verdict {
	if text == "" {
		return Verdict{Ambiguous: true, Reason: "reasoning reply was empty"}
	}

	approved := approveToken.MatchString(text)
	denied := denyToken.MatchString(text)

	switch {
	case approved && denied:
		return Verdict{Ambiguous: true, Reason: "reasoning reply contained both approve and deny tokens"}
	case approved:
		return Verdict{Decision: domain.DecisionApprove}
	case denied:
		return Verdict{Decision: domain.DecisionDeny}
	default:
		return Verdict{Ambiguous: true, Reason: "no decision token found in reasoning reply"}
	}
}
