// Package resolve maps free-text restaurant names from the order history to
// inspection registry identifiers.
package resolve

import (
	"regexp"
	"strings"
)

// SuffixRule strips one decoration from the end of a restaurant name.
type SuffixRule struct {
	Name    string
	Pattern *regexp.Regexp
}

func suffix(name, expr string) SuffixRule {
	return SuffixRule{Name: name, Pattern: regexp.MustCompile(`(?i)` + expr)}
}

// SuffixRules lists the decorations stripped by Normalize, in application order.
// Each rule is applied exactly once, so a name carrying two decorations in the
// "wrong" order keeps the outer one.
var SuffixRules = []SuffixRule{
	suffix("closed", `\s*-\s*CLOSED\s*$`),
	suffix("promo_off", `\s*-\s*\$\d+(\.\d+)?\s+off.*$`),
	suffix("delivery_fee", `\s*\$\d+(\.\d+)?\s+Delivery\s*(Fee)?\s*$`),
	suffix("archived", `\s*\(archived\)\s*$`),
	suffix("midtown", `\s*-\s*Midtown\s*$`),
	suffix("downtown", `\s*-\s*Downtown\s*$`),
	suffix("ues", `\s*-\s*UES\s*$`),
	suffix("uws", `\s*-\s*UWS\s*$`),
	suffix("brooklyn", `\s*-\s*Brooklyn\s*$`),
	suffix("manhattan", `\s*-\s*Manhattan\s*$`),
	suffix("broadway", `\s+Broadway\s*$`),
	suffix("hudson", `\s+Hudson\s*$`),
}

// TrimName removes surrounding whitespace and double quotes the way the
// order export wraps them.
func TrimName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"`)
	return strings.TrimSpace(name)
}

// Normalize returns the matching key for a raw restaurant name by:
//  1. Trimming whitespace and double quotes
//  2. Stripping each SuffixRule once, in order
//  3. Trimming the result
//
// Case is preserved; lookups fold case separately.
func Normalize(name string) string {
	name = TrimName(name)
	if name == "" {
		return ""
	}

	for _, rule := range SuffixRules {
		name = rule.Pattern.ReplaceAllString(name, "")
	}

	return strings.TrimSpace(name)
}
