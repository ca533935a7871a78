package network

import (
	"strings"

	"github.com/airvend/airvend/internal/config"
)

// Network identifies a carrier in the national numbering plan.
type Network string

// Unknown is returned when a subscriber number matches no configured prefix.
// It is a value, not an error: callers decide whether an unclassified number
// blocks their workflow or prompts for manual selection.
const Unknown Network = "unknown"

const prefixLength = 3

// Classifier maps subscriber numbers to carrier networks using numbering-plan
// prefix rules. It is immutable after construction and safe for concurrent use.
type Classifier struct {
	countryCode string
	trunkPrefix string
	prefixes    map[string]Network
}

// NewClassifier compiles the configured prefix table into a classifier.
func NewClassifier(rules config.NetworkRules) *Classifier {
	prefixes := make(map[string]Network, len(rules.Prefixes))
	for prefix, name := range rules.Prefixes {
		prefixes[prefix] = Network(name)
	}
	return &Classifier{
		countryCode: rules.CountryCode,
		trunkPrefix: rules.TrunkPrefix,
		prefixes:    prefixes,
	}
}

// Classify resolves the carrier for a raw subscriber number. Input is
// normalized by dropping every non-digit rune, so "+27 82 123 4567" and
// "0821234567" classify identically.
func (c *Classifier) Classify(msisdn string) Network {
	digits := normalize(msisdn)

	switch {
	case c.countryCode != "" && strings.HasPrefix(digits, c.countryCode):
		digits = c.trunkPrefix + digits[len(c.countryCode):]
	case c.trunkPrefix != "" && strings.HasPrefix(digits, c.trunkPrefix):
		// already in trunk form
	default:
		digits = c.trunkPrefix + digits
	}

	if len(digits) < prefixLength {
		return Unknown
	}

	network, ok := c.prefixes[digits[:prefixLength]]
	if !ok {
		return Unknown
	}
	return network
}

func normalize(msisdn string) string {
	var b strings.Builder
	b.Grow(len(msisdn))
	for _, r := range msisdn {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
