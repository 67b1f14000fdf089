package gamma

import (
	"encoding/json"
	"strings"
)

// fallbackPrice is used when no price carrier in the payload can be resolved.
// A 0.5/0.5 pair is the maximum-entropy prior for a binary market.
const fallbackPrice = 0.5

// ResolvePricePair extracts the (yes, no) price pair from a market payload.
// Carriers are tried in order of reliability: the ordered outcomePrices pair,
// then the token list matched by outcome name, then the direct yes/no fields.
// resolved is false when every carrier was absent or unparseable, in which
// case the fallback pair is returned.
func ResolvePricePair(m APIMarket) (yes, no float64, resolved bool) {
	if yes, no, ok := pairFromOutcomePrices(m.OutcomePrices); ok {
		return yes, no, true
	}
	if yes, no, ok := pairFromTokens(m.Tokens); ok {
		return yes, no, true
	}
	if m.YesPrice != nil || m.NoPrice != nil {
		var yes, no float64
		if m.YesPrice != nil {
			yes = float64(*m.YesPrice)
		}
		if m.NoPrice != nil {
			no = float64(*m.NoPrice)
		}
		return yes, no, true
	}
	return fallbackPrice, fallbackPrice, false
}

// NormalizePricePair rescales the pair so yes + no sums to exactly 1,
// protecting downstream valuation from fee-skewed upstream pairs. A pair
// summing to zero carries no information and collapses to the fallback.
func NormalizePricePair(yes, no float64) (float64, float64) {
	sum := yes + no
	if sum <= 0 {
		return fallbackPrice, fallbackPrice
	}
	return yes / sum, no / sum
}

// pairFromOutcomePrices handles both encodings of the outcomePrices field:
// a plain JSON array and a JSON string containing an encoded array. The
// first element is the YES price, the second the NO price.
func pairFromOutcomePrices(raw json.RawMessage) (yes, no float64, ok bool) {
	if len(raw) == 0 {
		return 0, 0, false
	}

	var prices []flexFloat
	if err := json.Unmarshal(raw, &prices); err != nil {
		// Legacy shape: the array itself is JSON-encoded inside a string.
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return 0, 0, false
		}
		if err := json.Unmarshal([]byte(encoded), &prices); err != nil {
			return 0, 0, false
		}
	}

	if len(prices) < 2 {
		return 0, 0, false
	}
	return float64(prices[0]), float64(prices[1]), true
}

// pairFromTokens matches token entries by outcome name, case-insensitively.
// Both outcomes must be present for the pair to count as resolved.
func pairFromTokens(tokens []Token) (yes, no float64, ok bool) {
	var haveYes, haveNo bool
	for _, t := range tokens {
		switch strings.ToLower(strings.TrimSpace(t.Outcome)) {
		case "yes":
			yes = float64(t.Price)
			haveYes = true
		case "no":
			no = float64(t.Price)
			haveNo = true
		}
	}
	if !haveYes || !haveNo {
		return 0, 0, false
	}
	return yes, no, true
}
