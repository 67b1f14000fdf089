package gamma

import (
	"encoding/json"
	"strconv"
	"strings"
)

// APIMarket mirrors the price-relevant subset of the upstream market payload.
// The API has shipped several shapes over time, so every price carrier the
// resolver understands is present here:
//
//   - OutcomePrices: ordered [yes, no] pair, either a JSON array or a
//     JSON-encoded string like "[\"0.45\", \"0.55\"]"
//   - Tokens: list of {outcome, price} entries
//   - YesPrice / NoPrice: direct fields on the market object
type APIMarket struct {
	ID            string          `json:"id"`
	Question      string          `json:"question"`
	Closed        bool            `json:"closed"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	Tokens        []Token         `json:"tokens"`
	YesPrice      *flexFloat      `json:"yesPrice"`
	NoPrice       *flexFloat      `json:"noPrice"`
}

// Token is one outcome entry inside the market payload.
type Token struct {
	TokenID string    `json:"token_id"`
	Outcome string    `json:"outcome"`
	Price   flexFloat `json:"price"`
}

// flexFloat decodes a number that the API may send as a JSON number or as a
// quoted string ("0.55").
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
