package fetcher

import (
	"bytes"
	"encoding/json"

	"pumptrader/internal/market"
)

// tokenPayload mirrors one entry of the token feed. Every field is decoded leniently so a
// single malformed entry never fails the whole batch; validation happens in the scanner.
type tokenPayload struct {
	ContractAddress  flexValue `json:"contract_address"`
	Mint             flexValue `json:"mint"`
	Symbol           flexValue `json:"symbol"`
	Price            flexValue `json:"price"`
	Liquidity        flexValue `json:"liquidity"`
	Volume24h        flexValue `json:"volume_24h"`
	SocialEngagement flexValue `json:"social_engagement"`
	SafetyScore      flexValue `json:"safety_score"`
}

func (p tokenPayload) toRaw() market.RawToken {
	contract := p.ContractAddress.String()
	if contract == "" {
		contract = p.Mint.String()
	}
	return market.RawToken{
		ContractAddress:  contract,
		Symbol:           p.Symbol.String(),
		Price:            p.Price.raw,
		Liquidity:        p.Liquidity.raw,
		Volume24h:        p.Volume24h.raw,
		SocialEngagement: p.SocialEngagement.raw,
		SafetyScore:      p.SafetyScore.raw,
	}
}

// flexValue accepts a JSON number, string or null and keeps its text.
type flexValue struct {
	raw *string
}

func (f *flexValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		f.raw = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.raw = &s
		return nil
	}
	s := string(b)
	f.raw = &s
	return nil
}

func (f flexValue) String() string {
	if f.raw == nil {
		return ""
	}
	return *f.raw
}

// decodeTokens accepts either a bare array or an object wrapping it under "tokens".
// Elements are decoded one by one; an element that is not a token object becomes an
// empty RawToken, which the scanner drops as malformed.
func decodeTokens(payload []byte) ([]market.RawToken, error) {
	trimmed := bytes.TrimSpace(payload)

	var items []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Tokens []json.RawMessage `json:"tokens"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, err
		}
		items = wrapper.Tokens
	} else if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}

	tokens := make([]market.RawToken, 0, len(items))
	for _, item := range items {
		var p tokenPayload
		if err := json.Unmarshal(item, &p); err != nil {
			tokens = append(tokens, market.RawToken{})
			continue
		}
		tokens = append(tokens, p.toRaw())
	}
	return tokens, nil
}
