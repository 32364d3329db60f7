package schema

import "strings"

// CardBrand identifies a card network for fee purposes.
type CardBrand string

const (
	BrandVisa       CardBrand = "visa"
	BrandMastercard CardBrand = "mastercard"
	BrandAmex       CardBrand = "amex"
	BrandDiscover   CardBrand = "discover"
	BrandUnknown    CardBrand = "unknown"
)

func (b CardBrand) String() string { return string(b) }

// DetectCardBrand infers the card brand from an explicit brand hint, falling
// back to the token text. This is a substring heuristic, not a guaranteed
// classifier; the exact matching rules are load-bearing for fee routing and
// must not be tightened without checking callers.
func DetectCardBrand(token, brandHint string) CardBrand {
	if brandHint != "" {
		hint := strings.ToLower(brandHint)
		switch {
		case strings.Contains(hint, "visa"):
			return BrandVisa
		case strings.Contains(hint, "master"):
			return BrandMastercard
		case strings.Contains(hint, "amex"), strings.Contains(hint, "american"):
			return BrandAmex
		case strings.Contains(hint, "discover"):
			return BrandDiscover
		}
	}

	tok := strings.ToLower(token)
	switch {
	case strings.Contains(tok, "visa"):
		return BrandVisa
	case strings.Contains(tok, "mastercard"), strings.Contains(tok, "mc"):
		return BrandMastercard
	case strings.Contains(tok, "amex"):
		return BrandAmex
	case strings.Contains(tok, "discover"):
		return BrandDiscover
	}
	return BrandUnknown
}
