// Package policy evaluates configurable routing rules that can veto a
// gateway for a given transaction profile, e.g. keeping high-value
// international payments off a gateway with poor dispute terms. Rules are
// govaluate expressions compiled once at construction.
package policy

import (
	"fmt"
	"os"

	"github.com/Knetic/govaluate"
	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/schema"
)

// RuleConfig is one routing rule. The expression is evaluated against the
// transaction profile; a true result vetoes the gateway for this payment.
//
// Available parameters: gateway (string), amount (float), currency (string),
// card_brand (string), international (bool).
type RuleConfig struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// Profile is the transaction shape a rule sees.
type Profile struct {
	Amount        decimal.Decimal
	Currency      schema.Currency
	CardBrand     schema.CardBrand
	International bool
}

type compiledRule struct {
	name string
	expr *govaluate.EvaluableExpression
}

// Enforcer applies the configured routing rules.
type Enforcer struct {
	rules []compiledRule
}

// NewEnforcer compiles the rule expressions. A rule that fails to compile is
// a configuration error surfaced immediately, not at evaluation time.
func NewEnforcer(rules []RuleConfig) (*Enforcer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rc := range rules {
		expr, err := govaluate.NewEvaluableExpression(rc.Expression)
		if err != nil {
			return nil, fmt.Errorf("policy: rule %q: %w", rc.Name, err)
		}
		compiled = append(compiled, compiledRule{name: rc.Name, expr: expr})
	}
	return &Enforcer{rules: compiled}, nil
}

// Allow reports whether the gateway may handle the profile. When a rule
// vetoes it, the rule name is returned as the reason.
func (e *Enforcer) Allow(g schema.Gateway, p Profile) (bool, string, error) {
	if len(e.rules) == 0 {
		return true, "", nil
	}

	amount, _ := p.Amount.Float64()
	params := map[string]any{
		"gateway":       g.String(),
		"amount":        amount,
		"currency":      p.Currency.String(),
		"card_brand":    p.CardBrand.String(),
		"international": p.International,
	}

	for _, rule := range e.rules {
		result, err := rule.expr.Evaluate(params)
		if err != nil {
			return false, rule.name, fmt.Errorf("policy: rule %q: %w", rule.name, err)
		}
		vetoed, ok := result.(bool)
		if !ok {
			return false, rule.name, fmt.Errorf("policy: rule %q did not evaluate to a boolean", rule.name)
		}
		if vetoed {
			return false, rule.name, nil
		}
	}
	return true, "", nil
}

// LoadRules reads rule configs from a JSON file shaped {"rules": [...]}.
func LoadRules(path string) ([]RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read rules %s: %w", path, err)
	}
	var file struct {
		Rules []RuleConfig `json:"rules"`
	}
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("policy: decode rules %s: %w", path, err)
	}
	return file.Rules, nil
}
