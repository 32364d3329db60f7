package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/xeipuuv/gojsonschema"

	"github.com/yourorg/payment-adapter/internal/fees"
	"github.com/yourorg/payment-adapter/internal/schema"
)

// feeScheduleSchema validates override files before any rate is applied. A
// malformed schedule must never silently fall back to partial rates.
const feeScheduleSchema = `{
  "type": "object",
  "properties": {
    "gateways": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "gateway": {"type": "string", "enum": ["stripe", "paypal", "square"]},
          "percentage_fee": {"type": "string"},
          "fixed_fee": {"type": "string"},
          "amex_surcharge": {"type": "string"},
          "international_fee": {"type": "string"},
          "currency": {"type": "string"}
        },
        "required": ["gateway", "percentage_fee", "fixed_fee"],
        "additionalProperties": false
      }
    }
  },
  "required": ["gateways"],
  "additionalProperties": false
}`

type feeScheduleFile struct {
	Gateways []fees.Structure `json:"gateways"`
}

// LoadFeeSchedule reads a JSON fee schedule, validates it against the
// embedded schema and returns a calculator seeded with those rates. An empty
// path returns the default published rates.
func LoadFeeSchedule(path string) (*fees.Calculator, error) {
	if path == "" {
		return fees.DefaultCalculator(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fee schedule %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(feeScheduleSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate fee schedule: %w", err)
	}
	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descs = append(descs, desc.String())
		}
		return nil, fmt.Errorf("fee schedule %s invalid: %s", path, strings.Join(descs, "; "))
	}

	var file feeScheduleFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode fee schedule %s: %w", path, err)
	}
	for i := range file.Gateways {
		if file.Gateways[i].Currency == "" {
			file.Gateways[i].Currency = schema.CurrencyUSD
		}
	}
	return fees.NewCalculator(file.Gateways...), nil
}
