package generate

import (
	"vitalsynth/domain/vitals"
	"vitalsynth/ports"
)

// New selects the strategy for a request method. The rules strategy takes
// an optional distribution table; pass nil for the built-in defaults.
func New(method vitals.Method, rules RuleTable) (ports.Generator, error) {
	switch method {
	case vitals.MethodMVN:
		return NewMVNGenerator(), nil
	case vitals.MethodBootstrap:
		return NewBootstrapGenerator(), nil
	case vitals.MethodRules:
		return NewRulesGenerator(rules), nil
	}
	return nil, vitals.NewSchemaError("method", "unknown method %q", method)
}
