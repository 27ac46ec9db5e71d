package vitals

import "fmt"

// Method selects a generation strategy
type Method string

const (
	MethodMVN       Method = "mvn"
	MethodBootstrap Method = "bootstrap"
	MethodRules     Method = "rules"
)

// Methods returns every supported generation method
func Methods() []Method {
	return []Method{MethodMVN, MethodBootstrap, MethodRules}
}

// GenerationRequest is the fully-enumerated configuration for one
// generation call. Constructed by the caller, validated once, then
// treated as immutable.
type GenerationRequest struct {
	NPerArm      int     `json:"n_per_arm"`
	TargetEffect float64 `json:"target_effect"`
	Seed         *int64  `json:"seed,omitempty"`
	Method       Method  `json:"method"`
	JitterFrac   float64 `json:"jitter_frac,omitempty"`

	// Overrides carries opaque numeric parameters supplied by an upstream
	// baseline-statistics provider (e.g. indication-specific mean/std).
	// Keys are "<column>.mean" or "<column>.std".
	Overrides map[string]float64 `json:"overrides,omitempty"`
}

// Validate checks every field once so invalid combinations are rejected
// at construction rather than deep inside a generator.
func (r GenerationRequest) Validate() error {
	if r.NPerArm <= 0 {
		return NewSchemaError("n_per_arm", "must be positive, got %d", r.NPerArm)
	}
	switch r.Method {
	case MethodMVN, MethodBootstrap, MethodRules:
	case "":
		return NewSchemaError("method", "required")
	default:
		return NewSchemaError("method", "unknown method %q", r.Method)
	}
	if r.JitterFrac < 0 || r.JitterFrac > 1 {
		return NewSchemaError("jitter_frac", "must be in [0,1], got %g", r.JitterFrac)
	}
	if r.JitterFrac > 0 && r.Method != MethodBootstrap {
		return NewSchemaError("jitter_frac", "only valid with the bootstrap method")
	}
	for key := range r.Overrides {
		if _, _, err := parseOverrideKey(key); err != nil {
			return err
		}
	}
	return nil
}

// ExpectedCount returns the exact number of records a valid request produces
func (r GenerationRequest) ExpectedCount() int {
	return r.NPerArm * len(Arms()) * len(Visits())
}

// Override looks up a "<column>.<stat>" override, reporting whether it was set
func (r GenerationRequest) Override(c Column, stat string) (float64, bool) {
	v, ok := r.Overrides[fmt.Sprintf("%s.%s", c, stat)]
	return v, ok
}

func parseOverrideKey(key string) (Column, string, error) {
	for _, c := range Columns() {
		for _, stat := range []string{"mean", "std"} {
			if key == fmt.Sprintf("%s.%s", c, stat) {
				return c, stat, nil
			}
		}
	}
	return "", "", NewSchemaError("overrides", "unknown override key %q", key)
}
