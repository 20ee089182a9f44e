package providers

import (
	"encoding/json"
	"maps"
	"slices"
)

// unknownFailure replaces an empty error list so Invalid is never bare.
const unknownFailure = "verification failed"

// VerifiedPayload is the outcome of a single verification.
//
// It is a two-variant union: Valid carries a non-nil record to persist,
// Invalid carries one or more diagnostic strings. The fields are unexported so
// the only way to build one is through Valid, Invalid or FromError, which keep
// exactly one variant populated.
type VerifiedPayload struct {
	valid    bool
	record   map[string]string
	errors   []string
	category FailureCategory
}

// Valid builds a successful outcome. A nil record becomes an empty one.
func Valid(record map[string]string) VerifiedPayload {
	r := make(map[string]string, len(record))
	maps.Copy(r, record)
	return VerifiedPayload{valid: true, record: r}
}

// Invalid builds a failed outcome from diagnostics. Empty strings are dropped;
// if nothing is left a generic message is used.
func Invalid(errs ...string) VerifiedPayload {
	return invalid(CategorySemanticRejection, errs)
}

// FromError builds a failed outcome whose single diagnostic is err's text.
// The failure category is taken from err when it is a *VerificationError.
func FromError(err error) VerifiedPayload {
	if err == nil {
		return invalid(CategoryInternal, nil)
	}
	return invalid(GetCategory(err), []string{err.Error()})
}

func invalid(category FailureCategory, errs []string) VerifiedPayload {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != "" {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		out = append(out, unknownFailure)
	}
	return VerifiedPayload{errors: out, category: category}
}

func (v VerifiedPayload) IsValid() bool {
	return v.valid
}

// Record returns a copy of the persisted fields; nil for Invalid outcomes.
func (v VerifiedPayload) Record() map[string]string {
	if !v.valid {
		return nil
	}
	r := make(map[string]string, len(v.record))
	maps.Copy(r, v.record)
	return r
}

// Errors returns a copy of the diagnostics; nil for Valid outcomes.
func (v VerifiedPayload) Errors() []string {
	if v.valid {
		return nil
	}
	if len(v.errors) == 0 {
		// zero value: treat as an unknown failure
		return []string{unknownFailure}
	}
	return slices.Clone(v.errors)
}

// Category classifies an Invalid outcome for metrics and logs. Valid outcomes
// report an empty category.
func (v VerifiedPayload) Category() FailureCategory {
	if v.valid {
		return ""
	}
	if v.category == "" {
		return CategoryInternal
	}
	return v.category
}

type verifiedPayloadJSON struct {
	Valid  bool              `json:"valid"`
	Record map[string]string `json:"record,omitempty"`
	Error  []string          `json:"error,omitempty"`
}

// MarshalJSON renders {"valid":true,"record":{...}} or {"valid":false,"error":[...]}.
func (v VerifiedPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(verifiedPayloadJSON{
		Valid:  v.valid,
		Record: v.Record(),
		Error:  v.Errors(),
	})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON and re-applies the
// single-variant invariant.
func (v *VerifiedPayload) UnmarshalJSON(data []byte) error {
	var raw verifiedPayloadJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Valid {
		*v = Valid(raw.Record)
		return nil
	}
	*v = invalid(CategoryInternal, raw.Error)
	return nil
}
