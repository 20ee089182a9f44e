package contract

import (
	"context"
	"testing"

	"iam/internal/credential/providers"
)

// ContractTest defines a test case for provider contract validation
type ContractTest struct {
	Name         string
	Payload      *providers.RequestPayload
	ExpectValid  bool
	ValidateFunc func(out providers.VerifiedPayload) error
	SkipTotality bool // skip this payload in RunTotality (e.g. it needs a prepared backend)
}

// ContractSuite is a collection of contract tests for a provider
type ContractSuite struct {
	Provider     providers.Provider
	ExpectedType string
	Tests        []ContractTest
}

// Run executes all contract tests in the suite
func (s *ContractSuite) Run(t *testing.T) {
	t.Run("type tag", func(t *testing.T) {
		if got := s.Provider.Type(); got != s.ExpectedType {
			t.Errorf("expected type %q, got %q", s.ExpectedType, got)
		}
	})

	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			out := s.Provider.Verify(context.Background(), test.Payload)

			CheckOutcome(t, out)

			if out.IsValid() != test.ExpectValid {
				t.Errorf("expected valid=%t, got valid=%t (errors: %v)", test.ExpectValid, out.IsValid(), out.Errors())
			}

			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(out); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}

// RunTotality feeds degenerate payloads to the provider and checks that each
// one still yields a well-formed outcome.
func (s *ContractSuite) RunTotality(t *testing.T) {
	payloads := map[string]*providers.RequestPayload{
		"nil payload":   nil,
		"empty payload": {},
		"empty proofs":  {Type: s.ExpectedType, Proofs: map[string]string{}},
		"nil proofs":    {Type: s.ExpectedType, Address: "0x0000000000000000000000000000000000000000"},
		"garbage signer": {Type: s.ExpectedType, Signer: &providers.SignerProof{
			Challenge: "c", Signature: "zz", Address: "nope",
		}},
	}
	for _, test := range s.Tests {
		if !test.SkipTotality {
			payloads[test.Name] = test.Payload
		}
	}

	for name, payload := range payloads {
		t.Run("totality/"+name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Verify panicked: %v", r)
				}
			}()
			CheckOutcome(t, s.Provider.Verify(context.Background(), payload))
		})
	}
}

// CheckOutcome asserts the single-variant invariant on an outcome.
func CheckOutcome(t *testing.T, out providers.VerifiedPayload) {
	t.Helper()
	if out.IsValid() {
		if out.Record() == nil {
			t.Error("valid outcome has nil record")
		}
		if len(out.Errors()) != 0 {
			t.Errorf("valid outcome carries errors: %v", out.Errors())
		}
		return
	}
	if out.Record() != nil {
		t.Errorf("invalid outcome carries a record: %v", out.Record())
	}
	if len(out.Errors()) == 0 {
		t.Error("invalid outcome has no errors")
	}
	for _, e := range out.Errors() {
		if e == "" {
			t.Error("invalid outcome has an empty error string")
		}
	}
}
