package providers

import (
	"errors"
)

// FailureCategory is the normalized taxonomy for Invalid outcomes.
//
// Callers only branch on valid/invalid; the category exists so metrics and
// logs can tell a proof the remote verifier rejected apart from a verifier
// that could not be reached.
type FailureCategory string

const (
	// CategorySemanticRejection: the verifier answered and said no (success=false or non-200).
	CategorySemanticRejection FailureCategory = "semantic_rejection"

	// CategoryDependencyFailure: a local collaborator (e.g. the address resolver) failed.
	CategoryDependencyFailure FailureCategory = "dependency_failure"

	// CategoryTransportFailure: network, DNS, TLS or timeout error talking to the verifier.
	CategoryTransportFailure FailureCategory = "transport_failure"

	// CategoryMalformedResponse: the verifier's response could not be read.
	CategoryMalformedResponse FailureCategory = "malformed_response"

	// CategoryInternal: anything else, including recovered panics.
	CategoryInternal FailureCategory = "internal"
)

// VerificationError wraps a failure inside a provider with its category.
//
// Error() renders only the underlying fault (or Message when there is none):
// that text is what ends up in the Invalid outcome, and the category and
// provider travel alongside it in structured fields.
type VerificationError struct {
	Category   FailureCategory
	Provider   string
	Message    string
	Underlying error
}

func (e *VerificationError) Error() string {
	if e.Underlying != nil {
		return e.Underlying.Error()
	}
	return e.Message
}

func (e *VerificationError) Unwrap() error {
	return e.Underlying
}

func NewVerificationError(category FailureCategory, provider, message string, underlying error) *VerificationError {
	return &VerificationError{
		Category:   category,
		Provider:   provider,
		Message:    message,
		Underlying: underlying,
	}
}

// GetCategory extracts the failure category from an error
func GetCategory(err error) FailureCategory {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return CategoryInternal
}

// Sentinel errors for orchestrator-level failures; providers never return them.
var (
	ErrProviderNotFound = errors.New("provider not found")
)
