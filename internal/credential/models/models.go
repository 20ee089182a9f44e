package models

import (
	"time"

	"github.com/google/uuid"

	"iam/internal/credential/providers"
)

// StampTTL is how long an issued stamp stays valid.
const StampTTL = 90 * 24 * time.Hour

// Stamp is the persisted form of a Valid verification outcome, scoped to the
// address it was issued for.
type Stamp struct {
	ID        uuid.UUID         `json:"id"`
	Provider  string            `json:"provider"`
	Address   string            `json:"address"`
	Hash      string            `json:"hash"`
	Record    map[string]string `json:"record"`
	IssuedAt  time.Time         `json:"issued_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// IsExpired reports whether the stamp has passed its expiry at now.
func (s *Stamp) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// VerificationResult is what the orchestrator hands back to its callers.
// Stamp is set only when Outcome is valid and the stamp was persisted.
type VerificationResult struct {
	Outcome providers.VerifiedPayload `json:"outcome"`
	Stamp   *Stamp                    `json:"stamp,omitempty"`
}

// VerificationEvent is published for every orchestrated verification.
// The address is hashed; proof material never leaves the service.
type VerificationEvent struct {
	ID          uuid.UUID `json:"id"`
	Provider    string    `json:"provider"`
	AddressHash string    `json:"address_hash,omitempty"`
	Valid       bool      `json:"valid"`
	Category    string    `json:"category,omitempty"`
	Errors      []string  `json:"errors,omitempty"`
	StampHash   string    `json:"stamp_hash,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
