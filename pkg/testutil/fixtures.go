package testutil

import (
	"time"

	"github.com/google/uuid"

	"iam/internal/credential/models"
	"iam/internal/credential/providers"
)

// TestAddresses provides deterministic wallet addresses for tests.
var TestAddresses = struct {
	Alice string
	Bob   string
}{
	Alice: "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23",
	Bob:   "0x1111111111111111111111111111111111111111",
}

// PayloadBuilder provides a fluent interface for building verification payloads.
type PayloadBuilder struct {
	payload *providers.RequestPayload
}

// NewPayloadBuilder creates a World ID payload with well-formed proof fields.
func NewPayloadBuilder() *PayloadBuilder {
	return &PayloadBuilder{
		payload: &providers.RequestPayload{
			Type:    "WorldID",
			Address: TestAddresses.Alice,
			Version: "0.0.0",
			Proofs: map[string]string{
				"nullifier_hash": "0x2bf8406809dcefb1486dadc96c0a897db9bab002053054cf64272db512c6fbd8",
				"merkle_root":    "0x1d1f3b3c8b7c57ec7f8a2e0e1c2d4f8c0b7a3e5d9f1c2b3a4e5f6a7b8c9d0e1f",
				"proof":          "0x0f4b5e0a1c",
			},
		},
	}
}

func (b *PayloadBuilder) WithType(t string) *PayloadBuilder {
	b.payload.Type = t
	return b
}

func (b *PayloadBuilder) WithAddress(addr string) *PayloadBuilder {
	b.payload.Address = addr
	return b
}

func (b *PayloadBuilder) WithProof(name, value string) *PayloadBuilder {
	b.payload.Proofs[name] = value
	return b
}

func (b *PayloadBuilder) WithoutProof(name string) *PayloadBuilder {
	delete(b.payload.Proofs, name)
	return b
}

func (b *PayloadBuilder) Build() *providers.RequestPayload {
	return b.payload
}

// StampBuilder provides a fluent interface for building test stamps.
type StampBuilder struct {
	stamp *models.Stamp
}

// NewStampBuilder creates a stamp issued now for Alice.
func NewStampBuilder() *StampBuilder {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &StampBuilder{
		stamp: &models.Stamp{
			ID:        uuid.New(),
			Provider:  "WorldID",
			Address:   TestAddresses.Alice,
			Hash:      "v0.0.0:" + uuid.NewString(),
			Record:    map[string]string{"nullifier_hash": "0xabc"},
			IssuedAt:  now,
			ExpiresAt: now.Add(models.StampTTL),
		},
	}
}

func (b *StampBuilder) WithHash(hash string) *StampBuilder {
	b.stamp.Hash = hash
	return b
}

func (b *StampBuilder) WithAddress(addr string) *StampBuilder {
	b.stamp.Address = addr
	return b
}

func (b *StampBuilder) WithIssuedAt(t time.Time) *StampBuilder {
	b.stamp.IssuedAt = t
	b.stamp.ExpiresAt = t.Add(models.StampTTL)
	return b
}

func (b *StampBuilder) Build() *models.Stamp {
	return b.stamp
}
