package providers

import (
	"context"
	"fmt"
	"sort"
)

// SignerProof carries a wallet signature over a server-issued challenge.
// When present, the signing address is recovered from it instead of trusting
// the bare Address field.
type SignerProof struct {
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
}

// RequestPayload is the caller-supplied verification request.
//
// Proofs holds scheme-specific fields (e.g. nullifier_hash, merkle_root and
// proof for World ID). Providers read it but never mutate it, and required
// proof fields are not validated locally: the remote verifier is the
// authority on what a well-formed proof looks like.
type RequestPayload struct {
	Type    string            `json:"type" validate:"required"`
	Types   []string          `json:"types,omitempty"`
	Address string            `json:"address,omitempty" validate:"omitempty,eth_addr"`
	Version string            `json:"version,omitempty"`
	Proofs  map[string]string `json:"proofs,omitempty"`
	Signer  *SignerProof      `json:"signer,omitempty"`
}

// Proof returns the named proof field, or "" when it was not supplied.
func (p *RequestPayload) Proof(name string) string {
	if p == nil || p.Proofs == nil {
		return ""
	}
	return p.Proofs[name]
}

// Provider is the capability set every credential scheme implements.
//
// Callers depend only on this interface and branch on the returned
// VerifiedPayload; Verify has no error return, so every failure a scheme can
// hit (dependency, transport, malformed response, rejection) must be
// normalized into an Invalid outcome by the implementation.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Type is the credential type tag used to select this provider (e.g. "WorldID").
	Type() string

	// Verify checks the proof carried by payload and returns exactly one outcome variant.
	Verify(ctx context.Context, payload *RequestPayload) VerifiedPayload
}

// Registry maps credential type tags to providers.
//
// Providers are registered during start-up; after that the registry is only
// read, so it needs no locking.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]Provider),
	}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a provider keyed by its type tag.
// Returns an error for an empty tag or a tag that is already registered.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("provider is required")
	}
	t := p.Type()
	if t == "" {
		return fmt.Errorf("provider type is required")
	}
	if _, exists := r.providers[t]; exists {
		return fmt.Errorf("provider %s already registered", t)
	}
	r.providers[t] = p
	return nil
}

func (r *Registry) Get(t string) (Provider, bool) {
	p, ok := r.providers[t]
	return p, ok
}

// Types returns the registered type tags in lexical order.
func (r *Registry) Types() []string {
	result := make([]string, 0, len(r.providers))
	for t := range r.providers {
		result = append(result, t)
	}
	sort.Strings(result)
	return result
}
