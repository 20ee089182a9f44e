// Package worldid verifies World ID zero-knowledge proofs.
//
// Proof verification is delegated to the World ID developer API; this package
// only shapes the request and interprets the answer.
package worldid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"iam/internal/credential/providers"
	"iam/internal/credential/providers/adapters"
	"iam/internal/credential/signer"
)

const (
	// Type is the credential type tag for World ID proofs.
	Type = "WorldID"

	// DefaultEndpoint is the World ID proof verification API.
	DefaultEndpoint = "https://developer.worldcoin.org/api/v1/verify"

	// ActionID scopes proofs to this deployment. It must never change in
	// production; new IDs for local testing are created in the developer portal.
	ActionID = "wid_5047fd9af3d4a665da9a44251270d6b2"
)

// Proof field names read from RequestPayload.Proofs.
const (
	ProofNullifierHash = "nullifier_hash"
	ProofMerkleRoot    = "merkle_root"
	ProofProof         = "proof"
)

// verifyRequest is the body sent to the verification endpoint.
type verifyRequest struct {
	NullifierHash string `json:"nullifier_hash"`
	MerkleRoot    string `json:"merkle_root"`
	Proof         string `json:"proof"`
	ActionID      string `json:"action_id"`
	Signal        string `json:"signal"`
}

// Provider verifies World ID proofs against the remote verifier.
// It holds no per-call state and is safe for concurrent use.
type Provider struct {
	endpoint   string
	resolver   signer.Resolver
	httpClient adapters.HTTPDoer
	timeout    time.Duration
	logger     *slog.Logger
	client     *adapters.JSONClient
}

// Option configures the Provider.
type Option func(*Provider)

// WithEndpoint overrides the verification endpoint (staging or tests).
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		if endpoint != "" {
			p.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client used for the verification call.
func WithHTTPClient(client adapters.HTTPDoer) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithTimeout sets the transport timeout of the default HTTP client.
// Ignored when WithHTTPClient is used.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		p.timeout = timeout
	}
}

// WithLogger sets the logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New constructs a World ID provider. It performs no I/O.
func New(resolver signer.Resolver, opts ...Option) *Provider {
	p := &Provider{
		endpoint: DefaultEndpoint,
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.resolver == nil {
		p.resolver = signer.NewEthereumResolver()
	}
	p.client = adapters.NewJSONClient(adapters.JSONClientConfig{
		Provider:   Type,
		Timeout:    p.timeout,
		HTTPClient: p.httpClient,
	})
	return p
}

// Type returns the credential type tag.
func (p *Provider) Type() string {
	return Type
}

// Verify checks the World ID proof in payload. It never panics and never
// returns a bare error: every failure becomes an Invalid outcome.
func (p *Provider) Verify(ctx context.Context, payload *providers.RequestPayload) (out providers.VerifiedPayload) {
	defer func() {
		if r := recover(); r != nil {
			out = providers.FromError(providers.NewVerificationError(
				providers.CategoryInternal, Type, fmt.Sprint(r), nil,
			))
		}
		p.logOutcome(ctx, out)
	}()

	if payload == nil {
		return providers.FromError(providers.NewVerificationError(
			providers.CategoryDependencyFailure, Type, "request payload is required", nil,
		))
	}

	signal, err := p.resolver.Resolve(payload)
	if err != nil {
		return providers.FromError(providers.NewVerificationError(
			providers.CategoryDependencyFailure, Type, "failed to derive signal", err,
		))
	}

	nullifierHash := payload.Proof(ProofNullifierHash)
	resp, err := p.client.PostJSON(ctx, p.endpoint, verifyRequest{
		NullifierHash: nullifierHash,
		MerkleRoot:    payload.Proof(ProofMerkleRoot),
		Proof:         payload.Proof(ProofProof),
		ActionID:      ActionID,
		Signal:        signal,
	})
	if err != nil {
		return providers.FromError(err)
	}

	success, detail := parseVerifyResponse(resp.Body)
	if resp.StatusCode == 200 && success {
		return providers.Valid(map[string]string{
			// the caller's claim, bound to a proof the verifier accepted
			ProofNullifierHash: nullifierHash,
		})
	}

	if detail != "" {
		return providers.Invalid(detail)
	}
	return providers.Invalid(strconv.Itoa(resp.StatusCode))
}

// parseVerifyResponse extracts the success flag and detail message.
// Anything that is not a JSON object, or fields of the wrong type, count as
// absent: an unexpected body is a rejection, not a fault.
func parseVerifyResponse(body []byte) (success bool, detail string) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return false, ""
	}
	success, _ = fields["success"].(bool)
	// only a string detail is reported; other shapes fall back to the status
	detail, _ = fields["detail"].(string)
	return success, detail
}

func (p *Provider) logOutcome(ctx context.Context, out providers.VerifiedPayload) {
	if p.logger == nil {
		return
	}
	if out.IsValid() {
		p.logger.DebugContext(ctx, "world id proof verified", "provider", Type)
		return
	}
	p.logger.WarnContext(ctx, "world id proof not verified",
		"provider", Type,
		"category", out.Category(),
		"errors", out.Errors(),
	)
}

var _ providers.Provider = (*Provider)(nil)
