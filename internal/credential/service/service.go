package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"iam/internal/credential/metrics"
	"iam/internal/credential/models"
	"iam/internal/credential/providers"
	"iam/internal/credential/signer"
	"iam/internal/credential/store"
	"iam/internal/credential/tracer"
	dErrors "iam/pkg/domain-errors"
	"iam/pkg/requestcontext"
)

// ErrDuplicateClaim is the diagnostic attached when a valid credential is
// already bound to a different address.
const ErrDuplicateClaim = "credential already claimed by another address"

// stampHashVersion prefixes every stamp hash so the scheme can be rotated.
const stampHashVersion = "v0.0.0"

// ProviderRegistry selects a provider by credential type tag.
type ProviderRegistry interface {
	Get(credentialType string) (providers.Provider, bool)
	Types() []string
}

// StampStore persists issued stamps. Save upserts by hash; when the hash is
// already stored its ID is kept and written back into the stamp.
type StampStore interface {
	Save(ctx context.Context, stamp *models.Stamp) error
	FindByHash(ctx context.Context, hash string) (*models.Stamp, error)
	ListByAddress(ctx context.Context, address string) ([]*models.Stamp, error)
}

// ClaimStore binds a stamp hash to the first address that presents it.
type ClaimStore interface {
	Claim(ctx context.Context, hash, address string) (owner string, err error)
}

// EventPublisher emits verification events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.VerificationEvent) error
}

// Service runs a payload through its provider and turns valid outcomes into stamps.
type Service struct {
	registry  ProviderRegistry
	stamps    StampStore
	claims    ClaimStore
	resolver  signer.Resolver
	publisher EventPublisher
	hashKey   []byte
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithClaimStore overrides the claim store. By default the stamp store is
// used when it also implements ClaimStore.
func WithClaimStore(claims ClaimStore) Option {
	return func(s *Service) {
		s.claims = claims
	}
}

// WithResolver sets how the stamp owner is derived; it must match the
// resolver the providers use.
func WithResolver(resolver signer.Resolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates the verification service. hashKey keys the stamp hash HMAC.
func New(registry ProviderRegistry, stamps StampStore, hashKey []byte, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, errors.New("provider registry is required")
	}
	if stamps == nil {
		return nil, errors.New("stamp store is required")
	}
	if len(hashKey) == 0 {
		return nil, errors.New("stamp hash key is required")
	}

	s := &Service{
		registry: registry,
		stamps:   stamps,
		hashKey:  append([]byte(nil), hashKey...),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.claims == nil {
		claims, ok := stamps.(ClaimStore)
		if !ok {
			return nil, errors.New("claim store is required when the stamp store cannot claim")
		}
		s.claims = claims
	}
	if s.resolver == nil {
		s.resolver = signer.NewEthereumResolver()
	}
	if s.tracer == nil {
		s.tracer = tracer.NewNoop()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Providers lists the registered credential types.
func (s *Service) Providers() []string {
	return s.registry.Types()
}

// Verify selects the provider for payload.Type and runs it once.
//
// Provider outcomes are returned unchanged, except that a valid credential
// already claimed by another address becomes Invalid. The returned error is
// reserved for bad requests and for orchestration faults (stores); provider
// failures are always carried in the outcome.
func (s *Service) Verify(ctx context.Context, payload *providers.RequestPayload) (result *models.VerificationResult, err error) {
	if payload == nil || strings.TrimSpace(payload.Type) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential type is required")
	}
	provider, ok := s.registry.Get(payload.Type)
	if !ok {
		return nil, dErrors.Wrap(providers.ErrProviderNotFound, dErrors.CodeNotFound,
			fmt.Sprintf("no provider for credential type %q", payload.Type))
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanCredentialVerify, tracer.String(tracer.AttrProvider, provider.Type()))
	defer func() { span.End(err) }()

	start := time.Now()
	outcome := provider.Verify(ctx, payload)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveVerification(provider.Type(), outcome.IsValid(), string(outcome.Category()), elapsed)
	}
	span.SetAttributes(
		tracer.Bool(tracer.AttrValid, outcome.IsValid()),
		tracer.Duration("provider_latency_ms", elapsed),
	)

	result = &models.VerificationResult{Outcome: outcome}
	address := payload.Address
	if outcome.IsValid() {
		address, err = s.resolver.Resolve(payload)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve stamp owner")
		}
		stamp, issueErr := s.issueStamp(ctx, provider.Type(), address, outcome)
		switch {
		case errors.Is(issueErr, errClaimedElsewhere):
			result.Outcome = providers.Invalid(ErrDuplicateClaim)
			span.SetAttributes(tracer.Bool(tracer.AttrDuplicate, true))
			if s.metrics != nil {
				s.metrics.IncDuplicateClaim(provider.Type())
			}
		case issueErr != nil:
			err = dErrors.Wrap(issueErr, dErrors.CodeInternal, "failed to issue stamp")
			return nil, err
		default:
			result.Stamp = stamp
			span.AddEvent(tracer.EventStampIssued)
		}
	} else {
		span.SetAttributes(tracer.String(tracer.AttrCategory, string(outcome.Category())))
	}

	s.publish(ctx, provider.Type(), address, result)
	return result, nil
}

var errClaimedElsewhere = errors.New("claimed by another address")

// issueStamp claims the stamp hash for address and upserts the stamp.
// Re-verification by the owner refreshes the expiry and keeps the stamp ID.
func (s *Service) issueStamp(ctx context.Context, providerType, address string, outcome providers.VerifiedPayload) (*models.Stamp, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanStampPersist, tracer.String(tracer.AttrAddressHash, tracer.HashAddress(address)))
	var err error
	defer func() { span.End(err) }()

	record := outcome.Record()
	hash := s.StampHash(providerType, record)

	owner, err := s.claims.Claim(ctx, hash, address)
	if err != nil {
		return nil, err
	}
	if owner != address {
		s.logger.WarnContext(ctx, "credential already claimed",
			"provider", providerType,
			"address_hash", tracer.HashAddress(address),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, errClaimedElsewhere
	}

	id := uuid.New()
	existing, err := s.stamps.FindByHash(ctx, hash)
	switch {
	case err == nil:
		id = existing.ID
	case errors.Is(err, store.ErrNotFound):
		err = nil
	default:
		return nil, err
	}

	now := requestcontext.Now(ctx)
	stamp := &models.Stamp{
		ID:        id,
		Provider:  providerType,
		Address:   address,
		Hash:      hash,
		Record:    record,
		IssuedAt:  now,
		ExpiresAt: now.Add(models.StampTTL),
	}
	if err = s.stamps.Save(ctx, stamp); err != nil {
		return nil, err
	}
	return stamp, nil
}

// StampHash is the keyed digest identifying a credential independent of the
// address presenting it: HMAC-SHA256 over the provider type and the record's
// sorted key/value pairs.
func (s *Service) StampHash(providerType string, record map[string]string) string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha256.New, s.hashKey)
	mac.Write([]byte(providerType))
	for _, k := range keys {
		mac.Write([]byte{0})
		mac.Write([]byte(k))
		mac.Write([]byte{'='})
		mac.Write([]byte(record[k]))
	}
	return stampHashVersion + ":" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Stamps returns the unexpired stamps issued to address, newest first.
func (s *Service) Stamps(ctx context.Context, address string) ([]*models.Stamp, error) {
	normalized, err := signer.NormalizeAddress(address)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid address")
	}
	stamps, err := s.stamps.ListByAddress(ctx, normalized)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stamps")
	}

	now := requestcontext.Now(ctx)
	active := make([]*models.Stamp, 0, len(stamps))
	for _, st := range stamps {
		if !st.IsExpired(now) {
			active = append(active, st)
		}
	}
	return active, nil
}

// Stamp looks up a stamp by its hash.
func (s *Service) Stamp(ctx context.Context, hash string) (*models.Stamp, error) {
	stamp, err := s.stamps.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "stamp not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find stamp")
	}
	return stamp, nil
}

// publish never fails the verification; delivery problems are logged and counted.
func (s *Service) publish(ctx context.Context, providerType, address string, result *models.VerificationResult) {
	if s.publisher == nil {
		return
	}
	event := &models.VerificationEvent{
		ID:          uuid.New(),
		Provider:    providerType,
		AddressHash: tracer.HashAddress(address),
		Valid:       result.Outcome.IsValid(),
		Category:    string(result.Outcome.Category()),
		Errors:      result.Outcome.Errors(),
		RequestID:   requestcontext.RequestID(ctx),
		OccurredAt:  requestcontext.Now(ctx),
	}
	if result.Stamp != nil {
		event.StampHash = result.Stamp.Hash
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.IncEventPublishFailure()
		}
		s.logger.WarnContext(ctx, "failed to publish verification event",
			"provider", providerType,
			"error", err,
			"request_id", event.RequestID,
		)
	}
}
