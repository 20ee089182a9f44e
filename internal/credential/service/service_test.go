package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"iam/internal/credential/metrics"
	"iam/internal/credential/models"
	"iam/internal/credential/providers"
	"iam/internal/credential/service/mocks"
	"iam/internal/credential/store"
	dErrors "iam/pkg/domain-errors"
	"iam/pkg/requestcontext"
	"iam/pkg/testutil"
)

// stubProvider returns a fixed outcome and counts calls.
type stubProvider struct {
	typ     string
	outcome providers.VerifiedPayload
	calls   atomic.Int32
}

func (p *stubProvider) Type() string { return p.typ }

func (p *stubProvider) Verify(context.Context, *providers.RequestPayload) providers.VerifiedPayload {
	p.calls.Add(1)
	return p.outcome
}

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	stamps    *mocks.MockStampStore
	claims    *mocks.MockClaimStore
	publisher *mocks.MockEventPublisher
	provider  *stubProvider
	metrics   *metrics.Metrics
	service   *Service
	now       time.Time
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.stamps = mocks.NewMockStampStore(s.ctrl)
	s.claims = mocks.NewMockClaimStore(s.ctrl)
	s.publisher = mocks.NewMockEventPublisher(s.ctrl)
	s.provider = &stubProvider{
		typ:     "WorldID",
		outcome: providers.Valid(map[string]string{"nullifier_hash": "0xnull"}),
	}
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())

	registry, err := providers.NewRegistry(s.provider)
	s.Require().NoError(err)

	s.service, err = New(registry, s.stamps, []byte("test-key"),
		WithClaimStore(s.claims),
		WithPublisher(s.publisher),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)

	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), s.now), "req-1")
}

func (s *ServiceSuite) TestNew() {
	registry, err := providers.NewRegistry()
	s.Require().NoError(err)

	s.Run("requires registry", func() {
		_, err := New(nil, s.stamps, []byte("k"))
		s.Error(err)
	})

	s.Run("requires stamp store", func() {
		_, err := New(registry, nil, []byte("k"))
		s.Error(err)
	})

	s.Run("requires hash key", func() {
		_, err := New(registry, store.NewInMemoryStore(), nil)
		s.Error(err)
	})

	s.Run("requires claim store when stamps cannot claim", func() {
		_, err := New(registry, s.stamps, []byte("k"))
		s.Error(err)
	})

	s.Run("uses stamp store as claim store when it can claim", func() {
		svc, err := New(registry, store.NewInMemoryStore(), []byte("k"))
		s.Require().NoError(err)
		s.NotNil(svc.claims)
	})
}

func (s *ServiceSuite) TestVerifyRequestErrors() {
	s.Run("nil payload is a bad request", func() {
		_, err := s.service.Verify(s.ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("blank type is a bad request", func() {
		_, err := s.service.Verify(s.ctx, testutil.NewPayloadBuilder().WithType("  ").Build())
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown type is not found", func() {
		_, err := s.service.Verify(s.ctx, testutil.NewPayloadBuilder().WithType("Twitter").Build())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.ErrorIs(err, providers.ErrProviderNotFound)
	})

	s.Zero(s.provider.calls.Load())
}

func (s *ServiceSuite) TestVerifyInvalidOutcome() {
	s.provider.outcome = providers.Invalid("expired proof")

	var published *models.VerificationEvent
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *models.VerificationEvent) error {
			published = e
			return nil
		})

	result, err := s.service.Verify(s.ctx, testutil.NewPayloadBuilder().Build())
	s.Require().NoError(err)

	s.False(result.Outcome.IsValid())
	s.Equal([]string{"expired proof"}, result.Outcome.Errors())
	s.Nil(result.Stamp)
	s.Equal(int32(1), s.provider.calls.Load())

	s.Require().NotNil(published)
	s.False(published.Valid)
	s.Equal(string(providers.CategorySemanticRejection), published.Category)
	s.Equal([]string{"expired proof"}, published.Errors)
	s.Equal("req-1", published.RequestID)
	s.Equal(s.now, published.OccurredAt)
	s.NotEmpty(published.AddressHash)

	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.VerificationsTotal.WithLabelValues("WorldID", metrics.OutcomeInvalid, "semantic_rejection")))
}

func (s *ServiceSuite) TestVerifyValidIssuesStamp() {
	payload := testutil.NewPayloadBuilder().WithAddress("0x2C7536E3605D9C16A7A3D7B1898E529396A65C23").Build()
	expectedHash := s.service.StampHash("WorldID", map[string]string{"nullifier_hash": "0xnull"})

	gomock.InOrder(
		s.claims.EXPECT().Claim(gomock.Any(), expectedHash, testutil.TestAddresses.Alice).Return(testutil.TestAddresses.Alice, nil),
		s.stamps.EXPECT().FindByHash(gomock.Any(), expectedHash).Return(nil, store.ErrNotFound),
		s.stamps.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
	)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *models.VerificationEvent) error {
			s.True(e.Valid)
			s.Equal(expectedHash, e.StampHash)
			s.Empty(e.Category)
			return nil
		})

	result, err := s.service.Verify(s.ctx, payload)
	s.Require().NoError(err)

	s.True(result.Outcome.IsValid())
	s.Equal(map[string]string{"nullifier_hash": "0xnull"}, result.Outcome.Record())
	s.Require().NotNil(result.Stamp)
	s.Equal(testutil.TestAddresses.Alice, result.Stamp.Address)
	s.Equal(expectedHash, result.Stamp.Hash)
	s.Equal(s.now, result.Stamp.IssuedAt)
	s.Equal(s.now.Add(models.StampTTL), result.Stamp.ExpiresAt)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.VerificationsTotal.WithLabelValues("WorldID", metrics.OutcomeValid, "")))
}

func (s *ServiceSuite) TestVerifyReissueKeepsStampID() {
	existing := testutil.NewStampBuilder().Build()
	s.claims.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any()).Return(testutil.TestAddresses.Alice, nil)
	s.stamps.EXPECT().FindByHash(gomock.Any(), gomock.Any()).Return(existing, nil)
	s.stamps.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.Verify(s.ctx, testutil.NewPayloadBuilder().Build())
	s.Require().NoError(err)
	s.Require().NotNil(result.Stamp)
	s.Equal(existing.ID, result.Stamp.ID)
	s.Equal(s.now, result.Stamp.IssuedAt)
}

func (s *ServiceSuite) TestVerifyDuplicateClaim() {
	s.claims.EXPECT().Claim(gomock.Any(), gomock.Any(), testutil.TestAddresses.Alice).Return(testutil.TestAddresses.Bob, nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *models.VerificationEvent) error {
			s.False(e.Valid)
			s.Equal([]string{ErrDuplicateClaim}, e.Errors)
			return nil
		})

	result, err := s.service.Verify(s.ctx, testutil.NewPayloadBuilder().Build())
	s.Require().NoError(err)

	s.False(result.Outcome.IsValid())
	s.Equal([]string{ErrDuplicateClaim}, result.Outcome.Errors())
	s.Nil(result.Stamp)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.DuplicateClaimsTotal.WithLabelValues("WorldID")))
}

func (s *ServiceSuite) TestVerifyStoreFailures() {
	s.Run("claim failure is internal", func() {
		s.claims.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("redis down"))

		_, err := s.service.Verify(s.ctx, testutil.NewPayloadBuilder().Build())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("lookup failure is internal", func() {
		s.claims.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any()).Return(testutil.TestAddresses.Alice, nil)
		s.stamps.EXPECT().FindByHash(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

		_, err := s.service.Verify(s.ctx, testutil.NewPayloadBuilder().Build())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("save failure is internal", func() {
		s.claims.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any()).Return(testutil.TestAddresses.Alice, nil)
		s.stamps.EXPECT().FindByHash(gomock.Any(), gomock.Any()).Return(nil, store.ErrNotFound)
		s.stamps.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		_, err := s.service.Verify(s.ctx, testutil.NewPayloadBuilder().Build())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestVerifyPublishFailureIsNotFatal() {
	s.provider.outcome = providers.Invalid("nope")
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("kafka down"))

	result, err := s.service.Verify(s.ctx, testutil.NewPayloadBuilder().Build())
	s.Require().NoError(err)
	s.False(result.Outcome.IsValid())
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.EventPublishFailsTotal))
}

func (s *ServiceSuite) TestStampHash() {
	record := map[string]string{"nullifier_hash": "0x1", "extra": "x"}

	s.Run("is deterministic and independent of map order", func() {
		reordered := map[string]string{"extra": "x", "nullifier_hash": "0x1"}
		s.Equal(s.service.StampHash("WorldID", record), s.service.StampHash("WorldID", reordered))
	})

	s.Run("is versioned", func() {
		s.Contains(s.service.StampHash("WorldID", record), "v0.0.0:")
	})

	s.Run("depends on provider, record and key", func() {
		base := s.service.StampHash("WorldID", record)
		s.NotEqual(base, s.service.StampHash("Other", record))
		s.NotEqual(base, s.service.StampHash("WorldID", map[string]string{"nullifier_hash": "0x2", "extra": "x"}))

		registry, err := providers.NewRegistry()
		s.Require().NoError(err)
		other, err := New(registry, store.NewInMemoryStore(), []byte("another-key"))
		s.Require().NoError(err)
		s.NotEqual(base, other.StampHash("WorldID", record))
	})
}

func (s *ServiceSuite) TestStamps() {
	s.Run("filters expired stamps", func() {
		active := testutil.NewStampBuilder().WithIssuedAt(s.now.Add(-time.Hour)).Build()
		expired := testutil.NewStampBuilder().WithIssuedAt(s.now.Add(-models.StampTTL - time.Hour)).Build()
		s.stamps.EXPECT().ListByAddress(gomock.Any(), testutil.TestAddresses.Alice).Return([]*models.Stamp{active, expired}, nil)

		stamps, err := s.service.Stamps(s.ctx, "0x2C7536E3605D9C16A7A3D7B1898E529396A65C23")
		s.Require().NoError(err)
		s.Require().Len(stamps, 1)
		s.Equal(active.ID, stamps[0].ID)
	})

	s.Run("rejects malformed address", func() {
		_, err := s.service.Stamps(s.ctx, "not-an-address")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("store failure is internal", func() {
		s.stamps.EXPECT().ListByAddress(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
		_, err := s.service.Stamps(s.ctx, testutil.TestAddresses.Alice)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestStamp() {
	s.Run("returns stamp", func() {
		st := testutil.NewStampBuilder().Build()
		s.stamps.EXPECT().FindByHash(gomock.Any(), st.Hash).Return(st, nil)
		got, err := s.service.Stamp(s.ctx, st.Hash)
		s.Require().NoError(err)
		s.Equal(st, got)
	})

	s.Run("missing stamp is not found", func() {
		s.stamps.EXPECT().FindByHash(gomock.Any(), "missing").Return(nil, store.ErrNotFound)
		_, err := s.service.Stamp(s.ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestProviders() {
	s.Equal([]string{"WorldID"}, s.service.Providers())
}

// TestVerifyWithMemoryStore exercises the default claim wiring end to end.
func TestVerifyWithMemoryStore(t *testing.T) {
	provider := &stubProvider{typ: "WorldID", outcome: providers.Valid(map[string]string{"nullifier_hash": "0xnull"})}
	registry, err := providers.NewRegistry(provider)
	if err != nil {
		t.Fatal(err)
	}
	mem := store.NewInMemoryStore()
	svc, err := New(registry, mem, []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, err := svc.Verify(ctx, testutil.NewPayloadBuilder().Build())
	if err != nil || !first.Outcome.IsValid() || first.Stamp == nil {
		t.Fatalf("first verification: result=%+v err=%v", first, err)
	}

	second, err := svc.Verify(ctx, testutil.NewPayloadBuilder().WithAddress(testutil.TestAddresses.Bob).Build())
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome.IsValid() || second.Outcome.Errors()[0] != ErrDuplicateClaim {
		t.Fatalf("expected duplicate claim rejection, got %+v", second.Outcome.Errors())
	}

	stamps, err := svc.Stamps(ctx, testutil.TestAddresses.Alice)
	if err != nil || len(stamps) != 1 {
		t.Fatalf("stamps=%v err=%v", stamps, err)
	}
}
