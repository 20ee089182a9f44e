// Package tracer is a small tracing abstraction for credential verification.
//
// Callers depend on Tracer and Span only; OTelTracer adapts OpenTelemetry and
// NoopTracer is used in tests.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a span attribute. It is the OpenTelemetry type so spans need
// no conversion; the constructors below cover the kinds this package records.
type Attribute = attribute.KeyValue

func String(key, value string) Attribute { return attribute.String(key, value) }

func Bool(key string, value bool) Attribute { return attribute.Bool(key, value) }

func Int64(key string, value int64) Attribute { return attribute.Int64(key, value) }

// Duration records value in whole milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return attribute.Int64(key, value.Milliseconds())
}

// HashAddress returns a short SHA-256 prefix of a wallet address so traces can
// be correlated without carrying the address itself.
func HashAddress(address string) string {
	if address == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(strings.ToLower(address)))
	return hex.EncodeToString(hash[:8])
}

// Span names.
const (
	SpanCredentialVerify = "credential.verify"
	SpanStampPersist     = "credential.stamp.persist"
)

// Attribute keys.
const (
	AttrProvider    = "provider"
	AttrAddressHash = "address_hash"
	AttrValid       = "valid"
	AttrCategory    = "failure_category"
	AttrDuplicate   = "duplicate_claim"
)

// EventStampIssued is added to the verify span once a stamp is saved.
const EventStampIssued = "stamp.issued"
