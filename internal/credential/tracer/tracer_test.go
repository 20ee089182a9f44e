package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestHashAddress(t *testing.T) {
	t.Run("empty address hashes to empty", func(t *testing.T) {
		assert.Empty(t, HashAddress(""))
	})

	t.Run("hash is case insensitive and short", func(t *testing.T) {
		lower := HashAddress("0xabcdef0000000000000000000000000000000001")
		upper := HashAddress("0xABCDEF0000000000000000000000000000000001")
		assert.Equal(t, lower, upper)
		assert.Len(t, lower, 16)
	})
}

func TestAttributes(t *testing.T) {
	assert.Equal(t, "WorldID", String(AttrProvider, "WorldID").Value.AsString())
	assert.True(t, Bool(AttrValid, true).Value.AsBool())
	assert.Equal(t, int64(3), Int64("n", 3).Value.AsInt64())
	assert.Equal(t, int64(1500), Duration("latency_ms", 1500*time.Millisecond).Value.AsInt64())
}

func TestOTelTracerWithNoopProvider(t *testing.T) {
	tr := NewOTel(noop.NewTracerProvider())

	ctx, span := tr.Start(context.Background(), SpanCredentialVerify, String(AttrProvider, "WorldID"))
	assert.NotNil(t, ctx)
	span.SetAttributes(Bool(AttrValid, false))
	span.AddEvent(EventStampIssued)
	span.End(errors.New("boom"))
}

func TestOTelTracerDefaultsToGlobalProvider(t *testing.T) {
	tr := NewOTel(nil)
	_, span := tr.Start(context.Background(), SpanStampPersist)
	span.End(nil)
}

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	got, span := NewNoop().Start(ctx, SpanCredentialVerify)
	assert.Equal(t, ctx, got)
	span.End(nil)
}
