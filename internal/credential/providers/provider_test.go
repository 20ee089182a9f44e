package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{ typ string }

func (f fakeProvider) Type() string { return f.typ }

func (f fakeProvider) Verify(context.Context, *RequestPayload) VerifiedPayload {
	return Invalid("fake")
}

func TestRegistry(t *testing.T) {
	t.Run("lookup by type", func(t *testing.T) {
		r, err := NewRegistry(fakeProvider{"WorldID"}, fakeProvider{"Alpha"})
		require.NoError(t, err)

		p, ok := r.Get("WorldID")
		require.True(t, ok)
		assert.Equal(t, "WorldID", p.Type())

		_, ok = r.Get("worldid")
		assert.False(t, ok, "lookup is case sensitive")

		assert.Equal(t, []string{"Alpha", "WorldID"}, r.Types())
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewRegistry(fakeProvider{"WorldID"}, fakeProvider{"WorldID"})
		assert.Error(t, err)
	})

	t.Run("rejects nil and empty type", func(t *testing.T) {
		r, err := NewRegistry()
		require.NoError(t, err)
		assert.Error(t, r.Register(nil))
		assert.Error(t, r.Register(fakeProvider{""}))
		assert.Empty(t, r.Types())
	})
}

func TestRequestPayloadProof(t *testing.T) {
	var nilPayload *RequestPayload
	assert.Empty(t, nilPayload.Proof("proof"))
	assert.Empty(t, (&RequestPayload{}).Proof("proof"))
	assert.Equal(t, "0x1", (&RequestPayload{Proofs: map[string]string{"proof": "0x1"}}).Proof("proof"))
}
