package providers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	record := map[string]string{"nullifier_hash": "0x1"}
	out := Valid(record)

	assert.True(t, out.IsValid())
	assert.Equal(t, record, out.Record())
	assert.Nil(t, out.Errors())
	assert.Empty(t, out.Category())

	t.Run("record is copied in and out", func(t *testing.T) {
		record["nullifier_hash"] = "changed"
		got := out.Record()
		assert.Equal(t, "0x1", got["nullifier_hash"])
		got["nullifier_hash"] = "changed again"
		assert.Equal(t, "0x1", out.Record()["nullifier_hash"])
	})

	t.Run("nil record becomes empty", func(t *testing.T) {
		got := Valid(nil).Record()
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestInvalid(t *testing.T) {
	t.Run("keeps diagnostics in order", func(t *testing.T) {
		out := Invalid("first", "second")
		assert.False(t, out.IsValid())
		assert.Nil(t, out.Record())
		assert.Equal(t, []string{"first", "second"}, out.Errors())
		assert.Equal(t, CategorySemanticRejection, out.Category())
	})

	t.Run("never empty", func(t *testing.T) {
		assert.Equal(t, []string{unknownFailure}, Invalid().Errors())
		assert.Equal(t, []string{unknownFailure}, Invalid("", "").Errors())
	})

	t.Run("zero value reads as invalid", func(t *testing.T) {
		var out VerifiedPayload
		assert.False(t, out.IsValid())
		assert.Equal(t, []string{unknownFailure}, out.Errors())
		assert.Equal(t, CategoryInternal, out.Category())
	})
}

func TestFromError(t *testing.T) {
	t.Run("uses underlying text and category", func(t *testing.T) {
		err := NewVerificationError(CategoryTransportFailure, "WorldID", "request failed", errors.New("dial tcp: connection refused"))
		out := FromError(err)
		assert.Equal(t, []string{"dial tcp: connection refused"}, out.Errors())
		assert.Equal(t, CategoryTransportFailure, out.Category())
	})

	t.Run("falls back to message", func(t *testing.T) {
		out := FromError(NewVerificationError(CategoryMalformedResponse, "WorldID", "bad body", nil))
		assert.Equal(t, []string{"bad body"}, out.Errors())
	})

	t.Run("plain error is internal", func(t *testing.T) {
		out := FromError(errors.New("boom"))
		assert.Equal(t, CategoryInternal, out.Category())
		assert.Equal(t, []string{"boom"}, out.Errors())
	})

	t.Run("nil error still yields a diagnostic", func(t *testing.T) {
		assert.Equal(t, []string{unknownFailure}, FromError(nil).Errors())
	})
}

func TestVerifiedPayloadJSON(t *testing.T) {
	t.Run("valid shape", func(t *testing.T) {
		data, err := json.Marshal(Valid(map[string]string{"k": "v"}))
		require.NoError(t, err)
		assert.JSONEq(t, `{"valid":true,"record":{"k":"v"}}`, string(data))
	})

	t.Run("invalid shape", func(t *testing.T) {
		data, err := json.Marshal(Invalid("nope"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"valid":false,"error":["nope"]}`, string(data))
	})

	t.Run("decoding an invalid without errors restores a diagnostic", func(t *testing.T) {
		var out VerifiedPayload
		require.NoError(t, json.Unmarshal([]byte(`{"valid":false}`), &out))
		assert.False(t, out.IsValid())
		assert.Equal(t, []string{unknownFailure}, out.Errors())
	})

	t.Run("decoding a valid drops stray errors", func(t *testing.T) {
		var out VerifiedPayload
		require.NoError(t, json.Unmarshal([]byte(`{"valid":true,"error":["x"]}`), &out))
		assert.True(t, out.IsValid())
		assert.Nil(t, out.Errors())
		assert.Empty(t, out.Record())
	})
}
