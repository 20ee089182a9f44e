// Package signer derives the identity signal bound into proof checks.
//
// The signal is the requester's wallet address. When the payload carries a
// signed challenge the address is recovered from the signature (EIP-191
// personal_sign); otherwise the declared address is used as-is.
package signer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"

	"iam/internal/credential/providers"
)

var (
	ErrMissingAddress   = errors.New("request payload has no address")
	ErrInvalidAddress   = errors.New("address is not a 20-byte hex address")
	ErrInvalidSignature = errors.New("signature is malformed")
	ErrSignerMismatch   = errors.New("signature does not match signer address")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Resolver derives the signal for a verification request.
type Resolver interface {
	Resolve(payload *providers.RequestPayload) (string, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(payload *providers.RequestPayload) (string, error)

func (f ResolverFunc) Resolve(payload *providers.RequestPayload) (string, error) {
	return f(payload)
}

// EthereumResolver resolves lower-cased Ethereum addresses.
type EthereumResolver struct{}

func NewEthereumResolver() *EthereumResolver {
	return &EthereumResolver{}
}

// Resolve returns the lower-cased address the request is made for.
func (r *EthereumResolver) Resolve(payload *providers.RequestPayload) (string, error) {
	if payload == nil {
		return "", ErrMissingAddress
	}

	if s := payload.Signer; s != nil && s.Challenge != "" && s.Signature != "" && s.Address != "" {
		if !addressPattern.MatchString(s.Address) {
			return "", fmt.Errorf("signer %w", ErrInvalidAddress)
		}
		recovered, err := RecoverAddress(s.Challenge, s.Signature)
		if err != nil {
			return "", err
		}
		if !strings.EqualFold(recovered, s.Address) {
			return "", ErrSignerMismatch
		}
		return recovered, nil
	}

	return NormalizeAddress(payload.Address)
}

// NormalizeAddress validates a 0x-prefixed 20-byte hex address and lower-cases it.
func NormalizeAddress(address string) (string, error) {
	if address == "" {
		return "", ErrMissingAddress
	}
	if !addressPattern.MatchString(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(address), nil
}

// RecoverAddress returns the lower-cased address that produced sigHex, a
// 65-byte r||s||v personal_sign signature over message.
func RecoverAddress(message, sigHex string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		return "", ErrInvalidSignature
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", ErrInvalidSignature
	}

	// btcec expects the recovery byte first: 27 + recid for uncompressed keys.
	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, PersonalMessageHash(message))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return PublicKeyToAddress(pub.SerializeUncompressed()), nil
}

// PersonalMessageHash is keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func PersonalMessageHash(message string) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message))
	return keccak256([]byte(prefix), []byte(message))
}

// PublicKeyToAddress converts a 65-byte uncompressed secp256k1 key to an address.
func PublicKeyToAddress(uncompressed []byte) string {
	if len(uncompressed) == 65 {
		uncompressed = uncompressed[1:]
	}
	hash := keccak256(uncompressed)
	return "0x" + hex.EncodeToString(hash[12:])
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
