// Package signer defines the signing collaborator and a local
// keystore-backed implementation. The orchestrator refuses to start without
// a signer; its absence is a configuration error, not a per-transfer one.
package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"xcm-transfer/config"
	"xcm-transfer/pkg/ss58"
)

// ErrRefused marks a signer that declined or failed to produce a signature
var ErrRefused = errors.New("signing refused")

// Signer produces signatures over transfer payloads
type Signer interface {
	// Address returns the signing account's SS58 address
	Address() string

	// Sign signs a payload, or returns an error wrapping ErrRefused
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// Keystore is a Signer over a locally held ed25519 seed
type Keystore struct {
	priv    ed25519.PrivateKey
	address string
}

// NewKeystore builds a keystore signer from configuration. The seed is a
// hex-encoded 32-byte ed25519 seed.
func NewKeystore(cfg config.SignerConfig) (*Keystore, error) {
	if cfg.Seed == "" {
		return nil, fmt.Errorf("signer seed not configured; set XCM_TRANSFER_SIGNER_SEED")
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(cfg.Seed, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signer seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signer seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	address, err := ss58.Encode(cfg.SS58Prefix, priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("derive address: %w", err)
	}

	return &Keystore{priv: priv, address: address}, nil
}

// Address returns the SS58 address of the signing key
func (k *Keystore) Address() string {
	return k.address
}

// Sign signs the payload with the held key
func (k *Keystore) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefused, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrRefused)
	}
	return ed25519.Sign(k.priv, payload), nil
}
