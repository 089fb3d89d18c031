// Copyright 2025 Certen Protocol
//
// Cryptographic Identity — deterministic keypair derivation and signing for
// a zero-trust protocol participant.
//
// The private key is derived once from a secret seed plus the data the
// participant is about to commit to, so the same (seed, commitment_data)
// pair always yields the same keypair and participant id — no key storage
// is required between runs.

package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/ztprotocol/core/pkg/canon"
)

// ErrMalformedSignature names a signature whose hex cannot be decoded or
// parsed. Verify never panics across its public boundary; on any malformed
// input it returns false and does not return this error.
var ErrMalformedSignature = errors.New("identity: malformed signature")

// ErrMalformedPublicKey indicates a public key could not be parsed.
var ErrMalformedPublicKey = errors.New("identity: malformed public key")

// Identity is a participant's derived secp256k1 keypair and stable id.
type Identity struct {
	PrivateKey    *secp256k1.PrivateKey
	PublicKey     *secp256k1.PublicKey
	ParticipantID string
}

// Derive builds an Identity from a 32-byte seed and arbitrary commitment
// data. The same inputs always produce the same Identity.
func Derive(seed []byte, commitmentData interface{}) (*Identity, error) {
	sortedCanon, err := canon.Marshal(commitmentData)
	if err != nil {
		return nil, fmt.Errorf("identity: canonicalize commitment data: %w", err)
	}

	material := sha256.Sum256(append(append([]byte{}, seed...), sortedCanon...))

	priv := secp256k1.PrivKeyFromBytes(material[:])
	pub := priv.PubKey()

	pidSource := sha256.Sum256(pub.SerializeCompressed())
	participantID := hex.EncodeToString(pidSource[:])[:16]

	return &Identity{
		PrivateKey:    priv,
		PublicKey:     pub,
		ParticipantID: participantID,
	}, nil
}

// PublicKeyHex returns the compressed public key as a hex string, the wire
// format used in commitment envelopes.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.PublicKey.SerializeCompressed())
}

// ParsePublicKeyHex decodes a hex-encoded compressed secp256k1 public key as
// published in a peer's commitment envelope.
func ParsePublicKeyHex(pubHex string) (*secp256k1.PublicKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPublicKey, err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPublicKey, err)
	}
	return pub, nil
}

// Sign produces a deterministic ECDSA signature over SHA-256(msg), hex-encoded.
func (id *Identity) Sign(msg []byte) string {
	digest := sha256.Sum256(msg)
	sig := ecdsa.Sign(id.PrivateKey, digest[:])
	return hex.EncodeToString(sig.Serialize())
}

// Verify checks a hex-encoded signature over SHA-256(msg) against a public
// key. It never panics: any malformed input yields false.
func Verify(msg []byte, sigHex string, pub *secp256k1.PublicKey) bool {
	if pub == nil {
		return false
	}
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(msg)
	return sig.Verify(digest[:], pub)
}
