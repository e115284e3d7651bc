// Package crypto provides Ed25519 signing and verification for WAL entries,
// keyed by a stable keyId so signatures survive key rotation.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Signer produces a signature over raw bytes and identifies itself by KeyID.
type Signer interface {
	KeyID() string
	Sign(data []byte) (string, error)
	PublicKeyHex() string
}

// Ed25519Signer signs with a single Ed25519 keypair.
type Ed25519Signer struct {
	keyID   string
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
}

// NewEd25519Signer generates a fresh Ed25519 keypair under keyID.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: key generation failed: %w", err)
	}
	return &Ed25519Signer{keyID: keyID, privKey: priv, pubKey: pub}, nil
}

// NewEd25519SignerFromSeed constructs a signer from an existing private key,
// e.g. loaded from the REGULATED-mode key store at startup.
func NewEd25519SignerFromSeed(keyID string, priv ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{
		keyID:   keyID,
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
	}
}

func (s *Ed25519Signer) KeyID() string { return s.keyID }

// Sign returns the hex-encoded Ed25519 signature over data.
func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	sig := ed25519.Sign(s.privKey, data)
	return hex.EncodeToString(sig), nil
}

func (s *Ed25519Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.pubKey)
}

// VerifyHex verifies a hex-encoded signature against a hex-encoded public key.
func VerifyHex(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid public key hex: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid signature hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("crypto: invalid public key size %d", len(pubKey))
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig), nil
}
