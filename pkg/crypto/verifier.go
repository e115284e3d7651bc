package crypto

import "fmt"

// Verifier resolves a keyId to a public key and checks signatures against it.
type Verifier interface {
	Verify(keyID string, data []byte, sigHex string) (bool, error)
	PublicKey(keyID string) (string, bool)
}

// KeyRegistry is a keyId-addressable set of Ed25519 public keys, used by the
// WAL reader and the recorder/retrieval packages to verify REGULATED-mode
// signatures without holding any private key material.
type KeyRegistry struct {
	keys map[string]string // keyID -> hex public key
}

// NewKeyRegistry returns an empty registry.
func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{keys: make(map[string]string)}
}

// Register adds or replaces the public key for keyID.
func (r *KeyRegistry) Register(keyID, pubKeyHex string) {
	r.keys[keyID] = pubKeyHex
}

// RegisterSigner extracts and registers a signer's own public key, so a
// single in-process KeyRegistry can verify entries it also signs.
func (r *KeyRegistry) RegisterSigner(s Signer) {
	r.Register(s.KeyID(), s.PublicKeyHex())
}

func (r *KeyRegistry) PublicKey(keyID string) (string, bool) {
	pk, ok := r.keys[keyID]
	return pk, ok
}

// Verify checks sigHex against data using the public key registered under
// keyID. It fails closed: an unknown keyID is never valid.
func (r *KeyRegistry) Verify(keyID string, data []byte, sigHex string) (bool, error) {
	pubKeyHex, ok := r.keys[keyID]
	if !ok {
		return false, fmt.Errorf("crypto: unknown keyId %q", keyID)
	}
	return VerifyHex(pubKeyHex, sigHex, data)
}
