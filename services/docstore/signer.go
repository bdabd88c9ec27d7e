package docstore

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/btcsuite/btcutil/bech32"
)

const envAgeSecretKey = "AGE_SECRET_KEY"

// Signer signs document manifests with an Ed25519 key derived from an age
// secret key seed.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	recipient  string
}

// NewSignerFromEnv initialises a Signer from AGE_SECRET_KEY, or returns
// (nil, nil) when no key is configured so manifests stay unsigned.
func NewSignerFromEnv() (*Signer, error) {
	secret := strings.TrimSpace(os.Getenv(envAgeSecretKey))
	if secret == "" {
		return nil, nil
	}
	return NewSigner(secret)
}

// NewSigner builds a Signer from an age secret key string.
func NewSigner(secret string) (*Signer, error) {
	seed, err := decodeAgeSecretKey(secret)
	if err != nil {
		return nil, fmt.Errorf("parse age secret key: %w", err)
	}

	privateKey := ed25519.NewKeyFromSeed(seed)
	signer := &Signer{
		privateKey: privateKey,
		publicKey:  ed25519.PublicKey(privateKey[ed25519.SeedSize:]),
	}

	if identity, err := age.ParseX25519Identity(secret); err == nil {
		if r := identity.Recipient(); r != nil {
			signer.recipient = r.String()
		}
	}

	return signer, nil
}

// SignManifest fills in the manifest's signer, public key, and signature.
func (s *Signer) SignManifest(m *Manifest) error {
	if s == nil || s.privateKey == nil {
		return errors.New("signer has no private key")
	}

	m.Signer = s.recipient
	m.SigningPublicKey = base64.StdEncoding.EncodeToString(s.publicKey)

	payload, err := m.SigningBytes()
	if err != nil {
		return err
	}

	m.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(s.privateKey, payload))
	return nil
}

// VerifyManifest checks a manifest's signature against its embedded public key.
func VerifyManifest(m Manifest) error {
	if m.Signature == "" {
		return errors.New("manifest is unsigned")
	}

	publicKey, err := base64.StdEncoding.DecodeString(m.SigningPublicKey)
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey))
	}

	signature, err := base64.StdEncoding.DecodeString(m.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	payload, err := m.SigningBytes()
	if err != nil {
		return err
	}

	if !ed25519.Verify(ed25519.PublicKey(publicKey), payload, signature) {
		return errors.New("manifest signature verification failed")
	}
	return nil
}

func decodeAgeSecretKey(secret string) ([]byte, error) {
	hrp, data, err := bech32.Decode(strings.ToLower(secret))
	if err != nil {
		return nil, err
	}
	if hrp != "age-secret-key-" {
		return nil, fmt.Errorf("unexpected key prefix %q", hrp)
	}

	seed, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return seed, nil
}
