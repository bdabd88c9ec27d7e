package docstore

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const manifestExt = ".manifest.yml"

// Manifest records provenance for a stored document: what was written, when,
// its digest, and optionally who signed it. Documents carry plaintext
// secrets, so the manifest is the integrity anchor for anything reading them
// back out of storage.
type Manifest struct {
	ID               uuid.UUID `yaml:"id"`
	Server           string    `yaml:"server"`
	Path             string    `yaml:"path"`
	Size             int64     `yaml:"size"`
	SHA256           string    `yaml:"sha256"`
	CreatedAt        time.Time `yaml:"created_at"`
	Signer           string    `yaml:"signer,omitempty"`
	SigningPublicKey string    `yaml:"signing_public_key,omitempty"`
	Signature        string    `yaml:"signature,omitempty"`
}

// NewManifest computes the manifest for a document's bytes.
func NewManifest(server, path string, data []byte, createdAt time.Time) Manifest {
	digest := sha256.Sum256(data)
	return Manifest{
		ID:        uuid.New(),
		Server:    server,
		Path:      path,
		Size:      int64(len(data)),
		SHA256:    hex.EncodeToString(digest[:]),
		CreatedAt: createdAt.UTC(),
	}
}

// SigningBytes marshals the manifest without its signature for
// signing/verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}

// Marshal serializes the manifest.
func (m Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// ParseManifest decodes a stored manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
