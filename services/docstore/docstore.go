// Package docstore persists rendered automation documents under a
// deterministic per-server path. Documents embed plaintext secrets, so the
// store keeps permissions tight, records a signed manifest per document, and
// archives overwritten revisions instead of discarding them.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	gos3 "haforge/pkg/s3"
)

const (
	documentExt  = ".yml"
	mirrorPrefix = "playbooks/"
	presignTTL   = 15 * time.Minute
)

// StorageError wraps document write failures; these are fatal to the
// enclosing request.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("docstore: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Locator identifies a stored document by local path and retrieval URL.
type Locator struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Store writes documents under Root and serves them from BaseURL. S3 and
// Bucket enable an optional object-storage mirror whose presigned URL then
// becomes the locator URL. Signer, when present, signs each manifest.
type Store struct {
	Root    string
	BaseURL string
	S3      *gos3.Client
	Bucket  string
	Signer  *Signer

	now func() time.Time
}

// New returns a Store rooted at dir.
func New(dir, baseURL string) *Store {
	return &Store{
		Root:    dir,
		BaseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Path returns the deterministic document path for a server name.
func (s *Store) Path(serverName string) string {
	return filepath.Join(s.Root, serverName+documentExt)
}

// Write stores data as the document for serverName, last write wins. The
// previous revision, if any, is archived zstd-compressed alongside it.
func (s *Store) Write(ctx context.Context, serverName string, data []byte) (Locator, error) {
	if err := validateName(serverName); err != nil {
		return Locator{}, err
	}

	if err := os.MkdirAll(s.Root, 0o750); err != nil {
		return Locator{}, &StorageError{Op: "mkdir", Path: s.Root, Err: err}
	}

	path := s.Path(serverName)

	if prev, err := os.ReadFile(path); err == nil {
		if err := s.archive(path, prev); err != nil {
			return Locator{}, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Locator{}, &StorageError{Op: "read", Path: path, Err: err}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Locator{}, &StorageError{Op: "write", Path: path, Err: err}
	}

	if err := s.writeManifest(serverName, path, data); err != nil {
		return Locator{}, err
	}

	url, err := s.retrievalURL(ctx, serverName, data)
	if err != nil {
		return Locator{}, err
	}

	return Locator{Path: path, URL: url}, nil
}

func (s *Store) archive(path string, prev []byte) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return &StorageError{Op: "archive", Path: path, Err: err}
	}
	compressed := enc.EncodeAll(prev, nil)
	if err := enc.Close(); err != nil {
		return &StorageError{Op: "archive", Path: path, Err: err}
	}

	archivePath := fmt.Sprintf("%s.%d.zst", path, s.now().Unix())
	if err := os.WriteFile(archivePath, compressed, 0o600); err != nil {
		return &StorageError{Op: "archive", Path: archivePath, Err: err}
	}
	return nil
}

func (s *Store) writeManifest(serverName, path string, data []byte) error {
	manifest := NewManifest(serverName, path, data, s.now())

	if s.Signer != nil {
		if err := s.Signer.SignManifest(&manifest); err != nil {
			return &StorageError{Op: "sign", Path: path, Err: err}
		}
	}

	encoded, err := manifest.Marshal()
	if err != nil {
		return &StorageError{Op: "manifest", Path: path, Err: err}
	}

	manifestPath := filepath.Join(s.Root, serverName+manifestExt)
	if err := os.WriteFile(manifestPath, encoded, 0o600); err != nil {
		return &StorageError{Op: "manifest", Path: manifestPath, Err: err}
	}
	return nil
}

func (s *Store) retrievalURL(ctx context.Context, serverName string, data []byte) (string, error) {
	if s.S3 != nil && s.Bucket != "" {
		key := mirrorPrefix + serverName + documentExt
		if err := s.S3.PutBytes(ctx, s.Bucket, key, data, "application/yaml"); err != nil {
			return "", &StorageError{Op: "mirror", Path: key, Err: err}
		}
		return s.S3.PresignGet(ctx, s.Bucket, key, presignTTL)
	}

	if s.BaseURL == "" {
		return s.Path(serverName), nil
	}
	return s.BaseURL + "/" + serverName + documentExt, nil
}

func validateName(name string) error {
	if name == "" {
		return &StorageError{Op: "validate", Path: name, Err: errors.New("empty server name")}
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || strings.Contains(name, "..") {
		return &StorageError{Op: "validate", Path: name, Err: errors.New("server name must not contain path elements")}
	}
	return nil
}
