package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir(), "http://files.example/playbooks")
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return s
}

func TestWriteStoresDocument(t *testing.T) {
	s := newTestStore(t)
	data := []byte("- name: Provision VM db1\n")

	loc, err := s.Write(context.Background(), "db1", data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if loc.Path != filepath.Join(s.Root, "db1.yml") {
		t.Fatalf("locator path = %q", loc.Path)
	}
	if loc.URL != "http://files.example/playbooks/db1.yml" {
		t.Fatalf("locator url = %q", loc.URL)
	}

	stored, err := os.ReadFile(loc.Path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(stored) != string(data) {
		t.Fatal("stored bytes differ from input")
	}

	info, err := os.Stat(loc.Path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("document mode = %o, want 600", perm)
	}
}

func TestWriteManifest(t *testing.T) {
	s := newTestStore(t)
	data := []byte("- name: Provision VM db1\n")

	if _, err := s.Write(context.Background(), "db1", data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(s.Root, "db1.manifest.yml"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}

	m, err := ParseManifest(raw)
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}

	digest := sha256.Sum256(data)
	if m.SHA256 != hex.EncodeToString(digest[:]) {
		t.Fatalf("manifest sha = %s", m.SHA256)
	}
	if m.Server != "db1" || m.Size != int64(len(data)) {
		t.Fatalf("manifest fields wrong: %+v", m)
	}
	if m.Signature != "" {
		t.Fatal("manifest signed without a signer")
	}
}

func TestOverwriteArchivesPreviousRevision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []byte("revision: one\n")
	if _, err := s.Write(ctx, "db1", first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := s.Write(ctx, "db1", []byte("revision: two\n")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	archivePath := filepath.Join(s.Root, "db1.yml.1700000000.zst")
	compressed, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	restored, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("decompress archive: %v", err)
	}
	if string(restored) != string(first) {
		t.Fatalf("archive holds %q, want first revision", restored)
	}

	current, _ := os.ReadFile(s.Path("db1"))
	if string(current) != "revision: two\n" {
		t.Fatal("last write did not win")
	}
}

func TestWriteRejectsPathNames(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"", "..", "a/b", `a\b`, "a..b"} {
		if _, err := s.Write(context.Background(), name, []byte("x")); err == nil {
			t.Fatalf("name %q accepted", name)
		}
	}
}

func TestWriteWithoutBaseURLFallsBackToPath(t *testing.T) {
	s := New(t.TempDir(), "")
	s.now = time.Now

	loc, err := s.Write(context.Background(), "db1", []byte("x"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasSuffix(loc.URL, "db1.yml") || loc.URL != loc.Path {
		t.Fatalf("expected path fallback, got %q", loc.URL)
	}
}
