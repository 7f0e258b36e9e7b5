package localstore

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/onnwee/streampulse/crypto"
)

func TestUserRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := s.GetUser(); ok {
		t.Fatal("GetUser() ok = true before any write")
	}
	record := []byte(`{"id":"u1","points":100}`)
	if err := s.PutUser(record); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	got, ok := s.GetUser()
	if !ok || string(got) != string(record) {
		t.Errorf("GetUser() = %q, %v; want %q, true", got, ok, record)
	}
}

func TestUserSealed(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	sealer, err := crypto.NewAESSealer(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewAESSealer() error = %v", err)
	}
	dir := t.TempDir()
	s, err := Open(dir, sealer)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	record := []byte(`{"id":"u1","email":"chaser@example.com"}`)
	if err := s.PutUser(record); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	// On-disk bytes must not contain the plaintext.
	raw, err := os.ReadFile(filepath.Join(dir, "user.json"))
	if err != nil {
		t.Fatalf("read user.json: %v", err)
	}
	if string(raw) == string(record) {
		t.Error("user record stored in plaintext despite sealer")
	}
	got, ok := s.GetUser()
	if !ok || string(got) != string(record) {
		t.Errorf("GetUser() = %q, %v; want original record", got, ok)
	}
}

func TestCorruptUserReadsAsAbsent(t *testing.T) {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	sealer, _ := crypto.NewAESSealer(base64.StdEncoding.EncodeToString(key))
	dir := t.TempDir()
	s, _ := Open(dir, sealer)
	if err := os.WriteFile(filepath.Join(dir, "user.json"), []byte("not-ciphertext"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.GetUser(); ok {
		t.Error("GetUser() ok = true for corrupt record, want absent")
	}
}

func TestCommentsPerClip(t *testing.T) {
	s, _ := Open(t.TempDir(), nil)
	if _, ok := s.GetComments("c1"); ok {
		t.Fatal("GetComments() ok = true before any write")
	}
	if err := s.PutComments("c1", []byte(`[{"id":"temp-1"}]`)); err != nil {
		t.Fatalf("PutComments() error = %v", err)
	}
	if err := s.PutComments("c2", []byte(`[]`)); err != nil {
		t.Fatalf("PutComments() error = %v", err)
	}
	got, ok := s.GetComments("c1")
	if !ok || string(got) != `[{"id":"temp-1"}]` {
		t.Errorf("GetComments(c1) = %q, %v", got, ok)
	}
	got, _ = s.GetComments("c2")
	if string(got) != `[]` {
		t.Errorf("GetComments(c2) = %q, want []", got)
	}
}

func TestCommentsKeyEscaping(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir, nil)
	if err := s.PutComments("../evil", []byte("x")); err != nil {
		t.Fatalf("PutComments() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.json")); err == nil {
		t.Fatal("comment file escaped the comments directory")
	}
	if _, ok := s.GetComments("../evil"); !ok {
		t.Error("escaped key not readable back")
	}
}
