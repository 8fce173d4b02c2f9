package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/store"
)

func TestIdentity_SaveLoad_OK(t *testing.T) {
	home := t.TempDir()
	var ids domain.IdentityStore = store.NewIdentityFileStore(filepath.Join(home, "nested"))

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ok, err := ids.HasIdentity(); err != nil || ok {
		t.Fatalf("HasIdentity before save = %v, %v", ok, err)
	}
	if err := ids.SaveIdentity("pass", kp); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if ok, err := ids.HasIdentity(); err != nil || !ok {
		t.Fatalf("HasIdentity after save = %v, %v", ok, err)
	}

	got, err := ids.LoadIdentity("pass")
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if !got.PublicKey().Equal(kp.PublicKey()) {
		t.Fatalf("public key mismatch after load")
	}
	a, b := kp.SharedKey(kp.PublicKey()), got.SharedKey(got.PublicKey())
	if !a.Equal(b) {
		t.Fatalf("secret key mismatch after load")
	}

	pk, err := ids.PublicKey()
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if !pk.Equal(kp.PublicKey()) {
		t.Fatalf("clear public key mismatch")
	}
}

func TestIdentity_WrongPassphrase_Fails(t *testing.T) {
	home := t.TempDir()
	ids := store.NewIdentityFileStore(home)

	kp, _ := crypto.GenerateKeyPair()
	if err := ids.SaveIdentity("correct", kp); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if _, err := ids.LoadIdentity("wrong"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("expected ErrWrongPassphrase, got %v", err)
	}
}

func TestIdentity_SwappedPublicKey_Fails(t *testing.T) {
	home := t.TempDir()
	ids := store.NewIdentityFileStore(home)

	kp, _ := crypto.GenerateKeyPair()
	if err := ids.SaveIdentity("pass", kp); err != nil {
		t.Fatalf("save identity: %v", err)
	}

	other, _ := crypto.GenerateKeyPair()
	path := filepath.Join(home, "identity.json.enc")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	orig := kp.PublicKey()
	repl := other.PublicKey()
	// The public key is base64 in the JSON blob; rewrite it in place.
	b = []byte(replaceB64(string(b), orig[:], repl[:]))
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ids.LoadIdentity("pass"); err == nil {
		t.Fatal("expected error for a swapped public key")
	}
}

func TestIdentity_Missing(t *testing.T) {
	ids := store.NewIdentityFileStore(t.TempDir())
	if _, err := ids.LoadIdentity("pass"); !errors.Is(err, store.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	if _, err := ids.PublicKey(); !errors.Is(err, store.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
}
