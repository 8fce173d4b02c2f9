package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/services/identity"
	"saltyrtc/internal/store"
)

const strong = "Correct-Horse-9-Battery"

func TestGenerateAndLoad(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))

	kp, fp, err := svc.Generate(strong)
	require.NoError(t, err)
	pk := kp.PublicKey()
	assert.Equal(t, crypto.Fingerprint(pk), fp)

	got, err := svc.Load(strong)
	require.NoError(t, err)
	assert.True(t, got.PublicKey().Equal(pk))

	clear, err := svc.PublicKey()
	require.NoError(t, err)
	assert.True(t, clear.Equal(pk))

	again, err := svc.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp, again)

	_, _, err = svc.Generate(strong)
	assert.ErrorIs(t, err, identity.ErrIdentityExists)
}

func TestWeakPassphrase(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	for _, pass := range []string{"", "short1!A", "alllowercase123!", "NoDigitsHere!!", "NoSymbols12345"} {
		_, _, err := svc.Generate(pass)
		assert.ErrorIs(t, err, identity.ErrWeakPassphrase, pass)
	}
}

func TestFingerprintWithoutIdentity(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	_, err := svc.Fingerprint()
	assert.ErrorIs(t, err, store.ErrNoIdentity)
}
