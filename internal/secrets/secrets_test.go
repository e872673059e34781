package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSealer() Sealer {
	return Sealer{Passphrase: "correct horse", Cost: 1024}
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := testSealer()
	sealed, err := s.Seal("ws-1", "sk-ant-secret-1234")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "sk-ant-secret")

	plain, err := s.Open("ws-1", sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-secret-1234", plain)
}

func TestOpenRejectsOtherWorkspace(t *testing.T) {
	s := testSealer()
	sealed, err := s.Seal("ws-1", "sk-live")
	require.NoError(t, err)

	_, err = s.Open("ws-2", sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestOpenRejectsWrongPassphrase(t *testing.T) {
	sealed, err := testSealer().Seal("ws-1", "sk-live")
	require.NoError(t, err)

	other := Sealer{Passphrase: "battery staple", Cost: 1024}
	_, err = other.Open("ws-1", sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := testSealer().Open("ws-1", "v1:not-base64!!")
	assert.ErrorIs(t, err, ErrDecrypt)
	_, err = testSealer().Open("ws-1", "plaintext")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestSealRequiresPassphrase(t *testing.T) {
	_, err := Sealer{}.Seal("ws-1", "k")
	assert.ErrorIs(t, err, ErrNoPassphrase)
}

func TestHint(t *testing.T) {
	assert.Equal(t, "...1234", Hint("sk-abc-1234"))
	assert.Equal(t, "***", Hint("abc"))
}
