package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPublicKey(t *testing.T, bits int) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, base64.StdEncoding.EncodeToString(der)
}

func TestHashSecret(t *testing.T) {
	assert.Equal(t,
		"76880d60191af3b3f803a656b7716f0179928357fc32421ced973ed265e15718",
		HashSecret([]byte("hunter2hunter2")))

	// Always a 64-char lowercase hex string, whatever the input length.
	assert.Len(t, HashSecret([]byte("x")), 64)
}

func TestEncryptProofRoundTrip(t *testing.T) {
	key, pub := testPublicKey(t, 2048)

	ciphertext, err := EncryptProof([]byte("wrongOldPass1"), pub)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	plain, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, raw, nil)
	require.NoError(t, err)

	// The protected value is the hex digest, never the raw secret.
	assert.Equal(t, "42a99ea380201d79c487260630387f3a80b01fb1b9f272688bd48e99d3ede6b6", string(plain))
}

func TestEncryptProofIsRandomized(t *testing.T) {
	_, pub := testPublicKey(t, 2048)

	first, err := EncryptProof([]byte("hunter2hunter2"), pub)
	require.NoError(t, err)
	second, err := EncryptProof([]byte("hunter2hunter2"), pub)
	require.NoError(t, err)

	// OAEP is randomized; identical inputs must not be treated as a bug.
	assert.NotEqual(t, first, second)
}

func TestEncryptProofBadKey(t *testing.T) {
	var keyErr *KeyDecodeError

	_, err := EncryptProof([]byte("secret"), "%%% not base64 %%%")
	require.Error(t, err)
	assert.True(t, errors.As(err, &keyErr))

	_, err = EncryptProof([]byte("secret"), base64.StdEncoding.EncodeToString([]byte("valid base64, junk DER")))
	require.Error(t, err)
	assert.True(t, errors.As(err, &keyErr))
}

func TestEncryptProofKeyTooSmall(t *testing.T) {
	// A 512-bit modulus cannot hold a 64-byte OAEP plaintext.
	_, pub := testPublicKey(t, 512)

	_, err := EncryptProof([]byte("secret"), pub)
	require.Error(t, err)
	var encErr *EncryptionError
	assert.True(t, errors.As(err, &encErr))
}
