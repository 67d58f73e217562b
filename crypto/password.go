package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// KeyDecodeError means the server-supplied public key could not be parsed.
// Fatal for the current attempt, never retried.
type KeyDecodeError struct {
	Cause error
}

func (e *KeyDecodeError) Error() string {
	return fmt.Sprintf("cannot decode server public key: %v", e.Cause)
}

func (e *KeyDecodeError) Unwrap() error {
	return e.Cause
}

// EncryptionError means the encryption primitive rejected the input, for
// example a plaintext too long for the key size. Fatal for the current
// attempt, never retried.
type EncryptionError struct {
	Cause error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("cannot encrypt password proof: %v", e.Cause)
}

func (e *EncryptionError) Unwrap() error {
	return e.Cause
}

// HashSecret renders the SHA-256 digest of a plaintext secret as a lowercase
// hexadecimal string. The digest, not the raw secret, is what travels.
func HashSecret(secret []byte) string {
	digest := sha256.Sum256(secret)
	return hex.EncodeToString(digest[:])
}

// DecodePublicKey parses a base64 X.509/PKIX RSA public key as supplied by
// the password-sign and session responses.
func DecodePublicKey(publicKeyBase64 string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil {
		return nil, &KeyDecodeError{Cause: err}
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, &KeyDecodeError{Cause: err}
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, &KeyDecodeError{Cause: fmt.Errorf("not an RSA key: %T", parsed)}
	}
	return pub, nil
}

// EncryptProof hashes a plaintext secret and encrypts the hex digest with
// RSA-OAEP(SHA-256) under a server-supplied public key, returning the base64
// ciphertext that goes on the wire. The ciphertext is randomized, so equal
// inputs produce different outputs.
func EncryptProof(secret []byte, publicKeyBase64 string) (string, error) {
	pub, err := DecodePublicKey(publicKeyBase64)
	if err != nil {
		log.Errorln("[registration] EncryptProof", err)
		return "", err
	}
	hexDigest := HashSecret(secret)
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(hexDigest), nil)
	if err != nil {
		log.Errorln("[registration] EncryptProof", err)
		return "", &EncryptionError{Cause: err}
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
