package keys

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	ed25519 "github.com/signal-golang/ed25519"
	"golang.org/x/crypto/curve25519"

	"github.com/signal-golang/registration/crypto"
)

// IdentityKind selects which of the two per-account identities key material
// belongs to: the account identity (ACI) or the phone-number identity (PNI).
type IdentityKind string

const (
	IdentityAci IdentityKind = "aci"
	IdentityPni IdentityKind = "pni"
)

// lastResortPreKeyID is the reserved id of the pre-key handed out when the
// one-time pool is exhausted.
const lastResortPreKeyID uint32 = 0xFFFFFF

// IdentityKeyPair is a long-term identity signing key pair.
type IdentityKeyPair struct {
	PublicKey  *[ed25519.PublicKeySize]byte
	PrivateKey *[ed25519.PrivateKeySize]byte
}

// GenerateIdentityKeyPair creates a fresh identity key pair.
func GenerateIdentityKeyPair() (*IdentityKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &IdentityKeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// Serialized renders the public half the way the service expects it.
func (kp *IdentityKeyPair) Serialized() string {
	return encodeKey(kp.PublicKey[:])
}

// ECKeyPair is an ephemeral curve25519 agreement key pair used for pre-keys.
type ECKeyPair struct {
	PrivateKey [32]byte
	PublicKey  []byte
}

// NewECKeyPair generates a curve25519 key pair.
func NewECKeyPair() (*ECKeyPair, error) {
	kp := &ECKeyPair{}
	crypto.RandBytes(kp.PrivateKey[:])
	kp.PrivateKey[0] &= 248
	kp.PrivateKey[31] &= 127
	kp.PrivateKey[31] |= 64

	pub, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	kp.PublicKey = pub
	return kp, nil
}

type PreKeyEntity struct {
	ID        uint32 `json:"keyId"`
	PublicKey string `json:"publicKey"`
}

type SignedPreKeyEntity struct {
	ID        uint32 `json:"keyId"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

// PreKeyCollection is the signed and last-resort pre-key material submitted
// with the final registration call, one collection per identity.
type PreKeyCollection struct {
	IdentityKey      string
	SignedPreKey     *SignedPreKeyEntity
	LastResortPreKey *PreKeyEntity
}

func randID() uint32 {
	return crypto.RandUint32() & 0xffffff
}

// GenerateRegistrationID returns a random 14-bit install identifier.
func GenerateRegistrationID() uint32 {
	return crypto.RandUint32()&0x3fff + 1
}

// GeneratePreKeyCollection creates a signed pre-key and a last-resort
// pre-key, the former signed by the given identity.
func GeneratePreKeyCollection(identity *IdentityKeyPair) (*PreKeyCollection, error) {
	signed, err := NewECKeyPair()
	if err != nil {
		return nil, err
	}
	lastResort, err := NewECKeyPair()
	if err != nil {
		return nil, err
	}
	signature := ed25519.Sign(identity.PrivateKey, signed.PublicKey)

	return &PreKeyCollection{
		IdentityKey: identity.Serialized(),
		SignedPreKey: &SignedPreKeyEntity{
			ID:        randID(),
			PublicKey: encodeKey(signed.PublicKey),
			Signature: encodeKey(signature[:]),
		},
		LastResortPreKey: &PreKeyEntity{
			ID:        lastResortPreKeyID,
			PublicKey: encodeKey(lastResort.PublicKey),
		},
	}, nil
}

// encodeKey base64-encodes without padding, the service's key rendering.
func encodeKey(b []byte) string {
	return strings.TrimRight(base64.StdEncoding.EncodeToString(b), "=")
}
