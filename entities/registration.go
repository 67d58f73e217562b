package entities

import (
	"github.com/signal-golang/registration/config"
	"github.com/signal-golang/registration/keys"
	"github.com/signal-golang/registration/transport"
)

// AccountAttributes describes the account being registered: capability
// flags, discoverability and the keys derived for unidentified delivery.
type AccountAttributes struct {
	SignalingKey                   *string                    `json:"signalingKey"`
	RegistrationID                 uint32                     `json:"registrationId"`
	PniRegistrationID              uint32                     `json:"pniRegistrationId"`
	FetchesMessages                bool                       `json:"fetchesMessages"`
	Name                           *string                    `json:"name"`
	RegistrationLock               *string                    `json:"registrationLock"`
	UnidentifiedAccessKey          []byte                     `json:"unidentifiedAccessKey"`
	UnrestrictedUnidentifiedAccess bool                       `json:"unrestrictedUnidentifiedAccess"`
	Capabilities                   config.AccountCapabilities `json:"capabilities"`
	DiscoverableByPhoneNumber      bool                       `json:"discoverableByPhoneNumber"`
	RecoveryPassword               *string                    `json:"recoveryPassword"`
}

// RegistrationRequest is the final registration call payload. PassEnc is the
// encrypted password proof, never the plaintext secret.
type RegistrationRequest struct {
	SessionID           string                   `json:"sessionId"`
	PassEnc             string                   `json:"passEnc"`
	RecoveryPassword    *string                  `json:"recoveryPassword"`
	AccountAttributes   AccountAttributes        `json:"accountAttributes"`
	AciIdentityKey      string                   `json:"aciIdentityKey"`
	PniIdentityKey      string                   `json:"pniIdentityKey"`
	AciSignedPreKey     *keys.SignedPreKeyEntity `json:"aciSignedPreKey"`
	PniSignedPreKey     *keys.SignedPreKeyEntity `json:"pniSignedPreKey"`
	AciLastResortPreKey *keys.PreKeyEntity       `json:"aciLastResortPreKey"`
	PniLastResortPreKey *keys.PreKeyEntity       `json:"pniLastResortPreKey"`
	GcmToken            *string                  `json:"gcmToken"`
	SkipDeviceTransfer  bool                     `json:"skipDeviceTransfer"`
}

// RegistrationResponse carries the server-issued identifiers of a freshly
// registered account.
type RegistrationResponse struct {
	UUID           string `json:"uuid"`
	PNI            string `json:"pni"`
	Number         string `json:"number"`
	StorageCapable bool   `json:"storageCapable"`
}

type RegistrationLockFailure struct {
	TimeRemaining uint32                    `json:"timeRemaining"`
	Credentials   transport.AuthCredentials `json:"backupCredentials"`
}

// ChangePasswordRequest submits both password proofs under the session the
// password-sign endpoint issued.
type ChangePasswordRequest struct {
	SessionID string `json:"sessionId"`
	OldPwd    string `json:"oldPwd"`
	NewPwd    string `json:"newPwd"`
}
