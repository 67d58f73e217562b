package registration

import (
	"encoding/base64"

	"github.com/signal-golang/registration/crypto"
	"github.com/signal-golang/registration/keys"
)

// RegistrationData accumulates the caller-supplied and derived attributes of
// one registration attempt. It lives exactly as long as the attempt and is
// never reused.
type RegistrationData struct {
	E164              string
	Password          string // locally generated client password, sent with every call of this session
	Code              string // populated only after code verification succeeds
	ProfileKey        []byte
	RegistrationID    uint32
	PniRegistrationID uint32
	RecoveryPassword  *string
	FcmToken          string
	Mcc               string
	Mnc               string
}

// IsNotFcm reports whether this install has no push transport and must fetch
// messages itself.
func (d *RegistrationData) IsNotFcm() bool {
	return d.FcmToken == ""
}

// NewRegistrationData seeds a fresh attempt: client password, profile key
// and the two per-install registration ids are generated here, once.
func NewRegistrationData(e164, fcmToken, mcc, mnc string) *RegistrationData {
	password := make([]byte, 18)
	crypto.RandBytes(password)
	profileKey := make([]byte, 32)
	crypto.RandBytes(profileKey)

	return &RegistrationData{
		E164:              e164,
		Password:          base64.StdEncoding.EncodeToString(password),
		ProfileKey:        profileKey,
		RegistrationID:    keys.GenerateRegistrationID(),
		PniRegistrationID: keys.GenerateRegistrationID(),
		FcmToken:          fcmToken,
		Mcc:               mcc,
		Mnc:               mnc,
	}
}
