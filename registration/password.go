package registration

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/registration/crypto"
	"github.com/signal-golang/registration/session"
)

// ChangePassword runs the two-step password change: fetch the server-issued
// signing context, then submit both password digests encrypted under its
// public key. A wrong current password surfaces as
// session.ErrAuthorizationFailed, throttling as session.RateLimitError;
// everything else is a transport or server failure.
func ChangePassword(ctx context.Context, client *session.Client, current, next string) error {
	sign, err := client.PasswordSign(ctx)
	if err != nil {
		log.Errorln("[registration] cannot fetch password sign", err)
		return err
	}

	oldEnc, err := crypto.EncryptProof([]byte(current), sign.PublicKey)
	if err != nil {
		return err
	}
	newEnc, err := crypto.EncryptProof([]byte(next), sign.PublicKey)
	if err != nil {
		return err
	}

	return client.ChangePassword(ctx, sign.ID, oldEnc, newEnc)
}
