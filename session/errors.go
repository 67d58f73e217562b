package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/registration/entities"
	"github.com/signal-golang/registration/transport"
)

var (
	// ErrNoSession is returned when a session id is absent or blank. No
	// network call is made in that case.
	ErrNoSession = errors.New("no verification session")

	// ErrCaptchaRequired and ErrChallengeRequired are not failures: the
	// service demands caller input before the step can proceed.
	ErrCaptchaRequired   = errors.New("captcha required")
	ErrChallengeRequired = errors.New("challenge required")

	// ErrAuthorizationFailed covers wrong-current-password style
	// rejections. Never retried automatically.
	ErrAuthorizationFailed = errors.New("authorization failed")
)

// TransportError is a network-level or 5xx failure. The same step may be
// retried by the caller.
type TransportError struct {
	Status int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error, status code %d", e.Status)
}

// RateLimitError means the service is explicitly throttling; callers back
// off for RetryAfter before trying again.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// ServerRejectedError is a definitive rejection of the requested operation.
// The attempt ends; callers restart from session creation.
type ServerRejectedError struct {
	Status  int
	Message string
}

func (e *ServerRejectedError) Error() string {
	return fmt.Sprintf("server rejected request, status code %d: %s", e.Status, e.Message)
}

// RegistrationLockError is returned when the account is protected by a
// registration lock; it carries the backup credentials and remaining time
// the service reported.
type RegistrationLockError struct {
	TimeRemaining uint32
	Credentials   transport.AuthCredentials
}

func (e *RegistrationLockError) Error() string {
	return fmt.Sprintf("registration locked for another %d ms", e.TimeRemaining)
}

const (
	statusCaptchaRequired   = 402
	statusChallengeRequired = 403
	statusNoSession         = 404
	statusSessionConflict   = 409
	statusRateLimitLegacy   = 413
	statusRegistrationLock  = 423
	statusRateLimit         = 429
)

// statusError maps a non-2xx session response onto the error taxonomy,
// draining the body where the payload matters.
func statusError(resp *transport.Response) error {
	defer resp.Body.Close()
	switch resp.Status {
	case statusCaptchaRequired:
		return ErrCaptchaRequired
	case statusChallengeRequired:
		return ErrChallengeRequired
	case statusNoSession, statusSessionConflict:
		return ErrNoSession
	case statusRateLimitLegacy, statusRateLimit:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	case statusRegistrationLock:
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		v := entities.RegistrationLockFailure{}
		if err := json.Unmarshal(buf.Bytes(), &v); err != nil {
			log.Errorln("[registration] cannot parse lock failure", err)
			return &ServerRejectedError{Status: resp.Status, Message: buf.String()}
		}
		return &RegistrationLockError{TimeRemaining: v.TimeRemaining, Credentials: v.Credentials}
	}
	if resp.Status >= 500 {
		return &TransportError{Status: resp.Status}
	}
	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	return &ServerRejectedError{Status: resp.Status, Message: buf.String()}
}

func retryAfter(resp *transport.Response) time.Duration {
	if resp.Header == nil {
		return 0
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
