package entities

// RequestedInformation names a proof the service demands before it hands out
// verification codes for a session.
type RequestedInformation string

const (
	RequestedCaptcha       RequestedInformation = "captcha"
	RequestedPushChallenge RequestedInformation = "pushChallenge"
)

// SessionMetadata is the service's view of one verification session. The id
// is opaque and immutable for the session's lifetime. The same body, with
// PublicKey set, is returned by the password-sign endpoint.
type SessionMetadata struct {
	ID                      string                 `json:"id"`
	AllowedToRequestCode    bool                   `json:"allowedToRequestCode"`
	RequestedInformation    []RequestedInformation `json:"requestedInformation"`
	Verified                bool                   `json:"verified"`
	NextSms                 *int                   `json:"nextSms"`
	NextCall                *int                   `json:"nextCall"`
	NextVerificationAttempt *int                   `json:"nextVerificationAttempt"`
	PublicKey               string                 `json:"publicKey,omitempty"`
}

func (s *SessionMetadata) CaptchaRequired() bool {
	return s.requires(RequestedCaptcha)
}

func (s *SessionMetadata) PushChallengeRequired() bool {
	return s.requires(RequestedPushChallenge)
}

// ChallengeRequired reports whether any proof is still outstanding.
func (s *SessionMetadata) ChallengeRequired() bool {
	return len(s.RequestedInformation) > 0
}

func (s *SessionMetadata) requires(kind RequestedInformation) bool {
	for _, r := range s.RequestedInformation {
		if r == kind {
			return true
		}
	}
	return false
}
