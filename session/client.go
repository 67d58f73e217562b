package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/signal-golang/registration/entities"
	"github.com/signal-golang/registration/transport"
	"github.com/signal-golang/registration/utils"
)

var (
	verificationSessionPath = "/v1/verification/session"
	verificationUpdatePath  = "/v1/verification/session/%s"
	verificationCodePath    = "/v1/verification/session/%s/code"
	pushChallengePath       = "/v1/accounts/fcm/preauth/%s/%s"
	registrationPath        = "/v1/registration"
	passwordSignPath        = "/v1/accounts/password/sign"
	changePasswordPath      = "/v1/accounts/password"
)

// Channel selects how the one-time verification code is delivered.
type Channel string

const (
	ChannelSMS           Channel = "sms"
	ChannelSMSNoAutoread Channel = "smsNoAutoread"
	ChannelVoice         Channel = "voice"
)

func (c Channel) wireTransport() string {
	if c == ChannelVoice {
		return "voice"
	}
	return "sms"
}

// clientHint tells the service whether this install can auto-read the
// incoming SMS.
func (c Channel) clientHint() string {
	if c == ChannelSMS {
		return "android-2021-03"
	}
	return "android"
}

// Client is a thin façade over the verification endpoints: one method per
// remote operation, each a single request/response exchange with no local
// mutable state.
type Client struct {
	transport transport.Transporter
}

// NewClient builds a client authenticated with one attempt's phone number
// and locally generated client password.
func NewClient(server, number, password, userAgent, proxyServer string) *Client {
	return &Client{transport: transport.NewHTTPTransporter(server, number, password, userAgent, proxyServer)}
}

// NewClientWithTransporter wires an explicit transporter, mainly for tests.
func NewClientWithTransporter(t transport.Transporter) *Client {
	return &Client{transport: t}
}

type createSessionRequest struct {
	Number        string  `json:"number"`
	PushToken     *string `json:"pushToken"`
	PushTokenType *string `json:"pushTokenType"`
	Mcc           *string `json:"mcc"`
	Mnc           *string `json:"mnc"`
}

type captchaRequest struct {
	Captcha string `json:"captcha"`
}

// No omitempty on the token: an absent one travels as an explicit null so
// the service knows the push path was attempted and abandoned.
type pushChallengeRequest struct {
	PushChallenge *string `json:"pushChallenge"`
}

type requestCodeRequest struct {
	Transport string `json:"transport"`
	Client    string `json:"client"`
}

type submitCodeRequest struct {
	Code string `json:"code"`
}

// CreateSession requests a new verification session. The response may embed
// required-challenge metadata in requestedInformation.
func (c *Client) CreateSession(ctx context.Context, number, pushToken, mcc, mnc string) (*entities.SessionMetadata, error) {
	log.Debugln("[registration] creating verification session for", number)
	req := createSessionRequest{
		Number:        number,
		PushToken:     optional(pushToken),
		PushTokenType: pushTokenType(pushToken),
		Mcc:           optional(mcc),
		Mnc:           optional(mnc),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.transport.PostJSON(ctx, verificationSessionPath, body)
	if err != nil {
		return nil, err
	}
	return parseSession(resp)
}

// ValidateSession fetches the current session state. A blank id fails with
// ErrNoSession without touching the network.
func (c *Client) ValidateSession(ctx context.Context, sessionID string) (*entities.SessionMetadata, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNoSession
	}
	resp, err := c.transport.Get(ctx, fmt.Sprintf(verificationUpdatePath, sessionID))
	if err != nil {
		return nil, err
	}
	return parseSession(resp)
}

// SubmitCaptcha resolves an outstanding captcha demand with the externally
// supplied token.
func (c *Client) SubmitCaptcha(ctx context.Context, sessionID, token string) (*entities.SessionMetadata, error) {
	return c.updateSession(ctx, sessionID, captchaRequest{Captcha: token})
}

// SubmitPushChallenge resolves the push challenge. token is nil when the
// bounded wait expired without a delivery; the service then degrades the
// session to code-only verification.
func (c *Client) SubmitPushChallenge(ctx context.Context, sessionID string, token *string) (*entities.SessionMetadata, error) {
	return c.updateSession(ctx, sessionID, pushChallengeRequest{PushChallenge: token})
}

func (c *Client) updateSession(ctx context.Context, sessionID string, req interface{}) (*entities.SessionMetadata, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNoSession
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.transport.PatchJSON(ctx, fmt.Sprintf(verificationUpdatePath, sessionID), body)
	if err != nil {
		return nil, err
	}
	return parseSession(resp)
}

// RequestPushChallenge asks the service to send a challenge token through
// the push transport. The waiter listening for the token must be registered
// before this call is issued.
func (c *Client) RequestPushChallenge(ctx context.Context, sessionID, pushToken string) error {
	resp, err := c.transport.Get(ctx, fmt.Sprintf(pushChallengePath, pushToken, sessionID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return statusError(resp)
	}
	resp.Body.Close()
	return nil
}

// RequestCode asks for a one-time code on the chosen channel. The locale
// steers the language of the SMS or voice call.
func (c *Client) RequestCode(ctx context.Context, sessionID string, channel Channel, locale language.Tag) (*entities.SessionMetadata, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNoSession
	}
	log.Infoln("[registration] requesting verification code via", channel.wireTransport())
	body, err := json.Marshal(requestCodeRequest{
		Transport: channel.wireTransport(),
		Client:    channel.clientHint(),
	})
	if err != nil {
		return nil, err
	}
	var header http.Header
	if locale != language.Und {
		header = http.Header{"Accept-Language": []string{locale.String()}}
	}
	resp, err := c.transport.PostJSONWithHeaders(ctx, fmt.Sprintf(verificationCodePath, sessionID), body, header)
	if err != nil {
		return nil, err
	}
	return parseSession(resp)
}

// VerifyCode submits the received one-time code. A mismatched code comes
// back as a session with verified still false, not as an error.
func (c *Client) VerifyCode(ctx context.Context, sessionID, code string) (*entities.SessionMetadata, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNoSession
	}
	code = strings.Replace(code, "-", "", -1)
	body, err := json.Marshal(submitCodeRequest{Code: code})
	if err != nil {
		return nil, err
	}
	resp, err := c.transport.PutJSON(ctx, fmt.Sprintf(verificationCodePath, sessionID), body)
	if err != nil {
		return nil, err
	}
	return parseSession(resp)
}

// RegisterAccount issues the final registration call.
func (c *Client) RegisterAccount(ctx context.Context, req *entities.RegistrationRequest) (*entities.RegistrationResponse, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, ErrNoSession
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.transport.PostJSON(ctx, registrationPath, body)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}
	defer resp.Body.Close()
	result := &entities.RegistrationResponse{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, err
	}
	if !utils.ValidUUID(result.UUID) {
		log.Warnln("[registration] server issued a malformed account uuid", result.UUID)
	}
	log.Infoln("[registration] account registered as", result.UUID)
	return result, nil
}

// PasswordSign fetches the signing context for a password change: a session
// id and the public key both password proofs are encrypted under.
func (c *Client) PasswordSign(ctx context.Context) (*entities.SessionMetadata, error) {
	resp, err := c.transport.Get(ctx, passwordSignPath)
	if err != nil {
		return nil, err
	}
	sign, err := parseSession(resp)
	if err != nil {
		return nil, err
	}
	if sign.ID == "" || sign.PublicKey == "" {
		return nil, &ServerRejectedError{Status: resp.Status, Message: "password sign response missing id or key"}
	}
	return sign, nil
}

// ChangePassword submits both encrypted password proofs. A wrong current
// password surfaces as ErrAuthorizationFailed, throttling as RateLimitError.
func (c *Client) ChangePassword(ctx context.Context, sessionID, oldEnc, newEnc string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrNoSession
	}
	body, err := json.Marshal(entities.ChangePasswordRequest{
		SessionID: sessionID,
		OldPwd:    oldEnc,
		NewPwd:    newEnc,
	})
	if err != nil {
		return err
	}
	resp, err := c.transport.PutJSON(ctx, changePasswordPath, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.Status == 401 || resp.Status == 403:
		return ErrAuthorizationFailed
	case resp.Status == statusRateLimitLegacy || resp.Status == statusRateLimit:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.IsError():
		return &TransportError{Status: resp.Status}
	}
	return nil
}

func parseSession(resp *transport.Response) (*entities.SessionMetadata, error) {
	if resp.IsError() {
		return nil, statusError(resp)
	}
	defer resp.Body.Close()
	session := &entities.SessionMetadata{}
	if err := json.NewDecoder(resp.Body).Decode(session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, ErrNoSession
	}
	return session, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func pushTokenType(pushToken string) *string {
	if pushToken == "" {
		return nil
	}
	typ := "fcm"
	return &typ
}
