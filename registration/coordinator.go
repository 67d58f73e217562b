package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/signal-golang/registration/challenge"
	"github.com/signal-golang/registration/config"
	"github.com/signal-golang/registration/crypto"
	"github.com/signal-golang/registration/entities"
	"github.com/signal-golang/registration/keys"
	"github.com/signal-golang/registration/session"
	"github.com/signal-golang/registration/unidentifiedAccess"
)

// State is the position of one attempt inside the registration machine.
// Transitions are monotonic: an attempt moves toward Registered or Failed
// and never silently reverts.
type State int

const (
	StateIdle State = iota
	StateSessionPending
	StateChallengeResolution
	StateCodeRequested
	StateCodeVerified
	StateRegistering
	StateRegistered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionPending:
		return "session pending"
	case StateChallengeResolution:
		return "challenge resolution"
	case StateCodeRequested:
		return "code requested"
	case StateCodeVerified:
		return "code verified"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// StateError rejects an operation issued from the wrong state.
type StateError struct {
	State State
	Op    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %q", e.Op, e.State)
}

// ErrCodeRejected is returned when the service did not accept the submitted
// one-time code. Not terminal: the attempt stays in the code-requested state
// and the caller may retry with a fresh code.
var ErrCodeRejected = errors.New("verification code rejected")

// Coordinator drives one registration attempt end to end. Callers trigger
// every transition; the only wait the coordinator owns is the bounded push
// challenge wait. A Coordinator is used for exactly one attempt.
type Coordinator struct {
	client       *session.Client
	keys         keys.Provider
	bus          *challenge.Bus
	data         *RegistrationData
	capabilities config.AccountCapabilities
	discoverable bool

	// PushTimeout bounds the wait for an out-of-band challenge token.
	PushTimeout time.Duration

	mu                    sync.Mutex
	state                 State
	meta                  *entities.SessionMetadata
	sessionID             string
	pushChallengeTimedOut bool
}

func NewCoordinator(client *session.Client, provider keys.Provider, bus *challenge.Bus, data *RegistrationData, capabilities config.AccountCapabilities, discoverable bool) *Coordinator {
	return &Coordinator{
		client:       client,
		keys:         provider,
		bus:          bus,
		data:         data,
		capabilities: capabilities,
		discoverable: discoverable,
		PushTimeout:  challenge.DefaultTimeout,
		state:        StateIdle,
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID is the opaque server-issued id, immutable once set.
func (c *Coordinator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// PushChallengeTimedOut reports whether the bounded push wait expired and
// the attempt degraded to code-only verification.
func (c *Coordinator) PushChallengeTimedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushChallengeTimedOut
}

// Begin creates the verification session. When this install has a push
// token the coordinator registers a challenge waiter before the request
// goes out, so a token racing the response is never lost.
func (c *Coordinator) Begin(ctx context.Context) (*entities.SessionMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return nil, &StateError{State: c.state, Op: "begin"}
	}

	var meta *entities.SessionMetadata
	var err error
	if c.data.FcmToken == "" {
		meta, err = c.client.CreateSession(ctx, c.data.E164, "", c.data.Mcc, c.data.Mnc)
	} else {
		meta, err = c.createSessionWithPushChallenge(ctx)
	}
	if err != nil {
		// No session id was captured, the attempt may be begun again.
		return nil, err
	}

	c.meta = meta
	c.sessionID = meta.ID
	if meta.ChallengeRequired() {
		c.state = StateChallengeResolution
	} else {
		c.state = StateSessionPending
	}
	log.Debugf("[registration] session %s created, state %q", c.sessionID, c.state)
	return meta, nil
}

// Resume validates a previously issued session id instead of creating a new
// session. A blank id fails locally with session.ErrNoSession.
func (c *Coordinator) Resume(ctx context.Context, sessionID string) (*entities.SessionMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return nil, &StateError{State: c.state, Op: "resume"}
	}
	meta, err := c.client.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.meta = meta
	c.sessionID = meta.ID
	switch {
	case meta.Verified:
		c.state = StateCodeVerified
	case meta.ChallengeRequired():
		c.state = StateChallengeResolution
	default:
		c.state = StateSessionPending
	}
	return meta, nil
}

func (c *Coordinator) createSessionWithPushChallenge(ctx context.Context) (*entities.SessionMetadata, error) {
	w := challenge.NewWaiter()
	c.bus.Register(w)
	defer c.bus.Unregister(w)

	meta, err := c.client.CreateSession(ctx, c.data.E164, c.data.FcmToken, c.data.Mcc, c.data.Mnc)
	if err != nil {
		return nil, err
	}
	if !meta.PushChallengeRequired() {
		return meta, nil
	}

	outcome, err := w.Wait(ctx, c.PushTimeout)
	if err != nil {
		return nil, err
	}
	if outcome.Kind == challenge.OutcomeToken {
		return c.client.SubmitPushChallenge(ctx, meta.ID, &outcome.Token)
	}
	c.pushChallengeTimedOut = true
	return meta, nil
}

// SubmitCaptcha resolves an outstanding captcha with the token the caller
// obtained out of band.
func (c *Coordinator) SubmitCaptcha(ctx context.Context, token string) (*entities.SessionMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateChallengeResolution {
		return nil, &StateError{State: c.state, Op: "submit captcha"}
	}
	meta, err := c.client.SubmitCaptcha(ctx, c.sessionID, token)
	if err != nil {
		return nil, err
	}
	c.meta = meta
	if !meta.ChallengeRequired() {
		c.state = StateSessionPending
	}
	return meta, nil
}

// ResolvePushChallenge waits the bounded time for an out-of-band token and
// submits whatever resulted, an absent token included. A timeout is a valid
// outcome, not an error: the session degrades to code-only verification.
func (c *Coordinator) ResolvePushChallenge(ctx context.Context) (*entities.SessionMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateChallengeResolution {
		return nil, &StateError{State: c.state, Op: "resolve push challenge"}
	}

	var token *string
	if c.data.FcmToken == "" {
		// No push transport on this install: nothing can deliver a
		// token, submit its absence straight away.
		c.pushChallengeTimedOut = true
	} else {
		w := challenge.NewWaiter()
		c.bus.Register(w)
		defer c.bus.Unregister(w)

		if err := c.client.RequestPushChallenge(ctx, c.sessionID, c.data.FcmToken); err != nil {
			return nil, err
		}
		outcome, err := w.Wait(ctx, c.PushTimeout)
		if err != nil {
			return nil, err
		}
		if outcome.Kind == challenge.OutcomeToken {
			token = &outcome.Token
		} else {
			c.pushChallengeTimedOut = true
		}
	}

	meta, err := c.client.SubmitPushChallenge(ctx, c.sessionID, token)
	if err != nil {
		return nil, err
	}
	c.meta = meta
	if !meta.ChallengeRequired() {
		c.state = StateSessionPending
	}
	return meta, nil
}

// RequestCode asks for a one-time code on the chosen channel. Repeating the
// request, or switching channels, never moves the session backward.
func (c *Coordinator) RequestCode(ctx context.Context, channel session.Channel, locale language.Tag) (*entities.SessionMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSessionPending && c.state != StateCodeRequested {
		return nil, &StateError{State: c.state, Op: "request code"}
	}

	meta, err := c.client.RequestCode(ctx, c.sessionID, channel, locale)
	if err != nil {
		if errors.Is(err, session.ErrCaptchaRequired) || errors.Is(err, session.ErrChallengeRequired) {
			c.state = StateChallengeResolution
		}
		return nil, err
	}
	c.meta = meta
	c.state = StateCodeRequested
	return meta, nil
}

// VerifyCode submits the received code. A rejected code keeps the attempt
// in the code-requested state; re-verifying the already accepted code is a
// no-op success.
func (c *Coordinator) VerifyCode(ctx context.Context, code string) (*entities.SessionMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateCodeVerified && code == c.data.Code {
		return c.meta, nil
	}
	if c.state != StateCodeRequested {
		return nil, &StateError{State: c.state, Op: "verify code"}
	}

	meta, err := c.client.VerifyCode(ctx, c.sessionID, code)
	if err != nil {
		return nil, err
	}
	c.meta = meta
	if !meta.Verified {
		log.Infoln("[registration] verification code rejected, session stays unverified")
		return meta, ErrCodeRejected
	}
	c.data.Code = code
	c.state = StateCodeVerified
	return meta, nil
}

// Register issues the final registration call, at most once per attempt and
// only after code verification succeeded. secret is the account password
// the proof is derived from; it is digested and encrypted here, never
// transmitted or retained in plaintext.
func (c *Coordinator) Register(ctx context.Context, secret []byte) (*entities.RegistrationResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCodeVerified {
		return nil, &StateError{State: c.state, Op: "register"}
	}
	if c.data.Code == "" {
		return nil, &StateError{State: c.state, Op: "register without verified code"}
	}
	c.state = StateRegistering

	resp, err := c.register(ctx, secret)
	if err != nil {
		// Terminal: the session is abandoned, never silently retried
		// from a stale state.
		c.state = StateFailed
		return nil, err
	}
	c.state = StateRegistered
	return resp, nil
}

func (c *Coordinator) register(ctx context.Context, secret []byte) (*entities.RegistrationResponse, error) {
	aciIdentity, err := c.keys.EnsureIdentity(keys.IdentityAci)
	if err != nil {
		return nil, err
	}
	pniIdentity, err := c.keys.EnsureIdentity(keys.IdentityPni)
	if err != nil {
		return nil, err
	}
	aciPreKeys, err := c.keys.GeneratePreKeys(keys.IdentityAci)
	if err != nil {
		return nil, err
	}
	pniPreKeys, err := c.keys.GeneratePreKeys(keys.IdentityPni)
	if err != nil {
		return nil, err
	}

	accessKey, err := unidentifiedAccess.DeriveAccessKeyFrom(c.data.ProfileKey)
	if err != nil {
		return nil, err
	}

	publicKey := c.meta.PublicKey
	if publicKey == "" {
		sign, err := c.client.PasswordSign(ctx)
		if err != nil {
			return nil, err
		}
		publicKey = sign.PublicKey
	}
	passEnc, err := crypto.EncryptProof(secret, publicKey)
	if err != nil {
		return nil, err
	}

	attributes := entities.AccountAttributes{
		SignalingKey:                   nil,
		RegistrationID:                 c.data.RegistrationID,
		PniRegistrationID:              c.data.PniRegistrationID,
		FetchesMessages:                c.data.IsNotFcm(),
		Name:                           nil,
		RegistrationLock:               nil,
		UnidentifiedAccessKey:          accessKey,
		UnrestrictedUnidentifiedAccess: false,
		Capabilities:                   c.capabilities,
		DiscoverableByPhoneNumber:      c.discoverable,
		RecoveryPassword:               c.data.RecoveryPassword,
	}

	req := &entities.RegistrationRequest{
		SessionID:           c.sessionID,
		PassEnc:             passEnc,
		RecoveryPassword:    c.data.RecoveryPassword,
		AccountAttributes:   attributes,
		AciIdentityKey:      aciIdentity.Serialized(),
		PniIdentityKey:      pniIdentity.Serialized(),
		AciSignedPreKey:     aciPreKeys.SignedPreKey,
		PniSignedPreKey:     pniPreKeys.SignedPreKey,
		AciLastResortPreKey: aciPreKeys.LastResortPreKey,
		PniLastResortPreKey: pniPreKeys.LastResortPreKey,
		GcmToken:            gcmToken(c.data.FcmToken),
		SkipDeviceTransfer:  true,
	}

	return c.client.RegisterAccount(ctx, req)
}

func gcmToken(token string) *string {
	if token == "" {
		return nil
	}
	return &token
}
