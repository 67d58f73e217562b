package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/signal-golang/registration/entities"
	"github.com/signal-golang/registration/transport"
)

func minimalRegistrationRequest() *entities.RegistrationRequest {
	return &entities.RegistrationRequest{SessionID: "abc123"}
}

type recordedCall struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// fakeTransporter scripts responses per "METHOD path" and records every
// exchange.
type fakeTransporter struct {
	calls    []recordedCall
	handlers map[string]func(body []byte) *transport.Response
}

func newFakeTransporter() *fakeTransporter {
	return &fakeTransporter{handlers: make(map[string]func(body []byte) *transport.Response)}
}

func (f *fakeTransporter) handle(key string, fn func(body []byte) *transport.Response) {
	f.handlers[key] = fn
}

func (f *fakeTransporter) do(method, path string, body []byte, header http.Header) (*transport.Response, error) {
	f.calls = append(f.calls, recordedCall{Method: method, Path: path, Body: body, Header: header})
	if fn, ok := f.handlers[method+" "+path]; ok {
		return fn(body), nil
	}
	return jsonResponse(404, ""), nil
}

func (f *fakeTransporter) Get(ctx context.Context, url string) (*transport.Response, error) {
	return f.do("GET", url, nil, nil)
}

func (f *fakeTransporter) Del(ctx context.Context, url string) (*transport.Response, error) {
	return f.do("DELETE", url, nil, nil)
}

func (f *fakeTransporter) PostJSON(ctx context.Context, url string, body []byte) (*transport.Response, error) {
	return f.do("POST", url, body, nil)
}

func (f *fakeTransporter) PostJSONWithHeaders(ctx context.Context, url string, body []byte, header http.Header) (*transport.Response, error) {
	return f.do("POST", url, body, header)
}

func (f *fakeTransporter) PutJSON(ctx context.Context, url string, body []byte) (*transport.Response, error) {
	return f.do("PUT", url, body, nil)
}

func (f *fakeTransporter) PatchJSON(ctx context.Context, url string, body []byte) (*transport.Response, error) {
	return f.do("PATCH", url, body, nil)
}

func jsonResponse(status int, body string) *transport.Response {
	return &transport.Response{
		Status: status,
		Header: http.Header{},
		Body:   io.NopCloser(strings.NewReader(body)),
	}
}

func ok(body string) func([]byte) *transport.Response {
	return func([]byte) *transport.Response {
		return jsonResponse(200, body)
	}
}

func TestValidateSessionBlankIDSkipsNetwork(t *testing.T) {
	ft := newFakeTransporter()
	client := NewClientWithTransporter(ft)

	for _, id := range []string{"", "   ", "\t"} {
		_, err := client.ValidateSession(context.Background(), id)
		assert.Equal(t, ErrNoSession, err)
	}
	assert.Empty(t, ft.calls)
}

func TestCreateSessionParsesRequestedInformation(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("POST /v1/verification/session",
		ok(`{"id":"abc123","requestedInformation":["captcha","pushChallenge"]}`))
	client := NewClientWithTransporter(ft)

	meta, err := client.CreateSession(context.Background(), "+15550001111", "push-token", "310", "410")
	require.NoError(t, err)
	assert.Equal(t, "abc123", meta.ID)
	assert.True(t, meta.CaptchaRequired())
	assert.True(t, meta.PushChallengeRequired())
	assert.True(t, meta.ChallengeRequired())

	var req map[string]interface{}
	require.NoError(t, json.Unmarshal(ft.calls[0].Body, &req))
	assert.Equal(t, "+15550001111", req["number"])
	assert.Equal(t, "push-token", req["pushToken"])
	assert.Equal(t, "fcm", req["pushTokenType"])
	assert.Equal(t, "310", req["mcc"])
}

func TestCreateSessionOmitsAbsentPushToken(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("POST /v1/verification/session", ok(`{"id":"abc123"}`))
	client := NewClientWithTransporter(ft)

	_, err := client.CreateSession(context.Background(), "+15550001111", "", "", "")
	require.NoError(t, err)

	var req map[string]interface{}
	require.NoError(t, json.Unmarshal(ft.calls[0].Body, &req))
	assert.Nil(t, req["pushToken"])
	assert.Nil(t, req["pushTokenType"])
}

func TestRequestCodeSendsChannelAndLocale(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("POST /v1/verification/session/abc123/code", ok(`{"id":"abc123"}`))
	client := NewClientWithTransporter(ft)

	_, err := client.RequestCode(context.Background(), "abc123", ChannelSMS, language.MustParse("de-DE"))
	require.NoError(t, err)

	call := ft.calls[0]
	assert.Equal(t, "de-DE", call.Header.Get("Accept-Language"))

	var req map[string]string
	require.NoError(t, json.Unmarshal(call.Body, &req))
	assert.Equal(t, "sms", req["transport"])
	assert.Equal(t, "android-2021-03", req["client"])
}

func TestRequestCodeChannels(t *testing.T) {
	cases := []struct {
		channel   Channel
		transport string
		client    string
	}{
		{ChannelSMS, "sms", "android-2021-03"},
		{ChannelSMSNoAutoread, "sms", "android"},
		{ChannelVoice, "voice", "android"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.transport, tc.channel.wireTransport())
		assert.Equal(t, tc.client, tc.channel.clientHint())
	}
}

func TestVerifyCodeStripsDashes(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("PUT /v1/verification/session/abc123/code", ok(`{"id":"abc123","verified":true}`))
	client := NewClientWithTransporter(ft)

	meta, err := client.VerifyCode(context.Background(), "abc123", "123-456")
	require.NoError(t, err)
	assert.True(t, meta.Verified)

	var req map[string]string
	require.NoError(t, json.Unmarshal(ft.calls[0].Body, &req))
	assert.Equal(t, "123456", req["code"])
}

func TestSubmitPushChallengeAbsentTokenIsNull(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("PATCH /v1/verification/session/abc123", ok(`{"id":"abc123"}`))
	client := NewClientWithTransporter(ft)

	_, err := client.SubmitPushChallenge(context.Background(), "abc123", nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{"pushChallenge":null}`, string(ft.calls[0].Body))
}

func TestRateLimitMapping(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("POST /v1/verification/session", func([]byte) *transport.Response {
		resp := jsonResponse(429, "")
		resp.Header.Set("Retry-After", "60")
		return resp
	})
	client := NewClientWithTransporter(ft)

	_, err := client.CreateSession(context.Background(), "+15550001111", "", "", "")
	var rate *RateLimitError
	require.True(t, errors.As(err, &rate))
	assert.Equal(t, 60*time.Second, rate.RetryAfter)
}

func TestRegistrationLockMapping(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("POST /v1/registration", func([]byte) *transport.Response {
		return jsonResponse(423, `{"timeRemaining":86400,"backupCredentials":{"username":"u","password":"p"}}`)
	})
	client := NewClientWithTransporter(ft)

	_, err := client.RegisterAccount(context.Background(), minimalRegistrationRequest())
	var lock *RegistrationLockError
	require.True(t, errors.As(err, &lock))
	assert.Equal(t, uint32(86400), lock.TimeRemaining)
	assert.Equal(t, "u", lock.Credentials.Username)
}

func TestStatusTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{402, func(t *testing.T, err error) { assert.Equal(t, ErrCaptchaRequired, err) }},
		{403, func(t *testing.T, err error) { assert.Equal(t, ErrChallengeRequired, err) }},
		{404, func(t *testing.T, err error) { assert.Equal(t, ErrNoSession, err) }},
		{409, func(t *testing.T, err error) { assert.Equal(t, ErrNoSession, err) }},
		{503, func(t *testing.T, err error) {
			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, 503, te.Status)
		}},
		{400, func(t *testing.T, err error) {
			var rejected *ServerRejectedError
			require.True(t, errors.As(err, &rejected))
		}},
	}
	for _, tc := range cases {
		err := statusError(jsonResponse(tc.status, "nope"))
		tc.check(t, err)
	}
}

func TestPasswordSignRejectsIncompleteResponse(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("GET /v1/accounts/password/sign", ok(`{"id":"ps1"}`))
	client := NewClientWithTransporter(ft)

	_, err := client.PasswordSign(context.Background())
	var rejected *ServerRejectedError
	assert.True(t, errors.As(err, &rejected))
}

func TestChangePasswordErrorSplit(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("PUT /v1/accounts/password", func([]byte) *transport.Response {
		return jsonResponse(401, "")
	})
	client := NewClientWithTransporter(ft)

	err := client.ChangePassword(context.Background(), "ps1", "oldEnc", "newEnc")
	assert.Equal(t, ErrAuthorizationFailed, err)

	ft.handle("PUT /v1/accounts/password", func([]byte) *transport.Response {
		resp := jsonResponse(429, "")
		resp.Header.Set("Retry-After", "30")
		return resp
	})
	err = client.ChangePassword(context.Background(), "ps1", "oldEnc", "newEnc")
	var rate *RateLimitError
	require.True(t, errors.As(err, &rate))
	assert.Equal(t, 30*time.Second, rate.RetryAfter)

	ft.handle("PUT /v1/accounts/password", func([]byte) *transport.Response {
		return jsonResponse(500, "")
	})
	err = client.ChangePassword(context.Background(), "ps1", "oldEnc", "newEnc")
	var te *TransportError
	assert.True(t, errors.As(err, &te))
}
