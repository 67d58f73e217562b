package registration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signal-golang/registration/crypto"
	"github.com/signal-golang/registration/entities"
	"github.com/signal-golang/registration/session"
	"github.com/signal-golang/registration/transport"
)

func TestChangePasswordEncryptsBothProofs(t *testing.T) {
	serverKey, publicKey := serverKeyPair(t)

	ft := newFakeTransporter()
	ft.handle("GET /v1/accounts/password/sign", `{"id":"ps1","publicKey":"`+publicKey+`"}`)
	ft.handleFunc("PUT /v1/accounts/password", func([]byte) *transport.Response {
		return jsonResponse(204, "")
	})

	client := session.NewClientWithTransporter(ft)
	err := ChangePassword(context.Background(), client, "wrongOldPass1", "hunter2hunter2")
	require.NoError(t, err)

	var req entities.ChangePasswordRequest
	require.NoError(t, json.Unmarshal(ft.lastBody("PUT /v1/accounts/password"), &req))
	assert.Equal(t, "ps1", req.SessionID)

	// Each proof is the hex digest of its password, individually encrypted.
	assert.Equal(t, "42a99ea380201d79c487260630387f3a80b01fb1b9f272688bd48e99d3ede6b6",
		decryptProof(t, serverKey, req.OldPwd))
	assert.Equal(t, crypto.HashSecret([]byte("hunter2hunter2")),
		decryptProof(t, serverKey, req.NewPwd))
	assert.NotEqual(t, req.OldPwd, req.NewPwd)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	_, publicKey := serverKeyPair(t)

	ft := newFakeTransporter()
	ft.handle("GET /v1/accounts/password/sign", `{"id":"ps1","publicKey":"`+publicKey+`"}`)
	ft.handleFunc("PUT /v1/accounts/password", func([]byte) *transport.Response {
		return jsonResponse(401, "")
	})

	client := session.NewClientWithTransporter(ft)
	err := ChangePassword(context.Background(), client, "wrongOldPass1", "hunter2hunter2")
	assert.Equal(t, session.ErrAuthorizationFailed, err)
}

func TestChangePasswordThrottled(t *testing.T) {
	_, publicKey := serverKeyPair(t)

	ft := newFakeTransporter()
	ft.handle("GET /v1/accounts/password/sign", `{"id":"ps1","publicKey":"`+publicKey+`"}`)
	ft.handleFunc("PUT /v1/accounts/password", func([]byte) *transport.Response {
		return jsonResponse(429, "")
	})

	client := session.NewClientWithTransporter(ft)
	err := ChangePassword(context.Background(), client, "wrongOldPass1", "hunter2hunter2")
	var rateLimited *session.RateLimitError
	assert.True(t, errors.As(err, &rateLimited))
}

func TestChangePasswordSignIncomplete(t *testing.T) {
	ft := newFakeTransporter()
	ft.handle("GET /v1/accounts/password/sign", `{"id":"ps1"}`)

	client := session.NewClientWithTransporter(ft)
	err := ChangePassword(context.Background(), client, "a", "b")
	var rejected *session.ServerRejectedError
	assert.True(t, errors.As(err, &rejected))
	assert.Zero(t, ft.count("PUT /v1/accounts/password"))
}
