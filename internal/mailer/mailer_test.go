package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGridSendInvite(t *testing.T) {
	var got sgRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendGrid("SG.key", "coach@example.com", srv.URL)
	err := m.SendInvite(context.Background(), "amy@example.com", "Amy", "http://app/set-password?token=abc")
	require.NoError(t, err)

	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "amy@example.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "coach@example.com", got.From.Email)
	assert.Equal(t, inviteSubject, got.Subject)
	assert.Contains(t, got.Content[0].Value, "http://app/set-password?token=abc")
	assert.Contains(t, got.Content[0].Value, "Hi Amy,")
}

func TestSendGridError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	err := NewSendGrid("x", "a@b.c", srv.URL).SendInvite(context.Background(), "t@example.com", "T", "link")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
