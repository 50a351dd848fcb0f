package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550101234", r.PostForm.Get("To"))
		assert.Equal(t, "+15550109999", r.PostForm.Get("From"))
		assert.Equal(t, "hello there", r.PostForm.Get("Body"))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM42","status":"queued"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("AC123", "token", WithBaseURL(srv.URL))
	resp, err := c.SendSMS(context.Background(), SendRequest{
		To:   "+15550101234",
		From: "+15550109999",
		Body: "hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, "SM42", resp.SID)
	assert.Equal(t, "queued", resp.Status)
}

func TestSendSMS_CarrierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"invalid 'To' number"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("AC123", "token", WithBaseURL(srv.URL))
	_, err := c.SendSMS(context.Background(), SendRequest{To: "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
	assert.Contains(t, err.Error(), "21211")
}
