package verification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func siteVerify(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		assert.Equal(t, "token", r.PostForm.Get("response"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRecaptcha_Verify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Result
		wantErr bool
	}{
		{name: "passed", status: http.StatusOK, body: `{"success": true, "score": 0.9}`, want: Passed},
		{name: "passed without score", status: http.StatusOK, body: `{"success": true}`, want: Passed},
		{name: "low score", status: http.StatusOK, body: `{"success": true, "score": 0.1}`, want: Failed},
		{name: "rejected", status: http.StatusOK, body: `{"success": false, "error-codes": ["invalid-input-response"]}`, want: Failed},
		{name: "upstream error", status: http.StatusBadGateway, body: ``, want: Failed, wantErr: true},
		{name: "garbage body", status: http.StatusOK, body: `<html>`, want: Failed, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := siteVerify(t, tc.status, tc.body)
			r := NewRecaptcha("secret", 0.5)
			r.URL = srv.URL

			got, err := r.Verify(context.Background(), "token")

			assert.Equal(t, tc.want, got)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecaptcha_EmptyTokenIsNotAttempted(t *testing.T) {
	r := NewRecaptcha("secret", 0.5)
	r.URL = "http://127.0.0.1:0"

	got, err := r.Verify(context.Background(), "  ")
	assert.NoError(t, err)
	assert.Equal(t, NotAttempted, got)
}

func TestRecaptcha_MissingSecret(t *testing.T) {
	got, err := NewRecaptcha("", 0.5).Verify(context.Background(), "token")

	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, Failed, got)
}

func TestRecaptcha_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := NewRecaptcha("secret", 0.5)
	r.URL = url
	got, err := r.Verify(context.Background(), "token")

	assert.Error(t, err)
	assert.Equal(t, Failed, got)
}

func TestNoop(t *testing.T) {
	got, err := Noop{}.Verify(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, NotAttempted, got)
	assert.Equal(t, "not_attempted", got.String())

	got, err = Noop{}.Verify(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, Failed, got)
}
