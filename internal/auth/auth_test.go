package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deny(w http.ResponseWriter, code int, msg string) {
	http.Error(w, msg, code)
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func serve(h http.Handler, mutate func(*http.Request)) int {
	req := httptest.NewRequest(http.MethodPost, "/api/check", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestGuardDisabled(t *testing.T) {
	g, err := New("  ", nil)
	require.NoError(t, err)
	assert.False(t, g.Enabled())
	assert.Equal(t, http.StatusNoContent, serve(g.AdminOnly(ok, deny), nil))
}

func TestGuardSecret(t *testing.T) {
	g, err := New("s3cret", nil)
	require.NoError(t, err)
	h := g.AdminOnly(ok, deny)

	assert.Equal(t, http.StatusUnauthorized, serve(h, nil))
	assert.Equal(t, http.StatusUnauthorized, serve(h, func(r *http.Request) { r.Header.Set("X-Admin-Secret", "wrong") }))
	assert.Equal(t, http.StatusNoContent, serve(h, func(r *http.Request) { r.Header.Set("X-Admin-Secret", "s3cret") }))
	assert.Equal(t, http.StatusNoContent, serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }))
	assert.Equal(t, http.StatusUnauthorized, serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Basic s3cret") }))
}

func TestGuardCIDR(t *testing.T) {
	_, err := New("s", []string{"not-a-cidr"})
	assert.Error(t, err)

	g, err := New("s", []string{"10.0.0.0/8", ""})
	require.NoError(t, err)
	h := g.AdminOnly(ok, deny)

	withSecret := func(addr string) func(*http.Request) {
		return func(r *http.Request) {
			r.RemoteAddr = addr
			r.Header.Set("X-Admin-Secret", "s")
		}
	}
	assert.Equal(t, http.StatusNoContent, serve(h, withSecret("10.1.2.3:5000")))
	assert.Equal(t, http.StatusForbidden, serve(h, withSecret("192.168.1.1:5000")))
	assert.Equal(t, http.StatusForbidden, serve(h, withSecret("garbage")))
}
