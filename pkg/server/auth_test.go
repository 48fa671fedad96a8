package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicAuth(t *testing.T) {
	h := BasicAuth("admin", "secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for name, tc := range map[string]struct {
		user, pass string
		set        bool
		want       int
	}{
		"valid":          {user: "admin", pass: "secret", set: true, want: http.StatusOK},
		"wrong password": {user: "admin", pass: "nope", set: true, want: http.StatusUnauthorized},
		"missing header": {want: http.StatusUnauthorized},
	} {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tc.set {
				r.SetBasicAuth(tc.user, tc.pass)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuthValidateHeaderWithoutCredentials(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	assert.NoError(t, AuthValidateHeader(r, "", ""))

	r.Header.Set("Authorization", "Basic !!!")
	assert.Error(t, AuthValidateHeader(r, "admin", "admin"))
}
