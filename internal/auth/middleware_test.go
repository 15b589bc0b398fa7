package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubAuth map[string]*User

func (s stubAuth) Authenticate(_ context.Context, token string) (*User, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, ErrInvalidToken
}

func TestMiddleware(t *testing.T) {
	a := stubAuth{
		"cust":  {ID: "u1", Role: RoleCustomer},
		"admin": {ID: "u2", Role: RoleAdmin},
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := UserFromContext(r.Context()); u != nil {
			w.Header().Set("X-User", u.ID)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		h      http.Handler
		header string
		status int
		user   string
	}{
		{"anonymous passes session", Attach(a)(ok), "", http.StatusNoContent, ""},
		{"bad token stays anonymous", Attach(a)(ok), "Bearer nope", http.StatusNoContent, ""},
		{"session attaches user", Attach(a)(ok), "Bearer cust", http.StatusNoContent, "u1"},
		{"lowercase scheme", Attach(a)(ok), "bearer cust", http.StatusNoContent, "u1"},
		{"require user anonymous", Attach(a)(RequireUser(ok)), "", http.StatusUnauthorized, ""},
		{"require user ok", Attach(a)(RequireUser(ok)), "Bearer cust", http.StatusNoContent, "u1"},
		{"require admin anonymous", Attach(a)(RequireAdmin(ok)), "", http.StatusUnauthorized, ""},
		{"require admin customer", Attach(a)(RequireAdmin(ok)), "Bearer cust", http.StatusForbidden, ""},
		{"require admin ok", Attach(a)(RequireAdmin(ok)), "Bearer admin", http.StatusNoContent, "u2"},
	}
	t.Run("websocket query token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?access_token=cust", nil)
		assert.Empty(t, BearerToken(req))
		req.Header.Set("Upgrade", "websocket")
		assert.Equal(t, "cust", BearerToken(req))
	})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			tc.h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.user, rec.Header().Get("X-User"))
			if tc.status >= 400 {
				assert.Contains(t, rec.Body.String(), `"code"`)
			}
		})
	}
}
