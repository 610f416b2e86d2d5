package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789"

func TestHS256RoundTrip(t *testing.T) {
	signer, err := NewHS256(testSecret, "careerdesk")
	if err != nil {
		t.Fatalf("NewHS256 failed: %v", err)
	}
	token, err := signer.Sign("acct-1", RoleStaff, time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	claims, err := signer.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.AccountID() != "acct-1" || !claims.IsStaff() {
		t.Fatalf("claims mismatch: %+v", claims)
	}

	other, _ := NewHS256("another-secret-0123456789", "careerdesk")
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken with wrong secret, got %v", err)
	}
}

func TestParseRejectsExpiredAndWrongIssuer(t *testing.T) {
	signer, _ := NewHS256(testSecret, "careerdesk")
	expired, err := signer.Sign("acct-1", RoleClient, -time.Minute)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := signer.Parse(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}

	foreign, _ := NewHS256(testSecret, "someone-else")
	token, _ := foreign.Sign("acct-1", RoleClient, time.Hour)
	if _, err := signer.Parse(token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestParseRejectsNoneAlg(t *testing.T) {
	signer, _ := NewHS256(testSecret, "")
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acct-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := signer.Parse(raw); err == nil {
		t.Fatal("expected alg=none to be rejected")
	}
}

func TestRequireMiddleware(t *testing.T) {
	signer, _ := NewHS256(testSecret, "")
	h := Require(signer, RoleStaff)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).AccountID() != "staff-1" {
			t.Errorf("claims not in context")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"client", "Bearer " + mustSign(t, signer, "client-1", RoleClient), http.StatusForbidden},
		{"staff", "Bearer " + mustSign(t, signer, "staff-1", RoleStaff), http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestOptionalAllowsAnonymous(t *testing.T) {
	signer, _ := NewHS256(testSecret, "")
	called := false
	h := Optional(signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if FromContext(r.Context()) != nil {
			t.Errorf("expected no claims")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("handler not called")
	}
}

func mustSign(t *testing.T, s *HS256, sub, role string) string {
	t.Helper()
	tok, err := s.Sign(sub, role, time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return tok
}
