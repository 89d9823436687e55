package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestService(t *testing.T, now time.Time) *TokenService {
	t.Helper()
	s := NewTokenService("test-secret", time.Hour)
	s.now = func() time.Time { return now }
	return s
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestService(t, now)

	token, err := s.Issue(map[string]any{"email": "a@x.com", "name": "Alice"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token does not look like a JWT: %q", token)
	}

	identity, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if identity["email"] != "a@x.com" || identity["name"] != "Alice" {
		t.Errorf("identity = %v", identity)
	}
	for _, k := range []string{"exp", "iat", "nbf"} {
		if _, ok := identity[k]; ok {
			t.Errorf("identity should not contain %q", k)
		}
	}
}

func TestTokenService_Issue_OverridesClientTimeClaims(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestService(t, now)

	// 遠い未来のexpを指定しても、サーバーの有効期間で上書きされる
	token, err := s.Issue(map[string]any{"email": "a@x.com", "exp": now.Add(24 * 365 * time.Hour).Unix()})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := s.Verify(token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Verify error = %v, want ErrUnauthenticated", err)
	}
}

func TestTokenService_Verify_Expired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestService(t, now)

	token, err := s.Issue(map[string]any{"email": "a@x.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	s.now = func() time.Time { return now.Add(59 * time.Minute) }
	if _, err := s.Verify(token); err != nil {
		t.Errorf("token should still be valid before expiry: %v", err)
	}

	s.now = func() time.Time { return now.Add(61 * time.Minute) }
	if _, err := s.Verify(token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Verify error = %v, want ErrUnauthenticated", err)
	}
}

func TestTokenService_Verify_Rejects(t *testing.T) {
	now := time.Now()
	s := newTestService(t, now)

	valid, err := s.Issue(map[string]any{"email": "a@x.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other := NewTokenService("other-secret", time.Hour)
	foreign, err := other.Issue(map[string]any{"email": "a@x.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"email": "a@x.com",
		"exp":   now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"email": "a@x.com",
		"exp":   now.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to build HS512 token: %v", err)
	}

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "a@x.com",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to build token without exp: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"tampered", valid[:len(valid)-2] + "xx"},
		{"wrong secret", foreign},
		{"alg none", none},
		{"other algorithm", hs512},
		{"missing exp", noExp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Verify(tt.token); !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("Verify error = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestTokenService_MissingSecret(t *testing.T) {
	s := NewTokenService("", time.Hour)
	if _, err := s.Issue(map[string]any{"email": "a@x.com"}); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("Issue error = %v, want ErrMissingSecret", err)
	}
	if _, err := s.Verify("x.y.z"); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("Verify error = %v, want ErrMissingSecret", err)
	}
}

func TestTokenService_Issue_UnserializablePayload(t *testing.T) {
	s := NewTokenService("test-secret", time.Hour)
	if _, err := s.Issue(map[string]any{"fn": func() {}}); err == nil {
		t.Error("expected error for unserializable payload")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	if got := NewTokenService("s", 0).TTL(); got != DefaultTokenTTL {
		t.Errorf("TTL = %v, want %v", got, DefaultTokenTTL)
	}
}
