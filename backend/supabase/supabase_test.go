package supabase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestUserIDFromToken(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"sub":  "user-123",
		"role": "authenticated",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	got, err := UserIDFromToken(token)
	if err != nil {
		t.Fatalf("UserIDFromToken() error = %v", err)
	}
	if got != "user-123" {
		t.Errorf("UserIDFromToken() = %q", got)
	}
}

func TestUserIDFromTokenErrors(t *testing.T) {
	if _, err := UserIDFromToken("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
	noSub := signedToken(t, jwt.MapClaims{"role": "anon"})
	if _, err := UserIDFromToken(noSub); err == nil || !strings.Contains(err.Error(), "sub") {
		t.Errorf("expected missing sub error, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Key: "k"}); err == nil {
		t.Error("expected error without url")
	}
	if _, err := New(Config{URL: "https://example.supabase.co", Key: "k"}); err == nil {
		t.Error("expected error without user id")
	}
}

func TestNewUsesTokenSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "from-token"})
	r, err := New(Config{URL: "https://example.supabase.co", Key: "anon", AccessToken: token})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.UserID() != "from-token" {
		t.Errorf("UserID() = %q", r.UserID())
	}
	if r.table != DefaultTable {
		t.Errorf("table = %q", r.table)
	}
}

func TestPushRejectsInvalidJSON(t *testing.T) {
	r, err := New(Config{URL: "https://example.supabase.co", Key: "anon", UserID: "u"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Push(context.Background(), []byte("{")); err == nil {
		t.Error("expected error for invalid document")
	}
}

func TestPullHonoursCancelledContext(t *testing.T) {
	r, err := New(Config{URL: "https://example.supabase.co", Key: "anon", UserID: "u"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Pull(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestDecodeRows(t *testing.T) {
	doc, err := decodeRows([]byte(`[{"user_id":"u","document":{"tasks":[]}}]`))
	if err != nil || string(doc) != `{"tasks":[]}` {
		t.Errorf("decodeRows() = %q, %v", doc, err)
	}
	doc, err = decodeRows([]byte(`[]`))
	if err != nil || doc != nil {
		t.Errorf("decodeRows(empty) = %q, %v", doc, err)
	}
	doc, err = decodeRows([]byte(`[{"user_id":"u","document":null}]`))
	if err != nil || doc != nil {
		t.Errorf("decodeRows(null) = %q, %v", doc, err)
	}
	if _, err := decodeRows([]byte(`{`)); err == nil {
		t.Error("expected error for malformed response")
	}
}
