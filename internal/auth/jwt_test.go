package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sakif/college-forum/internal/model"
)

var testPrincipal = model.Principal{
	ID:          "google-123",
	DisplayName: "Nadia Rahman",
	Email:       "nadia@uni.edu",
	AvatarURL:   "https://lh3.googleusercontent.com/a/nadia",
}

// newTestTokenService uses a fixed secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

// =========================================================================
// GENERATE / VALIDATE
// =========================================================================

func TestGenerate_RequiresPrincipalID(t *testing.T) {
	ts := newTestTokenService(t)
	if _, err := ts.Generate(model.Principal{DisplayName: "no id"}); err == nil {
		t.Fatal("Generate() should reject a principal without ID")
	}
}

func TestValidate_RoundTripCarriesPrincipal(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate(testPrincipal)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("token %q is not header.payload.signature", token)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != testPrincipal {
		t.Errorf("Validate() = %+v, want %+v", got, testPrincipal)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration(testPrincipal, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}
	if _, err := ts.Validate(token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("Validate() error = %v, want an expiry error", err)
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate(testPrincipal)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	parts := strings.Split(token, ".")
	parts[1] = parts[1][:len(parts[1])-2] + "xx"

	if _, err := ts.Validate(strings.Join(parts, ".")); err == nil {
		t.Error("Validate() accepted a tampered payload")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	other, err := NewTokenService("another-secret-of-16+chars")
	if err != nil {
		t.Fatal(err)
	}
	token, err := other.Generate(testPrincipal)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := newTestTokenService(t).Validate(token); err == nil {
		t.Error("Validate() accepted a token signed with another secret")
	}
}

func TestValidate_Garbage(t *testing.T) {
	ts := newTestTokenService(t)
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ts.Validate(token); err == nil {
			t.Errorf("Validate(%q) should fail", token)
		}
	}
}

func TestAuthenticate_MatchesValidate(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate(testPrincipal)
	if err != nil {
		t.Fatal(err)
	}

	got, err := ts.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.ID != testPrincipal.ID {
		t.Errorf("Authenticate().ID = %q, want %q", got.ID, testPrincipal.ID)
	}
}
