package security

import (
	"testing"
	"time"

	"PPCollab/tools/errs"
)

var testSecret = []byte("test-secret-0123456789")

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions(testSecret)
	token, exp, err := Generate(opts, "user-1", []string{"collab"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry %v is not in the future", exp)
	}

	claims, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject() != "user-1" {
		t.Fatalf("subject = %q, want user-1", claims.Subject())
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions(testSecret), "user-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	_, err = Verify(DefaultOptions([]byte("other-secret")), token)
	if !errs.ErrTokenInvalid.Is(err) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	opts := DefaultOptions(testSecret)
	opts.TTL = time.Millisecond
	token, _, err := Generate(opts, "user-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := Verify(opts, token); !errs.ErrTokenInvalid.Is(err) {
		t.Fatalf("err = %v, want ErrTokenInvalid for expired token", err)
	}
}

func TestVerifyRejectsAlgMismatch(t *testing.T) {
	opts := DefaultOptions(testSecret)
	opts.Alg = "HS512"
	token, _, err := Generate(opts, "user-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(DefaultOptions(testSecret), token); err == nil {
		t.Fatal("expected HS256 verifier to reject HS512 token")
	}
}

func TestUnsupportedAlg(t *testing.T) {
	opts := DefaultOptions(testSecret)
	opts.Alg = "RS256"
	if _, _, err := Generate(opts, "u", nil); err == nil {
		t.Fatal("expected unsupported alg error")
	}
}
