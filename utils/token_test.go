package utils

import (
	"errors"
	"testing"
)

func TestJwtGenerateRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	if _, err := JwtGenerate(1, "admin"); !errors.Is(err, ErrMissingJwtSecret) {
		t.Fatalf("expected ErrMissingJwtSecret, got %v", err)
	}
}

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("TOKEN_HOUR_LIFESPAN", "24")

	token, err := JwtGenerate(7, "certAdmin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	validated, err := JwtValidate(token)
	if err != nil || !validated.Valid {
		t.Fatalf("JwtValidate: %v (valid=%v)", err, validated != nil && validated.Valid)
	}
	claim, ok := validated.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatal("claims have unexpected type")
	}
	if claim.ID != 7 || claim.Username != "certAdmin" {
		t.Fatalf("unexpected claims: %+v", claim)
	}
}

func TestJwtValidateRejectsTamperedToken(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	token, err := JwtGenerate(7, "certAdmin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	t.Setenv("JWT_SECRET_KEY", "other-secret")
	validated, err := JwtValidate(token)
	if err == nil && validated.Valid {
		t.Fatal("token signed with a different secret must not validate")
	}
}
