// api/utils/jwt_utils_test.go
package utils

import (
	"testing"

	"pulsestream/api/models"
)

func TestJWTRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	user := &models.User{ID: 7, Email: "ops@example.com"}
	token, err := GenerateJWT(user)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != 7 || claims.Email != "ops@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "first-secret")
	token, err := GenerateJWT(&models.User{ID: 1, Email: "ops@example.com"})
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	t.Setenv("JWT_SECRET_KEY", "rotated-secret")
	if _, err := ValidateJWT(token); err == nil {
		t.Fatal("token signed with the old secret validated")
	}
}

func TestValidateJWTRejectsGarbage(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	if _, err := ValidateJWT("not.a.token"); err == nil {
		t.Fatal("garbage token validated")
	}
}
