package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

func newTestAuthService(t *testing.T, ttl time.Duration) *AuthService {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	svc, err := NewAuthService(privPEM, pubPEM, ttl)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	token, err := svc.GenerateToken(42)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("user id = %d", claims.UserID)
	}
	if claims.Subject != "42" {
		t.Fatalf("subject = %q", claims.Subject)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newTestAuthService(t, -time.Minute)

	token, err := svc.GenerateToken(1)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	for _, token := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		if _, err := svc.ValidateToken(token); err == nil {
			t.Fatalf("token %q should not validate", token)
		}
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	hash, err := svc.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !svc.CheckPasswordHash("hunter22", hash) {
		t.Fatal("correct password rejected")
	}
	if svc.CheckPasswordHash("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestCheckPasswordHashEmptyHashNeverMatches(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	if svc.CheckPasswordHash("", "") || svc.CheckPasswordHash("anything", "") {
		t.Fatal("social accounts with no local password must never match")
	}
}
