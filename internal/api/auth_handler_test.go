package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"ezycv/internal/auth"
	"ezycv/internal/database"
)

func newTestAuthService(t *testing.T) *auth.AuthService {
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

	svc, err := auth.NewAuthService(privPEM, pubPEM, time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

type fakeVerifier struct {
	claims *auth.FirebaseClaims
	err    error
}

func (f *fakeVerifier) VerifyIDToken(_ context.Context, _ string) (*auth.FirebaseClaims, error) {
	return f.claims, f.err
}

func newTestAuthHandler(t *testing.T) (*AuthHandler, *fakeEnqueuer) {
	t.Helper()
	enq := &fakeEnqueuer{}
	h := NewAuthHandler(
		newTestDB(t),
		newTestAuthService(t),
		&fakeVerifier{err: errors.New("no verifier configured")},
		newUnreachableRedis(t),
		enq,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		100,
		5,
		15*time.Minute,
		"http://localhost:5173",
	)
	return h, enq
}

func TestRegisterCreatesUser(t *testing.T) {
	h, enq := newTestAuthHandler(t)

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/register",
		`{"name":"Alice","email":"Alice@Example.com","password":"secret1"}`)
	h.Register(c)
	requireStatus(t, w, http.StatusCreated)

	var resp authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token in the response")
	}
	if resp.User.Email != "alice@example.com" {
		t.Fatalf("email = %q, want lowercased", resp.User.Email)
	}
	if resp.User.AuthProvider != "local" {
		t.Fatalf("authProvider = %q, want local", resp.User.AuthProvider)
	}

	var stored database.User
	if err := h.db.Where("email = ?", "alice@example.com").First(&stored).Error; err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "secret1" {
		t.Fatal("password should be stored hashed")
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("enqueued tasks = %d, want 1 welcome email", len(enq.tasks))
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	if err := h.db.Create(&database.User{Name: "Bob", Email: "bob@example.com", AuthProvider: "local"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/register",
		`{"name":"Bob","email":"bob@example.com","password":"secret1"}`)
	h.Register(c)
	requireStatus(t, w, http.StatusConflict)
	if !strings.Contains(w.Body.String(), "already exists") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRegisterRejectsBadPayload(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/register",
		`{"name":"A","email":"not-an-email","password":"x"}`)
	h.Register(c)
	requireStatus(t, w, http.StatusBadRequest)
}

func registerTestUser(t *testing.T, h *AuthHandler, email, password string) database.User {
	t.Helper()
	hash, err := h.authService.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := database.User{Name: "Test User", Email: email, PasswordHash: hash, AuthProvider: "local"}
	if err := h.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestLoginSucceeds(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	user := registerTestUser(t, h, "carol@example.com", "hunter22")

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/login",
		`{"email":"carol@example.com","password":"hunter22"}`)
	h.Login(c)
	requireStatus(t, w, http.StatusOK)

	var resp authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.ID != user.ID {
		t.Fatalf("user id = %d, want %d", resp.User.ID, user.ID)
	}

	claims, err := h.authService.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("token user id = %d, want %d", claims.UserID, user.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	registerTestUser(t, h, "carol@example.com", "hunter22")

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/login",
		`{"email":"carol@example.com","password":"wrong"}`)
	h.Login(c)
	requireStatus(t, w, http.StatusBadRequest)
	if !strings.Contains(w.Body.String(), "invalid credentials") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestLoginUnknownUser(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/login",
		`{"email":"ghost@example.com","password":"whatever"}`)
	h.Login(c)
	requireStatus(t, w, http.StatusBadRequest)
	if !strings.Contains(w.Body.String(), "invalid credentials") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestLoginSocialAccountWithoutPassword(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	if err := h.db.Create(&database.User{Name: "Dana", Email: "dana@example.com", AuthProvider: "google"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/login",
		`{"email":"dana@example.com","password":"anything"}`)
	h.Login(c)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestFirebaseLoginCreatesUser(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	h.firebase = &fakeVerifier{claims: &auth.FirebaseClaims{
		UID:            "uid-123",
		Email:          "eve@example.com",
		Name:           "Eve",
		Picture:        "https://img.example.com/eve.png",
		SignInProvider: "google.com",
	}}

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/firebase-login", `{"idToken":"tok"}`)
	h.FirebaseLogin(c)
	requireStatus(t, w, http.StatusOK)

	var resp authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.AuthProvider != "google" {
		t.Fatalf("authProvider = %q, want google", resp.User.AuthProvider)
	}
	if !resp.User.EmailVerified {
		t.Fatal("google sign-in should mark email verified")
	}

	var stored database.User
	if err := h.db.Where("firebase_uid = ?", "uid-123").First(&stored).Error; err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
}

func TestFirebaseLoginLinksExistingAccount(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	existing := registerTestUser(t, h, "frank@example.com", "secret1")
	h.firebase = &fakeVerifier{claims: &auth.FirebaseClaims{
		UID:            "uid-456",
		Email:          "frank@example.com",
		Name:           "Frank",
		SignInProvider: "google.com",
	}}

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/firebase-login", `{"idToken":"tok"}`)
	h.FirebaseLogin(c)
	requireStatus(t, w, http.StatusOK)

	var resp authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.ID != existing.ID {
		t.Fatalf("user id = %d, want linked account %d", resp.User.ID, existing.ID)
	}

	var stored database.User
	if err := h.db.First(&stored, existing.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.FirebaseUID != "uid-456" {
		t.Fatalf("firebase uid = %q, want uid-456", stored.FirebaseUID)
	}
	if !stored.EmailVerified {
		t.Fatal("linking a google account should verify the email")
	}
}

func TestFirebaseLoginRejectsBadToken(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	h.firebase = &fakeVerifier{err: errors.New("token expired")}

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/firebase-login", `{"idToken":"tok"}`)
	h.FirebaseLogin(c)
	requireStatus(t, w, http.StatusUnauthorized)
}

func TestMeReturnsCurrentUser(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	user := registerTestUser(t, h, "gina@example.com", "secret1")

	c, w := newPlainContext(t, http.MethodGet, "/v1/auth/me")
	c.Set("userID", user.ID)
	h.Me(c)
	requireStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "gina@example.com") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestUpdateProfileChangesName(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	user := registerTestUser(t, h, "hank@example.com", "secret1")

	c, w := newJSONContext(t, http.MethodPut, "/v1/auth/profile", `{"name":"Henry"}`)
	c.Set("userID", user.ID)
	h.UpdateProfile(c)
	requireStatus(t, w, http.StatusOK)

	var stored database.User
	if err := h.db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.Name != "Henry" {
		t.Fatalf("name = %q, want Henry", stored.Name)
	}
	if stored.Email != "hank@example.com" {
		t.Fatalf("email changed unexpectedly: %q", stored.Email)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	h, enq := newTestAuthHandler(t)

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/forgot-password",
		`{"email":"nobody@example.com"}`)
	h.ForgotPassword(c)
	requireStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "if that email is registered") {
		t.Fatalf("body = %s", w.Body.String())
	}
	if len(enq.tasks) != 0 {
		t.Fatalf("enqueued tasks = %d, want none for unknown email", len(enq.tasks))
	}
}

func TestForgotPasswordStoresTokenAndEnqueuesEmail(t *testing.T) {
	h, enq := newTestAuthHandler(t)
	user := registerTestUser(t, h, "iris@example.com", "secret1")

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/forgot-password",
		`{"email":"iris@example.com"}`)
	h.ForgotPassword(c)
	requireStatus(t, w, http.StatusOK)

	var stored database.User
	if err := h.db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.ResetToken == "" {
		t.Fatal("reset token should be stored")
	}
	if stored.ResetTokenExpiry == nil || !stored.ResetTokenExpiry.After(time.Now()) {
		t.Fatal("reset token expiry should be in the future")
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("enqueued tasks = %d, want 1 reset email", len(enq.tasks))
	}
}

func TestResetPasswordWithValidToken(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	user := registerTestUser(t, h, "jane@example.com", "oldpass1")
	expiry := time.Now().Add(time.Hour)
	if err := h.db.Model(&user).Updates(map[string]any{
		"reset_token":        "valid-token",
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		t.Fatalf("seed reset token: %v", err)
	}

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/reset-password",
		`{"token":"valid-token","password":"newpass1"}`)
	h.ResetPassword(c)
	requireStatus(t, w, http.StatusOK)

	var stored database.User
	if err := h.db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.ResetToken != "" {
		t.Fatal("reset token should be cleared after use")
	}
	if !h.authService.CheckPasswordHash("newpass1", stored.PasswordHash) {
		t.Fatal("new password should match the stored hash")
	}
	if h.authService.CheckPasswordHash("oldpass1", stored.PasswordHash) {
		t.Fatal("old password should no longer match")
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	user := registerTestUser(t, h, "kate@example.com", "oldpass1")
	expiry := time.Now().Add(-time.Minute)
	if err := h.db.Model(&user).Updates(map[string]any{
		"reset_token":        "stale-token",
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		t.Fatalf("seed reset token: %v", err)
	}

	c, w := newJSONContext(t, http.MethodPost, "/v1/auth/reset-password",
		`{"token":"stale-token","password":"newpass1"}`)
	h.ResetPassword(c)
	requireStatus(t, w, http.StatusBadRequest)
	if !strings.Contains(w.Body.String(), "invalid or has expired") {
		t.Fatalf("body = %s", w.Body.String())
	}
}
