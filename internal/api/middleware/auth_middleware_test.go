package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ezycv/internal/auth"
	"ezycv/internal/database"
)

type fakeValidator struct {
	userID uint
	err    error
}

func (f *fakeValidator) ValidateToken(string) (*auth.TokenClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.TokenClaims{UserID: f.userID}, nil
}

type fakeFirebase struct {
	uid string
	err error
}

func (f *fakeFirebase) VerifyIDToken(context.Context, string) (*auth.FirebaseClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.FirebaseClaims{UID: f.uid}, nil
}

var mwDBCounter int64

func newMiddlewareDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:mwtest%d?mode=memory&cache=shared", atomic.AddInt64(&mwDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func runAuthRequired(t *testing.T, validator TokenValidator, verifier FirebaseTokenVerifier, db *gorm.DB, authHeader string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	c.Request = req

	AuthRequired(validator, verifier, db)(c)
	return w, c
}

func TestAuthRequiredWithoutToken(t *testing.T) {
	db := newMiddlewareDB(t)
	w, _ := runAuthRequired(t, &fakeValidator{err: errors.New("unused")}, nil, db, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if w.Body.String() != `{"error":"no token, authorization denied"}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestAuthRequiredInvalidToken(t *testing.T) {
	db := newMiddlewareDB(t)
	w, _ := runAuthRequired(t, &fakeValidator{err: errors.New("expired")}, nil, db, "Bearer bad-token")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if w.Body.String() != `{"error":"token is not valid"}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestAuthRequiredValidTokenSetsUserID(t *testing.T) {
	db := newMiddlewareDB(t)
	user := database.User{Name: "Mia", Email: "mia@example.com"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	w, c := runAuthRequired(t, &fakeValidator{userID: user.ID}, nil, db, "Bearer good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want pass-through", w.Code)
	}
	value, ok := c.Get("userID")
	if !ok {
		t.Fatal("userID not set in context")
	}
	if got := value.(uint); got != user.ID {
		t.Fatalf("userID = %d, want %d", got, user.ID)
	}
}

func TestAuthRequiredDeletedUser(t *testing.T) {
	db := newMiddlewareDB(t)
	w, _ := runAuthRequired(t, &fakeValidator{userID: 999}, nil, db, "Bearer good-token")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for deleted user", w.Code)
	}
}

func TestAuthRequiredFallsBackToFirebase(t *testing.T) {
	db := newMiddlewareDB(t)
	user := database.User{Name: "Noah", Email: "noah@example.com", FirebaseUID: "fb-uid-1"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	w, c := runAuthRequired(t, &fakeValidator{err: errors.New("not ours")}, &fakeFirebase{uid: "fb-uid-1"}, db, "Bearer firebase-id-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want pass-through", w.Code)
	}
	value, _ := c.Get("userID")
	if got := value.(uint); got != user.ID {
		t.Fatalf("userID = %d, want %d", got, user.ID)
	}
}

func TestAuthOptionalWithoutTokenPasses(t *testing.T) {
	db := newMiddlewareDB(t)
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/cv", nil)

	AuthOptional(&fakeValidator{err: errors.New("unused")}, nil, db)(c)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want pass-through", w.Code)
	}
	if _, ok := c.Get("userID"); ok {
		t.Fatal("guest request must not carry a userID")
	}
}
