package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ezycv/internal/auth"
	"ezycv/internal/database"
)

// 401 响应文案是客户端的契约：API 客户端只在匹配这些文案时才强制登出，
// 登录失败等业务 401 不会触发。
const (
	msgNoToken      = "no token, authorization denied"
	msgTokenInvalid = "token is not valid"
)

// TokenValidator 校验本系统签发的访问令牌。
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.TokenClaims, error)
}

// FirebaseTokenVerifier 校验 Firebase ID Token。
type FirebaseTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.FirebaseClaims, error)
}

// AuthRequired 校验 Bearer Token 并将 userID 注入上下文。
// 同时接受本系统 JWT 与 Firebase ID Token（社交/手机号登录用户）。
func AuthRequired(authService TokenValidator, verifier FirebaseTokenVerifier, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgNoToken})
			return
		}

		userID, ok := resolveUserID(c, rawToken, authService, verifier, db)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgTokenInvalid})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// AuthOptional 与 AuthRequired 相同，但没有令牌或令牌无效时放行（游客）。
func AuthOptional(authService TokenValidator, verifier FirebaseTokenVerifier, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rawToken, ok := bearerToken(c); ok {
			if userID, ok := resolveUserID(c, rawToken, authService, verifier, db); ok {
				c.Set("userID", userID)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func resolveUserID(c *gin.Context, rawToken string, authService TokenValidator, verifier FirebaseTokenVerifier, db *gorm.DB) (uint, bool) {
	if claims, err := authService.ValidateToken(rawToken); err == nil {
		// 本系统 JWT：确认用户仍然存在。
		var user database.User
		if err := db.WithContext(c.Request.Context()).Select("id").First(&user, claims.UserID).Error; err != nil {
			return 0, false
		}
		return user.ID, true
	}

	if verifier == nil {
		return 0, false
	}

	fbClaims, err := verifier.VerifyIDToken(c.Request.Context(), rawToken)
	if err != nil {
		return 0, false
	}

	var user database.User
	if err := db.WithContext(c.Request.Context()).
		Select("id").
		Where("firebase_uid = ?", fbClaims.UID).
		First(&user).Error; err != nil {
		return 0, false
	}
	return user.ID, true
}
