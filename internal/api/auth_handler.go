package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ezycv/internal/api/middleware"
	"ezycv/internal/auth"
	"ezycv/internal/database"
	"ezycv/internal/tasks"
)

const resetTokenTTL = time.Hour

// idTokenVerifier 抽象 Firebase ID Token 校验，便于测试替换。
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.FirebaseClaims, error)
}

// AuthHandler 处理注册、登录、第三方登录与密码找回。
type AuthHandler struct {
	db                    *gorm.DB
	authService           *auth.AuthService
	firebase              idTokenVerifier
	redis                 redis.UniversalClient
	taskClient            taskEnqueuer
	logger                *slog.Logger
	loginRateLimitPerHour int
	loginLockThreshold    int
	loginLockTTL          time.Duration
	frontendBaseURL       string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, firebase idTokenVerifier, redisClient redis.UniversalClient, taskClient taskEnqueuer, logger *slog.Logger, loginRateLimitPerHour int, loginLockThreshold int, loginLockTTL time.Duration, frontendBaseURL string) *AuthHandler {
	return &AuthHandler{
		db:                    db,
		authService:           authService,
		firebase:              firebase,
		redis:                 redisClient,
		taskClient:            taskClient,
		logger:                logger,
		loginRateLimitPerHour: loginRateLimitPerHour,
		loginLockThreshold:    loginLockThreshold,
		loginLockTTL:          loginLockTTL,
		frontendBaseURL:       frontendBaseURL,
	}
}

type userResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Avatar        string `json:"avatar,omitempty"`
	AuthProvider  string `json:"authProvider"`
	EmailVerified bool   `json:"emailVerified"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func sanitizeUser(u *database.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Avatar:        u.Avatar,
		AuthProvider:  u.AuthProvider,
		EmailVerified: u.EmailVerified,
		PhoneNumber:   u.PhoneNumber,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// Register 创建新用户账号并直接签发 Token。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	var existing database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		logger.Info("register conflict: user already exists")
		Conflict(c, "user with this email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("register lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user := database.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hashed,
		AuthProvider: "local",
	}

	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		logger.Error("create user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.enqueueEmail(c, tasks.EmailKindWelcome, user.Email, map[string]string{"name": user.Name})

	token, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		logger.Error("generate token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	c.JSON(http.StatusCreated, authResponse{Token: token, User: sanitizeUser(&user)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 校验口令并返回 Token。
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	// 速率限制：每 IP+邮箱 每小时 N 次
	rateKey := "rate:login:" + ip + ":" + email + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		count = 0
	}
	if count > int64(h.loginRateLimitPerHour) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	// 锁定检查
	lockKey := "lock:login:" + email
	if ttl, _ := h.redis.TTL(ctx, lockKey).Result(); ttl > 0 {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "account temporarily locked"})
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: user not found")
			_ = h.incrementLoginFail(ctx, email)
			BadRequest(c, "invalid credentials")
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 社交账号没有本地口令，CheckPasswordHash 对空哈希恒为 false。
	if !h.authService.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		_ = h.incrementLoginFail(ctx, email)
		BadRequest(c, "invalid credentials")
		return
	}

	// 登录成功：清理失败计数
	_ = h.redis.Del(ctx, "lock:login:fail:"+email).Err()

	h.touchLastLogin(ctx, &user)

	token, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		logger.Error("generate token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, User: sanitizeUser(&user)})
}

type firebaseLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// FirebaseLogin 校验 Firebase ID Token，按 UID 建立或关联本地账号。
func (h *AuthHandler) FirebaseLogin(c *gin.Context) {
	var req firebaseLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, err := h.firebase.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		logger.Info("firebase login: token rejected", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	user, err := h.upsertFirebaseUser(ctx, claims)
	if err != nil {
		logger.Error("firebase login: upsert failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.touchLastLogin(ctx, user)

	token, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		logger.Error("generate token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("firebase login", slog.Uint64("user_id", uint64(user.ID)), slog.String("provider", user.AuthProvider))
	c.JSON(http.StatusOK, authResponse{Token: token, User: sanitizeUser(user)})
}

// upsertFirebaseUser 优先按 UID 查找，其次按邮箱关联既有账号，最后创建新账号。
func (h *AuthHandler) upsertFirebaseUser(ctx context.Context, claims *auth.FirebaseClaims) (*database.User, error) {
	var user database.User
	err := h.db.WithContext(ctx).Where("firebase_uid = ?", claims.UID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email != "" {
		err = h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
		if err == nil {
			updates := map[string]any{"firebase_uid": claims.UID}
			if claims.SignInProvider == "google.com" {
				updates["email_verified"] = true
			}
			if user.Avatar == "" && claims.Picture != "" {
				updates["avatar"] = claims.Picture
			}
			if err := h.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
				return nil, err
			}
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user = database.User{
		Name:          claims.Name,
		Email:         email,
		FirebaseUID:   claims.UID,
		AuthProvider:  providerFromSignIn(claims.SignInProvider),
		Avatar:        claims.Picture,
		PhoneNumber:   claims.PhoneNumber,
		EmailVerified: claims.SignInProvider == "google.com",
	}
	if user.Name == "" {
		user.Name = "EzyCV User"
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func providerFromSignIn(signInProvider string) string {
	switch signInProvider {
	case "google.com":
		return "google"
	case "facebook.com":
		return "facebook"
	case "phone":
		return "phone"
	default:
		return "firebase"
	}
}

// Me 返回当前登录用户。
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		Unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": sanitizeUser(&user)})
}

type updateProfileRequest struct {
	Name   string `json:"name" binding:"omitempty,min=2,max=64"`
	Avatar string `json:"avatar" binding:"omitempty,max=512"`
}

// UpdateProfile 更新昵称与头像。
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		Unauthorized(c)
		return
	}

	updates := map[string]any{}
	if strings.TrimSpace(req.Name) != "" {
		updates["name"] = strings.TrimSpace(req.Name)
	}
	if req.Avatar != "" {
		updates["avatar"] = req.Avatar
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"user": sanitizeUser(&user)})
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		logger.Error("update profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": sanitizeUser(&user)})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword 生成重置令牌并投递邮件任务。响应不区分邮箱是否存在。
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	respond := func() {
		c.JSON(http.StatusOK, gin.H{"message": "if that email is registered, a reset link has been sent"})
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("forgot password lookup failed", slog.Any("error", err))
		}
		respond()
		return
	}
	if user.PasswordHash == "" {
		// 社交账号无口令可重置。
		logger.Info("forgot password: social account, skipping")
		respond()
		return
	}

	resetToken, err := generateResetToken()
	if err != nil {
		logger.Error("generate reset token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	expiry := time.Now().Add(resetTokenTTL)
	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"reset_token":        resetToken,
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		logger.Error("store reset token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	resetLink := strings.TrimRight(h.frontendBaseURL, "/") + "/reset-password?token=" + resetToken
	h.enqueueEmail(c, tasks.EmailKindPasswordReset, user.Email, map[string]string{"reset_link": resetLink})

	logger.Info("password reset requested", slog.Uint64("user_id", uint64(user.ID)))
	respond()
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// ResetPassword 校验重置令牌并更新口令。
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	var user database.User
	err := h.db.WithContext(ctx).
		Where("reset_token = ? AND reset_token_expiry > ?", req.Token, time.Now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			BadRequest(c, "reset token is invalid or has expired")
			return
		}
		logger.Error("reset password lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":      hashed,
		"reset_token":        "",
		"reset_token_expiry": nil,
	}).Error; err != nil {
		logger.Error("reset password update failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("password reset", slog.Uint64("user_id", uint64(user.ID)))
	c.JSON(http.StatusOK, gin.H{"message": "password has been reset"})
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// enqueueEmail 邮件任务失败不阻断主流程，只记日志。
func (h *AuthHandler) enqueueEmail(c *gin.Context, kind, to string, fields map[string]string) {
	if h.taskClient == nil {
		return
	}
	task, err := tasks.NewEmailSendTask(kind, to, fields, middleware.GetCorrelationID(c))
	if err != nil {
		h.loggerFromContext(c).Error("build email task failed", slog.Any("error", err))
		return
	}
	if _, err := h.taskClient.Enqueue(task, asynq.Queue("emails"), asynq.MaxRetry(5)); err != nil {
		h.loggerFromContext(c).Error("enqueue email task failed", slog.Any("error", err))
	}
}

func (h *AuthHandler) touchLastLogin(ctx context.Context, user *database.User) {
	now := time.Now()
	_ = h.db.WithContext(ctx).Model(user).Update("last_login_at", &now).Error
	user.LastLoginAt = &now
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) error {
	failKey := "lock:login:fail:" + email
	count, err := h.redis.Incr(ctx, failKey).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		_ = h.redis.Expire(ctx, failKey, h.loginLockTTL).Err()
	}
	if count >= int64(h.loginLockThreshold) {
		_ = h.redis.Set(ctx, "lock:login:"+email, "1", h.loginLockTTL).Err()
	}
	return nil
}
