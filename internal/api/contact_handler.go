package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"ezycv/internal/api/middleware"
	"ezycv/internal/database"
	"ezycv/internal/tasks"
)

// ContactHandler 处理联系表单与订阅。
type ContactHandler struct {
	db         *gorm.DB
	taskClient taskEnqueuer
	logger     *slog.Logger
}

// NewContactHandler 构造 ContactHandler。
func NewContactHandler(db *gorm.DB, taskClient taskEnqueuer, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{db: db, taskClient: taskClient, logger: logger}
}

type contactRequest struct {
	Name    string `json:"name" binding:"required,max=128"`
	Email   string `json:"email" binding:"required,max=255"`
	Subject string `json:"subject" binding:"required,max=255"`
	Message string `json:"message" binding:"required,max=4096"`
}

// SubmitContact 入库联系表单并投递转发邮件任务。
// 先落库再投递，邮件失败时提交内容不丢。
func (h *ContactHandler) SubmitContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	msg := database.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Subject: strings.TrimSpace(req.Subject),
		Message: req.Message,
	}
	if err := h.db.WithContext(ctx).Create(&msg).Error; err != nil {
		logger.Error("store contact message failed", slog.Any("error", err))
		Internal(c, "failed to submit message")
		return
	}

	h.enqueueEmail(c, tasks.EmailKindContactForm, msg.Email, map[string]string{
		"name":    msg.Name,
		"subject": msg.Subject,
		"message": msg.Message,
	})

	logger.Info("contact message received", slog.Uint64("message_id", uint64(msg.ID)))
	c.JSON(http.StatusCreated, gin.H{"message": "message received"})
}

type subscribeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Subscribe 登记订阅邮箱，重复订阅幂等。
func (h *ContactHandler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	var existing database.Subscriber
	err := h.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"message": "already subscribed"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("subscriber lookup failed", slog.Any("error", err))
		Internal(c, "failed to subscribe")
		return
	}

	if err := h.db.WithContext(ctx).Create(&database.Subscriber{Email: email}).Error; err != nil {
		logger.Error("create subscriber failed", slog.Any("error", err))
		Internal(c, "failed to subscribe")
		return
	}

	h.enqueueEmail(c, tasks.EmailKindNewsletterConfirm, email, nil)

	logger.Info("newsletter subscription added")
	c.JSON(http.StatusCreated, gin.H{"message": "subscribed"})
}

func (h *ContactHandler) enqueueEmail(c *gin.Context, kind, to string, fields map[string]string) {
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

func (h *ContactHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
