package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ezycv/internal/cv"
	"ezycv/internal/database"
	"ezycv/internal/errcode"
	"ezycv/internal/storage"
	"ezycv/internal/tasks"
)

// PDFTaskHandler 负责消费 PDF 生成任务。
type PDFTaskHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	redisClient redis.UniversalClient
	logger      *slog.Logger
}

// NewPDFTaskHandler 创建任务处理器。
func NewPDFTaskHandler(db *gorm.DB, storageClient *storage.Client, redisClient redis.UniversalClient, logger *slog.Logger) *PDFTaskHandler {
	return &PDFTaskHandler{
		db:          db,
		storage:     storageClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *PDFTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.PDFGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("cv_id", int(payload.CVID)),
	)
	log.Info("starting cv pdf generation task")

	var model database.CV
	if err := h.db.WithContext(ctx).First(&model, payload.CVID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("cv not found, skipping task")
			return nil
		}
		log.Error("query cv failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := PDFGenerationNotifyMessage{
			Status:        "error",
			CVID:          model.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishNotify(ctx, &model, notify); err != nil {
			log.Error("publish pdf error notification failed", slog.Any("error", err))
		}
	}()

	var doc cv.Document
	if err := json.Unmarshal(model.Content, &doc); err != nil {
		log.Error("decode cv content failed", slog.Any("error", err))
		return err
	}
	if doc.Template == "" {
		doc.Template = model.Template
	}

	html, err := RenderHTML(doc)
	if err != nil {
		log.Error("render cv html failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := renderHTMLToPDF(log, html)
	if err != nil {
		log.Error("print cv pdf failed", slog.Any("error", err))
		return err
	}

	objectName := pdfObjectKey(&model)
	if err := h.storage.UploadBytes(ctx, objectName, pdfBytes, "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).Model(&model).Update("pdf_key", objectName).Error; err != nil {
		log.Error("update cv failed", slog.Any("error", err))
		return err
	}

	notify := PDFGenerationNotifyMessage{
		Status:        "completed",
		CVID:          model.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := h.publishNotify(ctx, &model, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("cv pdf generation task completed")
	return nil
}

func pdfObjectKey(model *database.CV) string {
	if model.UserID != nil {
		return fmt.Sprintf("generated-cvs/user/%d/%s.pdf", *model.UserID, uuid.NewString())
	}
	return fmt.Sprintf("generated-cvs/session/%s/%s.pdf", model.SessionID, uuid.NewString())
}

// publishNotify 推送到简历归属方的通知频道。频道命名与 API 的 WebSocket 订阅一致。
func (h *PDFTaskHandler) publishNotify(ctx context.Context, model *database.CV, notify PDFGenerationNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	var channel string
	if model.UserID != nil {
		channel = fmt.Sprintf("user_notify:%d", *model.UserID)
	} else {
		channel = "session_notify:" + model.SessionID
	}

	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
