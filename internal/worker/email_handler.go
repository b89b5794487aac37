package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"ezycv/internal/tasks"
)

// mailSender 抽象 mailer.Mailer，便于测试替换。
type mailSender interface {
	SendWelcome(to, name string) error
	SendPasswordReset(to, resetLink string) error
	SendContactForm(name, email, subject, message string) error
	SendNewsletterConfirm(to string) error
}

// EmailTaskHandler 负责消费邮件发送任务。
type EmailTaskHandler struct {
	mailer mailSender
	logger *slog.Logger
}

// NewEmailTaskHandler 创建任务处理器。
func NewEmailTaskHandler(mailer mailSender, logger *slog.Logger) *EmailTaskHandler {
	return &EmailTaskHandler{mailer: mailer, logger: logger}
}

// ProcessTask 实现 asynq.Handler。发送失败会按队列策略重试。
func (h *EmailTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.EmailSendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal email payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("kind", payload.Kind),
		slog.String("to", payload.To),
	)

	var err error
	switch payload.Kind {
	case tasks.EmailKindWelcome:
		err = h.mailer.SendWelcome(payload.To, payload.Fields["name"])
	case tasks.EmailKindPasswordReset:
		err = h.mailer.SendPasswordReset(payload.To, payload.Fields["reset_link"])
	case tasks.EmailKindContactForm:
		err = h.mailer.SendContactForm(
			payload.Fields["name"],
			payload.To,
			payload.Fields["subject"],
			payload.Fields["message"],
		)
	case tasks.EmailKindNewsletterConfirm:
		err = h.mailer.SendNewsletterConfirm(payload.To)
	default:
		// 未知种类不重试，只记日志。
		log.Warn("unknown email kind, dropping task")
		return nil
	}

	if err != nil {
		log.Error("send email failed", slog.Any("error", err))
		return err
	}

	log.Info("email sent")
	return nil
}
