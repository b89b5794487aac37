package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePDFGenerate = "pdf:generate"
	TypeEmailSend   = "email:send"
)

// 邮件种类。
const (
	EmailKindWelcome           = "welcome"
	EmailKindPasswordReset     = "password_reset"
	EmailKindContactForm       = "contact_form"
	EmailKindNewsletterConfirm = "newsletter_confirm"
)

// PDFGeneratePayload 描述生成简历 PDF 所需的最小信息。
type PDFGeneratePayload struct {
	CVID          uint   `json:"cv_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPDFGenerateTask 构造一个新的简历 PDF 生成任务。
func NewPDFGenerateTask(id uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PDFGeneratePayload{
		CVID:          id,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFGenerate, payload), nil
}

// EmailSendPayload 描述一封待发送的邮件。
// Fields 按邮件种类携带模板变量（reset_link、message 等）。
type EmailSendPayload struct {
	Kind          string            `json:"kind"`
	To            string            `json:"to"`
	Fields        map[string]string `json:"fields,omitempty"`
	CorrelationID string            `json:"correlation_id"`
}

// NewEmailSendTask 构造邮件发送任务。
func NewEmailSendTask(kind, to string, fields map[string]string, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailSendPayload{
		Kind:          kind,
		To:            to,
		Fields:        fields,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailSend, payload), nil
}
