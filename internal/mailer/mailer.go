package mailer

import (
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"ezycv/internal/config"
)

// Mailer 通过 SMTP 发送产品邮件。
type Mailer struct {
	client       *gomail.Client
	from         string
	supportEmail string
}

// New 构造 Mailer。SMTP 未配置时返回错误，调用方自行决定是否降级。
func New(cfg config.SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is not configured")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is not configured")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("init smtp client: %w", err)
	}

	return &Mailer{
		client:       client,
		from:         cfg.From,
		supportEmail: cfg.SupportEmail,
	}, nil
}

// SendWelcome 发送注册欢迎邮件。
func (m *Mailer) SendWelcome(to, name string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome to EzyCV! Your account is ready.\n\nBuild your first CV at any time — your draft is saved as you go.\n\n— The EzyCV Team\n",
		name,
	)
	return m.send(to, "Welcome to EzyCV", body)
}

// SendPasswordReset 发送密码重置邮件。链接由调用方拼好。
func (m *Mailer) SendPasswordReset(to, resetLink string) error {
	body := fmt.Sprintf(
		"We received a request to reset your EzyCV password.\n\nReset it here (valid for 1 hour):\n%s\n\nIf you didn't request this, you can safely ignore this email.\n\n— The EzyCV Team\n",
		resetLink,
	)
	return m.send(to, "Reset your EzyCV password", body)
}

// SendContactForm 把联系表单内容转发给支持邮箱。
func (m *Mailer) SendContactForm(name, email, subject, message string) error {
	if m.supportEmail == "" {
		return errors.New("support email is not configured")
	}
	body := fmt.Sprintf("From: %s <%s>\n\n%s\n", name, email, message)
	if subject == "" {
		subject = "Contact form submission"
	}
	return m.send(m.supportEmail, "[EzyCV contact] "+subject, body)
}

// SendNewsletterConfirm 发送订阅确认邮件。
func (m *Mailer) SendNewsletterConfirm(to string) error {
	body := "You're subscribed to the EzyCV newsletter. New wallpapers, templates and tips land in your inbox about once a month.\n\n— The EzyCV Team\n"
	return m.send(to, "You're on the list", body)
}

func (m *Mailer) send(to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
