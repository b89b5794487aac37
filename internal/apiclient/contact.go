package apiclient

import (
	"context"
	"fmt"
)

// SubmitContact 提交联系表单。
func (c *Client) SubmitContact(ctx context.Context, name, email, subject, message string) error {
	body := map[string]string{
		"name":    name,
		"email":   email,
		"subject": subject,
		"message": message,
	}

	resp, err := c.request(ctx).SetBody(body).Post("/v1/contact")
	if err != nil {
		return fmt.Errorf("contact request: %w", err)
	}
	return c.mapError(resp, false)
}

// Subscribe 订阅新闻邮件。重复订阅不报错。
func (c *Client) Subscribe(ctx context.Context, email string) error {
	resp, err := c.request(ctx).SetBody(map[string]string{"email": email}).Post("/v1/newsletter/subscribe")
	if err != nil {
		return fmt.Errorf("subscribe request: %w", err)
	}
	return c.mapError(resp, false)
}
