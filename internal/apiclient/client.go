// Package apiclient 封装对 EzyCV 服务端 /v1 接口的调用。
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrSessionExpired 表示服务端拒绝了当前令牌，本地登录态已被清除。
var ErrSessionExpired = errors.New("session expired, please log in again")

// APIError 保留服务端返回的状态码和文案。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// SessionStore 提供访问令牌并在令牌失效时清除登录态。
// *state.AuthStore 满足该接口。
type SessionStore interface {
	Token() string
	Logout() error
}

// Config 是客户端的连接配置。
type Config struct {
	BaseURL string
	Timeout time.Duration
	Session SessionStore
}

// Client 通过 HTTP 访问 EzyCV 服务端。
type Client struct {
	http    *resty.Client
	session SessionStore
}

// New 创建 API 客户端。
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &Client{http: cli, session: cfg.Session}
}

func (c *Client) token() string {
	if c.session == nil {
		return ""
	}
	return c.session.Token()
}

// request 构造带令牌的请求。
func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token := c.token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

// mapError 把非 2xx 响应转成错误。
// 服务端中间件拒绝令牌时（文案匹配 401 契约）清除本地登录态并返回
// ErrSessionExpired；登录、注册等接口自身的 401/400 不会触发登出，
// 调用方通过 authExempt 标记这些接口。
func (c *Client) mapError(resp *resty.Response, authExempt bool) error {
	status := resp.StatusCode()
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}

	msg := errorMessage(resp.Body())
	if status == http.StatusUnauthorized && !authExempt && isTokenRejection(msg) {
		if c.session != nil {
			_ = c.session.Logout()
		}
		return ErrSessionExpired
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

func isTokenRejection(msg string) bool {
	return strings.Contains(msg, "token is not valid") ||
		strings.Contains(msg, "no token")
}

func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	return payload.Error
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
