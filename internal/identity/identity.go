// Package identity 封装 Firebase Identity Toolkit 的 REST 接口，
// 供客户端完成社交登录和手机号验证码登录，换取 ID Token 后再去
// 服务端换本系统令牌。
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultIdentityEndpoint = "https://identitytoolkit.googleapis.com/v1"
	defaultTokenEndpoint    = "https://securetoken.googleapis.com/v1"

	ProviderGoogle   = "google.com"
	ProviderFacebook = "facebook.com"
)

// ProviderError 保留 Firebase 返回的错误码（如 EMAIL_EXISTS、
// INVALID_PASSWORD），调用方按需翻译成用户可读的文案。
type ProviderError struct {
	Code string
}

func (e *ProviderError) Error() string {
	return "identity provider error: " + e.Code
}

// Credentials 是一次身份验证的结果。
type Credentials struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
}

// Config 是 Firebase 项目的客户端配置。
type Config struct {
	APIKey string
	// Endpoint 和 TokenEndpoint 留空时用官方地址，测试时指向 httptest。
	Endpoint      string
	TokenEndpoint string
	Timeout       time.Duration
}

// Client 调用 Firebase Identity Toolkit。
type Client struct {
	http     *resty.Client
	apiKey   string
	tokenURL string
}

// New 创建 Firebase 身份客户端。
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultIdentityEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetTimeout(cfg.Timeout)

	return &Client{
		http:     cli,
		apiKey:   cfg.APIKey,
		tokenURL: strings.TrimRight(cfg.TokenEndpoint, "/"),
	}
}

// SignUp 用邮箱和密码注册 Firebase 账号。
func (c *Client) SignUp(ctx context.Context, email, password string) (Credentials, error) {
	body := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	return c.post(ctx, "accounts:signUp", body)
}

// SignInWithPassword 用邮箱和密码登录。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (Credentials, error) {
	body := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	return c.post(ctx, "accounts:signInWithPassword", body)
}

// SignInWithIdp 用第三方 OAuth 凭证登录（Google 传 id_token，
// Facebook 传 access_token）。
func (c *Client) SignInWithIdp(ctx context.Context, providerID, oauthToken string) (Credentials, error) {
	field := "id_token"
	if providerID == ProviderFacebook {
		field = "access_token"
	}
	postBody := url.Values{}
	postBody.Set(field, oauthToken)
	postBody.Set("providerId", providerID)

	body := map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}
	return c.post(ctx, "accounts:signInWithIdp", body)
}

// SendVerificationCode 向手机号发送短信验证码，返回后续登录用的 sessionInfo。
func (c *Client) SendVerificationCode(ctx context.Context, phoneNumber, recaptchaToken string) (string, error) {
	body := map[string]any{"phoneNumber": phoneNumber, "recaptchaToken": recaptchaToken}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(body).
		Post("/accounts:sendVerificationCode")
	if err != nil {
		return "", fmt.Errorf("send verification code: %w", err)
	}
	if err := mapIdentityError(resp); err != nil {
		return "", err
	}

	var result struct {
		SessionInfo string `json:"sessionInfo"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("decode verification response: %w", err)
	}
	return result.SessionInfo, nil
}

// SignInWithPhoneNumber 用短信验证码完成手机号登录。
func (c *Client) SignInWithPhoneNumber(ctx context.Context, sessionInfo, code string) (Credentials, error) {
	body := map[string]any{"sessionInfo": sessionInfo, "code": code}
	return c.post(ctx, "accounts:signInWithPhoneNumber", body)
}

// SendPasswordReset 请求 Firebase 发送密码重置邮件。
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	body := map[string]any{"requestType": "PASSWORD_RESET", "email": email}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(body).
		Post("/accounts:sendOobCode")
	if err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return mapIdentityError(resp)
}

// RefreshToken 用 refresh token 换新的 ID Token。
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (Credentials, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		Post(c.tokenURL + "/token")
	if err != nil {
		return Credentials{}, fmt.Errorf("refresh token: %w", err)
	}
	if err := mapIdentityError(resp); err != nil {
		return Credentials{}, err
	}

	// securetoken 接口用下划线命名，与 identitytoolkit 不同。
	var result struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return Credentials{}, fmt.Errorf("decode refresh response: %w", err)
	}
	return Credentials{
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		LocalID:      result.UserID,
	}, nil
}

func (c *Client) post(ctx context.Context, method string, body map[string]any) (Credentials, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(body).
		Post("/" + method)
	if err != nil {
		return Credentials{}, fmt.Errorf("%s request: %w", method, err)
	}
	if err := mapIdentityError(resp); err != nil {
		return Credentials{}, err
	}

	var creds Credentials
	if err := json.Unmarshal(resp.Body(), &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode %s response: %w", method, err)
	}
	return creds, nil
}

func mapIdentityError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err == nil && payload.Error.Message != "" {
		// 错误码后可能跟着冒号说明，如 "WEAK_PASSWORD : ..."，只留错误码。
		code, _, _ := strings.Cut(payload.Error.Message, " ")
		return &ProviderError{Code: code}
	}
	return fmt.Errorf("identity http %d", resp.StatusCode())
}
