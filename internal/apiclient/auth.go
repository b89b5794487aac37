package apiclient

import (
	"context"
	"fmt"

	"ezycv/internal/state"
)

// AuthResult 是登录和注册接口的返回值。
type AuthResult struct {
	Token string     `json:"token"`
	User  state.User `json:"user"`
}

// Register 注册本地账号。
func (c *Client) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	body := map[string]string{"name": name, "email": email, "password": password}

	resp, err := c.request(ctx).SetBody(body).Post("/v1/auth/register")
	if err != nil {
		return AuthResult{}, fmt.Errorf("register request: %w", err)
	}
	if err := c.mapError(resp, true); err != nil {
		return AuthResult{}, err
	}

	var result AuthResult
	if err := decode(resp.Body(), &result); err != nil {
		return AuthResult{}, err
	}
	return result, nil
}

// Login 用邮箱和密码换取访问令牌。
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{"email": email, "password": password}

	resp, err := c.request(ctx).SetBody(body).Post("/v1/auth/login")
	if err != nil {
		return AuthResult{}, fmt.Errorf("login request: %w", err)
	}
	if err := c.mapError(resp, true); err != nil {
		return AuthResult{}, err
	}

	var result AuthResult
	if err := decode(resp.Body(), &result); err != nil {
		return AuthResult{}, err
	}
	return result, nil
}

// FirebaseLogin 用 Firebase ID Token 换取本系统令牌（社交/手机号登录）。
func (c *Client) FirebaseLogin(ctx context.Context, idToken string) (AuthResult, error) {
	body := map[string]string{"idToken": idToken}

	resp, err := c.request(ctx).SetBody(body).Post("/v1/auth/firebase-login")
	if err != nil {
		return AuthResult{}, fmt.Errorf("firebase login request: %w", err)
	}
	if err := c.mapError(resp, true); err != nil {
		return AuthResult{}, err
	}

	var result AuthResult
	if err := decode(resp.Body(), &result); err != nil {
		return AuthResult{}, err
	}
	return result, nil
}

// Me 返回当前登录用户的资料。
func (c *Client) Me(ctx context.Context) (state.User, error) {
	resp, err := c.request(ctx).Get("/v1/auth/me")
	if err != nil {
		return state.User{}, fmt.Errorf("me request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return state.User{}, err
	}

	var result struct {
		User state.User `json:"user"`
	}
	if err := decode(resp.Body(), &result); err != nil {
		return state.User{}, err
	}
	return result.User, nil
}

// UpdateProfile 修改当前用户的昵称或头像，空字段不变。
func (c *Client) UpdateProfile(ctx context.Context, name, avatar string) (state.User, error) {
	body := map[string]string{}
	if name != "" {
		body["name"] = name
	}
	if avatar != "" {
		body["avatar"] = avatar
	}

	resp, err := c.request(ctx).SetBody(body).Put("/v1/auth/profile")
	if err != nil {
		return state.User{}, fmt.Errorf("update profile request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return state.User{}, err
	}

	var result struct {
		User state.User `json:"user"`
	}
	if err := decode(resp.Body(), &result); err != nil {
		return state.User{}, err
	}
	return result.User, nil
}

// ForgotPassword 请求发送密码重置邮件。无论邮箱是否存在都会成功。
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	resp, err := c.request(ctx).SetBody(map[string]string{"email": email}).Post("/v1/auth/forgot-password")
	if err != nil {
		return fmt.Errorf("forgot password request: %w", err)
	}
	return c.mapError(resp, true)
}

// ResetPassword 用邮件中的重置令牌设置新密码。
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}

	resp, err := c.request(ctx).SetBody(body).Post("/v1/auth/reset-password")
	if err != nil {
		return fmt.Errorf("reset password request: %w", err)
	}
	return c.mapError(resp, true)
}
