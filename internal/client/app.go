// Package client 组装命令行客户端：本地状态、API 客户端与
// Firebase 身份客户端。
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ezycv/internal/apiclient"
	"ezycv/internal/cv"
	"ezycv/internal/identity"
	"ezycv/internal/state"
)

const sessionIDFile = "session-id"

// Config 是客户端的运行配置。
type Config struct {
	ServerURL      string
	FirebaseAPIKey string
	DataDir        string
	Timeout        time.Duration
}

// App 聚合客户端的依赖，cobra 命令只跟它打交道。
type App struct {
	AuthStore  *state.AuthStore
	StatsStore *state.StatsStore
	CVStore    *state.CVStore
	API        *apiclient.Client
	Identity   *identity.Client
	Logger     *slog.Logger

	sessionID string
}

// New 初始化客户端应用，数据目录不存在时创建。
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".ezycv")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	authStore, err := state.NewAuthStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load auth state: %w", err)
	}
	statsStore, err := state.NewStatsStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load stats state: %w", err)
	}
	cvStore, err := state.NewCVStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load cv state: %w", err)
	}

	sessionID, err := loadOrCreateSessionID(filepath.Join(cfg.DataDir, sessionIDFile))
	if err != nil {
		return nil, err
	}

	api := apiclient.New(apiclient.Config{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.Timeout,
		Session: authStore,
	})

	var idClient *identity.Client
	if cfg.FirebaseAPIKey != "" {
		idClient = identity.New(identity.Config{APIKey: cfg.FirebaseAPIKey})
	}

	return &App{
		AuthStore:  authStore,
		StatsStore: statsStore,
		CVStore:    cvStore,
		API:        api,
		Identity:   idClient,
		Logger:     logger,
		sessionID:  sessionID,
	}, nil
}

// loadOrCreateSessionID 读取游客会话 ID，首次运行时生成并落盘。
func loadOrCreateSessionID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read session id: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write session id: %w", err)
	}
	return id, nil
}

// SessionID 返回游客会话 ID。登录后服务端按账号鉴权，返回空串。
func (a *App) SessionID() string {
	if a.AuthStore.IsAuthenticated() {
		return ""
	}
	return a.sessionID
}

// Login 邮箱密码登录并保存登录态。
func (a *App) Login(ctx context.Context, email, password string) (state.User, error) {
	result, err := a.API.Login(ctx, email, password)
	if err != nil {
		return state.User{}, err
	}
	if err := a.AuthStore.Login(result.User, result.Token); err != nil {
		return state.User{}, fmt.Errorf("persist login: %w", err)
	}
	return result.User, nil
}

// Register 注册本地账号并保存登录态。
func (a *App) Register(ctx context.Context, name, email, password string) (state.User, error) {
	result, err := a.API.Register(ctx, name, email, password)
	if err != nil {
		return state.User{}, err
	}
	if err := a.AuthStore.Login(result.User, result.Token); err != nil {
		return state.User{}, fmt.Errorf("persist login: %w", err)
	}
	return result.User, nil
}

// SocialLogin 用第三方 OAuth 令牌走 Firebase 换 ID Token，
// 再去服务端换本系统令牌。
func (a *App) SocialLogin(ctx context.Context, providerID, oauthToken string) (state.User, error) {
	if a.Identity == nil {
		return state.User{}, fmt.Errorf("social login unavailable: firebase api key is not configured")
	}

	creds, err := a.Identity.SignInWithIdp(ctx, providerID, oauthToken)
	if err != nil {
		return state.User{}, err
	}
	return a.firebaseLogin(ctx, creds.IDToken)
}

// PhoneLoginStart 发送短信验证码，返回完成登录用的 sessionInfo。
func (a *App) PhoneLoginStart(ctx context.Context, phoneNumber, recaptchaToken string) (string, error) {
	if a.Identity == nil {
		return "", fmt.Errorf("phone login unavailable: firebase api key is not configured")
	}
	return a.Identity.SendVerificationCode(ctx, phoneNumber, recaptchaToken)
}

// PhoneLoginFinish 用短信验证码完成登录。
func (a *App) PhoneLoginFinish(ctx context.Context, sessionInfo, code string) (state.User, error) {
	if a.Identity == nil {
		return state.User{}, fmt.Errorf("phone login unavailable: firebase api key is not configured")
	}

	creds, err := a.Identity.SignInWithPhoneNumber(ctx, sessionInfo, code)
	if err != nil {
		return state.User{}, err
	}
	return a.firebaseLogin(ctx, creds.IDToken)
}

func (a *App) firebaseLogin(ctx context.Context, idToken string) (state.User, error) {
	result, err := a.API.FirebaseLogin(ctx, idToken)
	if err != nil {
		return state.User{}, err
	}
	if err := a.AuthStore.Login(result.User, result.Token); err != nil {
		return state.User{}, fmt.Errorf("persist login: %w", err)
	}
	return result.User, nil
}

// Logout 清除本地登录态。
func (a *App) Logout() error {
	return a.AuthStore.Logout()
}

// SaveDraft 把当前草稿保存到服务端。
func (a *App) SaveDraft(ctx context.Context) (apiclient.CV, error) {
	doc := a.CVStore.Current()
	return a.API.SaveCV(ctx, doc.Template, doc, a.SessionID())
}

// BackupDraft 把当前草稿上传到服务端备份。游客和登录用户共用
// 同一个会话 ID 作为备份键。
func (a *App) BackupDraft(ctx context.Context) error {
	return a.API.BackupCV(ctx, a.sessionID, a.CVStore.Current())
}

// RestoreDraft 从服务端备份恢复草稿。
func (a *App) RestoreDraft(ctx context.Context) error {
	doc, err := a.API.RestoreBackup(ctx, a.sessionID)
	if err != nil {
		return err
	}
	return a.CVStore.Load(doc)
}

// DownloadCV 请求生成 PDF，轮询到就绪后写入 w，并登记本地统计。
func (a *App) DownloadCV(ctx context.Context, id uint, w io.Writer) error {
	sessionID := a.SessionID()
	if _, err := a.API.RequestDownload(ctx, id, sessionID); err != nil {
		return err
	}
	if err := a.waitForPDF(ctx, id, sessionID); err != nil {
		return err
	}
	if err := a.API.FetchPDF(ctx, id, sessionID, w); err != nil {
		return err
	}

	if err := a.StatsStore.IncrementCVs(); err != nil {
		a.Logger.Warn("record cv download failed", "error", err)
	}
	if err := a.StatsStore.IncrementDownloads(); err != nil {
		a.Logger.Warn("record download failed", "error", err)
	}
	if err := a.StatsStore.TrackTemplateUsed(a.CVStore.Current().Template); err != nil {
		a.Logger.Warn("track template failed", "error", err)
	}
	return nil
}

// waitForPDF 轮询简历状态直到 PDF 生成完成或 ctx 超时。
func (a *App) waitForPDF(ctx context.Context, id uint, sessionID string) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		item, err := a.API.GetCV(ctx, id, sessionID)
		if err != nil {
			return err
		}
		if item.PdfReady {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("pdf generation timed out: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// DownloadMedia 通过代理下载素材并登记本地统计。
func (a *App) DownloadMedia(ctx context.Context, kind apiclient.MediaKind, id uint, w io.Writer) error {
	if err := a.API.FetchMedia(ctx, kind, id, w); err != nil {
		return err
	}

	var err error
	switch kind {
	case apiclient.KindWallpaper:
		err = a.StatsStore.IncrementWallpapers()
	case apiclient.KindPhoto:
		err = a.StatsStore.IncrementStockPhotos()
	}
	if err != nil {
		a.Logger.Warn("record media download failed", "error", err)
	}
	if err := a.StatsStore.IncrementDownloads(); err != nil {
		a.Logger.Warn("record download failed", "error", err)
	}
	return nil
}

// FriendlyIdentityError 把身份服务的错误码翻译成用户可读的文案。
func FriendlyIdentityError(err error) string {
	var provErr *identity.ProviderError
	if !errors.As(err, &provErr) {
		return err.Error()
	}

	switch provErr.Code {
	case "EMAIL_EXISTS":
		return "an account with this email already exists"
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return "invalid email or password"
	case "INVALID_CODE", "SESSION_EXPIRED":
		return "the verification code is invalid or has expired"
	case "INVALID_PHONE_NUMBER":
		return "the phone number is not valid"
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return "too many attempts, please try again later"
	case "USER_DISABLED":
		return "this account has been disabled"
	default:
		return "sign-in failed (" + provErr.Code + ")"
	}
}

// DraftDocument 返回草稿的副本，展示或渲染时使用。
func (a *App) DraftDocument() cv.Document {
	return a.CVStore.Current()
}
