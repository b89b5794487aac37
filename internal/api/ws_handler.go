package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"ezycv/internal/auth"
)

// WsHandler 负责处理 WebSocket 鉴权与 PDF 完成通知的转发。
type WsHandler struct {
	redisClient    redis.UniversalClient
	authService    *auth.AuthService
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

// NewWsHandler 构造 WebSocket 处理器。
func NewWsHandler(redisClient redis.UniversalClient, authService *auth.AuthService, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		redisClient:    redisClient,
		authService:    authService,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(h.allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

// 首条消息必须是鉴权：登录用户带 token，游客带 sessionId。
type wsAuthMessage struct {
	Type      string `json:"type"`
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
}

// HandleConnection 负责升级连接并启动读写循环。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	baseLog := h.logger.With(
		slog.String("client_ip", c.ClientIP()),
	)

	channelCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go h.readLoop(ctx, conn, channelCh, errCh, cancel, baseLog)

	var channel string
	select {
	case <-ctx.Done():
		return
	case err := <-errCh:
		if err != nil {
			baseLog.Warn("websocket authentication failed", slog.Any("error", err))
		}
		return
	case channel = <-channelCh:
	}

	connLog := baseLog.With(slog.String("channel", channel))
	go h.subscribeLoop(ctx, conn, channel, errCh, cancel, connLog)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			connLog.Info("websocket connection closed", slog.Any("error", err))
		} else {
			connLog.Info("websocket connection closed")
		}
	}
}

func (h *WsHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	channelCh chan<- string,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	authenticated := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			writeClose(conn, websocket.CloseAbnormalClosure, "read error")
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}

		if !authenticated {
			var authMsg wsAuthMessage
			if err := json.Unmarshal(message, &authMsg); err != nil {
				writeClose(conn, websocket.ClosePolicyViolation, "invalid auth payload")
				errCh <- fmt.Errorf("decode auth payload: %w", err)
				cancel()
				return
			}

			channel, err := h.resolveChannel(authMsg)
			if err != nil {
				writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
				errCh <- err
				cancel()
				return
			}

			authenticated = true
			channelCh <- channel
			log.Info("websocket authenticated", slog.String("channel", channel))
			continue
		}

		// 目前无需处理额外消息，保持循环以检测客户端断开。
	}
}

func (h *WsHandler) resolveChannel(msg wsAuthMessage) (string, error) {
	switch msg.Type {
	case "auth":
		if msg.Token == "" {
			return "", fmt.Errorf("auth message missing token")
		}
		claims, err := h.authService.ValidateToken(msg.Token)
		if err != nil {
			return "", fmt.Errorf("validate token: %w", err)
		}
		return NotifyChannelForUser(claims.UserID), nil
	case "session":
		sessionID := strings.TrimSpace(msg.SessionID)
		if sessionID == "" {
			return "", fmt.Errorf("session message missing sessionId")
		}
		return NotifyChannelForSession(sessionID), nil
	default:
		return "", fmt.Errorf("invalid auth message type %q", msg.Type)
	}
}

// NotifyChannelForUser 是登录用户的通知频道名，Worker 推送时使用同一命名。
func NotifyChannelForUser(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// NotifyChannelForSession 是游客会话的通知频道名。
func NotifyChannelForSession(sessionID string) string {
	return "session_notify:" + sessionID
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	channel string,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Info("subscribed to redis channel")

	ch := pubsub.Channel()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}

			log.Info("forwarding message to client")
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
