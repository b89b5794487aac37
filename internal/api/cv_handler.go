package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ezycv/internal/api/middleware"
	"ezycv/internal/cv"
	"ezycv/internal/database"
	"ezycv/internal/storage"
	"ezycv/internal/tasks"
)

const liveStatsCacheKey = "stats:live"
const liveStatsCacheTTL = 30 * time.Second

// CVHandler 负责处理简历文档相关的 API 请求。
type CVHandler struct {
	db         *gorm.DB
	redis      redis.UniversalClient
	taskClient taskEnqueuer
	storage    objectStore
	maxCVs     int
}

// NewCVHandler 构造 CVHandler。
func NewCVHandler(db *gorm.DB, redisClient redis.UniversalClient, taskClient taskEnqueuer, storageClient objectStore, maxCVs int) *CVHandler {
	return &CVHandler{
		db:         db,
		redis:      redisClient,
		taskClient: taskClient,
		storage:    storageClient,
		maxCVs:     maxCVs,
	}
}

var errInvalidCVID = errors.New("invalid cv id")
var errCVAccessDenied = errors.New("cv access denied")

type saveCVRequest struct {
	Template  string         `json:"template" binding:"required"`
	Content   datatypes.JSON `json:"content" binding:"required"`
	SessionID string         `json:"sessionId"`
}

type cvResponse struct {
	ID        uint           `json:"id"`
	Template  string         `json:"template"`
	Content   datatypes.JSON `json:"content"`
	SessionID string         `json:"sessionId,omitempty"`
	Downloads int64          `json:"downloads"`
	PdfReady  bool           `json:"pdfReady"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type cvListItem struct {
	ID        uint      `json:"id"`
	Template  string    `json:"template"`
	Downloads int64     `json:"downloads"`
	PdfReady  bool      `json:"pdfReady"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newCVResponse(m database.CV) cvResponse {
	return cvResponse{
		ID:        m.ID,
		Template:  m.Template,
		Content:   m.Content,
		SessionID: m.SessionID,
		Downloads: m.Downloads,
		PdfReady:  m.PdfKey != "",
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// CreateCV 保存一份新的简历。登录用户归属账号，游客按 sessionId 归属。
func (h *CVHandler) CreateCV(c *gin.Context) {
	var req saveCVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if !cv.ValidTemplate(req.Template) {
		BadRequest(c, "unknown template")
		return
	}
	if err := cv.ValidateContent(req.Content); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	model := database.CV{
		Template: req.Template,
		Content:  req.Content,
	}

	if userID, ok := userIDFromContext(c); ok {
		if h.maxCVs > 0 {
			var count int64
			if err := h.db.WithContext(ctx).
				Model(&database.CV{}).
				Where("user_id = ?", userID).
				Count(&count).Error; err != nil {
				Internal(c, "failed to count cvs")
				return
			}
			if count >= int64(h.maxCVs) {
				Forbidden(c, "cv limit reached")
				return
			}
		}
		model.UserID = &userID
	} else {
		if strings.TrimSpace(req.SessionID) == "" {
			BadRequest(c, "sessionId is required for guest cvs")
			return
		}
		model.SessionID = strings.TrimSpace(req.SessionID)
	}

	if err := h.db.WithContext(ctx).Create(&model).Error; err != nil {
		Internal(c, "failed to create cv")
		return
	}

	c.JSON(http.StatusCreated, newCVResponse(model))
}

// ListCVs 列出当前用户（或游客会话）的全部简历。
func (h *CVHandler) ListCVs(c *gin.Context) {
	ctx := c.Request.Context()
	query := h.db.WithContext(ctx).Order("updated_at DESC")

	if userID, ok := userIDFromContext(c); ok {
		query = query.Where("user_id = ?", userID)
	} else {
		sessionID := strings.TrimSpace(c.Query("sessionId"))
		if sessionID == "" {
			AbortUnauthorized(c)
			return
		}
		query = query.Where("user_id IS NULL AND session_id = ?", sessionID)
	}

	var cvs []database.CV
	if err := query.Find(&cvs).Error; err != nil {
		Internal(c, "failed to list cvs")
		return
	}

	items := make([]cvListItem, 0, len(cvs))
	for _, m := range cvs {
		items = append(items, cvListItem{
			ID:        m.ID,
			Template:  m.Template,
			Downloads: m.Downloads,
			PdfReady:  m.PdfKey != "",
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, items)
}

// GetCV 返回指定 ID 的简历。
func (h *CVHandler) GetCV(c *gin.Context) {
	model, err := h.getAccessibleCV(c)
	if err != nil {
		h.replyCVError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCVResponse(*model))
}

// UpdateCV 覆盖指定简历的模板与内容。
func (h *CVHandler) UpdateCV(c *gin.Context) {
	var req saveCVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if !cv.ValidTemplate(req.Template) {
		BadRequest(c, "unknown template")
		return
	}
	if err := cv.ValidateContent(req.Content); err != nil {
		BadRequest(c, err.Error())
		return
	}

	model, err := h.getAccessibleCV(c)
	if err != nil {
		h.replyCVError(c, err)
		return
	}

	ctx := c.Request.Context()
	// 内容有变时旧 PDF 作废。
	if err := h.db.WithContext(ctx).Model(model).Updates(map[string]any{
		"template": req.Template,
		"content":  req.Content,
		"pdf_key":  "",
	}).Error; err != nil {
		Internal(c, "failed to update cv")
		return
	}

	if err := h.db.WithContext(ctx).First(model, model.ID).Error; err != nil {
		Internal(c, "failed to reload cv")
		return
	}

	c.JSON(http.StatusOK, newCVResponse(*model))
}

// DeleteCV 删除指定简历及其 PDF 产物。
func (h *CVHandler) DeleteCV(c *gin.Context) {
	model, err := h.getAccessibleCV(c)
	if err != nil {
		h.replyCVError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Delete(&database.CV{}, model.ID).Error; err != nil {
		Internal(c, "failed to delete cv")
		return
	}

	if model.PdfKey != "" && h.storage != nil {
		_ = h.storage.DeleteObject(ctx, model.PdfKey)
	}

	c.Status(http.StatusNoContent)
}

// ListTemplates 返回模板目录。
func (h *CVHandler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": cv.Templates()})
}

type liveStats struct {
	CVsCreated     int64 `json:"cvsCreated"`
	TotalDownloads int64 `json:"totalDownloads"`
	Wallpapers     int64 `json:"wallpapers"`
	StockPhotos    int64 `json:"stockPhotos"`
}

// LiveStats 返回站点实时统计，带 30 秒 Redis 缓存。
func (h *CVHandler) LiveStats(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := cachedJSON(ctx, h.redis, liveStatsCacheKey, liveStatsCacheTTL, func() ([]byte, error) {
		stats, err := h.computeLiveStats(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stats)
	})
	if err != nil {
		Internal(c, "failed to compute stats")
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (h *CVHandler) computeLiveStats(ctx context.Context) (*liveStats, error) {
	var stats liveStats
	if err := h.db.WithContext(ctx).Model(&database.CV{}).Count(&stats.CVsCreated).Error; err != nil {
		return nil, err
	}
	row := h.db.WithContext(ctx).Model(&database.CV{}).Select("COALESCE(SUM(downloads), 0)").Row()
	if err := row.Scan(&stats.TotalDownloads); err != nil {
		return nil, err
	}
	if err := h.db.WithContext(ctx).Model(&database.MediaAsset{}).
		Where("kind = ?", database.MediaKindWallpaper).
		Count(&stats.Wallpapers).Error; err != nil {
		return nil, err
	}
	if err := h.db.WithContext(ctx).Model(&database.MediaAsset{}).
		Where("kind = ?", database.MediaKindPhoto).
		Count(&stats.StockPhotos).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

type backupRequest struct {
	SessionID string         `json:"sessionId" binding:"required"`
	Content   datatypes.JSON `json:"content" binding:"required"`
}

// BackupCV 把游客草稿整体存入对象存储，按 sessionId 覆盖。
func (h *CVHandler) BackupCV(c *gin.Context) {
	var req backupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if err := h.storage.UploadBytes(c.Request.Context(), backupObjectKey(sessionID), req.Content, "application/json"); err != nil {
		Internal(c, "failed to store backup")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "backup stored"})
}

// RestoreBackup 按 sessionId 取回草稿备份。
func (h *CVHandler) RestoreBackup(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("sessionId"))
	if sessionID == "" {
		BadRequest(c, "invalid session id")
		return
	}

	obj, err := h.storage.GetObject(c.Request.Context(), backupObjectKey(sessionID))
	if err != nil {
		Internal(c, "failed to load backup")
		return
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			NotFound(c, "backup not found")
			return
		}
		Internal(c, "failed to read backup")
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func backupObjectKey(sessionID string) string {
	return "backups/" + sessionID + ".json"
}

// DownloadCV 将 PDF 生成任务入队并立即返回 202。
func (h *CVHandler) DownloadCV(c *gin.Context) {
	model, err := h.getAccessibleCV(c)
	if err != nil {
		h.replyCVError(c, err)
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewPDFGenerateTask(model.ID, correlationID)
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	info, err := h.taskClient.Enqueue(task, asynq.MaxRetry(5))
	if err != nil {
		Internal(c, "failed to enqueue pdf generation")
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Model(model).
		UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error; err != nil {
		Internal(c, "failed to record download")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "PDF generation request accepted",
		"task_id": info.ID,
	})
}

// GetDownloadLink 生成简历 PDF 的限时下载链接。
func (h *CVHandler) GetDownloadLink(c *gin.Context) {
	model, err := h.getAccessibleCV(c)
	if err != nil {
		h.replyCVError(c, err)
		return
	}

	if model.PdfKey == "" {
		Conflict(c, "pdf not ready")
		return
	}

	filename := fmt.Sprintf("cv-%d.pdf", model.ID)
	signedURL, err := h.storage.GenerateDownloadURL(c.Request.Context(), model.PdfKey, 5*time.Minute, filename)
	if err != nil {
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

// getAccessibleCV 解析路径中的 ID 并做归属校验。
// 登录用户只能访问自己的简历，游客凭 sessionId 访问无主简历。
func (h *CVHandler) getAccessibleCV(c *gin.Context) (*database.CV, error) {
	cvID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, errInvalidCVID
	}

	var model database.CV
	if err := h.db.WithContext(c.Request.Context()).First(&model, uint(cvID)).Error; err != nil {
		return nil, err
	}

	if model.UserID != nil {
		userID, ok := userIDFromContext(c)
		if !ok || userID != *model.UserID {
			return nil, errCVAccessDenied
		}
		return &model, nil
	}

	sessionID := strings.TrimSpace(c.Query("sessionId"))
	if sessionID == "" || sessionID != model.SessionID {
		return nil, errCVAccessDenied
	}
	return &model, nil
}

func (h *CVHandler) replyCVError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidCVID):
		BadRequest(c, "invalid cv id")
	case errors.Is(err, errCVAccessDenied):
		NotFound(c, "cv not found")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "cv not found")
	default:
		Internal(c, "failed to query cv")
	}
}
