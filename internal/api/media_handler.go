package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"ezycv/internal/api/middleware"
	"ezycv/internal/database"
	"ezycv/internal/images"
	"ezycv/internal/storage"
)

const (
	mediaPageLimitDefault = 20
	mediaPageLimitMax     = 100
	mediaRelatedLimit     = 8
	mediaURLTTL           = 15 * time.Minute
)

// trendingRecencyWindow 内的新资源在热度排序里获得固定加成。
const trendingRecencyWindow = 30 * 24 * time.Hour

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// MediaHandler 负责壁纸与图库照片的 API 请求。两条路由共用同一实现，按 kind 区分。
type MediaHandler struct {
	db             *gorm.DB
	storage        objectStore
	logger         *slog.Logger
	kind           string
	clamdAddr      string
	uploadMaxBytes int64
	uploadMaxFiles int
}

// NewMediaHandler 构造指定资源类型的处理器。
func NewMediaHandler(db *gorm.DB, storageClient objectStore, logger *slog.Logger, kind, clamdAddr string, uploadMaxBytes int64, uploadMaxFiles int) *MediaHandler {
	return &MediaHandler{
		db:             db,
		storage:        storageClient,
		logger:         logger,
		kind:           kind,
		clamdAddr:      clamdAddr,
		uploadMaxBytes: uploadMaxBytes,
		uploadMaxFiles: uploadMaxFiles,
	}
}

type mediaResponse struct {
	ID           uint      `json:"id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category"`
	DeviceType   string    `json:"deviceType,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	PreviewURL   string    `json:"previewUrl,omitempty"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Tags         []string  `json:"tags,omitempty"`
	Downloads    int64     `json:"downloads"`
	Likes        int64     `json:"likes"`
	Views        int64     `json:"views"`
	Featured     bool      `json:"featured"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (h *MediaHandler) newMediaResponse(c *gin.Context, m database.MediaAsset) mediaResponse {
	resp := mediaResponse{
		ID:          m.ID,
		Kind:        m.Kind,
		Title:       m.Title,
		Description: m.Description,
		Category:    m.Category,
		DeviceType:  m.DeviceType,
		Width:       m.Width,
		Height:      m.Height,
		Tags:        splitTags(m.Tags),
		Downloads:   m.Downloads,
		Likes:       m.Likes,
		Views:       m.Views,
		Featured:    m.Featured,
		CreatedAt:   m.CreatedAt,
	}

	ctx := c.Request.Context()
	if m.ThumbnailKey != "" {
		if url, err := h.storage.GeneratePresignedURL(ctx, m.ThumbnailKey, mediaURLTTL); err == nil {
			resp.ThumbnailURL = url
		}
	}
	if m.PreviewKey != "" {
		if url, err := h.storage.GeneratePresignedURL(ctx, m.PreviewKey, mediaURLTTL); err == nil {
			resp.PreviewURL = url
		}
	}
	return resp
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, ",")
}

// List 按条件分页列出资源。
// sort 可取 trending、popular、newest、random，默认 trending。
func (h *MediaHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	query := h.db.WithContext(ctx).Model(&database.MediaAsset{}).Where("kind = ?", h.kind)

	if category := strings.TrimSpace(c.Query("category")); category != "" && category != "all" {
		query = query.Where("category = ?", category)
	}
	if deviceType := strings.TrimSpace(c.Query("deviceType")); deviceType != "" && deviceType != "all" {
		query = query.Where("device_type = ?", deviceType)
	}
	if c.Query("featured") == "true" {
		query = query.Where("featured = ?", true)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		Internal(c, "failed to count media")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(mediaPageLimitDefault)))
	if limit < 1 {
		limit = mediaPageLimitDefault
	}
	if limit > mediaPageLimitMax {
		limit = mediaPageLimitMax
	}

	switch c.DefaultQuery("sort", "trending") {
	case "popular":
		query = query.Order("downloads DESC, likes DESC")
	case "newest":
		query = query.Order("created_at DESC")
	case "random":
		query = query.Order("RANDOM()")
	default:
		// 热度得分：下载 x5 + 点赞 x3 + 浏览 x0.1，近 30 天发布加 50。
		cutoff := time.Now().Add(-trendingRecencyWindow).UTC().Format("2006-01-02 15:04:05")
		query = query.Order(fmt.Sprintf(
			"(downloads * 5 + likes * 3 + views * 0.1 + CASE WHEN created_at > '%s' THEN 50 ELSE 0 END) DESC",
			cutoff,
		))
	}

	var assets []database.MediaAsset
	if err := query.Offset((page - 1) * limit).Limit(limit).Find(&assets).Error; err != nil {
		Internal(c, "failed to list media")
		return
	}

	items := make([]mediaResponse, 0, len(assets))
	for _, m := range assets {
		items = append(items, h.newMediaResponse(c, m))
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"page":       page,
		"limit":      limit,
		"total":      total,
		"totalPages": totalPages,
	})
}

// Categories 返回类目及各自的资源数量。
func (h *MediaHandler) Categories(c *gin.Context) {
	type categoryCount struct {
		Category string `json:"category"`
		Count    int64  `json:"count"`
	}

	var rows []categoryCount
	if err := h.db.WithContext(c.Request.Context()).
		Model(&database.MediaAsset{}).
		Select("category, COUNT(*) as count").
		Where("kind = ?", h.kind).
		Group("category").
		Order("count DESC").
		Scan(&rows).Error; err != nil {
		Internal(c, "failed to list categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": rows})
}

// Stats 返回该类资源的聚合统计。
func (h *MediaHandler) Stats(c *gin.Context) {
	type mediaStats struct {
		Total     int64 `json:"total"`
		Downloads int64 `json:"downloads"`
		Likes     int64 `json:"likes"`
		Views     int64 `json:"views"`
		Featured  int64 `json:"featured"`
	}

	var stats mediaStats
	row := h.db.WithContext(c.Request.Context()).
		Model(&database.MediaAsset{}).
		Select("COUNT(*), COALESCE(SUM(downloads), 0), COALESCE(SUM(likes), 0), COALESCE(SUM(views), 0), COALESCE(SUM(CASE WHEN featured THEN 1 ELSE 0 END), 0)").
		Where("kind = ?", h.kind).
		Row()
	if err := row.Scan(&stats.Total, &stats.Downloads, &stats.Likes, &stats.Views, &stats.Featured); err != nil {
		Internal(c, "failed to compute stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Related 返回同类目资源，不足时用其他类目补齐。
func (h *MediaHandler) Related(c *gin.Context) {
	asset, err := h.findAsset(c)
	if err != nil {
		h.replyMediaError(c, err)
		return
	}

	ctx := c.Request.Context()
	var related []database.MediaAsset
	if err := h.db.WithContext(ctx).
		Where("kind = ? AND category = ? AND id != ?", h.kind, asset.Category, asset.ID).
		Order("downloads DESC").
		Limit(mediaRelatedLimit).
		Find(&related).Error; err != nil {
		Internal(c, "failed to list related media")
		return
	}

	if len(related) < mediaRelatedLimit {
		exclude := make([]uint, 0, len(related)+1)
		exclude = append(exclude, asset.ID)
		for _, m := range related {
			exclude = append(exclude, m.ID)
		}

		var filler []database.MediaAsset
		if err := h.db.WithContext(ctx).
			Where("kind = ? AND id NOT IN ?", h.kind, exclude).
			Order("downloads DESC").
			Limit(mediaRelatedLimit - len(related)).
			Find(&filler).Error; err != nil {
			Internal(c, "failed to backfill related media")
			return
		}
		related = append(related, filler...)
	}

	items := make([]mediaResponse, 0, len(related))
	for _, m := range related {
		items = append(items, h.newMediaResponse(c, m))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Get 返回单个资源并累加浏览数。
func (h *MediaHandler) Get(c *gin.Context) {
	asset, err := h.findAsset(c)
	if err != nil {
		h.replyMediaError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Model(asset).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		Internal(c, "failed to record view")
		return
	}
	asset.Views++

	c.JSON(http.StatusOK, h.newMediaResponse(c, *asset))
}

// Download 累加下载数并返回限时下载链接。
func (h *MediaHandler) Download(c *gin.Context) {
	asset, err := h.findAsset(c)
	if err != nil {
		h.replyMediaError(c, err)
		return
	}

	objectKey := asset.DownloadKey
	if objectKey == "" {
		objectKey = asset.ImageKey
	}
	if objectKey == "" {
		NotFound(c, "file not available")
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Model(asset).
		UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error; err != nil {
		Internal(c, "failed to record download")
		return
	}

	filename := downloadFilename(asset)
	signedURL, err := h.storage.GenerateDownloadURL(ctx, objectKey, mediaURLTTL, filename)
	if err != nil {
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":       signedURL,
		"downloads": asset.Downloads + 1,
	})
}

// ProxyDownload 经服务端转发下载，用于不方便直连对象存储的客户端。
func (h *MediaHandler) ProxyDownload(c *gin.Context) {
	asset, err := h.findAsset(c)
	if err != nil {
		h.replyMediaError(c, err)
		return
	}

	objectKey := asset.DownloadKey
	if objectKey == "" {
		objectKey = asset.ImageKey
	}
	if objectKey == "" {
		NotFound(c, "file not available")
		return
	}

	ctx := c.Request.Context()
	obj, err := h.storage.GetObject(ctx, objectKey)
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer obj.Close()

	if err := h.db.WithContext(ctx).Model(asset).
		UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error; err != nil {
		Internal(c, "failed to record download")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadFilename(asset)))
	c.Header("Content-Type", "image/jpeg")
	if _, err := io.Copy(c.Writer, obj); err != nil {
		if storage.IsNoSuchKey(err) {
			c.Status(http.StatusNotFound)
			return
		}
		h.loggerFromContext(c).Error("proxy download failed", slog.Any("error", err))
	}
}

func downloadFilename(asset *database.MediaAsset) string {
	name := strings.TrimSpace(asset.Title)
	if name == "" {
		name = fmt.Sprintf("%s-%d", asset.Kind, asset.ID)
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, name)
	if name == "" {
		name = fmt.Sprintf("%s-%d", asset.Kind, asset.ID)
	}
	return name + ".jpg"
}

// Like 累加点赞数。
func (h *MediaHandler) Like(c *gin.Context) {
	asset, err := h.findAsset(c)
	if err != nil {
		h.replyMediaError(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(asset).
		UpdateColumn("likes", gorm.Expr("likes + 1")).Error; err != nil {
		Internal(c, "failed to record like")
		return
	}

	c.JSON(http.StatusOK, gin.H{"likes": asset.Likes + 1})
}

// Upload 处理受保护的批量图片上传，生成各尺寸变体后入库。
func (h *MediaHandler) Upload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "invalid multipart form")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		BadRequest(c, "missing files")
		return
	}
	if len(files) > h.uploadMaxFiles {
		BadRequest(c, fmt.Sprintf("too many files, limit is %d", h.uploadMaxFiles))
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	category := strings.TrimSpace(c.PostForm("category"))
	if category == "" {
		category = "uncategorized"
	}
	deviceType := strings.TrimSpace(c.PostForm("deviceType"))
	description := strings.TrimSpace(c.PostForm("description"))
	tags := joinTags(strings.Split(c.PostForm("tags"), ","))
	featured := c.PostForm("featured") == "true"

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	created := make([]mediaResponse, 0, len(files))
	for i, file := range files {
		if file.Size > h.uploadMaxBytes {
			BadRequest(c, fmt.Sprintf("file %s exceeds size limit", file.Filename))
			return
		}

		data, contentType, err := readUpload(file)
		if err != nil {
			Internal(c, "failed to read file")
			return
		}
		if !allowedImageTypes[contentType] {
			BadRequest(c, fmt.Sprintf("unsupported file type %s", contentType))
			return
		}

		if err := h.scanForViruses(data); err != nil {
			if errors.Is(err, errMaliciousFile) {
				BadRequest(c, "malicious file detected")
				return
			}
			logger.Error("scan file failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}

		variants, err := images.Build(data, deviceType)
		if err != nil {
			BadRequest(c, fmt.Sprintf("cannot process %s: image is corrupt or unsupported", file.Filename))
			return
		}

		base := fmt.Sprintf("media/%s/%s", h.kind, uuid.NewString())
		asset := database.MediaAsset{
			Kind:         h.kind,
			Title:        uploadTitle(title, file.Filename, i, len(files)),
			Description:  description,
			Category:     category,
			DeviceType:   deviceType,
			ImageKey:     base + "/original",
			ThumbnailKey: base + "/thumb.jpg",
			PreviewKey:   base + "/preview.jpg",
			DownloadKey:  base + "/download.jpg",
			Width:        variants.Width,
			Height:       variants.Height,
			FileSize:     file.Size,
			Tags:         tags,
			Featured:     featured,
			UploadedBy:   &userID,
		}

		uploads := []struct {
			key         string
			data        []byte
			contentType string
		}{
			{asset.ImageKey, data, contentType},
			{asset.ThumbnailKey, variants.Thumbnail, "image/jpeg"},
			{asset.PreviewKey, variants.Preview, "image/jpeg"},
			{asset.DownloadKey, variants.Download, "image/jpeg"},
		}
		for _, u := range uploads {
			if err := h.storage.UploadBytes(ctx, u.key, u.data, u.contentType); err != nil {
				logger.Error("upload variant failed", slog.String("object_key", u.key), slog.Any("error", err))
				Internal(c, "failed to upload file")
				return
			}
		}

		if err := h.db.WithContext(ctx).Create(&asset).Error; err != nil {
			logger.Error("create media record failed", slog.Any("error", err))
			Internal(c, "failed to save media")
			return
		}
		created = append(created, h.newMediaResponse(c, asset))
	}

	logger.Info("media uploaded", slog.String("kind", h.kind), slog.Int("count", len(created)))
	c.JSON(http.StatusCreated, gin.H{"items": created})
}

type createMediaRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category" binding:"required"`
	DeviceType  string   `json:"deviceType"`
	ImageKey    string   `json:"imageKey" binding:"required"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Tags        []string `json:"tags"`
	Featured    bool     `json:"featured"`
}

// Create 登记一条已经在对象存储中的资源，管理工具批量导入用。
func (h *MediaHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	asset := database.MediaAsset{
		Kind:        h.kind,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		DeviceType:  req.DeviceType,
		ImageKey:    req.ImageKey,
		Width:       req.Width,
		Height:      req.Height,
		Tags:        joinTags(req.Tags),
		Featured:    req.Featured,
		UploadedBy:  &userID,
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&asset).Error; err != nil {
		Internal(c, "failed to save media")
		return
	}

	c.JSON(http.StatusCreated, h.newMediaResponse(c, asset))
}

// Delete 删除资源记录及全部对象存储变体，仅上传者本人可删。
func (h *MediaHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	asset, err := h.findAsset(c)
	if err != nil {
		h.replyMediaError(c, err)
		return
	}

	if asset.UploadedBy == nil || *asset.UploadedBy != userID {
		Forbidden(c, "access denied")
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Delete(&database.MediaAsset{}, asset.ID).Error; err != nil {
		Internal(c, "failed to delete media")
		return
	}

	if asset.ImageKey != "" {
		if idx := strings.LastIndex(asset.ImageKey, "/"); idx > 0 {
			if err := h.storage.DeletePrefix(ctx, asset.ImageKey[:idx+1]); err != nil {
				h.loggerFromContext(c).Error("delete media objects failed", slog.Any("error", err))
			}
		}
	}

	c.Status(http.StatusNoContent)
}

var errInvalidMediaID = errors.New("invalid media id")
var errMaliciousFile = errors.New("malicious file detected")

func (h *MediaHandler) findAsset(c *gin.Context) (*database.MediaAsset, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, errInvalidMediaID
	}

	var asset database.MediaAsset
	if err := h.db.WithContext(c.Request.Context()).
		Where("kind = ?", h.kind).
		First(&asset, uint(id)).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (h *MediaHandler) replyMediaError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidMediaID):
		BadRequest(c, "invalid media id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, h.kind+" not found")
	default:
		Internal(c, "failed to query media")
	}
}

// scanForViruses 把文件内容送 clamd 扫描。未配置 clamd 时跳过。
func (h *MediaHandler) scanForViruses(data []byte) error {
	if h.clamdAddr == "" {
		return nil
	}

	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(bytes.NewReader(data), abortChan)
	if err != nil {
		return err
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return errMaliciousFile
		}
	}
	return nil
}

func readUpload(file *multipart.FileHeader) ([]byte, string, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", err
	}

	return data, http.DetectContentType(data), nil
}

// uploadTitle 优先用表单提交的标题，多文件时加序号后缀区分；
// 未提交标题时从文件名推导。
func uploadTitle(title, filename string, index, total int) string {
	if title == "" {
		return titleFromFilename(filename)
	}
	if total > 1 {
		return fmt.Sprintf("%s (%d)", title, index+1)
	}
	return title
}

func titleFromFilename(filename string) string {
	name := filename
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.TrimSpace(name)
}

func (h *MediaHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
