package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MediaKind 对应服务端的两个媒体接口前缀。
type MediaKind string

const (
	KindWallpaper MediaKind = "wallpapers"
	KindPhoto     MediaKind = "photos"
)

// MediaAsset 是一张壁纸或图库照片。
type MediaAsset struct {
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

// MediaPage 是分页列表的返回值。
type MediaPage struct {
	Items      []MediaAsset `json:"items"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	Total      int64        `json:"total"`
	TotalPages int          `json:"totalPages"`
}

// MediaListOptions 是列表接口的筛选条件，零值表示不筛选。
type MediaListOptions struct {
	Category   string
	DeviceType string
	Featured   bool
	Search     string
	Sort       string
	Page       int
	Limit      int
}

// CategoryCount 是分类及其素材数量。
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// MediaStats 是某类媒体的汇总计数。
type MediaStats struct {
	Total     int64 `json:"total"`
	Downloads int64 `json:"downloads"`
	Likes     int64 `json:"likes"`
	Views     int64 `json:"views"`
	Featured  int64 `json:"featured"`
}

// UploadFile 是一次上传中的单个文件。
type UploadFile struct {
	Name string
	Data []byte
}

// UploadOptions 是上传时附带的元数据，零值字段不提交。
// Title 作用于整批文件，多文件时服务端加序号后缀。
type UploadOptions struct {
	Title       string
	Description string
	Category    string
	DeviceType  string
	Tags        []string
	Featured    bool
}

// ListMedia 分页列出壁纸或图库照片。
func (c *Client) ListMedia(ctx context.Context, kind MediaKind, opts MediaListOptions) (MediaPage, error) {
	req := c.request(ctx)
	if opts.Category != "" {
		req.SetQueryParam("category", opts.Category)
	}
	if opts.DeviceType != "" {
		req.SetQueryParam("deviceType", opts.DeviceType)
	}
	if opts.Featured {
		req.SetQueryParam("featured", "true")
	}
	if opts.Search != "" {
		req.SetQueryParam("search", opts.Search)
	}
	if opts.Sort != "" {
		req.SetQueryParam("sort", opts.Sort)
	}
	if opts.Page > 0 {
		req.SetQueryParam("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(opts.Limit))
	}

	resp, err := req.Get("/v1/" + string(kind))
	if err != nil {
		return MediaPage{}, fmt.Errorf("list media request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return MediaPage{}, err
	}

	var page MediaPage
	if err := decode(resp.Body(), &page); err != nil {
		return MediaPage{}, err
	}
	return page, nil
}

// GetMedia 取回单个素材，服务端会累计浏览数。
func (c *Client) GetMedia(ctx context.Context, kind MediaKind, id uint) (MediaAsset, error) {
	resp, err := c.request(ctx).Get(fmt.Sprintf("/v1/%s/%d", kind, id))
	if err != nil {
		return MediaAsset{}, fmt.Errorf("get media request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return MediaAsset{}, err
	}

	var asset MediaAsset
	if err := decode(resp.Body(), &asset); err != nil {
		return MediaAsset{}, err
	}
	return asset, nil
}

// MediaCategories 列出分类及数量。
func (c *Client) MediaCategories(ctx context.Context, kind MediaKind) ([]CategoryCount, error) {
	resp, err := c.request(ctx).Get(fmt.Sprintf("/v1/%s/categories", kind))
	if err != nil {
		return nil, fmt.Errorf("media categories request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return nil, err
	}

	var result struct {
		Categories []CategoryCount `json:"categories"`
	}
	if err := decode(resp.Body(), &result); err != nil {
		return nil, err
	}
	return result.Categories, nil
}

// GetMediaStats 返回某类媒体的汇总计数。
func (c *Client) GetMediaStats(ctx context.Context, kind MediaKind) (MediaStats, error) {
	resp, err := c.request(ctx).Get(fmt.Sprintf("/v1/%s/stats", kind))
	if err != nil {
		return MediaStats{}, fmt.Errorf("media stats request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return MediaStats{}, err
	}

	var stats MediaStats
	if err := decode(resp.Body(), &stats); err != nil {
		return MediaStats{}, err
	}
	return stats, nil
}

// RelatedMedia 列出同分类的相关素材。
func (c *Client) RelatedMedia(ctx context.Context, kind MediaKind, id uint) ([]MediaAsset, error) {
	resp, err := c.request(ctx).Get(fmt.Sprintf("/v1/%s/%d/related", kind, id))
	if err != nil {
		return nil, fmt.Errorf("related media request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return nil, err
	}

	var result struct {
		Items []MediaAsset `json:"items"`
	}
	if err := decode(resp.Body(), &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// DownloadMedia 登记一次下载并返回签名下载链接和最新下载数。
func (c *Client) DownloadMedia(ctx context.Context, kind MediaKind, id uint) (string, int64, error) {
	resp, err := c.request(ctx).Post(fmt.Sprintf("/v1/%s/%d/download", kind, id))
	if err != nil {
		return "", 0, fmt.Errorf("download media request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return "", 0, err
	}

	var result struct {
		URL       string `json:"url"`
		Downloads int64  `json:"downloads"`
	}
	if err := decode(resp.Body(), &result); err != nil {
		return "", 0, err
	}
	return result.URL, result.Downloads, nil
}

// FetchMedia 通过服务端代理把素材原图写入 w。
func (c *Client) FetchMedia(ctx context.Context, kind MediaKind, id uint, w io.Writer) error {
	resp, err := c.request(ctx).
		SetDoNotParseResponse(true).
		Get(fmt.Sprintf("/v1/%s/%d/proxy-download", kind, id))
	if err != nil {
		return fmt.Errorf("fetch media request: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(body, 4096))
		return &APIError{Status: resp.StatusCode(), Message: errorMessage(data)}
	}
	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("write media: %w", err)
	}
	return nil
}

// LikeMedia 点赞并返回最新点赞数。
func (c *Client) LikeMedia(ctx context.Context, kind MediaKind, id uint) (int64, error) {
	resp, err := c.request(ctx).Post(fmt.Sprintf("/v1/%s/%d/like", kind, id))
	if err != nil {
		return 0, fmt.Errorf("like media request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return 0, err
	}

	var result struct {
		Likes int64 `json:"likes"`
	}
	if err := decode(resp.Body(), &result); err != nil {
		return 0, err
	}
	return result.Likes, nil
}

// UploadMedia 上传一批图片，需要登录态。
func (c *Client) UploadMedia(ctx context.Context, kind MediaKind, opts UploadOptions, files []UploadFile) ([]MediaAsset, error) {
	form := map[string]string{}
	if opts.Title != "" {
		form["title"] = opts.Title
	}
	if opts.Description != "" {
		form["description"] = opts.Description
	}
	if opts.Category != "" {
		form["category"] = opts.Category
	}
	if opts.DeviceType != "" {
		form["deviceType"] = opts.DeviceType
	}
	if len(opts.Tags) > 0 {
		form["tags"] = strings.Join(opts.Tags, ",")
	}
	if opts.Featured {
		form["featured"] = "true"
	}

	req := c.request(ctx)
	if len(form) > 0 {
		req.SetFormData(form)
	}
	for _, f := range files {
		req.SetFileReader("files", f.Name, bytes.NewReader(f.Data))
	}

	resp, err := req.Post(fmt.Sprintf("/v1/%s/upload", kind))
	if err != nil {
		return nil, fmt.Errorf("upload media request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return nil, err
	}

	var result struct {
		Items []MediaAsset `json:"items"`
	}
	if err := decode(resp.Body(), &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// DeleteMedia 删除自己上传的素材。
func (c *Client) DeleteMedia(ctx context.Context, kind MediaKind, id uint) error {
	resp, err := c.request(ctx).Delete(fmt.Sprintf("/v1/%s/%d", kind, id))
	if err != nil {
		return fmt.Errorf("delete media request: %w", err)
	}
	return c.mapError(resp, false)
}
