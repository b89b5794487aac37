package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ezycv/internal/cv"
)

// CV 是服务端保存的一份简历。
type CV struct {
	ID        uint        `json:"id"`
	Template  string      `json:"template"`
	Content   cv.Document `json:"content"`
	SessionID string      `json:"sessionId,omitempty"`
	Downloads int64       `json:"downloads"`
	PdfReady  bool        `json:"pdfReady"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// SiteStats 是服务端统计接口的返回值。
// 字段为指针：缺失的指标保持 nil，展示层据此退回本地计数。
type SiteStats struct {
	CVsCreated     *int64 `json:"cvsCreated"`
	TotalDownloads *int64 `json:"totalDownloads"`
	Wallpapers     *int64 `json:"wallpapers"`
	StockPhotos    *int64 `json:"stockPhotos"`
}

// DownloadTask 是 PDF 生成请求的受理回执。
type DownloadTask struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// SaveCV 保存一份新简历。游客必须带 sessionID。
func (c *Client) SaveCV(ctx context.Context, template string, doc cv.Document, sessionID string) (CV, error) {
	body := map[string]any{"template": template, "content": doc}
	if sessionID != "" {
		body["sessionId"] = sessionID
	}

	resp, err := c.request(ctx).SetBody(body).Post("/v1/cv")
	if err != nil {
		return CV{}, fmt.Errorf("save cv request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return CV{}, err
	}

	var saved CV
	if err := decode(resp.Body(), &saved); err != nil {
		return CV{}, err
	}
	return saved, nil
}

// ListCVs 列出当前用户（或指定游客会话）的简历。
func (c *Client) ListCVs(ctx context.Context, sessionID string) ([]CV, error) {
	req := c.request(ctx)
	if sessionID != "" {
		req.SetQueryParam("sessionId", sessionID)
	}

	resp, err := req.Get("/v1/cv")
	if err != nil {
		return nil, fmt.Errorf("list cvs request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return nil, err
	}

	var items []CV
	if err := decode(resp.Body(), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetCV 取回一份简历。
func (c *Client) GetCV(ctx context.Context, id uint, sessionID string) (CV, error) {
	req := c.request(ctx)
	if sessionID != "" {
		req.SetQueryParam("sessionId", sessionID)
	}

	resp, err := req.Get(fmt.Sprintf("/v1/cv/%d", id))
	if err != nil {
		return CV{}, fmt.Errorf("get cv request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return CV{}, err
	}

	var item CV
	if err := decode(resp.Body(), &item); err != nil {
		return CV{}, err
	}
	return item, nil
}

// UpdateCV 覆盖保存一份简历，已生成的 PDF 随之失效。
func (c *Client) UpdateCV(ctx context.Context, id uint, template string, doc cv.Document, sessionID string) (CV, error) {
	req := c.request(ctx).SetBody(map[string]any{"template": template, "content": doc})
	if sessionID != "" {
		req.SetQueryParam("sessionId", sessionID)
	}

	resp, err := req.Put(fmt.Sprintf("/v1/cv/%d", id))
	if err != nil {
		return CV{}, fmt.Errorf("update cv request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return CV{}, err
	}

	var item CV
	if err := decode(resp.Body(), &item); err != nil {
		return CV{}, err
	}
	return item, nil
}

// DeleteCV 删除一份简历。
func (c *Client) DeleteCV(ctx context.Context, id uint, sessionID string) error {
	req := c.request(ctx)
	if sessionID != "" {
		req.SetQueryParam("sessionId", sessionID)
	}

	resp, err := req.Delete(fmt.Sprintf("/v1/cv/%d", id))
	if err != nil {
		return fmt.Errorf("delete cv request: %w", err)
	}
	return c.mapError(resp, false)
}

// Templates 返回服务端的模板目录。
func (c *Client) Templates(ctx context.Context) ([]cv.Template, error) {
	resp, err := c.request(ctx).Get("/v1/cv/templates")
	if err != nil {
		return nil, fmt.Errorf("templates request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return nil, err
	}

	var result struct {
		Templates []cv.Template `json:"templates"`
	}
	if err := decode(resp.Body(), &result); err != nil {
		return nil, err
	}
	return result.Templates, nil
}

// LiveStats 返回全站实时统计。
func (c *Client) LiveStats(ctx context.Context) (SiteStats, error) {
	resp, err := c.request(ctx).Get("/v1/cv/stats/live")
	if err != nil {
		return SiteStats{}, fmt.Errorf("live stats request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return SiteStats{}, err
	}

	var stats SiteStats
	if err := decode(resp.Body(), &stats); err != nil {
		return SiteStats{}, err
	}
	return stats, nil
}

// BackupCV 把草稿上传到服务端备份。
func (c *Client) BackupCV(ctx context.Context, sessionID string, doc cv.Document) error {
	body := map[string]any{"sessionId": sessionID, "content": doc}

	resp, err := c.request(ctx).SetBody(body).Post("/v1/cv/backup")
	if err != nil {
		return fmt.Errorf("backup request: %w", err)
	}
	return c.mapError(resp, false)
}

// RestoreBackup 取回之前上传的草稿备份。
func (c *Client) RestoreBackup(ctx context.Context, sessionID string) (cv.Document, error) {
	resp, err := c.request(ctx).Get("/v1/cv/backup/" + sessionID)
	if err != nil {
		return cv.Document{}, fmt.Errorf("restore backup request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return cv.Document{}, err
	}

	var doc cv.Document
	if err := decode(resp.Body(), &doc); err != nil {
		return cv.Document{}, err
	}
	return doc, nil
}

// RequestDownload 请求生成 PDF，实际生成在后台完成。
func (c *Client) RequestDownload(ctx context.Context, id uint, sessionID string) (DownloadTask, error) {
	req := c.request(ctx)
	if sessionID != "" {
		req.SetQueryParam("sessionId", sessionID)
	}

	resp, err := req.Post(fmt.Sprintf("/v1/cv/%d/download", id))
	if err != nil {
		return DownloadTask{}, fmt.Errorf("request download: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return DownloadTask{}, err
	}

	var task DownloadTask
	if err := decode(resp.Body(), &task); err != nil {
		return DownloadTask{}, err
	}
	return task, nil
}

// DownloadLink 返回已生成 PDF 的签名下载链接。
func (c *Client) DownloadLink(ctx context.Context, id uint, sessionID string) (string, error) {
	req := c.request(ctx)
	if sessionID != "" {
		req.SetQueryParam("sessionId", sessionID)
	}

	resp, err := req.Get(fmt.Sprintf("/v1/cv/%d/download-link", id))
	if err != nil {
		return "", fmt.Errorf("download link request: %w", err)
	}
	if err := c.mapError(resp, false); err != nil {
		return "", err
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := decode(resp.Body(), &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// FetchPDF 把已生成的 PDF 写入 w。
func (c *Client) FetchPDF(ctx context.Context, id uint, sessionID string, w io.Writer) error {
	url, err := c.DownloadLink(ctx, id, sessionID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build pdf request: %w", err)
	}
	resp, err := c.http.GetClient().Do(req)
	if err != nil {
		return fmt.Errorf("fetch pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: "pdf download failed"}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
