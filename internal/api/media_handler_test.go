package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ezycv/internal/database"
)

func newTestMediaHandler(t *testing.T, kind string) (*MediaHandler, *fakeObjectStore) {
	t.Helper()
	store := newFakeObjectStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewMediaHandler(newTestDB(t), store, logger, kind, "", 10<<20, 5)
	return h, store
}

func seedMediaAsset(t *testing.T, db *gorm.DB, asset database.MediaAsset) database.MediaAsset {
	t.Helper()
	if asset.Kind == "" {
		asset.Kind = database.MediaKindWallpaper
	}
	if err := db.Create(&asset).Error; err != nil {
		t.Fatalf("seed media asset: %v", err)
	}
	return asset
}

type mediaListPage struct {
	Items      []mediaResponse `json:"items"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	Total      int64           `json:"total"`
	TotalPages int64           `json:"totalPages"`
}

func decodeMediaPage(t *testing.T, w *httptest.ResponseRecorder) mediaListPage {
	t.Helper()
	var page mediaListPage
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	return page
}

func TestMediaListFiltersByKind(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	seedMediaAsset(t, h.db, database.MediaAsset{Kind: database.MediaKindWallpaper, Title: "Dunes", Category: "nature"})
	seedMediaAsset(t, h.db, database.MediaAsset{Kind: database.MediaKindPhoto, Title: "Office", Category: "business"})

	c, w := newPlainContext(t, http.MethodGet, "/v1/wallpapers?sort=newest")
	h.List(c)
	requireStatus(t, w, http.StatusOK)

	page := decodeMediaPage(t, w)
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("total = %d, items = %d, want 1 wallpaper", page.Total, len(page.Items))
	}
	if page.Items[0].Title != "Dunes" {
		t.Fatalf("title = %q", page.Items[0].Title)
	}
}

func TestMediaListPopularSort(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "Quiet", Downloads: 1})
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "Hit", Downloads: 100})
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "Mid", Downloads: 10})

	c, w := newPlainContext(t, http.MethodGet, "/v1/wallpapers?sort=popular")
	h.List(c)
	requireStatus(t, w, http.StatusOK)

	page := decodeMediaPage(t, w)
	if len(page.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(page.Items))
	}
	if page.Items[0].Title != "Hit" || page.Items[2].Title != "Quiet" {
		t.Fatalf("order = %q, %q, %q", page.Items[0].Title, page.Items[1].Title, page.Items[2].Title)
	}
}

func TestMediaListSearchMatchesTags(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "Sunset", Tags: "ocean,orange"})
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "Forest", Tags: "green,trees"})

	c, w := newPlainContext(t, http.MethodGet, "/v1/wallpapers?search=OCEAN&sort=newest")
	h.List(c)
	requireStatus(t, w, http.StatusOK)

	page := decodeMediaPage(t, w)
	if len(page.Items) != 1 || page.Items[0].Title != "Sunset" {
		t.Fatalf("items = %+v", page.Items)
	}
}

func TestMediaListPagination(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	for i := 0; i < 5; i++ {
		seedMediaAsset(t, h.db, database.MediaAsset{Title: fmt.Sprintf("W%d", i)})
	}

	c, w := newPlainContext(t, http.MethodGet, "/v1/wallpapers?sort=newest&page=2&limit=2")
	h.List(c)
	requireStatus(t, w, http.StatusOK)

	page := decodeMediaPage(t, w)
	if page.Page != 2 || page.Limit != 2 {
		t.Fatalf("page/limit = %d/%d", page.Page, page.Limit)
	}
	if page.Total != 5 || page.TotalPages != 3 {
		t.Fatalf("total = %d, totalPages = %d", page.Total, page.TotalPages)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(page.Items))
	}
}

func TestMediaListFeaturedFilter(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "Plain"})
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "Star", Featured: true})

	c, w := newPlainContext(t, http.MethodGet, "/v1/wallpapers?featured=true&sort=newest")
	h.List(c)
	requireStatus(t, w, http.StatusOK)

	page := decodeMediaPage(t, w)
	if len(page.Items) != 1 || page.Items[0].Title != "Star" {
		t.Fatalf("items = %+v", page.Items)
	}
}

func TestMediaCategories(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "A", Category: "nature"})
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "B", Category: "nature"})
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "C", Category: "abstract"})

	c, w := newPlainContext(t, http.MethodGet, "/v1/wallpapers/categories")
	h.Categories(c)
	requireStatus(t, w, http.StatusOK)

	var resp struct {
		Categories []struct {
			Category string `json:"category"`
			Count    int64  `json:"count"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(resp.Categories))
	}
	if resp.Categories[0].Category != "nature" || resp.Categories[0].Count != 2 {
		t.Fatalf("first category = %+v", resp.Categories[0])
	}
}

func TestMediaStatsAggregates(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindPhoto)
	seedMediaAsset(t, h.db, database.MediaAsset{Kind: database.MediaKindPhoto, Downloads: 3, Likes: 2, Views: 10, Featured: true})
	seedMediaAsset(t, h.db, database.MediaAsset{Kind: database.MediaKindPhoto, Downloads: 4, Likes: 1, Views: 5})
	seedMediaAsset(t, h.db, database.MediaAsset{Kind: database.MediaKindWallpaper, Downloads: 99})

	c, w := newPlainContext(t, http.MethodGet, "/v1/photos/stats")
	h.Stats(c)
	requireStatus(t, w, http.StatusOK)

	var stats struct {
		Total     int64 `json:"total"`
		Downloads int64 `json:"downloads"`
		Likes     int64 `json:"likes"`
		Views     int64 `json:"views"`
		Featured  int64 `json:"featured"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Total != 2 || stats.Downloads != 7 || stats.Likes != 3 || stats.Views != 15 || stats.Featured != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestMediaGetIncrementsViews(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	asset := seedMediaAsset(t, h.db, database.MediaAsset{Title: "Peak", Views: 4})

	c, w := newPlainContext(t, http.MethodGet, fmt.Sprintf("/v1/wallpapers/%d", asset.ID))
	setPathParam(c, "id", fmt.Sprint(asset.ID))
	h.Get(c)
	requireStatus(t, w, http.StatusOK)

	var resp mediaResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Views != 5 {
		t.Fatalf("views = %d, want 5", resp.Views)
	}

	var stored database.MediaAsset
	if err := h.db.First(&stored, asset.ID).Error; err != nil {
		t.Fatalf("reload asset: %v", err)
	}
	if stored.Views != 5 {
		t.Fatalf("stored views = %d, want 5", stored.Views)
	}
}

func TestMediaGetWrongKind(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	asset := seedMediaAsset(t, h.db, database.MediaAsset{Kind: database.MediaKindPhoto, Title: "Desk"})

	c, w := newPlainContext(t, http.MethodGet, fmt.Sprintf("/v1/wallpapers/%d", asset.ID))
	setPathParam(c, "id", fmt.Sprint(asset.ID))
	h.Get(c)
	requireStatus(t, w, http.StatusNotFound)
}

func TestMediaDownloadFallsBackToImageKey(t *testing.T) {
	h, store := newTestMediaHandler(t, database.MediaKindWallpaper)
	asset := seedMediaAsset(t, h.db, database.MediaAsset{Title: "Lake", ImageKey: "media/wallpaper/x/original", Downloads: 2})

	c, w := newPlainContext(t, http.MethodGet, fmt.Sprintf("/v1/wallpapers/%d/download", asset.ID))
	setPathParam(c, "id", fmt.Sprint(asset.ID))
	h.Download(c)
	requireStatus(t, w, http.StatusOK)

	var resp struct {
		URL       string `json:"url"`
		Downloads int64  `json:"downloads"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Downloads != 3 {
		t.Fatalf("downloads = %d, want 3", resp.Downloads)
	}
	if len(store.downloadVisits) != 1 || store.downloadVisits[0] != "media/wallpaper/x/original" {
		t.Fatalf("signed keys = %v", store.downloadVisits)
	}
}

func TestMediaDownloadWithoutFile(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	asset := seedMediaAsset(t, h.db, database.MediaAsset{Title: "Ghost"})

	c, w := newPlainContext(t, http.MethodGet, fmt.Sprintf("/v1/wallpapers/%d/download", asset.ID))
	setPathParam(c, "id", fmt.Sprint(asset.ID))
	h.Download(c)
	requireStatus(t, w, http.StatusNotFound)
}

func TestMediaProxyDownloadStreamsObject(t *testing.T) {
	h, store := newTestMediaHandler(t, database.MediaKindWallpaper)
	asset := seedMediaAsset(t, h.db, database.MediaAsset{Title: "City Night", DownloadKey: "media/wallpaper/y/download.jpg"})
	store.objects["media/wallpaper/y/download.jpg"] = []byte("jpeg-bytes")

	c, w := newPlainContext(t, http.MethodGet, fmt.Sprintf("/v1/wallpapers/%d/file", asset.ID))
	setPathParam(c, "id", fmt.Sprint(asset.ID))
	h.ProxyDownload(c)
	requireStatus(t, w, http.StatusOK)
	if w.Body.String() != "jpeg-bytes" {
		t.Fatalf("body = %q", w.Body.String())
	}
	if disp := w.Header().Get("Content-Disposition"); !strings.Contains(disp, "City-Night.jpg") {
		t.Fatalf("content-disposition = %q", disp)
	}
}

func TestMediaLike(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	asset := seedMediaAsset(t, h.db, database.MediaAsset{Title: "Aurora", Likes: 9})

	c, w := newPlainContext(t, http.MethodPost, fmt.Sprintf("/v1/wallpapers/%d/like", asset.ID))
	setPathParam(c, "id", fmt.Sprint(asset.ID))
	h.Like(c)
	requireStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"likes":10`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newUploadContext(t *testing.T, fields map[string]string, filename string, data []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := mw.CreateFormFile("files", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/v1/wallpapers/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.Request = req
	return c, w
}

func TestMediaUploadCreatesAssetAndVariants(t *testing.T) {
	h, store := newTestMediaHandler(t, database.MediaKindWallpaper)

	c, w := newUploadContext(t, map[string]string{
		"category": "nature",
		"tags":     "sky, blue",
	}, "sunset-beach.png", pngBytes(t))
	c.Set("userID", uint(7))
	h.Upload(c)
	requireStatus(t, w, http.StatusCreated)

	var resp struct {
		Items []mediaResponse `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(resp.Items))
	}
	if resp.Items[0].Title != "sunset beach" {
		t.Fatalf("title = %q, want derived from filename", resp.Items[0].Title)
	}
	if resp.Items[0].Width != 10 || resp.Items[0].Height != 10 {
		t.Fatalf("dimensions = %dx%d, want 10x10", resp.Items[0].Width, resp.Items[0].Height)
	}
	if got := len(store.objects); got != 4 {
		t.Fatalf("stored objects = %d, want original + 3 variants", got)
	}

	var stored database.MediaAsset
	if err := h.db.Where("kind = ?", database.MediaKindWallpaper).First(&stored).Error; err != nil {
		t.Fatalf("asset not persisted: %v", err)
	}
	if stored.UploadedBy == nil || *stored.UploadedBy != 7 {
		t.Fatalf("uploadedBy = %v, want 7", stored.UploadedBy)
	}
	if stored.Category != "nature" || stored.Tags != "sky,blue" {
		t.Fatalf("category/tags = %q/%q", stored.Category, stored.Tags)
	}
}

func TestMediaUploadUsesSubmittedTitle(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)

	c, w := newUploadContext(t, map[string]string{
		"title": "Sunset Over Alps",
	}, "IMG_0042.png", pngBytes(t))
	c.Set("userID", uint(7))
	h.Upload(c)
	requireStatus(t, w, http.StatusCreated)

	var stored database.MediaAsset
	if err := h.db.Where("kind = ?", database.MediaKindWallpaper).First(&stored).Error; err != nil {
		t.Fatalf("asset not persisted: %v", err)
	}
	if stored.Title != "Sunset Over Alps" {
		t.Fatalf("title = %q, want the submitted title, not one derived from the filename", stored.Title)
	}
}

func TestUploadTitleNumbersMultipleFiles(t *testing.T) {
	cases := []struct {
		title    string
		filename string
		index    int
		total    int
		want     string
	}{
		{"Sunset Over Alps", "IMG_0042.png", 0, 1, "Sunset Over Alps"},
		{"Sunset Over Alps", "IMG_0042.png", 0, 3, "Sunset Over Alps (1)"},
		{"Sunset Over Alps", "IMG_0043.png", 2, 3, "Sunset Over Alps (3)"},
		{"", "snow-peak_4k.png", 1, 3, "snow peak 4k"},
	}
	for _, tc := range cases {
		if got := uploadTitle(tc.title, tc.filename, tc.index, tc.total); got != tc.want {
			t.Errorf("uploadTitle(%q, %q, %d, %d) = %q, want %q", tc.title, tc.filename, tc.index, tc.total, got, tc.want)
		}
	}
}

func TestMediaUploadRejectsNonImage(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)

	c, w := newUploadContext(t, nil, "notes.txt", []byte("plain text, not an image"))
	c.Set("userID", uint(7))
	h.Upload(c)
	requireStatus(t, w, http.StatusBadRequest)
	if !strings.Contains(w.Body.String(), "unsupported file type") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestMediaUploadRequiresAuth(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	c, w := newUploadContext(t, nil, "a.png", pngBytes(t))
	h.Upload(c)
	requireStatus(t, w, http.StatusUnauthorized)
}

func TestMediaDeleteOwnerOnly(t *testing.T) {
	h, store := newTestMediaHandler(t, database.MediaKindWallpaper)
	ownerID := uint(7)
	asset := seedMediaAsset(t, h.db, database.MediaAsset{
		Title:      "Mine",
		ImageKey:   "media/wallpaper/z/original",
		UploadedBy: &ownerID,
	})

	c, w := newPlainContext(t, http.MethodDelete, fmt.Sprintf("/v1/wallpapers/%d", asset.ID))
	c.Set("userID", uint(8))
	setPathParam(c, "id", fmt.Sprint(asset.ID))
	h.Delete(c)
	requireStatus(t, w, http.StatusForbidden)

	c, w = newPlainContext(t, http.MethodDelete, fmt.Sprintf("/v1/wallpapers/%d", asset.ID))
	c.Set("userID", ownerID)
	setPathParam(c, "id", fmt.Sprint(asset.ID))
	h.Delete(c)
	c.Writer.WriteHeaderNow()
	requireStatus(t, w, http.StatusNoContent)

	var count int64
	h.db.Model(&database.MediaAsset{}).Where("id = ?", asset.ID).Count(&count)
	if count != 0 {
		t.Fatal("asset should be deleted")
	}
	if len(store.deletedPrefix) != 1 || store.deletedPrefix[0] != "media/wallpaper/z/" {
		t.Fatalf("deleted prefixes = %v", store.deletedPrefix)
	}
}

func TestMediaCreateRegistersExistingObject(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindPhoto)

	c, w := newJSONContext(t, http.MethodPost, "/v1/photos",
		`{"title":"Team Meeting","category":"business","imageKey":"media/photo/import/1.jpg","width":1920,"height":1080,"tags":["office","people"]}`)
	c.Set("userID", uint(3))
	h.Create(c)
	requireStatus(t, w, http.StatusCreated)

	var stored database.MediaAsset
	if err := h.db.Where("kind = ?", database.MediaKindPhoto).First(&stored).Error; err != nil {
		t.Fatalf("asset not persisted: %v", err)
	}
	if stored.Tags != "office,people" {
		t.Fatalf("tags = %q", stored.Tags)
	}
}

func TestMediaRelatedBackfillsOtherCategories(t *testing.T) {
	h, _ := newTestMediaHandler(t, database.MediaKindWallpaper)
	anchor := seedMediaAsset(t, h.db, database.MediaAsset{Title: "Anchor", Category: "nature"})
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "Same", Category: "nature", Downloads: 5})
	seedMediaAsset(t, h.db, database.MediaAsset{Title: "Other", Category: "abstract", Downloads: 3})

	c, w := newPlainContext(t, http.MethodGet, fmt.Sprintf("/v1/wallpapers/%d/related", anchor.ID))
	setPathParam(c, "id", fmt.Sprint(anchor.ID))
	h.Related(c)
	requireStatus(t, w, http.StatusOK)

	var resp struct {
		Items []mediaResponse `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want same-category plus backfill", len(resp.Items))
	}
	if resp.Items[0].Title != "Same" {
		t.Fatalf("first related = %q, want same category first", resp.Items[0].Title)
	}
}
