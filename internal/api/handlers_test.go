package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ezycv/internal/database"
)

var testDBCounter int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:apitest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newUnreachableRedis 返回一个连不上的客户端。
// 处理器把 Redis 当作加速层，不可达时应当照常工作。
func newUnreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(f.tasks))}, nil
}

type fakeObjectStore struct {
	objects        map[string][]byte
	deleted        []string
	deletedPrefix  []string
	presignVisits  []string
	downloadVisits []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (s *fakeObjectStore) UploadBytes(_ context.Context, objectKey string, data []byte, _ string) error {
	s.objects[objectKey] = append([]byte(nil), data...)
	return nil
}

func (s *fakeObjectStore) GetObject(_ context.Context, objectKey string) (io.ReadCloser, error) {
	data, ok := s.objects[objectKey]
	if !ok {
		// 对象存储的缺失错误在读取时才暴露。
		return io.NopCloser(&failingReader{err: errors.New("NoSuchKey: The specified key does not exist.")}), nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeObjectStore) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	s.presignVisits = append(s.presignVisits, objectKey)
	return "https://cdn.example.invalid/" + objectKey, nil
}

func (s *fakeObjectStore) GenerateDownloadURL(_ context.Context, objectKey string, _ time.Duration, filename string) (string, error) {
	s.downloadVisits = append(s.downloadVisits, objectKey)
	return "https://cdn.example.invalid/" + objectKey + "?filename=" + filename, nil
}

func (s *fakeObjectStore) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.objects, objectKey)
	return nil
}

func (s *fakeObjectStore) DeletePrefix(_ context.Context, prefix string) error {
	s.deletedPrefix = append(s.deletedPrefix, prefix)
	for key := range s.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.objects, key)
		}
	}
	return nil
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

// newJSONContext 构造携带 JSON 请求体的测试上下文。
func newJSONContext(t *testing.T, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	return c, w
}

func newPlainContext(t *testing.T, method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	return newJSONContext(t, method, target, "")
}

func setPathParam(c *gin.Context, key, value string) {
	c.Params = append(c.Params, gin.Param{Key: key, Value: value})
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}
