package api

import (
	"context"
	"io"
	"time"

	"github.com/hibiken/asynq"
)

// taskEnqueuer 抽象 asynq.Client，便于测试替换。
type taskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// objectStore 抽象 storage.Client，便于测试替换。
type objectStore interface {
	UploadBytes(ctx context.Context, objectKey string, data []byte, contentType string) error
	GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	GenerateDownloadURL(ctx context.Context, objectKey string, duration time.Duration, filename string) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
}
