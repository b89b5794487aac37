package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
// 社交登录用户没有本地密码，PasswordHash 为空。
type User struct {
	gorm.Model
	Name          string `gorm:"size:128"`
	Email         string `gorm:"uniqueIndex;size:255"`
	PasswordHash  string `gorm:"size:255"`
	Avatar        string `gorm:"size:512"`
	FirebaseUID   string `gorm:"uniqueIndex;size:128;default:null"`
	AuthProvider  string `gorm:"size:32;default:local"`
	PhoneNumber   string `gorm:"size:32"`
	EmailVerified bool
	LastLoginAt   *time.Time

	ResetToken       string `gorm:"size:128;index"`
	ResetTokenExpiry *time.Time

	CVs []CV `gorm:"constraint:OnDelete:CASCADE"`
}

// CV 表示用户创建的简历文档。
// 游客创建的简历没有 UserID，只有 SessionID。
type CV struct {
	gorm.Model
	UserID    *uint          `gorm:"index"`
	SessionID string         `gorm:"size:64;index"`
	Template  string         `gorm:"size:32"`
	Content   datatypes.JSON `gorm:"type:jsonb"`
	PdfKey    string         `gorm:"size:512"`
	Downloads int64          `gorm:"default:0"`
}

// 媒体资源类型。
const (
	MediaKindWallpaper = "wallpaper"
	MediaKindPhoto     = "photo"
)

// MediaAsset 表示壁纸或图库照片。两类共用一张表，用 Kind 区分。
type MediaAsset struct {
	gorm.Model
	Kind        string `gorm:"size:16;index:idx_media_kind_category"`
	Title       string `gorm:"size:255"`
	Description string `gorm:"size:1024"`
	Category    string `gorm:"size:64;index:idx_media_kind_category"`
	DeviceType  string `gorm:"size:16;index"`

	// 对象存储中的 Key：原图、缩略图、网格预览图、优化下载图。
	ImageKey     string `gorm:"size:512"`
	ThumbnailKey string `gorm:"size:512"`
	PreviewKey   string `gorm:"size:512"`
	DownloadKey  string `gorm:"size:512"`

	Width    int
	Height   int
	FileSize int64
	Tags     string `gorm:"size:512"`

	Downloads int64 `gorm:"default:0"`
	Likes     int64 `gorm:"default:0"`
	Views     int64 `gorm:"default:0"`
	Featured  bool  `gorm:"default:false;index"`

	UploadedBy *uint `gorm:"index"`
}

// Subscriber 表示新闻邮件订阅者。
type Subscriber struct {
	gorm.Model
	Email string `gorm:"uniqueIndex;size:255"`
}

// ContactMessage 保存联系表单的原始提交，便于排查邮件投递失败。
type ContactMessage struct {
	gorm.Model
	Name    string `gorm:"size:128"`
	Email   string `gorm:"size:255"`
	Subject string `gorm:"size:255"`
	Message string `gorm:"size:4096"`
}

// AllModels 列出需要迁移的模型，API 与 Worker 共用。
func AllModels() []any {
	return []any{&User{}, &CV{}, &MediaAsset{}, &Subscriber{}, &ContactMessage{}}
}
