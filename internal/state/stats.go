package state

import (
	"path/filepath"
	"slices"
	"sync"
)

const statsStateVersion = 1

// SiteStats 是展示用的全站计数，带种子值，后台轮询会用线上数据覆盖展示。
type SiteStats struct {
	CVsCreated     int64 `json:"cvsCreated"`
	TotalDownloads int64 `json:"totalDownloads"`
	Wallpapers     int64 `json:"wallpapers"`
	StockPhotos    int64 `json:"stockPhotos"`
}

// UserStats 是本机用户的使用记录。
type UserStats struct {
	CVsCreated           int64    `json:"cvsCreated"`
	CVsDownloaded        int64    `json:"cvsDownloaded"`
	WallpapersDownloaded int64    `json:"wallpapersDownloaded"`
	PhotosDownloaded     int64    `json:"photosDownloaded"`
	TemplatesUsed        []string `json:"templatesUsed"`
	TotalDownloads       int64    `json:"totalDownloads"`
}

type statsState struct {
	Site SiteStats `json:"siteStats"`
	User UserStats `json:"userStats"`
}

func defaultStatsState() statsState {
	return statsState{
		Site: SiteStats{
			CVsCreated:     500,
			TotalDownloads: 1000,
			Wallpapers:     1000,
			StockPhotos:    1000,
		},
		User: UserStats{TemplatesUsed: []string{}},
	}
}

// StatsStore 持久化站点计数与本机使用记录。
type StatsStore struct {
	mu    sync.Mutex
	path  string
	state statsState
}

// NewStatsStore 从 dir 下的状态文件恢复统计，文件缺失时用种子值。
func NewStatsStore(dir string) (*StatsStore, error) {
	s := &StatsStore{path: filepath.Join(dir, statsStoreFile)}
	s.state = defaultStatsState()
	if err := readState(s.path, statsStateVersion, nil, &s.state); err != nil {
		return nil, err
	}
	if s.state.User.TemplatesUsed == nil {
		s.state.User.TemplatesUsed = []string{}
	}
	return s, nil
}

// IncrementCVs 记录一次简历下载：全站创建数和本机三项各加一。
func (s *StatsStore) IncrementCVs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Site.CVsCreated++
	s.state.User.CVsCreated++
	s.state.User.CVsDownloaded++
	s.state.User.TotalDownloads++
	return s.persist()
}

// IncrementDownloads 只把全站下载总数加一。
func (s *StatsStore) IncrementDownloads() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Site.TotalDownloads++
	return s.persist()
}

// IncrementWallpapers 记录一次壁纸下载。
func (s *StatsStore) IncrementWallpapers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Site.Wallpapers++
	s.state.User.WallpapersDownloaded++
	s.state.User.TotalDownloads++
	return s.persist()
}

// IncrementStockPhotos 记录一次图库下载。
func (s *StatsStore) IncrementStockPhotos() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Site.StockPhotos++
	s.state.User.PhotosDownloaded++
	s.state.User.TotalDownloads++
	return s.persist()
}

// TrackTemplateUsed 记录用过的模板，重复记录不生效。
func (s *StatsStore) TrackTemplateUsed(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.state.User.TemplatesUsed, name) {
		return nil
	}
	s.state.User.TemplatesUsed = append(s.state.User.TemplatesUsed, name)
	return s.persist()
}

// ResetUserStats 清零本机使用记录，全站计数不动。
func (s *StatsStore) ResetUserStats() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.User = UserStats{TemplatesUsed: []string{}}
	return s.persist()
}

// Site 返回当前全站计数的副本。
func (s *StatsStore) Site() SiteStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Site
}

// User 返回本机使用记录的副本。
func (s *StatsStore) User() UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.state.User
	u.TemplatesUsed = slices.Clone(u.TemplatesUsed)
	return u
}

func (s *StatsStore) persist() error {
	return writeState(s.path, statsStateVersion, s.state)
}
