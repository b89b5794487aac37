package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ezycv/internal/apiclient"
	"ezycv/internal/state"
)

const statsPollInterval = 30 * time.Second

// statsFetcher 拉取全站统计，*apiclient.Client 满足该接口。
type statsFetcher interface {
	LiveStats(ctx context.Context) (apiclient.SiteStats, error)
}

// StatsPoller 周期拉取线上统计，只缓存在内存里，本地持久化
// 的计数不被覆盖。
type StatsPoller struct {
	api      statsFetcher
	store    *state.StatsStore
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	remote *apiclient.SiteStats
}

// NewStatsPoller 创建统计轮询器。
func NewStatsPoller(api statsFetcher, store *state.StatsStore, logger *slog.Logger) *StatsPoller {
	return &StatsPoller{
		api:      api,
		store:    store,
		logger:   logger,
		interval: statsPollInterval,
	}
}

// Run 按固定间隔轮询，启动时立即拉一次，ctx 取消后返回。
// 拉取失败只记日志，保留上一次成功的结果。
func (p *StatsPoller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *StatsPoller) poll(ctx context.Context) {
	stats, err := p.api.LiveStats(ctx)
	if err != nil {
		p.logger.Warn("stats poll failed", "error", err)
		return
	}

	p.mu.Lock()
	p.remote = &stats
	p.mu.Unlock()
}

// Remote 返回最近一次成功拉取的线上统计，还没拉到时为 nil。
func (p *StatsPoller) Remote() *apiclient.SiteStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return nil
	}
	stats := *p.remote
	return &stats
}

// Display 返回展示用的全站统计。
func (p *StatsPoller) Display() state.SiteStats {
	return DisplayStats(p.Remote(), p.store.Site())
}

// DisplayStats 决定展示哪份全站统计：逐个指标取线上值，
// 线上值缺失或为零时退回本地种子计数。
func DisplayStats(remote *apiclient.SiteStats, local state.SiteStats) state.SiteStats {
	if remote == nil {
		return local
	}
	return state.SiteStats{
		CVsCreated:     pickStat(remote.CVsCreated, local.CVsCreated),
		TotalDownloads: pickStat(remote.TotalDownloads, local.TotalDownloads),
		Wallpapers:     pickStat(remote.Wallpapers, local.Wallpapers),
		StockPhotos:    pickStat(remote.StockPhotos, local.StockPhotos),
	}
}

func pickStat(remote *int64, local int64) int64 {
	if remote == nil || *remote == 0 {
		return local
	}
	return *remote
}
