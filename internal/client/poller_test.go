package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"ezycv/internal/apiclient"
	"ezycv/internal/state"
)

type fakeFetcher struct {
	stats apiclient.SiteStats
	err   error
	calls int
}

func (f *fakeFetcher) LiveStats(context.Context) (apiclient.SiteStats, error) {
	f.calls++
	return f.stats, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statPtr(n int64) *int64 { return &n }

func TestDisplayStatsPrefersRemote(t *testing.T) {
	local := state.SiteStats{CVsCreated: 10, TotalDownloads: 20, Wallpapers: 30, StockPhotos: 40}
	remote := &apiclient.SiteStats{
		CVsCreated:     statPtr(42),
		TotalDownloads: statPtr(43),
		Wallpapers:     statPtr(44),
		StockPhotos:    statPtr(45),
	}

	got := DisplayStats(remote, local)
	if got.CVsCreated != 42 || got.StockPhotos != 45 {
		t.Fatalf("display = %+v, want remote values", got)
	}
}

func TestDisplayStatsFallsBackToLocal(t *testing.T) {
	local := state.SiteStats{CVsCreated: 10, TotalDownloads: 20}

	got := DisplayStats(nil, local)
	if got != local {
		t.Fatalf("display = %+v, want local values", got)
	}
}

func TestDisplayStatsFallsBackPerMetric(t *testing.T) {
	local := state.SiteStats{CVsCreated: 10, TotalDownloads: 10, Wallpapers: 10, StockPhotos: 10}
	remote := &apiclient.SiteStats{
		CVsCreated: statPtr(42),
		Wallpapers: statPtr(0),
	}

	got := DisplayStats(remote, local)
	if got.CVsCreated != 42 {
		t.Fatalf("cvsCreated = %d, want remote 42", got.CVsCreated)
	}
	if got.TotalDownloads != 10 {
		t.Fatalf("totalDownloads = %d, want fallback 10 for absent remote metric", got.TotalDownloads)
	}
	if got.Wallpapers != 10 {
		t.Fatalf("wallpapers = %d, want fallback 10 for zero remote metric", got.Wallpapers)
	}
	if got.StockPhotos != 10 {
		t.Fatalf("stockPhotos = %d, want fallback 10", got.StockPhotos)
	}
}

func TestStatsPollerCachesRemote(t *testing.T) {
	store, err := state.NewStatsStore(t.TempDir())
	if err != nil {
		t.Fatalf("new stats store: %v", err)
	}

	fetcher := &fakeFetcher{stats: apiclient.SiteStats{CVsCreated: statPtr(777)}}
	poller := NewStatsPoller(fetcher, store, discardLogger())

	if poller.Remote() != nil {
		t.Fatal("remote should be nil before the first poll")
	}

	poller.poll(context.Background())

	remote := poller.Remote()
	if remote == nil || remote.CVsCreated == nil || *remote.CVsCreated != 777 {
		t.Fatalf("remote = %+v", remote)
	}
	if got := poller.Display().CVsCreated; got != 777 {
		t.Fatalf("display = %d", got)
	}
	// 本地持久化计数不被轮询结果覆盖。
	if got := store.Site().CVsCreated; got != 500 {
		t.Fatalf("store was mutated by the poller: %d", got)
	}
}

func TestStatsPollerKeepsLastGoodOnError(t *testing.T) {
	store, err := state.NewStatsStore(t.TempDir())
	if err != nil {
		t.Fatalf("new stats store: %v", err)
	}

	fetcher := &fakeFetcher{stats: apiclient.SiteStats{CVsCreated: statPtr(9)}}
	poller := NewStatsPoller(fetcher, store, discardLogger())
	poller.poll(context.Background())

	fetcher.err = errors.New("server down")
	poller.poll(context.Background())

	remote := poller.Remote()
	if remote == nil || remote.CVsCreated == nil || *remote.CVsCreated != 9 {
		t.Fatalf("remote = %+v, want last good result", remote)
	}
}

func TestStatsPollerRunStopsOnCancel(t *testing.T) {
	store, err := state.NewStatsStore(t.TempDir())
	if err != nil {
		t.Fatalf("new stats store: %v", err)
	}

	fetcher := &fakeFetcher{}
	poller := NewStatsPoller(fetcher, store, discardLogger())
	poller.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
	if fetcher.calls < 2 {
		t.Fatalf("expected repeated polls, got %d", fetcher.calls)
	}
}
