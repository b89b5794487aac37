package state

import (
	"testing"
)

func newStatsStore(t *testing.T) *StatsStore {
	t.Helper()
	store, err := NewStatsStore(t.TempDir())
	if err != nil {
		t.Fatalf("new stats store: %v", err)
	}
	return store
}

func TestStatsStoreSeedValues(t *testing.T) {
	store := newStatsStore(t)

	site := store.Site()
	if site.CVsCreated != 500 || site.TotalDownloads != 1000 || site.Wallpapers != 1000 || site.StockPhotos != 1000 {
		t.Fatalf("unexpected seed values: %+v", site)
	}
	user := store.User()
	if user.TotalDownloads != 0 || len(user.TemplatesUsed) != 0 {
		t.Fatalf("user stats should start at zero: %+v", user)
	}
}

func TestStatsStoreIncrementCVs(t *testing.T) {
	store := newStatsStore(t)

	if err := store.IncrementCVs(); err != nil {
		t.Fatalf("increment cvs: %v", err)
	}

	site, user := store.Site(), store.User()
	if site.CVsCreated != 501 {
		t.Fatalf("site cvs = %d", site.CVsCreated)
	}
	if site.TotalDownloads != 1000 {
		t.Fatalf("site downloads should not move, got %d", site.TotalDownloads)
	}
	if user.CVsCreated != 1 || user.CVsDownloaded != 1 || user.TotalDownloads != 1 {
		t.Fatalf("user tallies = %+v", user)
	}
}

func TestStatsStoreIncrementDownloadsOnlyTouchesSiteTotal(t *testing.T) {
	store := newStatsStore(t)

	if err := store.IncrementDownloads(); err != nil {
		t.Fatalf("increment downloads: %v", err)
	}

	if got := store.Site().TotalDownloads; got != 1001 {
		t.Fatalf("site downloads = %d", got)
	}
	if user := store.User(); user.TotalDownloads != 0 {
		t.Fatalf("user downloads should not move, got %d", user.TotalDownloads)
	}
}

func TestStatsStoreIncrementWallpapersAndPhotos(t *testing.T) {
	store := newStatsStore(t)

	if err := store.IncrementWallpapers(); err != nil {
		t.Fatalf("increment wallpapers: %v", err)
	}
	if err := store.IncrementStockPhotos(); err != nil {
		t.Fatalf("increment photos: %v", err)
	}

	site, user := store.Site(), store.User()
	if site.Wallpapers != 1001 || site.StockPhotos != 1001 {
		t.Fatalf("site counts = %+v", site)
	}
	if user.WallpapersDownloaded != 1 || user.PhotosDownloaded != 1 || user.TotalDownloads != 2 {
		t.Fatalf("user tallies = %+v", user)
	}
}

func TestTrackTemplateUsedIsIdempotent(t *testing.T) {
	store := newStatsStore(t)

	for i := 0; i < 3; i++ {
		if err := store.TrackTemplateUsed("modern"); err != nil {
			t.Fatalf("track template: %v", err)
		}
	}
	if err := store.TrackTemplateUsed("classic"); err != nil {
		t.Fatalf("track template: %v", err)
	}

	used := store.User().TemplatesUsed
	if len(used) != 2 || used[0] != "modern" || used[1] != "classic" {
		t.Fatalf("templates used = %v", used)
	}
}

func TestResetUserStatsKeepsSiteCounts(t *testing.T) {
	store := newStatsStore(t)

	_ = store.IncrementCVs()
	_ = store.IncrementWallpapers()
	_ = store.TrackTemplateUsed("elegant")

	if err := store.ResetUserStats(); err != nil {
		t.Fatalf("reset user stats: %v", err)
	}

	user := store.User()
	if user.CVsCreated != 0 || user.WallpapersDownloaded != 0 || user.TotalDownloads != 0 || len(user.TemplatesUsed) != 0 {
		t.Fatalf("user stats not reset: %+v", user)
	}
	if got := store.Site().CVsCreated; got != 501 {
		t.Fatalf("site count changed on user reset: %d", got)
	}
}

func TestStatsStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStatsStore(dir)
	if err != nil {
		t.Fatalf("new stats store: %v", err)
	}
	_ = store.IncrementCVs()
	_ = store.TrackTemplateUsed("minimal")

	reloaded, err := NewStatsStore(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Site().CVsCreated != 501 {
		t.Fatalf("site count lost on reload: %d", reloaded.Site().CVsCreated)
	}
	if used := reloaded.User().TemplatesUsed; len(used) != 1 || used[0] != "minimal" {
		t.Fatalf("templates lost on reload: %v", used)
	}
}
