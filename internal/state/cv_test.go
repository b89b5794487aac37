package state

import (
	"testing"
	"time"

	"ezycv/internal/cv"
)

func newCVStore(t *testing.T) *CVStore {
	t.Helper()
	store, err := NewCVStore(t.TempDir())
	if err != nil {
		t.Fatalf("new cv store: %v", err)
	}
	return store
}

func TestCVStoreDefaults(t *testing.T) {
	store := newCVStore(t)

	doc := store.Current()
	if doc.Template != "modern" {
		t.Fatalf("default template = %q", doc.Template)
	}
	if doc.Settings.PrimaryColor != "#2563eb" || doc.Settings.FontSize != "medium" {
		t.Fatalf("default settings = %+v", doc.Settings)
	}
	if len(doc.Experience) != 0 {
		t.Fatalf("experience should start empty")
	}
	if store.Step() != 1 {
		t.Fatalf("initial step = %d, want 1", store.Step())
	}
}

func TestCVStoreEntryIDsAreMillisTimestamps(t *testing.T) {
	store := newCVStore(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	id, err := store.AddSkill(cv.Skill{Name: "Go"})
	if err != nil {
		t.Fatalf("add skill: %v", err)
	}
	if id != fixed.UnixMilli() {
		t.Fatalf("id = %d, want %d", id, fixed.UnixMilli())
	}

	// 同一毫秒内的第二个条目不会撞 ID。
	id2, err := store.AddSkill(cv.Skill{Name: "SQL"})
	if err != nil {
		t.Fatalf("add skill: %v", err)
	}
	if id2 <= id {
		t.Fatalf("ids not increasing: %d then %d", id, id2)
	}
}

func TestCVStoreUpdateEntryMergesPatch(t *testing.T) {
	store := newCVStore(t)

	id, err := store.AddExperience(cv.Experience{JobTitle: "Engineer", Company: "Acme", StartDate: "2020-01"})
	if err != nil {
		t.Fatalf("add experience: %v", err)
	}

	if err := store.UpdateExperience(id, cv.Experience{JobTitle: "Senior Engineer"}); err != nil {
		t.Fatalf("update experience: %v", err)
	}

	entries := store.Current().Experience
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].JobTitle != "Senior Engineer" {
		t.Fatalf("title = %q", entries[0].JobTitle)
	}
	if entries[0].Company != "Acme" || entries[0].StartDate != "2020-01" {
		t.Fatalf("patch clobbered unset fields: %+v", entries[0])
	}
	if entries[0].ID != id {
		t.Fatalf("id changed on update: %d", entries[0].ID)
	}
}

func TestCVStoreUpdateUnknownEntryIsNoop(t *testing.T) {
	store := newCVStore(t)

	if _, err := store.AddLanguage(cv.Language{Name: "English"}); err != nil {
		t.Fatalf("add language: %v", err)
	}
	if err := store.UpdateLanguage(12345, cv.Language{Name: "French"}); err != nil {
		t.Fatalf("update unknown: %v", err)
	}
	if got := store.Current().Languages[0].Name; got != "English" {
		t.Fatalf("unknown id modified an entry: %q", got)
	}
}

func TestCVStoreRemoveEntry(t *testing.T) {
	store := newCVStore(t)

	first, _ := store.AddProject(cv.Project{Title: "One"})
	second, _ := store.AddProject(cv.Project{Title: "Two"})

	if err := store.RemoveProject(first); err != nil {
		t.Fatalf("remove project: %v", err)
	}

	projects := store.Current().Projects
	if len(projects) != 1 || projects[0].ID != second {
		t.Fatalf("projects after removal = %+v", projects)
	}
}

func TestCVStorePersonalInfoAndSettingsMerge(t *testing.T) {
	store := newCVStore(t)

	if err := store.UpdatePersonalInfo(cv.PersonalInfo{FullName: "Ada Lovelace", City: "London"}); err != nil {
		t.Fatalf("update personal info: %v", err)
	}
	if err := store.UpdatePersonalInfo(cv.PersonalInfo{JobTitle: "Engineer"}); err != nil {
		t.Fatalf("update personal info: %v", err)
	}

	info := store.Current().PersonalInfo
	if info.FullName != "Ada Lovelace" || info.City != "London" || info.JobTitle != "Engineer" {
		t.Fatalf("personal info = %+v", info)
	}

	if err := store.UpdateSettings(cv.Settings{PrimaryColor: "#b91c1c"}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	settings := store.Current().Settings
	if settings.PrimaryColor != "#b91c1c" {
		t.Fatalf("primary color = %q", settings.PrimaryColor)
	}
	if settings.FontFamily != "Inter" {
		t.Fatalf("merge clobbered font family: %q", settings.FontFamily)
	}
}

func TestCVStoreResetRestoresDefaults(t *testing.T) {
	store := newCVStore(t)

	_ = store.SetTemplate("elegant")
	_ = store.SetSummary("Seasoned engineer")
	_, _ = store.AddSkill(cv.Skill{Name: "Go"})
	_ = store.SetStep(3)

	if err := store.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	doc := store.Current()
	if doc.Template != "modern" || doc.Summary != "" || len(doc.Skills) != 0 {
		t.Fatalf("reset incomplete: %+v", doc)
	}
	if store.Step() != 1 {
		t.Fatalf("step after reset = %d, want 1", store.Step())
	}
}

func TestCVStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()

	store, err := NewCVStore(dir)
	if err != nil {
		t.Fatalf("new cv store: %v", err)
	}
	_ = store.SetTemplate("classic")
	if _, err := store.AddEducation(cv.Education{Degree: "BSc", Institution: "MIT"}); err != nil {
		t.Fatalf("add education: %v", err)
	}

	reloaded, err := NewCVStore(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	doc := reloaded.Current()
	if doc.Template != "classic" {
		t.Fatalf("template lost: %q", doc.Template)
	}
	if len(doc.Education) != 1 || doc.Education[0].Institution != "MIT" {
		t.Fatalf("education lost: %+v", doc.Education)
	}
}

func TestCVStoreLoadReplacesDraft(t *testing.T) {
	store := newCVStore(t)
	_, _ = store.AddSkill(cv.Skill{Name: "Go"})

	incoming := cv.DefaultDocument()
	incoming.Template = "professional"
	incoming.Summary = "Restored from backup"

	if err := store.Load(incoming); err != nil {
		t.Fatalf("load: %v", err)
	}

	doc := store.Current()
	if doc.Template != "professional" || doc.Summary != "Restored from backup" {
		t.Fatalf("load incomplete: %+v", doc)
	}
	if len(doc.Skills) != 0 {
		t.Fatalf("old draft leaked into loaded document")
	}
}
