package state

import (
	"path/filepath"
	"sync"
	"time"

	"dario.cat/mergo"

	"ezycv/internal/cv"
)

const cvStateVersion = 1

type cvState struct {
	CurrentCV   cv.Document `json:"currentCV"`
	CurrentStep int         `json:"currentStep"`
}

// CVStore 持久化编辑中的简历草稿。
// 条目 ID 为创建时的毫秒时间戳，与服务端存量数据一致。
type CVStore struct {
	mu     sync.Mutex
	path   string
	state  cvState
	lastID int64

	// now 可在测试里替换，保证生成的条目 ID 可控。
	now func() time.Time
}

// NewCVStore 从 dir 下的状态文件恢复草稿，文件缺失时为空白草稿。
func NewCVStore(dir string) (*CVStore, error) {
	s := &CVStore{
		path: filepath.Join(dir, cvStoreFile),
		now:  time.Now,
	}
	s.state.CurrentCV = cv.DefaultDocument()
	s.state.CurrentStep = 1
	if err := readState(s.path, cvStateVersion, nil, &s.state); err != nil {
		return nil, err
	}
	return s, nil
}

// Current 返回当前草稿的副本。
func (s *CVStore) Current() cv.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentCV
}

// Step 返回编辑向导当前所在的步骤。
func (s *CVStore) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentStep
}

// SetStep 记录编辑向导所在的步骤。
func (s *CVStore) SetStep(step int) error {
	return s.mutate(func(st *cvState) {
		st.CurrentStep = step
	})
}

// SetTemplate 切换模板。
func (s *CVStore) SetTemplate(id string) error {
	return s.mutate(func(st *cvState) {
		st.CurrentCV.Template = id
	})
}

// UpdatePersonalInfo 把 patch 的非空字段合并进联系信息。
func (s *CVStore) UpdatePersonalInfo(patch cv.PersonalInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergo.Merge(&s.state.CurrentCV.PersonalInfo, patch, mergo.WithOverride); err != nil {
		return err
	}
	return s.persist()
}

// SetSummary 替换概述段落。
func (s *CVStore) SetSummary(summary string) error {
	return s.mutate(func(st *cvState) {
		st.CurrentCV.Summary = summary
	})
}

// UpdateSettings 把 patch 的非空字段合并进外观设置。
func (s *CVStore) UpdateSettings(patch cv.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergo.Merge(&s.state.CurrentCV.Settings, patch, mergo.WithOverride); err != nil {
		return err
	}
	return s.persist()
}

// AddExperience 追加一条工作经历并返回分配的 ID。
func (s *CVStore) AddExperience(entry cv.Experience) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID()
	s.state.CurrentCV.Experience = append(s.state.CurrentCV.Experience, entry)
	return entry.ID, s.persist()
}

// UpdateExperience 把 patch 的非空字段合并进指定条目，条目不存在时不做任何事。
func (s *CVStore) UpdateExperience(id int64, patch cv.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergeEntry(s.state.CurrentCV.Experience, id, patch, func(e cv.Experience) int64 { return e.ID }); err != nil {
		return err
	}
	return s.persist()
}

// RemoveExperience 删除指定条目。
func (s *CVStore) RemoveExperience(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCV.Experience = removeEntry(s.state.CurrentCV.Experience, id, func(e cv.Experience) int64 { return e.ID })
	return s.persist()
}

// AddEducation 追加一条教育经历并返回分配的 ID。
func (s *CVStore) AddEducation(entry cv.Education) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID()
	s.state.CurrentCV.Education = append(s.state.CurrentCV.Education, entry)
	return entry.ID, s.persist()
}

// UpdateEducation 把 patch 的非空字段合并进指定条目。
func (s *CVStore) UpdateEducation(id int64, patch cv.Education) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergeEntry(s.state.CurrentCV.Education, id, patch, func(e cv.Education) int64 { return e.ID }); err != nil {
		return err
	}
	return s.persist()
}

// RemoveEducation 删除指定条目。
func (s *CVStore) RemoveEducation(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCV.Education = removeEntry(s.state.CurrentCV.Education, id, func(e cv.Education) int64 { return e.ID })
	return s.persist()
}

// AddSkill 追加一条技能并返回分配的 ID。
func (s *CVStore) AddSkill(entry cv.Skill) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID()
	s.state.CurrentCV.Skills = append(s.state.CurrentCV.Skills, entry)
	return entry.ID, s.persist()
}

// UpdateSkill 把 patch 的非空字段合并进指定条目。
func (s *CVStore) UpdateSkill(id int64, patch cv.Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergeEntry(s.state.CurrentCV.Skills, id, patch, func(e cv.Skill) int64 { return e.ID }); err != nil {
		return err
	}
	return s.persist()
}

// RemoveSkill 删除指定条目。
func (s *CVStore) RemoveSkill(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCV.Skills = removeEntry(s.state.CurrentCV.Skills, id, func(e cv.Skill) int64 { return e.ID })
	return s.persist()
}

// AddLanguage 追加一条语言并返回分配的 ID。
func (s *CVStore) AddLanguage(entry cv.Language) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID()
	s.state.CurrentCV.Languages = append(s.state.CurrentCV.Languages, entry)
	return entry.ID, s.persist()
}

// UpdateLanguage 把 patch 的非空字段合并进指定条目。
func (s *CVStore) UpdateLanguage(id int64, patch cv.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergeEntry(s.state.CurrentCV.Languages, id, patch, func(e cv.Language) int64 { return e.ID }); err != nil {
		return err
	}
	return s.persist()
}

// RemoveLanguage 删除指定条目。
func (s *CVStore) RemoveLanguage(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCV.Languages = removeEntry(s.state.CurrentCV.Languages, id, func(e cv.Language) int64 { return e.ID })
	return s.persist()
}

// AddCertification 追加一条证书并返回分配的 ID。
func (s *CVStore) AddCertification(entry cv.Certification) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID()
	s.state.CurrentCV.Certifications = append(s.state.CurrentCV.Certifications, entry)
	return entry.ID, s.persist()
}

// UpdateCertification 把 patch 的非空字段合并进指定条目。
func (s *CVStore) UpdateCertification(id int64, patch cv.Certification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergeEntry(s.state.CurrentCV.Certifications, id, patch, func(e cv.Certification) int64 { return e.ID }); err != nil {
		return err
	}
	return s.persist()
}

// RemoveCertification 删除指定条目。
func (s *CVStore) RemoveCertification(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCV.Certifications = removeEntry(s.state.CurrentCV.Certifications, id, func(e cv.Certification) int64 { return e.ID })
	return s.persist()
}

// AddProject 追加一条项目并返回分配的 ID。
func (s *CVStore) AddProject(entry cv.Project) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID()
	s.state.CurrentCV.Projects = append(s.state.CurrentCV.Projects, entry)
	return entry.ID, s.persist()
}

// UpdateProject 把 patch 的非空字段合并进指定条目。
func (s *CVStore) UpdateProject(id int64, patch cv.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergeEntry(s.state.CurrentCV.Projects, id, patch, func(e cv.Project) int64 { return e.ID }); err != nil {
		return err
	}
	return s.persist()
}

// RemoveProject 删除指定条目。
func (s *CVStore) RemoveProject(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCV.Projects = removeEntry(s.state.CurrentCV.Projects, id, func(e cv.Project) int64 { return e.ID })
	return s.persist()
}

// AddReference 追加一条推荐人并返回分配的 ID。
func (s *CVStore) AddReference(entry cv.Reference) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID()
	s.state.CurrentCV.References = append(s.state.CurrentCV.References, entry)
	return entry.ID, s.persist()
}

// UpdateReference 把 patch 的非空字段合并进指定条目。
func (s *CVStore) UpdateReference(id int64, patch cv.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergeEntry(s.state.CurrentCV.References, id, patch, func(e cv.Reference) int64 { return e.ID }); err != nil {
		return err
	}
	return s.persist()
}

// RemoveReference 删除指定条目。
func (s *CVStore) RemoveReference(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCV.References = removeEntry(s.state.CurrentCV.References, id, func(e cv.Reference) int64 { return e.ID })
	return s.persist()
}

// AddCustomSection 追加一个自定义段落并返回分配的 ID。
func (s *CVStore) AddCustomSection(entry cv.CustomSection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID()
	s.state.CurrentCV.CustomSections = append(s.state.CurrentCV.CustomSections, entry)
	return entry.ID, s.persist()
}

// UpdateCustomSection 把 patch 的非空字段合并进指定段落。
func (s *CVStore) UpdateCustomSection(id int64, patch cv.CustomSection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mergeEntry(s.state.CurrentCV.CustomSections, id, patch, func(e cv.CustomSection) int64 { return e.ID }); err != nil {
		return err
	}
	return s.persist()
}

// RemoveCustomSection 删除指定段落。
func (s *CVStore) RemoveCustomSection(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCV.CustomSections = removeEntry(s.state.CurrentCV.CustomSections, id, func(e cv.CustomSection) int64 { return e.ID })
	return s.persist()
}

// Reset 丢弃草稿，回到空白状态。
func (s *CVStore) Reset() error {
	return s.mutate(func(st *cvState) {
		st.CurrentCV = cv.DefaultDocument()
		st.CurrentStep = 1
	})
}

// Load 用一份完整简历整体替换草稿（从服务端或备份恢复时使用）。
func (s *CVStore) Load(doc cv.Document) error {
	return s.mutate(func(st *cvState) {
		st.CurrentCV = doc
	})
}

func (s *CVStore) mutate(fn func(*cvState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	return s.persist()
}

func (s *CVStore) persist() error {
	return writeState(s.path, cvStateVersion, s.state)
}

// nextID 生成毫秒时间戳 ID，同一毫秒内连续调用时递增去重。
func (s *CVStore) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// mergeEntry 按 ID 找到条目并合并 patch 的非零字段。
// patch 的 ID 字段应保持零值，条目不存在时静默返回。
func mergeEntry[T any](list []T, id int64, patch T, idOf func(T) int64) error {
	for i := range list {
		if idOf(list[i]) != id {
			continue
		}
		return mergo.Merge(&list[i], patch, mergo.WithOverride)
	}
	return nil
}

func removeEntry[T any](list []T, id int64, idOf func(T) int64) []T {
	out := list[:0]
	for _, e := range list {
		if idOf(e) != id {
			out = append(out, e)
		}
	}
	return out
}
