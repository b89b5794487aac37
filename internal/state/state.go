// Package state 持有客户端的三份本地持久化状态：
// 登录态、站点统计与简历草稿。每份状态独立落盘为一个 JSON 文件，
// 每次变更全量重写，读入时按 schema 版本迁移。
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	authStoreFile  = "auth-storage.json"
	statsStoreFile = "site-stats.json"
	cvStoreFile    = "cv-storage.json"
)

// envelope 是落盘格式：版本号 + 状态体。
type envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// migrateFunc 把低版本状态体升级一个版本。
type migrateFunc func(version int, raw json.RawMessage) (json.RawMessage, error)

// readState 读入并迁移状态文件。文件缺失时不报错，out 保持零值。
func readState(path string, currentVersion int, migrate migrateFunc, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read state file %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode state file %s: %w", path, err)
	}
	if env.Version > currentVersion {
		return fmt.Errorf("state file %s has version %d, newer than supported %d", path, env.Version, currentVersion)
	}

	raw := env.State
	if raw == nil {
		raw = json.RawMessage("{}")
	}
	for v := env.Version; v < currentVersion; v++ {
		if migrate == nil {
			break
		}
		raw, err = migrate(v, raw)
		if err != nil {
			return fmt.Errorf("migrate state file %s from version %d: %w", path, v, err)
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode state body %s: %w", path, err)
	}
	return nil
}

// writeState 全量落盘。先写临时文件再改名，避免写一半的状态被读到。
func writeState(path string, version int, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data, err := json.MarshalIndent(envelope{Version: version, State: raw}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state envelope: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
