package state

import (
	"encoding/json"
	"path/filepath"
	"sync"

	"dario.cat/mergo"
)

const authStateVersion = 1

// User 是客户端视角的账号资料，字段与服务端返回保持一致。
type User struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Avatar        string `json:"avatar,omitempty"`
	AuthProvider  string `json:"authProvider,omitempty"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
}

type authState struct {
	User            *User  `json:"user"`
	Token           string `json:"token"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// AuthStore 持久化登录态。所有写操作先改内存再落盘。
type AuthStore struct {
	mu    sync.Mutex
	path  string
	state authState
}

// NewAuthStore 从 dir 下的状态文件恢复登录态，文件缺失时为未登录。
func NewAuthStore(dir string) (*AuthStore, error) {
	s := &AuthStore{path: filepath.Join(dir, authStoreFile)}
	if err := readState(s.path, authStateVersion, migrateAuthState, &s.state); err != nil {
		return nil, err
	}
	return s, nil
}

// migrateAuthState 处理没有版本号的早期文件：认证标记按 token 和 user 重算。
func migrateAuthState(version int, raw json.RawMessage) (json.RawMessage, error) {
	var st authState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	st.IsAuthenticated = st.User != nil && st.Token != ""
	return json.Marshal(st)
}

// Login 写入新的登录态，覆盖旧值。
func (s *AuthStore) Login(user User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.state = authState{User: &u, Token: token, IsAuthenticated: true}
	return writeState(s.path, authStateVersion, s.state)
}

// Logout 清空登录态。
func (s *AuthStore) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = authState{}
	return writeState(s.path, authStateVersion, s.state)
}

// UpdateUser 把 patch 中的非零字段合并进当前账号资料。未登录时不做任何事。
func (s *AuthStore) UpdateUser(patch User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.User == nil {
		return nil
	}
	if err := mergo.Merge(s.state.User, patch, mergo.WithOverride); err != nil {
		return err
	}
	return writeState(s.path, authStateVersion, s.state)
}

// Current 返回当前账号资料的副本，未登录时返回 nil。
func (s *AuthStore) Current() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}

// Token 返回当前访问令牌，未登录时为空串。
func (s *AuthStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// IsAuthenticated 判断是否处于登录态。
func (s *AuthStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsAuthenticated && s.state.Token != ""
}
