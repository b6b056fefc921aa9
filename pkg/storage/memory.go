package storage

import (
	"sort"
	"strings"
	"sync"

	"github.com/shouni/promptart-kit/pkg/domain"
)

// MemoryStorage は Storage のインメモリ実装です。
// 開発用途、および MongoDB へ接続できない場合のフォールバックとして使います。
type MemoryStorage struct {
	mu      sync.RWMutex
	prompts map[string]domain.Prompt
	users   map[string]domain.User
	saved   map[string][]domain.SavedPrompt // userID → 保存順のリスト
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		prompts: make(map[string]domain.Prompt),
		users:   make(map[string]domain.User),
		saved:   make(map[string][]domain.SavedPrompt),
	}
}

func (m *MemoryStorage) UpsertPrompt(p domain.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts[p.ID] = p
	return nil
}

func (m *MemoryStorage) GetPrompt(id string) (*domain.Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStorage) ListPrompts(filter PromptFilter) ([]domain.Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.Prompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		if matchPrompt(p, filter) {
			result = append(result, p)
		}
	}
	// 新しいものから順に返します。
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func matchPrompt(p domain.Prompt, f PromptFilter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Featured && !p.Featured {
		return false
	}
	if f.Trending && !p.Trending {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Text), needle) {
			return false
		}
	}
	return true
}

func (m *MemoryStorage) ListCategories() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var categories []string
	for _, p := range m.prompts {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

func (m *MemoryStorage) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStorage) GetUser(id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStorage) GetUserByEmail(email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) AddSaved(s domain.SavedPrompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// 同一プロンプトの二重保存は何もしません。
	for _, existing := range m.saved[s.UserID] {
		if existing.PromptID == s.PromptID {
			return nil
		}
	}
	m.saved[s.UserID] = append(m.saved[s.UserID], s)
	return nil
}

func (m *MemoryStorage) RemoveSaved(userID, promptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.saved[userID]
	for i, s := range list {
		if s.PromptID == promptID {
			m.saved[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStorage) ListSaved(userID string) ([]domain.SavedPrompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.saved[userID]
	result := make([]domain.SavedPrompt, len(list))
	copy(result, list)
	return result, nil
}

func (m *MemoryStorage) Close() error { return nil }
