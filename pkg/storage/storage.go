package storage

import (
	"errors"

	"github.com/shouni/promptart-kit/pkg/domain"
)

var (
	// ErrNotFound は対象のドキュメントが存在しないことを示します。
	ErrNotFound = errors.New("not found")
	// ErrDuplicate は一意制約（メールアドレス等）への違反を示します。
	ErrDuplicate = errors.New("already exists")
)

// PromptFilter はカタログ検索の条件です。ゼロ値は「条件なし」を意味します。
type PromptFilter struct {
	Category string
	Search   string // タイトルと本文に対する部分一致（大文字小文字を無視）
	Featured bool
	Trending bool
}

// Storage はカタログ、アカウント、保存済みプロンプトの永続化を抽象化します。
type Storage interface {
	// カタログ
	UpsertPrompt(p domain.Prompt) error
	GetPrompt(id string) (*domain.Prompt, error)
	ListPrompts(filter PromptFilter) ([]domain.Prompt, error)
	ListCategories() ([]string, error)

	// アカウント
	CreateUser(u domain.User) error
	GetUser(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)

	// ライブラリ（ユーザーごとに PromptID の重複なし）
	AddSaved(s domain.SavedPrompt) error
	RemoveSaved(userID, promptID string) error
	ListSaved(userID string) ([]domain.SavedPrompt, error)

	Close() error
}
