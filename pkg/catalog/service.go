package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/promptart-kit/pkg/domain"
	"github.com/shouni/promptart-kit/pkg/logging"
	"github.com/shouni/promptart-kit/pkg/storage"
)

// Service はプロンプトカタログの閲覧と登録を提供します。
type Service struct {
	store storage.Storage
	log   *slog.Logger
}

func NewService(store storage.Storage, log *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if log == nil {
		return nil, fmt.Errorf("log is required")
	}
	return &Service{
		store: store,
		log:   log.With(logging.Module("catalog")),
	}, nil
}

// List はカテゴリと検索語（部分一致）で絞り込んだプロンプト一覧を返します。
func (s *Service) List(category, search string) ([]domain.Prompt, error) {
	return s.store.ListPrompts(storage.PromptFilter{Category: category, Search: search})
}

// Categories は登録済みカテゴリの一覧を返します。
func (s *Service) Categories() ([]string, error) {
	return s.store.ListCategories()
}

// Featured はおすすめ一覧を返します。
func (s *Service) Featured() ([]domain.Prompt, error) {
	return s.store.ListPrompts(storage.PromptFilter{Featured: true})
}

// Trending はトレンド一覧を返します。
func (s *Service) Trending() ([]domain.Prompt, error) {
	return s.store.ListPrompts(storage.PromptFilter{Trending: true})
}

// Get は ID でプロンプトを 1 件取得します。
func (s *Service) Get(id string) (*domain.Prompt, error) {
	return s.store.GetPrompt(id)
}

// Create はユーザー作成のカスタムプロンプトをカタログへ登録します。
func (s *Service) Create(title, text, category, imageURL, author string) (*domain.Prompt, error) {
	title = strings.TrimSpace(title)
	text = strings.TrimSpace(text)
	if title == "" || text == "" {
		return nil, fmt.Errorf("title and text are required")
	}
	if category == "" {
		category = "custom"
	}

	p := domain.Prompt{
		ID:        uuid.NewString(),
		Title:     title,
		Text:      text,
		Category:  category,
		ImageURL:  imageURL,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.UpsertPrompt(p); err != nil {
		return nil, fmt.Errorf("storing prompt: %w", err)
	}

	s.log.Info("カスタムプロンプトを登録しました",
		slog.String("id", p.ID), slog.String("category", p.Category))
	return &p, nil
}

// LoadSeedFile は JSON ファイルからカタログの初期データを読み込みます。
// ID のないエントリには新しい ID を採番します。戻り値は登録件数です。
func (s *Service) LoadSeedFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}

	var prompts []domain.Prompt
	if err := json.Unmarshal(data, &prompts); err != nil {
		return 0, fmt.Errorf("parsing seed file: %w", err)
	}

	count := 0
	for _, p := range prompts {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		if err := s.store.UpsertPrompt(p); err != nil {
			s.log.Warn("シードデータの登録に失敗しました",
				slog.String("id", p.ID), logging.Err(err))
			continue
		}
		count++
	}

	s.log.Info("カタログを読み込みました", slog.Int("count", count), slog.String("file", path))
	return count, nil
}
