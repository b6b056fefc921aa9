package library

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/promptart-kit/pkg/domain"
	"github.com/shouni/promptart-kit/pkg/logging"
	"github.com/shouni/promptart-kit/pkg/storage"
)

// Service はユーザーごとの保存済みプロンプト（ライブラリ）を管理します。
// 同一ユーザー内で同じプロンプトは 1 件しか保存されません。
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
		log:   log.With(logging.Module("library")),
	}, nil
}

// Save はプロンプトをユーザーのライブラリへ追加します。
// 対象プロンプトが存在しない場合は storage.ErrNotFound を返します。
// すでに保存済みの場合は何もしません。
func (s *Service) Save(userID, promptID string) error {
	if _, err := s.store.GetPrompt(promptID); err != nil {
		return err
	}

	return s.store.AddSaved(domain.SavedPrompt{
		ID:       uuid.NewString(),
		UserID:   userID,
		PromptID: promptID,
		SavedAt:  time.Now().UTC(),
	})
}

// Remove はライブラリからプロンプトを削除します。
func (s *Service) Remove(userID, promptID string) error {
	return s.store.RemoveSaved(userID, promptID)
}

// List はライブラリの内容をプロンプト本体に解決して返します。
// カタログから削除済みの参照はスキップします。
func (s *Service) List(userID string) ([]domain.Prompt, error) {
	saved, err := s.store.ListSaved(userID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Prompt, 0, len(saved))
	for _, entry := range saved {
		p, err := s.store.GetPrompt(entry.PromptID)
		if err != nil {
			s.log.Warn("保存済み参照の解決に失敗しました",
				slog.String("prompt_id", entry.PromptID), logging.Err(err))
			continue
		}
		result = append(result, *p)
	}
	return result, nil
}
