package domain

import "time"

// Prompt はカタログに登録された AI アート用プロンプトです。
type Prompt struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Text      string    `json:"text" bson:"text"`
	Category  string    `json:"category" bson:"category"`
	ImageURL  string    `json:"image_url,omitempty" bson:"image_url,omitempty"` // サムネイル等の参照画像URL
	Author    string    `json:"author,omitempty" bson:"author,omitempty"`
	Featured  bool      `json:"featured" bson:"featured"`
	Trending  bool      `json:"trending" bson:"trending"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// SavedPrompt はユーザーがライブラリに保存したプロンプトへの参照です。
// 同一ユーザー内で PromptID は重複しません。
type SavedPrompt struct {
	ID       string    `json:"id" bson:"_id"`
	UserID   string    `json:"user_id" bson:"user_id"`
	PromptID string    `json:"prompt_id" bson:"prompt_id"`
	SavedAt  time.Time `json:"saved_at" bson:"saved_at"`
}

// User はアカウント情報を保持します。PasswordHash は bcrypt ハッシュです。
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	DisplayName  string    `json:"display_name" bson:"display_name"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}
