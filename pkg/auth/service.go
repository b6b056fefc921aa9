package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shouni/promptart-kit/pkg/domain"
	"github.com/shouni/promptart-kit/pkg/logging"
	"github.com/shouni/promptart-kit/pkg/storage"
)

var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードの不一致を示します。
	// どちらが誤っているかは呼び出し側に開示しません。
	ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが正しくありません")
	// ErrInvalidToken はトークンの検証失敗を示します。
	ErrInvalidToken = errors.New("トークンが無効です")
)

// Service はアカウント登録、ログイン、トークン検証を提供します。
type Service struct {
	store    storage.Storage
	secret   []byte
	tokenTTL time.Duration
	log      *slog.Logger
}

func NewService(store storage.Storage, secret string, tokenTTL time.Duration, log *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("secret is required")
	}
	if log == nil {
		return nil, fmt.Errorf("log is required")
	}
	return &Service{
		store:    store,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		log:      log.With(logging.Module("auth")),
	}, nil
}

// Register は新規アカウントを作成します。
// メールアドレスが既に使われている場合は storage.ErrDuplicate を返します。
func (s *Service) Register(email, password, displayName string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("メールアドレスが不正です")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("パスワードは8文字以上が必要です")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	s.log.Info("アカウントを作成しました", slog.String("user_id", user.ID))
	return &user, nil
}

// Login は認証に成功すると署名済み JWT を返します。
func (s *Service) Login(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": user.ID,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	s.log.Info("ログインしました", slog.String("user_id", user.ID))
	return token, nil
}

// VerifyToken はトークンを検証し、ユーザー ID を返します。
func (s *Service) VerifyToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
