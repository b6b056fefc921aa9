package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/promptart-kit/pkg/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewService(storage.NewMemoryStorage(), "test-secret", time.Hour, log)
	require.NoError(t, err)
	return svc
}

func TestService_Register(t *testing.T) {
	svc := newTestService(t)

	t.Run("正常系: ハッシュが保存され平文は残らない", func(t *testing.T) {
		user, err := svc.Register("User@Example.com", "password123", "User")
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		// メールアドレスは小文字に正規化される
		assert.Equal(t, "user@example.com", user.Email)
		assert.NotEqual(t, "password123", user.PasswordHash)
		assert.NotEmpty(t, user.PasswordHash)
	})

	t.Run("同じメールアドレスはErrDuplicate", func(t *testing.T) {
		_, err := svc.Register("user@example.com", "password456", "Other")
		assert.ErrorIs(t, err, storage.ErrDuplicate)
	})

	t.Run("不正なメールアドレスや短いパスワードは拒否", func(t *testing.T) {
		_, err := svc.Register("not-an-email", "password123", "X")
		assert.Error(t, err)

		_, err = svc.Register("ok@example.com", "short", "X")
		assert.Error(t, err)
	})
}

func TestService_LoginAndVerify(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.Register("user@example.com", "password123", "User")
	require.NoError(t, err)

	t.Run("ログイン成功でトークンが検証可能", func(t *testing.T) {
		token, err := svc.Login("user@example.com", "password123")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		userID, err := svc.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, userID)
	})

	t.Run("パスワード不一致と未登録はどちらも同じエラー", func(t *testing.T) {
		_, err := svc.Login("user@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.Login("nobody@example.com", "password123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("他の鍵で署名されたトークンは無効", func(t *testing.T) {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		other, err := NewService(storage.NewMemoryStorage(), "other-secret", time.Hour, log)
		require.NoError(t, err)

		token, err := svc.Login("user@example.com", "password123")
		require.NoError(t, err)

		_, err = other.VerifyToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("期限切れトークンは無効", func(t *testing.T) {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		shortLived, err := NewService(storage.NewMemoryStorage(), "test-secret", -time.Minute, log)
		require.NoError(t, err)
		_, err = shortLived.Register("short@example.com", "password123", "S")
		require.NoError(t, err)

		token, err := shortLived.Login("short@example.com", "password123")
		require.NoError(t, err)

		_, err = shortLived.VerifyToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.Register("user@example.com", "password123", "User")
	require.NoError(t, err)
	token, err := svc.Login("user@example.com", "password123")
	require.NoError(t, err)

	var gotUserID string
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("有効なBearerトークンでユーザーIDが注入される", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, user.ID, gotUserID)
	})

	t.Run("ヘッダなしや不正トークンは401", func(t *testing.T) {
		for _, header := range []string{"", "Bearer invalid-token", "Basic abc"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code, "header: %q", header)
		}
	})
}
