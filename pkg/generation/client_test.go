package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, doer Doer) *Client {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(doer, "test-api-key", "", "", log)
	require.NoError(t, err, "failed to create client")
	return c
}

func TestNewClient(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("必須依存が欠けるとエラー", func(t *testing.T) {
		_, err := NewClient(nil, "key", "", "", log)
		assert.Error(t, err)

		_, err = NewClient(&mockDoer{}, "", "", "", log)
		assert.Error(t, err)

		_, err = NewClient(&mockDoer{}, "key", "", "", nil)
		assert.Error(t, err)
	})

	t.Run("baseURLとmodelの省略はデフォルト値", func(t *testing.T) {
		c, err := NewClient(&mockDoer{}, "key", "", "", log)
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, c.baseURL)
		assert.Equal(t, DefaultModel, c.model)
	})
}

func TestClient_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: エンドポイントとペイロードの形が契約どおり", func(t *testing.T) {
		doer := &mockDoer{status: 200, respBody: []byte(imageBody(t, "png"))}
		c := newTestClient(t, doer)

		image, err := c.Generate(ctx, "a cat wearing a tiny hat", createDummyImageData(t, "jpeg"))
		require.NoError(t, err)
		assert.Equal(t, "image/png", image.MimeType)
		assert.NotEmpty(t, image.Data)

		req := doer.lastRequest
		require.NotNil(t, req)
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t, fmt.Sprintf("/v1beta/models/%s:generateContent", DefaultModel), req.URL.Path)

		// API キーはヘッダではなくクエリパラメータで渡されること
		assert.Equal(t, "test-api-key", req.URL.Query().Get("key"))
		assert.Empty(t, req.Header.Get("Authorization"))

		// ワイヤ上のフィールド名が契約そのままであること
		var payload map[string]any
		require.NoError(t, json.Unmarshal(doer.lastBody, &payload))
		contents, ok := payload["contents"].([]any)
		require.True(t, ok, "payload must have contents array")
		require.Len(t, contents, 1)
		parts := contents[0].(map[string]any)["parts"].([]any)
		require.Len(t, parts, 2)
		assert.Equal(t, "a cat wearing a tiny hat", parts[0].(map[string]any)["text"])
		inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
		assert.Equal(t, "image/jpeg", inline["mimeType"])
		assert.NotEmpty(t, inline["data"])
	})

	t.Run("接続レベルの失敗は原因をラップして返す", func(t *testing.T) {
		cause := errors.New("connection refused")
		c := newTestClient(t, &mockDoer{err: cause})

		_, err := c.Generate(ctx, "prompt", createDummyImageData(t, "png"))
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("キャンセル済みコンテキストは送信失敗として返る", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		client := &http.Client{}
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		c, err := NewClient(client, "key", "http://127.0.0.1:0", "", log)
		require.NoError(t, err)

		_, err = c.Generate(cancelled, "prompt", createDummyImageData(t, "png"))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("エンコード失敗は送信せずに返る", func(t *testing.T) {
		doer := &mockDoer{status: 200}
		c := newTestClient(t, doer)

		_, err := c.Generate(ctx, "prompt", []byte("not an image"))

		var decodeErr *ImageDecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Nil(t, doer.lastRequest, "transport should not be called")
	})

	t.Run("非200応答は分類結果がそのまま返る", func(t *testing.T) {
		doer := &mockDoer{status: 503, respBody: []byte("service unavailable")}
		c := newTestClient(t, doer)

		_, err := c.Generate(ctx, "prompt", createDummyImageData(t, "png"))

		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, 503, transportErr.StatusCode)
		assert.Equal(t, "service unavailable", transportErr.Body)
	})
}
