package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Doer は HTTP リクエストの実行部分を差し替え可能にする最小インターフェースです。
// 本番では *http.Client を渡し、テストではモックを渡します。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// send はエンベロープを 1 回だけ POST し、ステータスコードと生のボディを返します。
// API キーはプロバイダの認証規約に従いクエリパラメータで渡します（ヘッダではありません）。
// リトライは行わず、接続レベルの失敗は原因をラップして返します。
func (c *Client) send(ctx context.Context, env *wireEnvelope) (int, []byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return 0, nil, fmt.Errorf("リクエストのシリアライズに失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, c.model, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("リクエスト送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	// エラー応答のボディにも機械可読なペイロードが含まれるため、診断用に生のまま記録します。
	c.log.DebugContext(ctx, "generateContent 応答を受信しました",
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(body)),
	)

	return resp.StatusCode, body, nil
}
