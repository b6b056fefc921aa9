package generation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/promptart-kit/pkg/domain"
)

const (
	// DefaultBaseURL は Gemini API のエンドポイントです。
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel は画像生成に使うデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash-image"
)

// Client は image-to-image 生成の 1 回分のラウンドトリップを実行します。
// 共有の可変状態を持たないため、独立した呼び出しであれば並行に利用できます。
// キャンセルは ctx 経由で呼び出し側が制御します。
type Client struct {
	httpClient Doer
	baseURL    string
	model      string
	apiKey     string
	log        *slog.Logger
}

// NewClient は依存関係を注入して Client を初期化します。
// baseURL と model が空の場合はデフォルト値を使います。
func NewClient(httpClient Doer, apiKey, baseURL, model string, log *slog.Logger) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	if log == nil {
		return nil, fmt.Errorf("log is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		model:      model,
		apiKey:     apiKey,
		log:        log,
	}, nil
}

// Generate は (プロンプト, 入力画像) から画像を 1 枚生成します。
// エンコード → 送信 → 分類を直列に 1 回だけ実行し、失敗は分類済みの
// エラー型（errors.go）としてそのまま返します。
func (c *Client) Generate(ctx context.Context, prompt string, sourceImage []byte) (*domain.GeneratedImage, error) {
	env, err := buildEnvelope(domain.GenerationRequest{Prompt: prompt, SourceImage: sourceImage})
	if err != nil {
		return nil, err
	}

	status, body, err := c.send(ctx, env)
	if err != nil {
		return nil, err
	}

	return classify(status, body)
}
