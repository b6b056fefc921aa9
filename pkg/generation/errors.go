package generation

import (
	"errors"
	"fmt"
)

// 生成パイプラインの失敗分類です。呼び出し側は errors.Is / errors.As で
// 種別を判定できます。リトライはどの分類に対しても行いません。
var (
	// ErrInvalidEndpoint はエンドポイント URL からリクエストを構築できなかったことを示します。
	ErrInvalidEndpoint = errors.New("エンドポイントURLが不正です")

	// ErrEmptyBody は 200 応答のボディが空だったことを示します。
	ErrEmptyBody = errors.New("レスポンスボディが空です")

	// ErrNoImageInResponse は候補のパーツに画像データが含まれていなかったことを示します。
	ErrNoImageInResponse = errors.New("レスポンスに画像データが見つかりませんでした")
)

// TransportError は非 200 ステータスの応答です。ボディは診断のため生のまま保持します。
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("APIが異常ステータスを返しました (status: %d): %s", e.StatusCode, e.Body)
}

// MalformedBodyError はレスポンスボディを JSON として解釈できなかったことを示します。
type MalformedBodyError struct {
	Cause error
}

func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("レスポンスの解析に失敗しました: %v", e.Cause)
}

func (e *MalformedBodyError) Unwrap() error { return e.Cause }

// ProviderError はプロバイダが error フィールドで報告したエラーです。
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("APIエラー: %s", e.Message)
}

// PromptBlockedError はセーフティフィルターによるブロックです。
// Reason にはプロバイダの finishReason をそのまま保持します。
type PromptBlockedError struct {
	Reason string
}

func (e *PromptBlockedError) Error() string {
	return fmt.Sprintf("プロンプトがセーフティフィルターにブロックされました (finishReason: %s)", e.Reason)
}

// ImageDecodeError は画像データの base64 デコード失敗、または
// デコード後のバイト列が画像として成立しなかったことを示します。
// 送信前の入力画像の圧縮失敗も同じ分類です。
type ImageDecodeError struct {
	Cause error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("画像データのデコードに失敗しました: %v", e.Cause)
}

func (e *ImageDecodeError) Unwrap() error { return e.Cause }
