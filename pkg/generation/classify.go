package generation

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shouni/promptart-kit/pkg/domain"
	"github.com/shouni/promptart-kit/pkg/imgutil"
)

// classify はステータスコードと生ボディを判定順に分類し、成功時は生成画像を返します。
// 判定順: 非200 → 空ボディ → JSON解析 → error フィールド → セーフティブロック
//       → 画像パーツ探索 → base64/画像デコード。
func classify(status int, body []byte) (*domain.GeneratedImage, error) {
	if status != http.StatusOK {
		return nil, &TransportError{StatusCode: status, Body: string(body)}
	}

	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedBodyError{Cause: err}
	}

	// error フィールドがあれば candidates の有無に関わらずプロバイダエラーです。
	if resp.Error != nil {
		msg := resp.Error.Message
		if msg == "" {
			msg = "An unknown API error occurred."
		}
		return nil, &ProviderError{Message: msg}
	}

	if len(resp.Candidates) == 0 {
		return nil, ErrNoImageInResponse
	}
	candidate := resp.Candidates[0]

	// SAFETY / IMAGE_SAFETY など列挙値の揺れを拾うため部分一致で判定します。
	if strings.Contains(strings.ToLower(candidate.FinishReason), "safety") {
		return nil, &PromptBlockedError{Reason: candidate.FinishReason}
	}

	if candidate.Content == nil {
		return nil, ErrNoImageInResponse
	}

	// inlineData を持つ最初のパーツが採用されます（先頭パーツとは限りません）。
	for _, part := range candidate.Content.Parts {
		if part.InlineData == nil {
			continue
		}

		raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, &ImageDecodeError{Cause: err}
		}
		// デコードはできても画像として成立しないケースも同じ分類で扱います。
		if _, err := imgutil.DetectFormat(raw); err != nil {
			return nil, &ImageDecodeError{Cause: err}
		}

		mimeType := part.InlineData.MimeType
		if mimeType == "" {
			mimeType = http.DetectContentType(raw)
		}
		return &domain.GeneratedImage{Data: raw, MimeType: mimeType}, nil
	}

	return nil, ErrNoImageInResponse
}
