package generation

import (
	"encoding/base64"

	"github.com/shouni/promptart-kit/pkg/domain"
	"github.com/shouni/promptart-kit/pkg/imgutil"
)

// ペイロードサイズを抑えるため、送信画像は固定品質で JPEG に再圧縮します。
// 品質は呼び出し側から変更できません。
const jpegQuality = 80

// buildEnvelope は生成要求をワイヤペイロードへ変換します。
// コンテンツブロックは常に 1 つで、テキストパーツ、画像パーツの順に並びます。
// 失敗するのは入力画像の圧縮（デコード）に失敗した場合のみです。
func buildEnvelope(req domain.GenerationRequest) (*wireEnvelope, error) {
	compressed, err := imgutil.CompressToJPEG(req.SourceImage, jpegQuality)
	if err != nil {
		return nil, &ImageDecodeError{Cause: err}
	}

	return &wireEnvelope{
		Contents: []wireContent{
			{
				Parts: []wirePart{
					{Text: req.Prompt},
					{InlineData: &wireInlineData{
						MimeType: "image/jpeg",
						Data:     base64.StdEncoding.EncodeToString(compressed),
					}},
				},
			},
		},
	}, nil
}
