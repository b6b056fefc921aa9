package domain

// GenerationRequest は 1 回の画像生成要求です。
// 呼び出しごとに構築され、永続化されません。
type GenerationRequest struct {
	Prompt      string
	SourceImage []byte
}

// GeneratedImage は生成された画像データとそのメタデータです。
type GeneratedImage struct {
	Data     []byte
	MimeType string
}
