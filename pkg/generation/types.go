package generation

// generateContent API のワイヤ型です。フィールド名は API 契約そのままです。
// レスポンス側は全フィールドが省略されうるため、ポインタとゼロ値許容で表現します。

type wireEnvelope struct {
	Contents []wireContent `json:"contents"`
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *wireInlineData `json:"inlineData,omitempty"`
}

type wireInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 エンコード済み
}

type wireResponse struct {
	Candidates []wireCandidate `json:"candidates"`
	Error      *wireError      `json:"error"`
}

type wireCandidate struct {
	Content      *wireCandidateContent `json:"content"`
	FinishReason string                `json:"finishReason"`
}

type wireCandidateContent struct {
	Parts []wirePart `json:"parts"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
