package api

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/shouni/promptart-kit/pkg/domain"
)

// --- Mocks ---

// mockGenerator は ImageGenerator を実装します。
type mockGenerator struct {
	lastPrompt string
	lastSource []byte
	result     *domain.GeneratedImage
	err        error
	block      chan struct{} // 非nilなら閉じられるまで待つ
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, sourceImage []byte) (*domain.GeneratedImage, error) {
	m.lastPrompt = prompt
	m.lastSource = sourceImage
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockResolver は SourceResolver を実装します。
type mockResolver struct {
	data []byte
	err  error
}

func (m *mockResolver) Resolve(ctx context.Context, rawURL string) ([]byte, error) {
	return m.data, m.err
}

// テスト用のダミー画像（10x10の赤い正方形）を作成するヘルパー
func createDummyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("failed to encode dummy image: %v", err)
	}
	return buf.Bytes()
}
