package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// SourceResolver は参照画像 URL からバイト列を取得します。
// https URL と gs:// URI の両方に対応します。
type SourceResolver struct {
	httpClient httpkit.ClientInterface
	reader     remoteio.InputReader
	log        *slog.Logger
}

// NewSourceResolver は依存関係を注入して SourceResolver を初期化します。
// reader は nil を許容します（gs:// 非対応動作）。
func NewSourceResolver(httpClient httpkit.ClientInterface, reader remoteio.InputReader, log *slog.Logger) (*SourceResolver, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	if log == nil {
		return nil, fmt.Errorf("log is required")
	}

	return &SourceResolver{
		httpClient: httpClient,
		reader:     reader,
		log:        log,
	}, nil
}

// Resolve は URL から画像データを取得します。
// 取得したデータが画像でない場合はエラーを返します。
func (r *SourceResolver) Resolve(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := r.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		r.log.WarnContext(ctx, "取得データが画像ではありません",
			slog.String("url", rawURL), slog.String("detected_mime_type", mimeType))
		return nil, fmt.Errorf("参照URLの内容が画像ではありません: %s", mimeType)
	}
	return data, nil
}

func (r *SourceResolver) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "gs://") {
		if r.reader == nil {
			return nil, fmt.Errorf("gs:// URI には対応していません")
		}
		rc, err := r.reader.Open(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	if safe, err := IsSafeURL(rawURL); err != nil || !safe {
		return nil, fmt.Errorf("安全ではないURLが指定されました: %w", err)
	}
	return r.httpClient.FetchBytes(ctx, rawURL)
}

// IsSafeURL は、SSRF (Server-Side Request Forgery) 対策として URL を検証します。
// 許可されたスキーム (http, https) かつ、プライベートIPやループバックアドレスを
// ターゲットにしていないことを確認します。
func IsSafeURL(rawURL string) (bool, error) {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	var ips []net.IP

	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolvedIPs, err := net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("ホスト '%s' の名前解決に失敗しました: %w", host, err)
		}
		ips = resolvedIPs
	}

	if len(ips) == 0 {
		return false, fmt.Errorf("IPが見つかりません")
	}

	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return false, fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip.String())
		}
	}

	return true, nil
}
