package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shouni/promptart-kit/pkg/api"
	"github.com/shouni/promptart-kit/pkg/auth"
	"github.com/shouni/promptart-kit/pkg/catalog"
	"github.com/shouni/promptart-kit/pkg/config"
	"github.com/shouni/promptart-kit/pkg/fetch"
	"github.com/shouni/promptart-kit/pkg/generation"
	"github.com/shouni/promptart-kit/pkg/library"
	"github.com/shouni/promptart-kit/pkg/logging"
	"github.com/shouni/promptart-kit/pkg/storage"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logging.Setup(conf.Env, conf.LogFile)
	log.With(
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		logging.Secret(conf.Gemini.APIKey),
	).Info("starting promptart server")

	store := setupStorage(conf, log)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("closing storage", logging.Err(err))
		}
	}()

	catalogSvc, err := catalog.NewService(store, log)
	if err != nil {
		exit(log, "creating catalog service", err)
	}
	if conf.CatalogFile != "" {
		if _, err := catalogSvc.LoadSeedFile(conf.CatalogFile); err != nil {
			log.Warn("カタログの初期データを読み込めませんでした", logging.Err(err))
		}
	}

	librarySvc, err := library.NewService(store, log)
	if err != nil {
		exit(log, "creating library service", err)
	}

	authSvc, err := auth.NewService(store, conf.Auth.JWTSecret,
		time.Duration(conf.Auth.TokenTTL)*time.Hour, log)
	if err != nil {
		exit(log, "creating auth service", err)
	}

	generator, err := generation.NewClient(&http.Client{},
		conf.Gemini.APIKey, conf.Gemini.BaseURL, conf.Gemini.Model, log)
	if err != nil {
		exit(log, "creating generation client", err)
	}

	resolver, err := fetch.NewSourceResolver(&httpFetcher{client: &http.Client{Timeout: 30 * time.Second}}, nil, log)
	if err != nil {
		exit(log, "creating source resolver", err)
	}

	handler, err := api.NewHandler(catalogSvc, librarySvc, authSvc, generator, resolver, log)
	if err != nil {
		exit(log, "creating handler", err)
	}

	server := api.NewServer(conf.Listen, handler.Routes(), log)
	if err := server.Run(); err != nil {
		exit(log, "server stopped with error", err)
	}
}

// setupStorage は設定に応じたストレージを選択します。
// MongoDB へ接続できない場合はインメモリ実装へフォールバックします。
func setupStorage(conf *config.Config, log *slog.Logger) storage.Storage {
	if !conf.Mongo.Enabled {
		log.Info("using in-memory storage")
		return storage.NewMemoryStorage()
	}

	mongoURI := fmt.Sprintf("mongodb://%s:%s@%s:%s",
		conf.Mongo.User, conf.Mongo.Password,
		conf.Mongo.Host, conf.Mongo.Port)
	store, err := storage.NewMongoStorage(mongoURI, conf.Mongo.Database, log)
	if err != nil {
		log.With(
			slog.String("db", conf.Mongo.Database),
			slog.String("host", conf.Mongo.Host),
		).Error("falling back to memory storage", logging.Err(err))
		return storage.NewMemoryStorage()
	}
	log.Info("using MongoDB storage")
	return store
}

// httpFetcher は httpkit.ClientInterface を素の http.Client で満たすアダプターです。
type httpFetcher struct {
	client *http.Client
}

func (f *httpFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return f.DoRequest(req)
}

func (f *httpFetcher) DoRequest(req *http.Request) ([]byte, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", req.URL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *httpFetcher) FetchAndDecodeJSON(ctx context.Context, url string, v any) error {
	data, err := f.FetchBytes(ctx, url)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (f *httpFetcher) PostJSONAndFetchBytes(ctx context.Context, url string, data any) ([]byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return f.PostRawBodyAndFetchBytes(ctx, url, body, "application/json")
}

func (f *httpFetcher) PostRawBodyAndFetchBytes(ctx context.Context, url string, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return f.DoRequest(req)
}

func exit(log *slog.Logger, msg string, err error) {
	log.Error(msg, logging.Err(err))
	os.Exit(1)
}
