package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config はサーバー全体の設定です。YAML ファイルと環境変数の両方から読み込みます。
type Config struct {
	Env     string `yaml:"env" env:"PROMPTART_ENV" env-default:"local"`
	Listen  string `yaml:"listen" env:"PROMPTART_LISTEN" env-default:":8080"`
	LogFile string `yaml:"log_file" env:"PROMPTART_LOG_FILE" env-default:""`

	Gemini struct {
		APIKey  string `yaml:"api_key" env:"GEMINI_API_KEY" env-default:""`
		BaseURL string `yaml:"base_url" env:"GEMINI_BASE_URL" env-default:""`
		Model   string `yaml:"model" env:"GEMINI_MODEL" env-default:""`
	} `yaml:"gemini"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret" env:"PROMPTART_JWT_SECRET" env-default:""`
		TokenTTL  int    `yaml:"token_ttl_hours" env:"PROMPTART_TOKEN_TTL_HOURS" env-default:"72"`
	} `yaml:"auth"`

	Mongo struct {
		Enabled  bool   `yaml:"enabled" env:"PROMPTART_MONGO_ENABLED" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env-default:"pass"`
		Database string `yaml:"database" env-default:"promptart"`
	} `yaml:"mongo"`

	CatalogFile string `yaml:"catalog_file" env:"PROMPTART_CATALOG_FILE" env-default:""`
}

// Load は設定を読み込んで検証します。
// ファイルが存在しない場合は環境変数のみで構築します。
func Load(path string) (*Config, error) {
	conf := &Config{}

	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		err = cleanenv.ReadConfig(path, conf)
	} else {
		err = cleanenv.ReadEnv(conf)
	}
	if err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}

	// API キーがなければ生成処理が一切成立しないため、起動時に失敗させます。
	if conf.Gemini.APIKey == "" {
		return nil, fmt.Errorf("config: gemini api key is required (GEMINI_API_KEY)")
	}
	if conf.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("config: jwt secret is required (PROMPTART_JWT_SECRET)")
	}

	return conf, nil
}

// MustLoad は Load に失敗した場合にプロセスを終了します。
func MustLoad(path string) *Config {
	conf, err := Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return conf
}
