package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// サービス名。cmd/<service> と internal/<service> に対応する。
const (
	ServiceGateway   = "gateway"
	ServiceShelter   = "shelter"
	ServiceAnimal    = "animal"
	ServiceReport    = "report"
	ServiceDonation  = "donation"
	ServiceMessaging = "messaging"
)

// defaultPorts はサービスごとのデフォルトのリッスンポート。
var defaultPorts = map[string]string{
	ServiceGateway:   "8080",
	ServiceShelter:   "8081",
	ServiceAnimal:    "8082",
	ServiceReport:    "8083",
	ServiceDonation:  "8084",
	ServiceMessaging: "8085",
}

// Services は内部サービスのベースURL。
type Services struct {
	Gateway   string `yaml:"gateway"`
	Shelter   string `yaml:"shelter"`
	Animal    string `yaml:"animal"`
	Report    string `yaml:"report"`
	Donation  string `yaml:"donation"`
	Messaging string `yaml:"messaging"`
}

// Config はサービスの実行時設定。
type Config struct {
	// Service は設定対象のサービス名。
	Service string `yaml:"-"`
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// DatabaseURL はSQLiteのファイルパスまたはPostgreSQLのDSN。
	DatabaseURL string `yaml:"database_url"`
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string `yaml:"jwt_secret"`
	// InternalToken はサービス間の内部APIを保護する共有トークン。
	InternalToken string `yaml:"internal_token"`
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string `yaml:"frontend_url"`
	// StorageDir はアップロードファイルの保存先ディレクトリ。
	StorageDir string `yaml:"storage_dir"`
	// DevMode は開発用トークン発行などを有効にする。
	DevMode bool `yaml:"dev_mode"`
	// LogLevel はログレベル（debug, info, warn, error）。
	LogLevel string `yaml:"log_level"`
	// NotificationRetention は既読通知を保持する期間。
	NotificationRetention time.Duration `yaml:"notification_retention"`
	// Services は内部サービスのURL。
	Services Services `yaml:"services"`
}

// Default はサービスのデフォルト設定を返す。
func Default(service string) *Config {
	return &Config{
		Service:               service,
		Port:                  defaultPorts[service],
		DatabaseURL:           fmt.Sprintf("/data/%s.db", service),
		JWTSecret:             "dev-secret-key",
		InternalToken:         "dev-internal-token",
		FrontendURL:           "http://localhost:3000",
		StorageDir:            "/data/uploads",
		LogLevel:              "info",
		NotificationRetention: 90 * 24 * time.Hour,
		Services: Services{
			Gateway:   "http://localhost:8080",
			Shelter:   "http://localhost:8081",
			Animal:    "http://localhost:8082",
			Report:    "http://localhost:8083",
			Donation:  "http://localhost:8084",
			Messaging: "http://localhost:8085",
		},
	}
}

// Load はサービスの設定を読み込む。
// FINDTAIL_CONFIG にYAMLファイルのパスが設定されていればそれを適用し、
// 最後に環境変数で上書きする。
func Load(service string) (*Config, error) {
	if _, ok := defaultPorts[service]; !ok {
		return nil, fmt.Errorf("不明なサービスです: %s", service)
	}

	cfg := Default(service)
	if path := os.Getenv("FINDTAIL_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile はYAML設定ファイルを読み込んで上書きする。
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルのパースに失敗: %w", err)
	}
	return nil
}

// applyEnv は環境変数で設定を上書きする。
func (c *Config) applyEnv() error {
	c.Port = GetEnvOr("PORT", c.Port)
	c.DatabaseURL = GetEnvOr("DATABASE_URL", c.DatabaseURL)
	c.JWTSecret = GetEnvOr("JWT_SECRET", c.JWTSecret)
	c.InternalToken = GetEnvOr("INTERNAL_TOKEN", c.InternalToken)
	c.FrontendURL = GetEnvOr("FRONTEND_URL", c.FrontendURL)
	c.StorageDir = GetEnvOr("STORAGE_DIR", c.StorageDir)
	c.LogLevel = GetEnvOr("LOG_LEVEL", c.LogLevel)

	c.Services.Gateway = GetEnvOr("GATEWAY_URL", c.Services.Gateway)
	c.Services.Shelter = GetEnvOr("SHELTER_URL", c.Services.Shelter)
	c.Services.Animal = GetEnvOr("ANIMAL_URL", c.Services.Animal)
	c.Services.Report = GetEnvOr("REPORT_URL", c.Services.Report)
	c.Services.Donation = GetEnvOr("DONATION_URL", c.Services.Donation)
	c.Services.Messaging = GetEnvOr("MESSAGING_URL", c.Services.Messaging)

	if v := os.Getenv("DEV_MODE"); v != "" {
		devMode, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEV_MODEの値が不正です: %w", err)
		}
		c.DevMode = devMode
	}
	if v := os.Getenv("NOTIFICATION_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NOTIFICATION_RETENTIONの値が不正です: %w", err)
		}
		c.NotificationRetention = d
	}
	return nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("ポートが設定されていません"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWTシークレットが設定されていません"))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("データベースURLが設定されていません"))
	}
	if c.NotificationRetention <= 0 {
		errs = append(errs, errors.New("通知の保持期間は正の値である必要があります"))
	}
	return errors.Join(errs...)
}

// Addr はgin.Engine.Runに渡すリッスンアドレスを返す。
func (c *Config) Addr() string {
	return ":" + c.Port
}

// GetEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func GetEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
