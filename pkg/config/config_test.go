package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("デフォルト値が設定されること", func(t *testing.T) {
		t.Setenv("FINDTAIL_CONFIG", "")
		t.Setenv("PORT", "")

		cfg, err := Load(ServiceAnimal)
		require.NoError(t, err)

		assert.Equal(t, ServiceAnimal, cfg.Service)
		assert.Equal(t, "8082", cfg.Port)
		assert.Equal(t, "/data/animal.db", cfg.DatabaseURL)
		assert.Equal(t, 90*24*time.Hour, cfg.NotificationRetention)
		assert.Equal(t, ":8082", cfg.Addr())
	})

	t.Run("YAMLファイルの値が適用されること", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "findtail.yaml")
		content := `
port: "9000"
database_url: postgres://localhost/findtail
dev_mode: true
notification_retention: 720h
services:
  shelter: http://shelter:8081
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		t.Setenv("FINDTAIL_CONFIG", path)
		t.Setenv("PORT", "")

		cfg, err := Load(ServiceMessaging)
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.Port)
		assert.Equal(t, "postgres://localhost/findtail", cfg.DatabaseURL)
		assert.True(t, cfg.DevMode)
		assert.Equal(t, 720*time.Hour, cfg.NotificationRetention)
		assert.Equal(t, "http://shelter:8081", cfg.Services.Shelter)
		// ファイルに書かれていない項目はデフォルト値のまま
		assert.Equal(t, "http://localhost:8082", cfg.Services.Animal)
	})

	t.Run("環境変数がYAMLより優先されること", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "findtail.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\n"), 0o600))
		t.Setenv("FINDTAIL_CONFIG", path)
		t.Setenv("PORT", "9100")
		t.Setenv("DEV_MODE", "false")
		t.Setenv("SHELTER_URL", "http://env-shelter:8081")

		cfg, err := Load(ServiceGateway)
		require.NoError(t, err)

		assert.Equal(t, "9100", cfg.Port)
		assert.False(t, cfg.DevMode)
		assert.Equal(t, "http://env-shelter:8081", cfg.Services.Shelter)
	})

	t.Run("不正なDEV_MODEはエラーになること", func(t *testing.T) {
		t.Setenv("FINDTAIL_CONFIG", "")
		t.Setenv("DEV_MODE", "maybe")

		_, err := Load(ServiceGateway)
		require.Error(t, err)
	})

	t.Run("不明なサービス名はエラーになること", func(t *testing.T) {
		_, err := Load("unknown")
		require.Error(t, err)
	})

	t.Run("存在しない設定ファイルはエラーになること", func(t *testing.T) {
		t.Setenv("FINDTAIL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := Load(ServiceGateway)
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("必須項目が空の場合はすべてのエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		cfg := Default(ServiceShelter)
		cfg.Port = ""
		cfg.JWTSecret = " "
		cfg.NotificationRetention = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ポート")
		assert.Contains(t, err.Error(), "JWTシークレット")
		assert.Contains(t, err.Error(), "保持期間")
	})

	t.Run("デフォルト設定は検証を通ること", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, Default(ServiceReport).Validate())
	})
}
