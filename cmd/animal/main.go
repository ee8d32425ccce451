// Animalサービスのエントリポイント。
// 動物の登録・検索、写真のアップロードとサムネイル生成、お気に入りを担当する。
package main

import (
	"log"

	"github.com/nao1215/findtail/internal/animal"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.ServiceAnimal)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	zl, err := logger.New(cfg.Service, cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	server, err := animal.NewServer(cfg, zl)
	if err != nil {
		zl.Fatal("Animalサーバーの初期化に失敗", zap.Error(err))
	}
	defer func() { _ = server.Close() }()

	zl.Info("Animalサービスを起動します", zap.String("addr", cfg.Addr()))
	if err := server.Run(); err != nil {
		zl.Fatal("Animalサービスの起動に失敗", zap.Error(err))
	}
}
