// API Gatewayサービスのエントリポイント。
// 認証・セッション管理、ダッシュボード集約、各サービスへのリクエストルーティングを担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"log"

	"github.com/nao1215/findtail/internal/gateway"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.ServiceGateway)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	zl, err := logger.New(cfg.Service, cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	server, err := gateway.NewServer(cfg, zl)
	if err != nil {
		zl.Fatal("Gatewayサーバーの初期化に失敗", zap.Error(err))
	}
	defer func() { _ = server.Close() }()

	zl.Info("Gatewayサービスを起動します", zap.String("addr", cfg.Addr()))
	if err := server.Run(); err != nil {
		zl.Fatal("Gatewayサービスの起動に失敗", zap.Error(err))
	}
}
