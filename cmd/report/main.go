// Reportサービスのエントリポイント。
// 発見報告の受付と最寄りシェルターへの振り分けを担当する。
package main

import (
	"log"

	"github.com/nao1215/findtail/internal/report"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.ServiceReport)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	zl, err := logger.New(cfg.Service, cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	server, err := report.NewServer(cfg, zl)
	if err != nil {
		zl.Fatal("Reportサーバーの初期化に失敗", zap.Error(err))
	}
	defer func() { _ = server.Close() }()

	zl.Info("Reportサービスを起動します", zap.String("addr", cfg.Addr()))
	if err := server.Run(); err != nil {
		zl.Fatal("Reportサービスの起動に失敗", zap.Error(err))
	}
}
