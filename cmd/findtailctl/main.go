// findtailctlはFindTailの運用コマンド。
// サービスのデータベースのマイグレーションと、動作確認用のトークン発行を行う。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %s\n", err)
		os.Exit(1)
	}
}
