// Package config は各サービスの設定を読み込む。
// デフォルト値、YAML設定ファイル、環境変数の順に上書きする。
package config
