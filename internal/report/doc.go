// Package report は発見報告サービスの内部実装を提供する。
//
// 保護されていない動物を見つけたユーザーが報告を送信し、
// 任意でシェルターに振り分ける。振り分け先シェルターの所有者には
// メッセージングサービスの内部API経由で通知する。
package report
