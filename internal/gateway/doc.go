// Package gateway はAPI Gatewayの内部実装を提供する。
//
// メールアドレスとパスワードによる認証、セッションとプロフィールの管理、
// ロール別ダッシュボードの集約を担い、それ以外のAPIは各サービスにプロキシする。
// 認証が必要なルートでは、JWTの検証に加えてセッションが失効していないことを確認する。
package gateway
