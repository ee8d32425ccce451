// Package animal は動物サービスの内部実装を提供する。
//
// シェルターが登録する動物（譲渡対象・迷子・保護）の管理、写真のアップロードと
// サムネイル生成、ユーザーごとのお気に入りを担当する。
// 動物の登録時は内部API経由でシェルターサービスに所属シェルターを問い合わせる。
package animal
