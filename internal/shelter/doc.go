// Package shelter はシェルター（動物保護団体）サービスの内部実装を提供する。
//
// シェルターの登録・検索・更新・削除を担当する。
// 1人のシェルターアカウントが管理できるシェルターは1つだけである。
// 他のサービスは内部API経由でシェルターの存在と所有者を確認する。
package shelter
