// Package donation は寄付サービスの内部実装を提供する。
//
// 寄付は支援の申し出として記録するだけで、決済は行わない。
// 寄付先シェルターの所有者には通知し、シェルターの所有者だけが
// 通貨ごとの合計と寄付の一覧を閲覧できる。
package donation
