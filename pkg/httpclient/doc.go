// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 各サービスが他のサービスの内部APIを呼び出す際に使用する。
// ユーザーID、転送するAuthorizationヘッダー、内部APIトークンの付与を統一する。
package httpclient
