// Package messaging はメッセージングサービスの内部実装を提供する。
//
// ユーザー間のメッセージと各サービスから届く通知を保存し、
// 両者をひとつの会話一覧にまとめて返す。会話IDは相手ユーザーとのチャットが
// chat_<相手のユーザーID>、通知が notification_<通知ID> となる。
// 新着メッセージや通知はWebSocketで接続中のクライアントにCloudEvents形式で配信する。
package messaging
