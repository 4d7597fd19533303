// Package kvstore は永続キーバリューストアのインターフェースと実装を提供する。
// ドメインストアのチェックポイント（カート・セッション）の保存先として使う。
// 値は構造化レコードをテキスト（JSON）にシリアライズしたもの。
package kvstore

import "context"

// Store は永続キーバリューストアのインターフェース。
type Store interface {
	// Get は指定キーの値を返す。キーが存在しない場合はok=falseを返す（エラーではない）。
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set は指定キーに値を保存する。既存の値は上書きされる。
	Set(ctx context.Context, key, value string) error

	// Delete は指定キーを削除する。キーが存在しない場合も成功として扱う。
	Delete(ctx context.Context, key string) error
}
